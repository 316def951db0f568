package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"layout-server/core"

	"github.com/sirupsen/logrus"
)

type workspaceStore struct {
	mu sync.RWMutex
	// owner id -> workspace id -> workspace
	workspaces map[string]map[string]*core.Workspace
	now        func() time.Time
}

func NewWorkspaceStore() core.WorkspaceStore {
	return &workspaceStore{
		workspaces: make(map[string]map[string]*core.Workspace),
		now:        time.Now,
	}
}

func (s *workspaceStore) List(ctx context.Context, ownerID string) ([]*core.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.workspaces[ownerID]
	list := make([]*core.Workspace, 0, len(owned))
	for _, ws := range owned {
		meta := *ws
		meta.Data = nil
		list = append(list, &meta)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})

	logrus.WithField("owner_id", ownerID).Debugf("Listed %d workspaces", len(list))
	return list, nil
}

func (s *workspaceStore) Get(ctx context.Context, ownerID, id string) (*core.Workspace, error) {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id})

	s.mu.RLock()
	ws, ok := s.workspaces[ownerID][id]
	s.mu.RUnlock()

	if !ok {
		log.Warn("Workspace with specified ID not found")
		return nil, fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
	}

	out := *ws
	out.Data = append([]byte(nil), ws.Data...)
	log.Debug("Workspace retrieved successfully")
	return &out, nil
}

func (s *workspaceStore) Save(ctx context.Context, workspace *core.Workspace) error {
	if workspace.ID == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}
	log := logrus.WithFields(logrus.Fields{
		"owner_id":     workspace.OwnerID,
		"workspace_id": workspace.ID,
		"data_length":  len(workspace.Data),
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.workspaces[workspace.OwnerID]
	if !ok {
		owned = make(map[string]*core.Workspace)
		s.workspaces[workspace.OwnerID] = owned
	}

	now := s.now()
	if existing, exists := owned[workspace.ID]; exists {
		workspace.CreatedAt = existing.CreatedAt
	} else {
		workspace.CreatedAt = now
	}
	workspace.UpdatedAt = now

	stored := *workspace
	stored.Data = append([]byte(nil), workspace.Data...)
	owned[workspace.ID] = &stored

	log.Debug("Workspace saved successfully")
	return nil
}

func (s *workspaceStore) Delete(ctx context.Context, ownerID, id string) error {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id})

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[ownerID][id]; !ok {
		log.Warn("Workspace not found for deletion")
		return fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
	}
	delete(s.workspaces[ownerID], id)

	log.Info("Workspace deleted successfully")
	return nil
}
