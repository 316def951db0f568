package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"layout-server/core"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
	now      func() time.Time
}

// NewStore creates a new filesystem-based store. Each workspace is one JSON
// file under <basePath>/<owner>/<id>.
func NewStore(basePath string) core.WorkspaceStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath, now: time.Now}
}

// validName rejects anything that could escape its parent directory.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

func (s *fsStore) workspacePath(ownerID, id string) (string, error) {
	if !validName(ownerID) {
		return "", fmt.Errorf("invalid owner id %q", ownerID)
	}
	if !validName(id) {
		return "", fmt.Errorf("invalid workspace id %q", id)
	}

	ownerPath, err := filepath.Abs(filepath.Join(s.basePath, ownerID))
	if err != nil {
		return "", err
	}
	filePath, err := filepath.Abs(filepath.Join(ownerPath, id))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(filePath, ownerPath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return filePath, nil
}

func (s *fsStore) read(filePath string) (*core.Workspace, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var ws core.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *fsStore) List(ctx context.Context, ownerID string) ([]*core.Workspace, error) {
	log := logrus.WithField("owner_id", ownerID)
	if !validName(ownerID) {
		return nil, fmt.Errorf("invalid owner id %q", ownerID)
	}
	ownerPath := filepath.Join(s.basePath, ownerID)

	files, err := os.ReadDir(ownerPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Owner directory does not exist, returning empty list")
			return []*core.Workspace{}, nil
		}
		log.WithError(err).Error("Failed to read owner directory")
		return nil, err
	}

	workspaces := make([]*core.Workspace, 0, len(files))
	for _, file := range files {
		if file.IsDir() || strings.HasSuffix(file.Name(), ".tmp") {
			continue
		}
		ws, err := s.read(filepath.Join(ownerPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read workspace file %s, skipping", file.Name())
			continue
		}
		ws.OwnerID = ownerID
		ws.Data = nil
		workspaces = append(workspaces, ws)
	}

	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].UpdatedAt.After(workspaces[j].UpdatedAt)
	})

	log.Debugf("Listed %d workspaces", len(workspaces))
	return workspaces, nil
}

func (s *fsStore) Get(ctx context.Context, ownerID, id string) (*core.Workspace, error) {
	filePath, err := s.workspacePath(ownerID, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id, "path": filePath})

	ws, err := s.read(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("Workspace file not found")
			return nil, fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
		}
		log.WithError(err).Error("Failed to read workspace file")
		return nil, err
	}
	ws.OwnerID = ownerID

	log.Debug("Workspace retrieved successfully")
	return ws, nil
}

func (s *fsStore) Save(ctx context.Context, workspace *core.Workspace) error {
	filePath, err := s.workspacePath(workspace.OwnerID, workspace.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": workspace.OwnerID, "workspace_id": workspace.ID, "path": filePath})

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		log.WithError(err).Error("Failed to create owner directory")
		return err
	}

	now := s.now()
	if existing, err := s.read(filePath); err == nil {
		workspace.CreatedAt = existing.CreatedAt
	} else {
		workspace.CreatedAt = now
	}
	workspace.UpdatedAt = now

	data, err := json.Marshal(workspace)
	if err != nil {
		log.WithError(err).Error("Failed to marshal workspace for saving")
		return err
	}

	// Write then rename so readers never see a half-written file.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write workspace file")
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		log.WithError(err).Error("Failed to replace workspace file")
		return err
	}

	log.Debug("Workspace saved successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, ownerID, id string) error {
	filePath, err := s.workspacePath(ownerID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Workspace file not found for deletion")
			return fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
		}
		log.WithError(err).Error("Failed to delete workspace file")
		return err
	}

	log.Info("Workspace deleted successfully")
	return nil
}
