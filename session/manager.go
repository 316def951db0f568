// Package session keeps one live workspace engine per (owner, workspace) pair,
// loading it from the store on first use and writing it back after every
// command that changed it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"layout-server/core"
	"layout-server/workspace"

	"github.com/sirupsen/logrus"
)

// Notifier receives the new state of a workspace after each change.
type Notifier interface {
	Publish(ownerID, workspaceID string, state workspace.State)
}

type session struct {
	mu      sync.Mutex
	loaded  bool
	closed  bool
	ownerID string
	id      string
	name    string
	engine  *workspace.Engine
}

type Manager struct {
	store    core.WorkspaceStore
	notifier Notifier
	opts     []workspace.Option

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager returns a manager backed by store. notifier may be nil. opts are
// passed to every engine the manager creates.
func NewManager(store core.WorkspaceStore, notifier Notifier, opts ...workspace.Option) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

func sessionKey(ownerID, id string) string {
	return ownerID + "/" + id
}

func (m *Manager) session(ownerID, id string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(ownerID, id)
	s, ok := m.sessions[key]
	if !ok {
		s = &session{ownerID: ownerID, id: id}
		m.sessions[key] = s
	}
	return s
}

// lock acquires s.mu and loads the engine. A session closed by Delete while
// the caller waited is reported as not found, so it is never written back.
// On success the caller owns s.mu.
func (m *Manager) lock(ctx context.Context, s *session) (*session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("workspace with id %s: %w", s.id, core.ErrWorkspaceNotFound)
	}
	if err := m.load(ctx, s); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// load fills s.engine from the store. Called with s.mu held.
func (m *Manager) load(ctx context.Context, s *session) error {
	if s.loaded {
		return nil
	}
	log := logrus.WithFields(logrus.Fields{"owner_id": s.ownerID, "workspace_id": s.id})

	record, err := m.store.Get(ctx, s.ownerID, s.id)
	switch {
	case errors.Is(err, core.ErrWorkspaceNotFound):
		log.Debug("Starting new workspace")
		s.engine = workspace.New(m.opts...)
		s.name = s.id
	case err != nil:
		log.WithError(err).Error("Failed to load workspace")
		return err
	default:
		engine, err := workspace.Load(record.Data, m.opts...)
		if err != nil {
			log.WithError(err).Warn("Stored workspace snapshot unreadable, starting empty")
		}
		s.engine = engine
		s.name = record.Name
		if s.name == "" {
			s.name = s.id
		}
		log.WithField("items", engine.Len()).Info("Workspace loaded")
	}

	s.loaded = true
	return nil
}

// Apply runs fn against the workspace engine under the workspace lock. When fn
// changed the engine, the snapshot is saved and the new state published. A
// failed save is logged and does not fail the command.
func (m *Manager) Apply(ctx context.Context, ownerID, id string, fn func(e *workspace.Engine) error) (workspace.State, error) {
	s, err := m.lock(ctx, m.session(ownerID, id))
	if err != nil {
		return workspace.State{}, err
	}
	defer s.mu.Unlock()

	before := s.engine.Revision()
	fnErr := fn(s.engine)
	state := s.engine.State()

	if s.engine.Revision() != before {
		m.persist(ctx, s)
		if m.notifier != nil {
			m.notifier.Publish(ownerID, id, state)
		}
	}
	return state, fnErr
}

// View runs fn against the engine without saving or publishing anything. fn
// must not mutate the engine.
func (m *Manager) View(ctx context.Context, ownerID, id string, fn func(e *workspace.Engine)) error {
	s, err := m.lock(ctx, m.session(ownerID, id))
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	fn(s.engine)
	return nil
}

// State is a convenience wrapper around View.
func (m *Manager) State(ctx context.Context, ownerID, id string) (workspace.State, error) {
	var state workspace.State
	err := m.View(ctx, ownerID, id, func(e *workspace.Engine) {
		state = e.State()
	})
	return state, err
}

func (m *Manager) persist(ctx context.Context, s *session) {
	log := logrus.WithFields(logrus.Fields{"owner_id": s.ownerID, "workspace_id": s.id})

	data, err := workspace.Encode(s.engine.Export())
	if err != nil {
		log.WithError(err).Error("Failed to encode workspace")
		return
	}

	record := &core.Workspace{
		ID:        s.id,
		OwnerID:   s.ownerID,
		Name:      s.name,
		ItemCount: s.engine.Len(),
		Data:      data,
	}
	if err := m.store.Save(ctx, record); err != nil {
		log.WithError(err).Error("Failed to save workspace")
		return
	}
	log.WithField("revision", s.engine.Revision()).Debug("Workspace saved")
}

// Delete drops the live session and the stored workspace. It reports
// core.ErrWorkspaceNotFound only when neither existed.
func (m *Manager) Delete(ctx context.Context, ownerID, id string) error {
	key := sessionKey(ownerID, id)

	m.mu.Lock()
	s, live := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if live {
		// Wait for any in-flight command before removing the record.
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
	}

	err := m.store.Delete(ctx, ownerID, id)
	if errors.Is(err, core.ErrWorkspaceNotFound) && live && s.loaded {
		err = nil
	}
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id}).Info("Workspace session closed")
	return nil
}

// Active returns the ids of the owner's workspaces currently held in memory.
func (m *Manager) Active(ownerID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := ownerID + "/"
	ids := []string{}
	for key, s := range m.sessions {
		if strings.HasPrefix(key, prefix) && s.ownerID == ownerID {
			ids = append(ids, s.id)
		}
	}
	sort.Strings(ids)
	return ids
}
