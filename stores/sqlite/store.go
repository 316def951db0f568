package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"time"

	"layout-server/core"

	"github.com/sirupsen/logrus"
)

type store struct {
	db  *sql.DB
	now func() time.Time
}

// Store is the union of the interfaces the sqlite backend implements.
type Store interface {
	core.WorkspaceStore
	core.CheckpointStore
}

func NewStore(dataSourceName string) Store {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}
	// sqlite serialises writers; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	tables := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			owner_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT,
			item_count INTEGER NOT NULL DEFAULT 0,
			data BLOB,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (owner_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			name TEXT,
			description TEXT,
			created_by TEXT,
			item_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			data BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS checkpoint_settings (
			owner_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			max_checkpoints INTEGER DEFAULT 10,
			PRIMARY KEY (owner_id, workspace_id)
		);`,
	}
	for _, stmt := range tables {
		if _, err := db.Exec(stmt); err != nil {
			stdlog.Fatal(err)
		}
	}

	return &store{db: db, now: time.Now}
}

func (s *store) List(ctx context.Context, ownerID string) ([]*core.Workspace, error) {
	log := logrus.WithField("owner_id", ownerID)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, item_count, created_at, updated_at FROM workspaces WHERE owner_id = ? ORDER BY updated_at DESC, id ASC",
		ownerID)
	if err != nil {
		log.WithField("error", err).Error("Failed to list workspaces")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close workspace rows")
		}
	}()

	workspaces := []*core.Workspace{}
	for rows.Next() {
		var (
			ws                   core.Workspace
			name                 sql.NullString
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&ws.ID, &name, &ws.ItemCount, &createdAt, &updatedAt); err != nil {
			log.WithField("error", err).Error("Failed to scan workspace")
			continue
		}
		ws.OwnerID = ownerID
		ws.Name = name.String
		ws.CreatedAt = time.Unix(0, createdAt)
		ws.UpdatedAt = time.Unix(0, updatedAt)
		workspaces = append(workspaces, &ws)
	}
	if err := rows.Err(); err != nil {
		log.WithField("error", err).Error("Failed to iterate workspaces")
		return nil, err
	}

	log.Debugf("Listed %d workspaces", len(workspaces))
	return workspaces, nil
}

func (s *store) Get(ctx context.Context, ownerID, id string) (*core.Workspace, error) {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id})

	var (
		ws                   = core.Workspace{ID: id, OwnerID: ownerID}
		name                 sql.NullString
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT name, item_count, data, created_at, updated_at FROM workspaces WHERE owner_id = ? AND id = ?",
		ownerID, id).Scan(&name, &ws.ItemCount, &ws.Data, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Workspace with specified ID not found")
			return nil, fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
		}
		log.WithField("error", err).Error("Failed to retrieve workspace")
		return nil, err
	}
	ws.Name = name.String
	ws.CreatedAt = time.Unix(0, createdAt)
	ws.UpdatedAt = time.Unix(0, updatedAt)

	log.Debug("Workspace retrieved successfully")
	return &ws, nil
}

func (s *store) Save(ctx context.Context, workspace *core.Workspace) error {
	if workspace.ID == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}
	log := logrus.WithFields(logrus.Fields{
		"owner_id":     workspace.OwnerID,
		"workspace_id": workspace.ID,
		"data_length":  len(workspace.Data),
	})

	now := s.now().UnixNano()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (owner_id, id, name, item_count, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, id) DO UPDATE SET name = excluded.name, item_count = excluded.item_count, data = excluded.data, updated_at = excluded.updated_at`,
		workspace.OwnerID, workspace.ID, workspace.Name, workspace.ItemCount, workspace.Data, now, now)
	if err != nil {
		log.WithField("error", err).Error("Failed to save workspace")
		return err
	}

	var createdAt int64
	err = s.db.QueryRowContext(ctx,
		"SELECT created_at FROM workspaces WHERE owner_id = ? AND id = ?",
		workspace.OwnerID, workspace.ID).Scan(&createdAt)
	if err != nil {
		log.WithField("error", err).Error("Failed to read back workspace timestamps")
		return err
	}
	workspace.CreatedAt = time.Unix(0, createdAt)
	workspace.UpdatedAt = time.Unix(0, now)

	log.Debug("Workspace saved successfully")
	return nil
}

func (s *store) Delete(ctx context.Context, ownerID, id string) error {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id})

	result, err := s.db.ExecContext(ctx, "DELETE FROM workspaces WHERE owner_id = ? AND id = ?", ownerID, id)
	if err != nil {
		log.WithField("error", err).Error("Failed to delete workspace")
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Warn("Workspace not found for deletion")
		return fmt.Errorf("workspace with id %s: %w", id, core.ErrWorkspaceNotFound)
	}

	log.Info("Workspace deleted successfully")
	return nil
}
