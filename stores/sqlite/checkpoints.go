package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"layout-server/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// CreateCheckpoint stores a checkpoint, evicting the oldest ones of the same
// workspace once the configured cap is reached.
func (s *store) CreateCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) (string, error) {
	id := ulid.Make().String()
	createdAt := ulid.Now()

	log := logrus.WithFields(logrus.Fields{
		"checkpoint_id": id,
		"owner_id":      checkpoint.OwnerID,
		"workspace_id":  checkpoint.WorkspaceID,
		"data_length":   len(checkpoint.Data),
	})

	settings, err := s.GetCheckpointSettings(ctx, checkpoint.OwnerID, checkpoint.WorkspaceID)
	if err != nil {
		settings = &core.CheckpointSettings{
			WorkspaceID:    checkpoint.WorkspaceID,
			MaxCheckpoints: core.DefaultMaxCheckpoints,
		}
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM checkpoints WHERE owner_id = ? AND workspace_id = ?",
		checkpoint.OwnerID, checkpoint.WorkspaceID).Scan(&count)
	if err != nil {
		log.WithField("error", err).Error("Failed to count checkpoints")
		return "", err
	}

	if excess := count - settings.MaxCheckpoints + 1; excess > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM checkpoints WHERE id IN (
				SELECT id FROM checkpoints WHERE owner_id = ? AND workspace_id = ? ORDER BY created_at ASC, id ASC LIMIT ?
			)`,
			checkpoint.OwnerID, checkpoint.WorkspaceID, excess)
		if err != nil {
			log.WithField("error", err).Error("Failed to delete oldest checkpoints")
		} else {
			log.WithField("evicted", excess).Debug("Evicted oldest checkpoints")
		}
	}

	data := checkpoint.Data
	if data == nil {
		data = []byte{}
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO checkpoints (id, owner_id, workspace_id, name, description, created_by, item_count, created_at, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, checkpoint.OwnerID, checkpoint.WorkspaceID, checkpoint.Name, checkpoint.Description, checkpoint.CreatedBy, checkpoint.ItemCount, int64(createdAt), data)
	if err != nil {
		log.WithField("error", err).Error("Failed to create checkpoint")
		return "", err
	}

	checkpoint.ID = id
	checkpoint.CreatedAt = int64(createdAt)
	log.Info("Checkpoint created successfully")
	return id, nil
}

// ListCheckpoints lists a workspace's checkpoints newest first, without data.
func (s *store) ListCheckpoints(ctx context.Context, ownerID, workspaceID string) ([]core.Checkpoint, error) {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": workspaceID})
	log.Debug("Listing checkpoints for workspace")

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, workspace_id, name, description, created_by, item_count, created_at FROM checkpoints WHERE owner_id = ? AND workspace_id = ? ORDER BY created_at DESC, id DESC",
		ownerID, workspaceID)
	if err != nil {
		log.WithField("error", err).Error("Failed to list checkpoints")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close checkpoint rows")
		}
	}()

	checkpoints := []core.Checkpoint{}
	for rows.Next() {
		checkpoint := core.Checkpoint{OwnerID: ownerID}
		var name, description, createdBy sql.NullString
		err = rows.Scan(&checkpoint.ID, &checkpoint.WorkspaceID, &name, &description, &createdBy, &checkpoint.ItemCount, &checkpoint.CreatedAt)
		if err != nil {
			log.WithField("error", err).Error("Failed to scan checkpoint")
			continue
		}
		checkpoint.Name = name.String
		checkpoint.Description = description.String
		checkpoint.CreatedBy = createdBy.String
		checkpoints = append(checkpoints, checkpoint)
	}

	log.Debugf("Listed %d checkpoints", len(checkpoints))
	return checkpoints, nil
}

func (s *store) GetCheckpoint(ctx context.Context, ownerID, id string) (*core.Checkpoint, error) {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "checkpoint_id": id})

	checkpoint := core.Checkpoint{OwnerID: ownerID}
	var name, description, createdBy sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, workspace_id, name, description, created_by, item_count, created_at, data FROM checkpoints WHERE owner_id = ? AND id = ?",
		ownerID, id).Scan(&checkpoint.ID, &checkpoint.WorkspaceID, &name, &description, &createdBy, &checkpoint.ItemCount, &checkpoint.CreatedAt, &checkpoint.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Checkpoint with specified ID not found")
			return nil, fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
		}
		log.WithField("error", err).Error("Failed to retrieve checkpoint")
		return nil, err
	}
	checkpoint.Name = name.String
	checkpoint.Description = description.String
	checkpoint.CreatedBy = createdBy.String

	log.Debug("Checkpoint retrieved successfully")
	return &checkpoint, nil
}

func (s *store) DeleteCheckpoint(ctx context.Context, ownerID, id string) error {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "checkpoint_id": id})

	result, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE owner_id = ? AND id = ?", ownerID, id)
	if err != nil {
		log.WithField("error", err).Error("Failed to delete checkpoint")
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
	}

	log.Info("Checkpoint deleted successfully")
	return nil
}

func (s *store) UpdateCheckpointMetadata(ctx context.Context, ownerID, id, name, description string) error {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "checkpoint_id": id})

	result, err := s.db.ExecContext(ctx,
		"UPDATE checkpoints SET name = ?, description = ? WHERE owner_id = ? AND id = ?",
		name, description, ownerID, id)
	if err != nil {
		log.WithField("error", err).Error("Failed to update checkpoint metadata")
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint with id %s: %w", id, core.ErrCheckpointNotFound)
	}

	log.Info("Checkpoint metadata updated successfully")
	return nil
}

// GetCheckpointSettings returns the workspace's settings, or defaults when none were stored.
func (s *store) GetCheckpointSettings(ctx context.Context, ownerID, workspaceID string) (*core.CheckpointSettings, error) {
	log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": workspaceID})

	settings := core.CheckpointSettings{WorkspaceID: workspaceID}
	err := s.db.QueryRowContext(ctx,
		"SELECT max_checkpoints FROM checkpoint_settings WHERE owner_id = ? AND workspace_id = ?",
		ownerID, workspaceID).Scan(&settings.MaxCheckpoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("No checkpoint settings found, returning defaults")
			settings.MaxCheckpoints = core.DefaultMaxCheckpoints
			return &settings, nil
		}
		log.WithField("error", err).Error("Failed to retrieve checkpoint settings")
		return nil, err
	}
	if settings.MaxCheckpoints < 1 {
		settings.MaxCheckpoints = core.DefaultMaxCheckpoints
	}

	return &settings, nil
}

func (s *store) UpdateCheckpointSettings(ctx context.Context, ownerID, workspaceID string, maxCheckpoints int) error {
	log := logrus.WithFields(logrus.Fields{
		"owner_id":        ownerID,
		"workspace_id":    workspaceID,
		"max_checkpoints": maxCheckpoints,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO checkpoint_settings (owner_id, workspace_id, max_checkpoints) VALUES (?, ?, ?) ON CONFLICT(owner_id, workspace_id) DO UPDATE SET max_checkpoints = excluded.max_checkpoints",
		ownerID, workspaceID, maxCheckpoints)
	if err != nil {
		log.WithField("error", err).Error("Failed to update checkpoint settings")
		return err
	}

	log.Info("Checkpoint settings updated successfully")
	return nil
}
