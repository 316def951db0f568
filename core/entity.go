package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWorkspaceNotFound is wrapped by stores when a workspace does not exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrCheckpointNotFound is wrapped by checkpoint stores when a checkpoint does not exist.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// DefaultMaxCheckpoints is the per-workspace checkpoint cap when none is configured.
const DefaultMaxCheckpoints = 10

type (
	Category string

	Dimensions struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Depth  float64 `json:"depth"`
	}

	// Product is a catalog record. Placed items embed a copy taken when they are added.
	Product struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Price       float64     `json:"price"`
		Category    Category    `json:"category"`
		Icon        string      `json:"icon,omitempty"`
		Image       string      `json:"image"`
		Dimensions  *Dimensions `json:"dimensions,omitempty"`
	}

	// Workspace is the persisted record of one layout. Data holds the encoded
	// engine snapshot.
	Workspace struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"-"`
		Name      string    `json:"name"`
		ItemCount int       `json:"itemCount"`
		Data      []byte    `json:"data,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// WorkspaceStore defines the persistence layer for workspaces.
	// All operations are scoped to an owner.
	WorkspaceStore interface {
		// List returns metadata for all workspaces of an owner, without Data.
		List(ctx context.Context, ownerID string) ([]*Workspace, error)

		// Get returns a single workspace with its Data.
		Get(ctx context.Context, ownerID, id string) (*Workspace, error)

		// Save creates or updates a workspace, preserving CreatedAt.
		Save(ctx context.Context, workspace *Workspace) error

		// Delete removes a workspace.
		Delete(ctx context.Context, ownerID, id string) error
	}

	// Checkpoint is a named save point of a workspace's items. Data holds the
	// JSON-encoded item list.
	Checkpoint struct {
		ID          string `json:"id"`
		WorkspaceID string `json:"workspace_id"`
		OwnerID     string `json:"-"`
		Name        string `json:"name"`
		Description string `json:"description"`
		CreatedBy   string `json:"created_by"`
		ItemCount   int    `json:"item_count"`
		CreatedAt   int64  `json:"created_at"`
		Data        []byte `json:"data,omitempty"`
	}

	CheckpointSettings struct {
		WorkspaceID    string `json:"workspace_id"`
		MaxCheckpoints int    `json:"max_checkpoints"`
	}

	// CheckpointStore is implemented by stores that keep checkpoint history.
	CheckpointStore interface {
		CreateCheckpoint(ctx context.Context, checkpoint *Checkpoint) (string, error)
		ListCheckpoints(ctx context.Context, ownerID, workspaceID string) ([]Checkpoint, error)
		GetCheckpoint(ctx context.Context, ownerID, id string) (*Checkpoint, error)
		DeleteCheckpoint(ctx context.Context, ownerID, id string) error
		UpdateCheckpointMetadata(ctx context.Context, ownerID, id, name, description string) error
		GetCheckpointSettings(ctx context.Context, ownerID, workspaceID string) (*CheckpointSettings, error)
		UpdateCheckpointSettings(ctx context.Context, ownerID, workspaceID string, maxCheckpoints int) error
	}
)

const (
	CategoryDesk      Category = "desk"
	CategoryChair     Category = "chair"
	CategoryAccessory Category = "accessory"
)

// Valid reports whether c is one of the known catalog categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryDesk, CategoryChair, CategoryAccessory:
		return true
	}
	return false
}
