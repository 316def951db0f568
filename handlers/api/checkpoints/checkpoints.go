package checkpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"layout-server/core"
	"layout-server/middleware"
	"layout-server/workspace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	CreateCheckpointRequest struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	CreateCheckpointResponse struct {
		ID string `json:"id"`
	}

	UpdateCheckpointRequest struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	UpdateSettingsRequest struct {
		MaxCheckpoints int `json:"max_checkpoints"`
	}

	// Sessions is the subset of the session manager checkpoints need.
	Sessions interface {
		Apply(ctx context.Context, ownerID, id string, fn func(e *workspace.Engine) error) (workspace.State, error)
		View(ctx context.Context, ownerID, id string, fn func(e *workspace.Engine)) error
	}
)

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}

func notFoundOr500(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, core.ErrCheckpointNotFound) {
		respondError(w, r, http.StatusNotFound, "Checkpoint not found")
		return
	}
	respondError(w, r, http.StatusInternalServerError, message)
}

// HandleCreateCheckpoint records the workspace's current items as a checkpoint.
func HandleCreateCheckpoint(store core.CheckpointStore, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := middleware.OwnerID(r.Context())
		workspaceID := chi.URLParam(r, "id")
		log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": workspaceID})

		var req CreateCheckpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.WithField("error", err).Warn("Failed to decode request")
			respondError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		var items []workspace.PlacedItem
		if err := sessions.View(r.Context(), ownerID, workspaceID, func(e *workspace.Engine) {
			items = e.Items()
		}); err != nil {
			log.WithField("error", err).Error("Failed to load workspace")
			respondError(w, r, http.StatusInternalServerError, "Failed to load workspace")
			return
		}

		data, err := json.Marshal(items)
		if err != nil {
			log.WithField("error", err).Error("Failed to encode items")
			respondError(w, r, http.StatusInternalServerError, "Failed to create checkpoint")
			return
		}

		id, err := store.CreateCheckpoint(r.Context(), &core.Checkpoint{
			OwnerID:     ownerID,
			WorkspaceID: workspaceID,
			Name:        req.Name,
			Description: req.Description,
			CreatedBy:   ownerID,
			ItemCount:   len(items),
			Data:        data,
		})
		if err != nil {
			log.WithField("error", err).Error("Failed to create checkpoint")
			respondError(w, r, http.StatusInternalServerError, "Failed to create checkpoint")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateCheckpointResponse{ID: id})
	}
}

func HandleListCheckpoints(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := middleware.OwnerID(r.Context())
		workspaceID := chi.URLParam(r, "id")

		checkpoints, err := store.ListCheckpoints(r.Context(), ownerID, workspaceID)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list checkpoints")
			respondError(w, r, http.StatusInternalServerError, "Failed to list checkpoints")
			return
		}
		if checkpoints == nil {
			checkpoints = []core.Checkpoint{}
		}

		render.JSON(w, r, checkpoints)
	}
}

func HandleGetCheckpoint(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkpoint, err := store.GetCheckpoint(r.Context(), middleware.OwnerID(r.Context()), chi.URLParam(r, "checkpointId"))
		if err != nil {
			logrus.WithField("error", err).Warn("Failed to get checkpoint")
			notFoundOr500(w, r, err, "Failed to get checkpoint")
			return
		}

		render.JSON(w, r, checkpoint)
	}
}

func HandleDeleteCheckpoint(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeleteCheckpoint(r.Context(), middleware.OwnerID(r.Context()), chi.URLParam(r, "checkpointId"))
		if err != nil {
			logrus.WithField("error", err).Error("Failed to delete checkpoint")
			notFoundOr500(w, r, err, "Failed to delete checkpoint")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleUpdateCheckpoint(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateCheckpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logrus.WithField("error", err).Warn("Failed to decode request")
			respondError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		err := store.UpdateCheckpointMetadata(r.Context(), middleware.OwnerID(r.Context()), chi.URLParam(r, "checkpointId"), req.Name, req.Description)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to update checkpoint")
			notFoundOr500(w, r, err, "Failed to update checkpoint")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRestoreCheckpoint replaces the workspace items with the checkpoint's.
// The restore is itself undoable.
func HandleRestoreCheckpoint(store core.CheckpointStore, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := middleware.OwnerID(r.Context())
		checkpointID := chi.URLParam(r, "checkpointId")
		log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "checkpoint_id": checkpointID})

		checkpoint, err := store.GetCheckpoint(r.Context(), ownerID, checkpointID)
		if err != nil {
			log.WithField("error", err).Warn("Failed to get checkpoint")
			notFoundOr500(w, r, err, "Failed to get checkpoint")
			return
		}

		var items []workspace.PlacedItem
		if err := json.Unmarshal(checkpoint.Data, &items); err != nil {
			log.WithField("error", err).Error("Checkpoint data is corrupt")
			respondError(w, r, http.StatusUnprocessableEntity, "Checkpoint data is corrupt")
			return
		}

		state, err := sessions.Apply(r.Context(), ownerID, checkpoint.WorkspaceID, func(e *workspace.Engine) error {
			e.ReplaceItems(items)
			return nil
		})
		if err != nil {
			log.WithField("error", err).Error("Failed to restore checkpoint")
			respondError(w, r, http.StatusInternalServerError, "Failed to restore checkpoint")
			return
		}

		log.WithField("workspace_id", checkpoint.WorkspaceID).Info("Checkpoint restored")
		render.JSON(w, r, state)
	}
}

func HandleGetSettings(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.GetCheckpointSettings(r.Context(), middleware.OwnerID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			logrus.WithField("error", err).Error("Failed to get checkpoint settings")
			respondError(w, r, http.StatusInternalServerError, "Failed to get checkpoint settings")
			return
		}

		render.JSON(w, r, settings)
	}
}

func HandleUpdateSettings(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logrus.WithField("error", err).Warn("Failed to decode request")
			respondError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.MaxCheckpoints < 1 {
			req.MaxCheckpoints = core.DefaultMaxCheckpoints
		}

		err := store.UpdateCheckpointSettings(r.Context(), middleware.OwnerID(r.Context()), chi.URLParam(r, "id"), req.MaxCheckpoints)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to update checkpoint settings")
			respondError(w, r, http.StatusInternalServerError, "Failed to update checkpoint settings")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// WorkspaceRoutes registers the checkpoint routes of one workspace. It is
// meant to run inside the workspace's /{id} router.
func WorkspaceRoutes(store core.CheckpointStore, sessions Sessions) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/checkpoints", func(r chi.Router) {
			r.Post("/", HandleCreateCheckpoint(store, sessions))
			r.Get("/", HandleListCheckpoints(store))
			r.Get("/settings", HandleGetSettings(store))
			r.Put("/settings", HandleUpdateSettings(store))
		})
	}
}

// Mount registers the routes addressing a checkpoint by id.
func Mount(r chi.Router, store core.CheckpointStore, sessions Sessions) {
	r.Route("/{checkpointId}", func(r chi.Router) {
		r.Get("/", HandleGetCheckpoint(store))
		r.Put("/", HandleUpdateCheckpoint(store))
		r.Delete("/", HandleDeleteCheckpoint(store))
		r.Post("/restore", HandleRestoreCheckpoint(store, sessions))
	})
}
