package workspaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"layout-server/core"
	"layout-server/middleware"
	"layout-server/workspace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	// Sessions is the live-workspace side of the API, implemented by
	// *session.Manager.
	Sessions interface {
		Apply(ctx context.Context, ownerID, id string, fn func(e *workspace.Engine) error) (workspace.State, error)
		View(ctx context.Context, ownerID, id string, fn func(e *workspace.Engine)) error
		State(ctx context.Context, ownerID, id string) (workspace.State, error)
		Delete(ctx context.Context, ownerID, id string) error
		Active(ownerID string) []string
	}

	// Products resolves product ids for AddItem.
	Products interface {
		Get(id string) (core.Product, bool)
	}
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID rejects workspace ids that are not safe to use as storage keys.
func ValidateID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validID.MatchString(chi.URLParam(r, "id")) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid workspace id"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ownerAndID(r *http.Request) (string, string) {
	return middleware.OwnerID(r.Context()), chi.URLParam(r, "id")
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}

// decodeBody decodes a JSON request body into v and answers 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logrus.WithField("error", err).Warn("Failed to decode request")
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// apply runs fn on the workspace named in the URL and writes the resulting state.
func apply(w http.ResponseWriter, r *http.Request, sessions Sessions, command string, fn func(e *workspace.Engine) error) {
	ownerID, id := ownerAndID(r)
	log := logrus.WithFields(logrus.Fields{
		"owner_id":     ownerID,
		"workspace_id": id,
		"command":      command,
	})

	state, err := sessions.Apply(r.Context(), ownerID, id, fn)
	if errors.Is(err, core.ErrWorkspaceNotFound) {
		log.Warn("Workspace deleted before command ran")
		respondError(w, r, http.StatusNotFound, "Workspace not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("Command failed")
		respondError(w, r, http.StatusInternalServerError, "Failed to update workspace")
		return
	}

	log.WithField("revision", state.Revision).Debug("Command applied")
	render.JSON(w, r, state)
}

// HandleList lists the owner's saved workspaces.
func HandleList(store core.WorkspaceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := middleware.OwnerID(r.Context())

		list, err := store.List(r.Context(), ownerID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"owner_id": ownerID,
			}).Error("Failed to list workspaces")
			respondError(w, r, http.StatusInternalServerError, "Failed to list workspaces")
			return
		}
		if list == nil {
			list = []*core.Workspace{}
		}

		render.JSON(w, r, list)
	}
}

// HandleActive lists the ids of the owner's workspaces held in memory.
func HandleActive(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, sessions.Active(middleware.OwnerID(r.Context())))
	}
}

// HandleGet returns the workspace state, creating an empty workspace on first access.
func HandleGet(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, id := ownerAndID(r)

		state, err := sessions.State(r.Context(), ownerID, id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":        err,
				"owner_id":     ownerID,
				"workspace_id": id,
			}).Error("Failed to load workspace")
			respondError(w, r, http.StatusInternalServerError, "Failed to load workspace")
			return
		}

		render.JSON(w, r, state)
	}
}

func HandleDelete(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, id := ownerAndID(r)
		log := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "workspace_id": id})

		if err := sessions.Delete(r.Context(), ownerID, id); err != nil {
			if errors.Is(err, core.ErrWorkspaceNotFound) {
				log.Warn("Workspace not found for deletion")
				respondError(w, r, http.StatusNotFound, "Workspace not found")
				return
			}
			log.WithError(err).Error("Failed to delete workspace")
			respondError(w, r, http.StatusInternalServerError, "Failed to delete workspace")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
