package workspaces

import (
	"fmt"
	"net/http"

	"layout-server/workspace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	AddItemRequest struct {
		ProductID string `json:"productId"`
	}

	PositionRequest struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}

	RotateRequest struct {
		Angle *float64 `json:"angle"`
	}

	ScaleRequest struct {
		Scale *float64 `json:"scale"`
	}

	// SelectRequest selects one item. A null id clears the selection; multi
	// toggles the item instead of replacing the selection.
	SelectRequest struct {
		ID    *string `json:"id"`
		Multi bool    `json:"multi"`
	}

	ToggleRequest struct {
		ID string `json:"id"`
	}

	ZoomRequest struct {
		Scale *float64 `json:"scale"`
	}

	KeyResponse struct {
		Handled bool            `json:"handled"`
		State   workspace.State `json:"state"`
	}
)

func (p PositionRequest) position() (workspace.Position, bool) {
	if p.X == nil || p.Y == nil {
		return workspace.Position{}, false
	}
	return workspace.Position{X: *p.X, Y: *p.Y}, true
}

func HandleAddItem(sessions Sessions, products Products) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddItemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ProductID == "" {
			respondError(w, r, http.StatusBadRequest, "productId is required")
			return
		}

		product, ok := products.Get(req.ProductID)
		if !ok {
			respondError(w, r, http.StatusNotFound, "Product not found")
			return
		}

		apply(w, r, sessions, "add-item", func(e *workspace.Engine) error {
			e.AddItem(product)
			return nil
		})
	}
}

func HandleClear(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(w, r, sessions, "clear", func(e *workspace.Engine) error {
			e.ClearWorkspace()
			return nil
		})
	}
}

func HandleRemoveItem(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemId")
		apply(w, r, sessions, "remove-item", func(e *workspace.Engine) error {
			e.RemoveItem(itemID)
			return nil
		})
	}
}

func HandleUpdatePosition(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		pos, ok := req.position()
		if !ok {
			respondError(w, r, http.StatusBadRequest, "x and y are required")
			return
		}

		itemID := chi.URLParam(r, "itemId")
		apply(w, r, sessions, "update-position", func(e *workspace.Engine) error {
			e.UpdateItemPosition(itemID, pos)
			return nil
		})
	}
}

func HandleRotate(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RotateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Angle == nil {
			respondError(w, r, http.StatusBadRequest, "angle is required")
			return
		}

		itemID := chi.URLParam(r, "itemId")
		apply(w, r, sessions, "rotate", func(e *workspace.Engine) error {
			e.RotateItem(itemID, *req.Angle)
			return nil
		})
	}
}

func HandleScale(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScaleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Scale == nil {
			respondError(w, r, http.StatusBadRequest, "scale is required")
			return
		}

		itemID := chi.URLParam(r, "itemId")
		apply(w, r, sessions, "scale", func(e *workspace.Engine) error {
			e.ScaleItem(itemID, *req.Scale)
			return nil
		})
	}
}

func HandleSelect(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if !decodeBody(w, r, &req) {
			return
		}

		apply(w, r, sessions, "select", func(e *workspace.Engine) error {
			e.SelectItem(req.ID, req.Multi)
			return nil
		})
	}
}

func HandleToggleSelection(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ToggleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ID == "" {
			respondError(w, r, http.StatusBadRequest, "id is required")
			return
		}

		apply(w, r, sessions, "toggle-selection", func(e *workspace.Engine) error {
			e.ToggleSelection(req.ID)
			return nil
		})
	}
}

func HandleDeselectAll(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(w, r, sessions, "deselect-all", func(e *workspace.Engine) error {
			e.DeselectAll()
			return nil
		})
	}
}

func HandleMoveSelected(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		delta, ok := req.position()
		if !ok {
			respondError(w, r, http.StatusBadRequest, "x and y are required")
			return
		}

		apply(w, r, sessions, "move-selected", func(e *workspace.Engine) error {
			e.MoveSelectedItems(delta)
			return nil
		})
	}
}

func HandleRemoveSelected(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(w, r, sessions, "remove-selected", func(e *workspace.Engine) error {
			e.RemoveSelected()
			return nil
		})
	}
}

func HandleUndo(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(w, r, sessions, "undo", func(e *workspace.Engine) error {
			e.Undo()
			return nil
		})
	}
}

func HandleRedo(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(w, r, sessions, "redo", func(e *workspace.Engine) error {
			e.Redo()
			return nil
		})
	}
}

func HandleSetZoom(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ZoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Scale == nil {
			respondError(w, r, http.StatusBadRequest, "scale is required")
			return
		}

		apply(w, r, sessions, "set-zoom", func(e *workspace.Engine) error {
			e.SetZoomScale(*req.Scale)
			return nil
		})
	}
}

// HandleZoomStep handles the zoom/in, zoom/out and zoom/reset routes.
func HandleZoomStep(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step := chi.URLParam(r, "step")

		var fn func(e *workspace.Engine)
		switch step {
		case "in":
			fn = (*workspace.Engine).ZoomIn
		case "out":
			fn = (*workspace.Engine).ZoomOut
		case "reset":
			fn = (*workspace.Engine).ResetZoom
		default:
			respondError(w, r, http.StatusNotFound, fmt.Sprintf("Unknown zoom step %q", step))
			return
		}

		apply(w, r, sessions, "zoom-"+step, func(e *workspace.Engine) error {
			fn(e)
			return nil
		})
	}
}

// HandleKey feeds a keyboard event to the workspace. Unrecognized keys answer
// with handled=false and the unchanged state.
func HandleKey(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev workspace.KeyEvent
		if !decodeBody(w, r, &ev) {
			return
		}
		if ev.Key == "" {
			respondError(w, r, http.StatusBadRequest, "key is required")
			return
		}

		var handled bool
		ownerID, id := ownerAndID(r)
		state, err := sessions.Apply(r.Context(), ownerID, id, func(e *workspace.Engine) error {
			handled = e.HandleKey(ev)
			return nil
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":        err,
				"owner_id":     ownerID,
				"workspace_id": id,
			}).Error("Failed to apply key event")
			respondError(w, r, http.StatusInternalServerError, "Failed to update workspace")
			return
		}

		render.JSON(w, r, KeyResponse{Handled: handled, State: state})
	}
}
