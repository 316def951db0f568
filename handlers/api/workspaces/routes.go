package workspaces

import (
	"layout-server/core"

	"github.com/go-chi/chi/v5"
)

// Mount registers the workspace routes on r. Each extension is called on the
// per-workspace router so optional features can add routes under /{id}.
func Mount(r chi.Router, store core.WorkspaceStore, sessions Sessions, products Products, extensions ...func(chi.Router)) {
	r.Get("/", HandleList(store))
	r.Get("/active", HandleActive(sessions))

	r.Route("/{id}", func(r chi.Router) {
		r.Use(ValidateID)

		r.Get("/", HandleGet(sessions))
		r.Delete("/", HandleDelete(sessions))

		r.Post("/items", HandleAddItem(sessions, products))
		r.Delete("/items", HandleClear(sessions))
		r.Route("/items/{itemId}", func(r chi.Router) {
			r.Delete("/", HandleRemoveItem(sessions))
			r.Put("/position", HandleUpdatePosition(sessions))
			r.Post("/rotate", HandleRotate(sessions))
			r.Put("/scale", HandleScale(sessions))
		})

		r.Route("/selection", func(r chi.Router) {
			r.Put("/", HandleSelect(sessions))
			r.Delete("/", HandleDeselectAll(sessions))
			r.Post("/toggle", HandleToggleSelection(sessions))
			r.Post("/move", HandleMoveSelected(sessions))
			r.Delete("/items", HandleRemoveSelected(sessions))
		})

		r.Post("/undo", HandleUndo(sessions))
		r.Post("/redo", HandleRedo(sessions))

		r.Put("/zoom", HandleSetZoom(sessions))
		r.Post("/zoom/{step}", HandleZoomStep(sessions))

		r.Post("/keys", HandleKey(sessions))

		r.Get("/manifest", HandleManifest(sessions))
		r.Get("/manifest.xlsx", HandleManifestXLSX(sessions))

		for _, extend := range extensions {
			extend(r)
		}
	})
}
