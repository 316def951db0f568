package workspaces

import (
	"fmt"
	"net/http"

	"layout-server/export"
	"layout-server/workspace"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

func manifest(w http.ResponseWriter, r *http.Request, sessions Sessions) ([]workspace.ManifestLine, bool) {
	ownerID, id := ownerAndID(r)

	var lines []workspace.ManifestLine
	err := sessions.View(r.Context(), ownerID, id, func(e *workspace.Engine) {
		lines = e.Manifest()
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"error":        err,
			"owner_id":     ownerID,
			"workspace_id": id,
		}).Error("Failed to load workspace for manifest")
		respondError(w, r, http.StatusInternalServerError, "Failed to load workspace")
		return nil, false
	}
	return lines, true
}

// HandleManifest lists the placed products grouped by product id.
func HandleManifest(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, ok := manifest(w, r, sessions)
		if !ok {
			return
		}
		render.JSON(w, r, lines)
	}
}

// HandleManifestXLSX serves the manifest as a spreadsheet download.
func HandleManifestXLSX(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, ok := manifest(w, r, sessions)
		if !ok {
			return
		}

		data, err := export.Manifest(lines)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to build manifest workbook")
			respondError(w, r, http.StatusInternalServerError, "Failed to export manifest")
			return
		}

		_, id := ownerAndID(r)
		w.Header().Set("Content-Type", export.ManifestContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-manifest.xlsx", id))
		w.Write(data)
	}
}
