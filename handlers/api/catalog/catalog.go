package catalog

import (
	"net/http"
	"strings"

	"layout-server/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// ProductCatalog is the read side of the product catalog.
type ProductCatalog interface {
	Get(id string) (core.Product, bool)
	List(category core.Category) []core.Product
	Search(query string, category core.Category) []core.Product
}

// HandleListProducts lists the catalog, optionally filtered by ?category=
// and fuzzy-matched against ?q=.
func HandleListProducts(products ProductCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := core.Category(strings.TrimSpace(r.URL.Query().Get("category")))
		if category != "" && !category.Valid() {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Unknown category"})
			return
		}

		var list []core.Product
		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			list = products.Search(q, category)
		} else {
			list = products.List(category)
		}
		if list == nil {
			list = []core.Product{}
		}

		logrus.WithFields(logrus.Fields{
			"category": category,
			"results":  len(list),
		}).Debug("Listed products")
		render.JSON(w, r, list)
	}
}

func HandleGetProduct(products ProductCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "productId")

		product, ok := products.Get(id)
		if !ok {
			logrus.WithField("product_id", id).Warn("Product not found")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Product not found"})
			return
		}

		render.JSON(w, r, product)
	}
}
