package pricelisthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers the pricelist endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	uploadLimiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.With(uploadLimiter).Post("/uploads", h.handleUpload)
	r.Get("/uploads", h.handleRecentUploads)
	r.Get("/uploads/{id}", h.handleUploadStatus)

	r.Get("/products", h.handleList)
	r.Get("/products/stats", h.handleStats)
	r.Delete("/products", h.handleDelete)

	r.Get("/export", h.handleExport)
}
