package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/constitution"
)

// ArticleHandler serves the read-only constitution catalog.
type ArticleHandler struct {
	catalog *constitution.Catalog
}

func NewArticleHandler(catalog *constitution.Catalog) *ArticleHandler {
	return &ArticleHandler{catalog: catalog}
}

// HandleList returns every article in catalog order.
//
// HTTP: GET /api/articles
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"articles": h.catalog.List()})
}

// HandleGet returns one article. Numbers match case-insensitively, so
// "21a" finds Article 21A.
//
// HTTP: GET /api/articles/{number}
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	article, ok := h.catalog.Lookup(number)
	if !ok {
		writeError(w, apperror.NotFound("article", number))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": article})
}
