package api

import (
	"net/http"
)

// BreedsHandler serves catalog queries.
type BreedsHandler struct {
	deps CatalogDependencies
}

// NewBreedsHandler creates a new breeds handler.
func NewBreedsHandler(deps CatalogDependencies) *BreedsHandler {
	return &BreedsHandler{deps: deps}
}

type usesResponse struct {
	Uses []string `json:"uses"`
}

// HandleSearch handles GET /breeds?q=&use= requests. The term matches name or
// origin case-insensitively; use must equal a primary use exactly.
func (h *BreedsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.deps.Search(r.Context(), q.Get("q"), q.Get("use")))
}

// HandleUses handles GET /breeds/uses requests.
func (h *BreedsHandler) HandleUses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, usesResponse{Uses: h.deps.Uses(r.Context())})
}

// HandleGet handles GET /breeds/{id} requests.
func (h *BreedsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	breed, err := h.deps.Breed(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breed)
}
