// Package v1 provides the catalog and sync status REST handlers.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/catalog-watcher/internal/api/common"
	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/status"
	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

// ItemResponse is the public view of a catalog item
type ItemResponse struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status,omitempty"`
	Score    *float64 `json:"score"`
	Episodes *int     `json:"episodes"`
	URL      string   `json:"url,omitempty"`
}

// PageResponse is one page of catalog items
type PageResponse struct {
	Page        int            `json:"page"`
	HasNextPage bool           `json:"hasNextPage"`
	Items       []ItemResponse `json:"items"`
}

// Routes holds the dependencies of the v1 handlers
type Routes struct {
	client catalog.Client
	status status.Provider
}

// NewRoutes creates a new Routes instance
func NewRoutes(client catalog.Client, provider status.Provider) *Routes {
	return &Routes{
		client: client,
		status: provider,
	}
}

// Router creates the v1 router
func Router(client catalog.Client, provider status.Provider) http.Handler {
	routes := NewRoutes(client, provider)

	r := chi.NewRouter()
	r.Get("/catalog", routes.listCatalog)
	r.Get("/catalog/search", routes.searchCatalog)
	r.Get("/sync/status", routes.syncStatus)

	return r
}

// listCatalog handles GET /v1/catalog?page=N
func (rr *Routes) listCatalog(w http.ResponseWriter, r *http.Request) {
	page, err := common.GetPageParam(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := rr.client.FetchPage(r.Context(), page)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	common.WriteJSONResponse(w, toPageResponse(result, page), http.StatusOK)
}

// searchCatalog handles GET /v1/catalog/search?q=...&page=N
func (rr *Routes) searchCatalog(w http.ResponseWriter, r *http.Request) {
	query, err := common.GetRequiredQueryParam(r, "q")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, err := common.GetPageParam(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := rr.client.Search(r.Context(), query, page)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	common.WriteJSONResponse(w, toPageResponse(result, page), http.StatusOK)
}

// syncStatus handles GET /v1/sync/status
func (rr *Routes) syncStatus(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, rr.status.Status(), http.StatusOK)
}

// writeCatalogError maps catalog failures to HTTP status codes
func writeCatalogError(w http.ResponseWriter, err error) {
	var syncErr *syncerr.Error
	if !errors.As(err, &syncErr) {
		slog.Error("Catalog request failed", "error", err)
		common.WriteErrorResponse(w, "catalog request failed", http.StatusInternalServerError)
		return
	}

	switch syncErr.Kind {
	case syncerr.KindNotFound:
		common.WriteErrorResponse(w, "page not found", http.StatusNotFound)
	case syncerr.KindTransient, syncerr.KindMalformed:
		slog.Warn("Catalog unavailable", "error", err)
		common.WriteErrorResponse(w, "catalog unavailable: "+syncErr.Error(), http.StatusBadGateway)
	default:
		slog.Error("Catalog request failed", "error", err)
		common.WriteErrorResponse(w, "catalog request failed", http.StatusInternalServerError)
	}
}

func toPageResponse(p *catalog.Page, requested int) PageResponse {
	resp := PageResponse{Page: requested, Items: []ItemResponse{}}
	if p == nil {
		return resp
	}
	if p.CurrentPage > 0 {
		resp.Page = p.CurrentPage
	}
	resp.HasNextPage = p.HasNextPage
	for _, it := range p.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:       it.ID,
			Title:    it.DisplayTitle(),
			Status:   it.Status,
			Score:    it.Score,
			Episodes: it.Episodes,
			URL:      it.URL,
		})
	}
	return resp
}
