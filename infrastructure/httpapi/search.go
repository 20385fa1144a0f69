package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/collexdb/collex/domain/collerr"
)

const defaultSearchLimit = 10

// SearchRouter serves GET /collections/{name}/search.
type SearchRouter struct {
	collections map[string]CollectionHandle
	logger      *slog.Logger
}

// NewSearchRouter builds a SearchRouter over the given open collections.
func NewSearchRouter(collections map[string]CollectionHandle, logger *slog.Logger) *SearchRouter {
	return &SearchRouter{collections: collections, logger: logger}
}

// Routes returns the chi router for search endpoints.
func (sr *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/{name}/search", sr.Search)
	return router
}

// searchResponse is the JSON shape of a successful search call.
type searchResponse struct {
	Results []searchResultDTO `json:"results"`
}

type searchResultDTO struct {
	Content string  `json:"content"`
	Key     uint64  `json:"key"`
	Score   float32 `json:"score"`
}

// Search handles GET /collections/{name}/search?column=&q=&k=.
func (sr *SearchRouter) Search(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	handle, ok := sr.collections[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection "+name)
		return
	}

	column := r.URL.Query().Get("column")
	query := r.URL.Query().Get("q")
	if column == "" || query == "" {
		writeError(w, http.StatusBadRequest, "column and q query parameters are required")
		return
	}

	k := defaultSearchLimit
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = parsed
	}

	results, err := handle.Collection.Search(r.Context(), column, query, k, handle.ModelID)
	if err != nil {
		sr.writeCollerr(w, err)
		return
	}

	resp := searchResponse{Results: make([]searchResultDTO, len(results))}
	for i, res := range results {
		resp.Results[i] = searchResultDTO{Content: res.Content, Key: res.Key, Score: res.Score}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (sr *SearchRouter) writeCollerr(w http.ResponseWriter, err error) {
	var core *collerr.CoreError
	if errors.As(err, &core) {
		switch core.Kind {
		case collerr.NotFound:
			writeError(w, http.StatusNotFound, core.Error())
			return
		case collerr.InvalidOperation:
			writeError(w, http.StatusBadRequest, core.Error())
			return
		}
	}
	sr.logger.Error("search failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
