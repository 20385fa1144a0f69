package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collexdb/collex/domain/collection"
	"github.com/collexdb/collex/domain/model"
	"github.com/collexdb/collex/internal/rowstore"
)

type fakeBackend struct{ dim int64 }

func (f *fakeBackend) Load(context.Context) error   { return nil }
func (f *fakeBackend) Unload(context.Context) error { return nil }
func (f *fakeBackend) OutputDim() int64             { return f.dim }
func (f *fakeBackend) OutputDtype() model.Dtype     { return model.DtypeF32 }
func (f *fakeBackend) PredictF32(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}
func (f *fakeBackend) PredictF16(ctx context.Context, texts []string) ([][]float32, error) {
	return f.PredictF32(ctx, texts)
}

func newSearchableCollection(t *testing.T) (CollectionHandle, func()) {
	t.Helper()
	models := model.NewManager()
	id, err := models.Register(context.Background(), &fakeBackend{dim: 4})
	require.NoError(t, err)

	home := t.TempDir()
	c, err := collection.Create(context.Background(), home, "docs", "acme/embed", "f32", false, models)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"hello"}`+"\n"), 0o644))
	require.NoError(t, c.Import(context.Background(), path, rowstore.FormatJSONL))
	require.NoError(t, c.EmbedColumn(context.Background(), "title", 10, id, false, nil))

	return CollectionHandle{Collection: c, ModelID: id}, func() { c.Close() }
}

func TestSearch_ReturnsHydratedResults(t *testing.T) {
	handle, cleanup := newSearchableCollection(t)
	defer cleanup()

	srv := NewServer(":0", nil, map[string]CollectionHandle{"docs": handle}, nil)

	req := httptest.NewRequest(http.MethodGet, "/collections/docs/search?column=title&q=hello&k=5", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body searchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Results, 1)
	require.Equal(t, "hello", body.Results[0].Content)
}

func TestSearch_UnknownCollection(t *testing.T) {
	srv := NewServer(":0", nil, map[string]CollectionHandle{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/collections/missing/search?column=title&q=hello", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch_MissingParams(t *testing.T) {
	handle, cleanup := newSearchableCollection(t)
	defer cleanup()
	srv := NewServer(":0", nil, map[string]CollectionHandle{"docs": handle}, nil)

	req := httptest.NewRequest(http.MethodGet, "/collections/docs/search?column=title", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	srv := NewServer(":0", nil, map[string]CollectionHandle{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
