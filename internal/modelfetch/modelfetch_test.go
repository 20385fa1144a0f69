package modelfetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeHub(t *testing.T, manifest Manifest, files map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/acme/embed/resolve/main/metadata.json", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(manifest))
	})
	for name, content := range files {
		name, content := name, content
		mux.HandleFunc("/acme/embed/resolve/main/"+name, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(content))
		})
	}
	return httptest.NewServer(mux)
}

func newTestFetcher(t *testing.T, srv *httptest.Server) *Fetcher {
	t.Helper()
	f := New(t.TempDir())
	f.baseURL = srv.URL
	return f
}

func TestResolve_NonHFSchemePassesThrough(t *testing.T) {
	f := New(t.TempDir())
	resolved, err := f.Resolve(context.Background(), "/local/model/dir", "model.onnx", "")
	require.NoError(t, err)
	require.Equal(t, "/local/model/dir", resolved.Dir)
	require.Equal(t, "model.onnx", resolved.WeightsFile)
}

func TestResolve_DownloadsManifestAndFiles(t *testing.T) {
	manifest := Manifest{
		LetsearchVersion: 1,
		Variants:         []Variant{{Variant: "f32", Path: "model.onnx"}},
		RequiredFiles:    []string{"tokenizer.json"},
	}
	srv := fakeHub(t, manifest, map[string]string{
		"model.onnx":     "weights-bytes",
		"tokenizer.json": `{"type":"bert"}`,
	})
	defer srv.Close()

	f := newTestFetcher(t, srv)
	resolved, err := f.Resolve(context.Background(), "hf://acme/embed", "f32", "")
	require.NoError(t, err)
	require.Equal(t, "model.onnx", resolved.WeightsFile)

	data, err := os.ReadFile(filepath.Join(resolved.Dir, "model.onnx"))
	require.NoError(t, err)
	require.Equal(t, "weights-bytes", string(data))

	_, err = os.Stat(filepath.Join(resolved.Dir, "tokenizer.json"))
	require.NoError(t, err)
}

func TestResolve_CachesManifestAcrossCalls(t *testing.T) {
	manifest := Manifest{
		LetsearchVersion: 1,
		Variants:         []Variant{{Variant: "f32", Path: "model.onnx"}},
	}
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/acme/embed/resolve/main/metadata.json", func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(manifest)
	})
	mux.HandleFunc("/acme/embed/resolve/main/model.onnx", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("weights"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.Resolve(context.Background(), "hf://acme/embed", "f32", "")
	require.NoError(t, err)
	_, err = f.Resolve(context.Background(), "hf://acme/embed", "f32", "")
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}

func TestResolve_UnknownVariant(t *testing.T) {
	manifest := Manifest{
		LetsearchVersion: 1,
		Variants:         []Variant{{Variant: "f32", Path: "model.onnx"}},
	}
	srv := fakeHub(t, manifest, nil)
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.Resolve(context.Background(), "hf://acme/embed", "i8", "")
	require.Error(t, err)
}

func TestResolve_UnsupportedManifestVersion(t *testing.T) {
	manifest := Manifest{LetsearchVersion: 99}
	srv := fakeHub(t, manifest, nil)
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.Resolve(context.Background(), "hf://acme/embed", "f32", "")
	require.Error(t, err)
}

func TestResolve_MalformedReference(t *testing.T) {
	f := New(t.TempDir())
	_, err := f.Resolve(context.Background(), "hf://justowner", "f32", "")
	require.Error(t, err)
}

func TestResolve_ManifestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.Resolve(context.Background(), "hf://acme/embed", "f32", "")
	require.Error(t, err)
}
