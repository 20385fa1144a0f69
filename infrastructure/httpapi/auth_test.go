package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWriteProtect_ReadMethodsAlwaysPass(t *testing.T) {
	handler := WriteProtect(NewAuthConfig([]string{"secret"}))(okHandler())

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		req := httptest.NewRequest(method, "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, method)
	}
}

func TestWriteProtect_MutatingMethodsRequireKey(t *testing.T) {
	handler := WriteProtect(NewAuthConfig([]string{"secret"}))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWriteProtect_MutatingMethodsPassWithValidKey(t *testing.T) {
	handler := WriteProtect(NewAuthConfig([]string{"secret"}))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-API-KEY", "secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWriteProtect_DisabledPassesAll(t *testing.T) {
	handler := WriteProtect(NewAuthConfig(nil))(okHandler())

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWriteProtect_InvalidKeyRejected(t *testing.T) {
	handler := WriteProtect(NewAuthConfig([]string{"secret"}))(okHandler())

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	req.Header.Set("X-API-KEY", "wrong")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
