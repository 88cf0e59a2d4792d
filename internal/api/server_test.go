package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "data/quantdatav2_binance.json", []byte(`[{"Asset":"BTCUSDT"}]`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/whattotrade_bybit.csv", []byte("Asset\nETHUSDT\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/quantdatav2_bybit.json_temp", []byte(`[{"Asset":"half`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/notes.txt", []byte("ignore"), 0o644))
	return New(Options{DataDir: "data"}, fs, zerolog.Nop())
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListSkipsTempAndForeignFiles(t *testing.T) {
	rec := get(t, newTestServer(t), "/data")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Artifacts []ArtifactInfo `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Artifacts, 2)
	require.Equal(t, "quantdatav2_binance", payload.Artifacts[0].Name)
	require.Equal(t, "whattotrade_bybit.csv", payload.Artifacts[1].File)
}

func TestServeByNameAndFile(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/data/quantdatav2_binance")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `[{"Asset":"BTCUSDT"}]`, rec.Body.String())

	rec = get(t, s, "/data/whattotrade_bybit.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
}

func TestServeRefusesTempAndTraversal(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusBadRequest, get(t, s, "/data/quantdatav2_bybit.json_temp").Code)
	require.Equal(t, http.StatusBadRequest, get(t, s, "/data/.hidden.json").Code)
	require.Equal(t, http.StatusNotFound, get(t, s, "/data/quantdatav2_bybit").Code)
	require.Equal(t, http.StatusNotFound, get(t, s, "/data/notes.txt").Code)
}
