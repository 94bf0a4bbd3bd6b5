package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konorlevich/cloud_cabinet/internal/storage-service/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := storage.NewStorage(t.TempDir(), getLogger())
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(s, getLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestHandler(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/shares/acme"

	assert.Equal(t, http.StatusCreated, do(t, http.MethodPut, base, "").StatusCode)
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPut, base+"/directories/docs", "").StatusCode)
	assert.Equal(t, http.StatusConflict, do(t, http.MethodPut, base+"/directories/docs", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodPut, base+"/directories/missing/sub", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodHead, base+"/directories/docs", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodHead, base+"/directories/other", "").StatusCode)

	assert.Equal(t, http.StatusCreated, do(t, http.MethodPut, base+"/files/docs/a.txt", "hello").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodHead, base+"/files/docs/a.txt", "").StatusCode)

	res := do(t, http.MethodGet, base+"/files/docs/a.txt", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	content, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	res = do(t, http.MethodGet, base+"/directories/docs", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var entries []storage.Entry
	require.NoError(t, json.NewDecoder(res.Body).Decode(&entries))
	assert.Equal(t, []storage.Entry{{Name: "a.txt"}}, entries)

	assert.Equal(t, http.StatusConflict, do(t, http.MethodDelete, base+"/directories/docs", "").StatusCode)

	assert.Equal(t, http.StatusAccepted,
		do(t, http.MethodPost, base+"/copies", `{"source":"docs/a.txt","destination":"docs/b.txt"}`).StatusCode)
	assert.Eventually(t, func() bool {
		res, err := http.Get(base + "/copies/docs/b.txt")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		var status map[string]string
		if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
			return false
		}
		return status["status"] == storage.CopySuccess
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, base+"/copies", `{"source":""}`).StatusCode)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, base+"/files/docs/a.txt", "").StatusCode)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, base+"/files/docs/b.txt", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, base+"/files/docs/b.txt", "").StatusCode)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, base+"/directories/docs", "").StatusCode)
	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, base, "").StatusCode)
}
