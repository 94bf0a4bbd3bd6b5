package fileshare

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
	"github.com/konorlevich/cloud_cabinet/internal/storage-service/handler"
	"github.com/konorlevich/cloud_cabinet/internal/storage-service/storage"
)

func getLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.FatalLevel)
	return logger.WithField("in_test", true)
}

func newBackend(t *testing.T) *Backend {
	t.Helper()
	s, err := storage.NewStorage(t.TempDir(), getLogger())
	require.NoError(t, err)
	srv := httptest.NewServer(handler.NewHandler(s, getLogger()))
	t.Cleanup(srv.Close)

	b, err := New(Config{URL: srv.URL, Timeout: 5 * time.Second}, getLogger())
	require.NoError(t, err)
	return b
}

func TestBackend_endpoint(t *testing.T) {
	b := &Backend{baseURL: "http://node:8080/api"}
	tests := []struct {
		name  string
		share string
		kind  string
		p     string
		want  string
	}{
		{name: "share", share: "acme", want: "http://node:8080/api/shares/acme"},
		{name: "nested", share: "acme", kind: "directories", p: "/a/b/", want: "http://node:8080/api/shares/acme/directories/a/b"},
		{name: "escaped", share: "acme", kind: "files", p: "資料/a b.txt", want: "http://node:8080/api/shares/acme/files/%E8%B3%87%E6%96%99/a%20b.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.endpoint(tt.share, tt.kind, tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBackend(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.CreateShare(ctx, "acme"))
	assert.ErrorIs(t, b.CreateShare(ctx, "acme"), remote.ErrAlreadyExists)

	require.NoError(t, b.CreateDirectory(ctx, "acme", "Docs"))
	assert.ErrorIs(t, b.CreateDirectory(ctx, "acme", "Docs"), remote.ErrAlreadyExists)
	assert.ErrorIs(t, b.CreateDirectory(ctx, "acme", "Missing/Sub"), remote.ErrNotFound)

	ok, err := b.DirectoryExists(ctx, "acme", "Docs")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.DirectoryExists(ctx, "acme", "Nope")
	require.NoError(t, err)
	assert.False(t, ok)

	content := "quarterly numbers"
	require.NoError(t, b.UploadFile(ctx, "acme", "Docs", "report 1.txt", strings.NewReader(content), int64(len(content))))

	ok, err = b.FileExists(ctx, "acme", "Docs", "report 1.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := b.List(ctx, "acme", "")
	require.NoError(t, err)
	if diff := cmp.Diff([]remote.Entry{{Name: "Docs", IsDirectory: true}}, entries); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	sb := &strings.Builder{}
	require.NoError(t, b.DownloadFile(ctx, "acme", "Docs", "report 1.txt", sb))
	assert.Equal(t, content, sb.String())
	assert.ErrorIs(t, b.DownloadFile(ctx, "acme", "Docs", "missing.txt", io.Discard), remote.ErrNotFound)

	assert.ErrorIs(t, b.DeleteDirectory(ctx, "acme", "Docs"), remote.ErrNotEmpty)
	require.NoError(t, b.DeleteFile(ctx, "acme", "Docs", "report 1.txt"))
	assert.ErrorIs(t, b.DeleteFile(ctx, "acme", "Docs", "report 1.txt"), remote.ErrNotFound)
	require.NoError(t, b.DeleteDirectory(ctx, "acme", "Docs"))
	require.NoError(t, b.DeleteShare(ctx, "acme"))
}

func TestBackend_throughStorage(t *testing.T) {
	ctx := context.Background()
	s := remote.NewStorage(newBackend(t), getLogger(),
		remote.WithCopyPolling(50, 10*time.Millisecond), remote.WithTempDir(t.TempDir()))

	require.NoError(t, s.CreateShare(ctx, "acme"))
	require.NoError(t, s.CreateFolder(ctx, "acme", "Docs"))
	require.NoError(t, s.CreateFolder(ctx, "acme", "Docs/2024"))
	require.NoError(t, s.UploadFile(ctx, "acme", "Docs/2024", "a.txt", strings.NewReader("aaa"), 3))

	require.NoError(t, s.RenameFile(ctx, "acme", "Docs/2024", "a.txt", "b.txt"))
	ok, err := s.FileExists(ctx, "acme", "Docs/2024", "a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RenameFolder(ctx, "acme", "Docs", "Archive"))
	d, err := s.DownloadFile(ctx, "acme", "Archive/2024", "b.txt")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	got, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(got))

	ok, err = s.Exists(ctx, "acme", "Docs")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DeleteFolder(ctx, "acme", "Archive"))
	entries, err := s.ListChildren(ctx, "acme", "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExpect(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		conflict error
		wantErr  error
	}{
		{name: "wanted", status: http.StatusCreated},
		{name: "not found", status: http.StatusNotFound, wantErr: remote.ErrNotFound},
		{name: "conflict", status: http.StatusConflict, conflict: remote.ErrNotEmpty, wantErr: remote.ErrNotEmpty},
		{name: "bad request", status: http.StatusBadRequest, wantErr: remote.ErrInvalidPath},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrUnexpectedStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &http.Response{StatusCode: tt.status, Body: io.NopCloser(strings.NewReader("detail"))}
			err := expect(res, http.StatusCreated, tt.conflict)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
