package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote/memory"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/storage"
)

const testKey = "0123456789abcdef0123456789abcdef"

func getLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.FatalLevel)
	return logger.WithField("in_test", true)
}

type apiEnv struct {
	srv    *httptest.Server
	mem    *memory.Backend
	tenant *database.Tenant
	user   string
	admin  string
}

func newAPIEnv(t *testing.T, opts Options) *apiEnv {
	t.Helper()
	repo := database.NewTestRepository(t)
	tn := database.NewFixture(t, repo).Tenant("acme", 1_000_000, 500_000, 10)
	mem := memory.New()
	require.NoError(t, mem.CreateShare(context.Background(), "acme"))
	rs := remote.NewStorage(mem, getLogger(), remote.WithCopyPolling(3, 0), remote.WithTempDir(t.TempDir()))
	svc := storage.NewServer(repo, rs, getLogger())

	tokens, err := auth.NewTokens(testKey, "test", time.Hour)
	require.NoError(t, err)
	p := auth.Principal{
		UserID:       tn.User.ID,
		CompanyID:    tn.Company.ID,
		DepartmentID: tn.Department.ID,
		Storage:      tn.User.Storage,
	}
	user, err := tokens.Issue(p)
	require.NoError(t, err)
	p.Admin = true
	admin, err := tokens.Issue(p)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(svc, tokens, nil, opts, getLogger()))
	t.Cleanup(srv.Close)
	return &apiEnv{srv: srv, mem: mem, tenant: tn, user: user, admin: admin}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func (e *apiEnv) json(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(t, method, path, token, r, "application/json")
}

func (e *apiEnv) upload(t *testing.T, token string, dirID uint, name string, content []byte) *http.Response {
	t.Helper()
	body, contentType := uploadBody(t, dirID, name, content)
	return e.do(t, http.MethodPost, "/file/upload_file", token, body, contentType)
}

func uploadBody(t *testing.T, dirID uint, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField(fieldNameDirectoryID, fmt.Sprint(dirID)))
	part, err := w.CreateFormFile(fieldNameFile, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestHandler_auth(t *testing.T) {
	e := newAPIEnv(t, Options{})

	res := e.json(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = e.json(t, http.MethodGet, "/directory/get_all_directory", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res = e.json(t, http.MethodGet, "/directory/get_all_directory", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res = e.json(t, http.MethodGet, "/directory/get_all_directory", e.user, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestHandler_directories(t *testing.T) {
	e := newAPIEnv(t, Options{})

	res := e.json(t, http.MethodPost, "/directory/add_directory", e.user, `{"directory_name":"Docs","open_flg":false}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	docs := decodeBody[directoryResponse](t, res)
	assert.Equal(t, 1, docs.DirectoryClass)
	assert.Nil(t, docs.Path)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{name: "duplicate", path: "/directory/add_directory", body: `{"directory_name":"Docs"}`, wantCode: http.StatusConflict},
		{name: "missing name", path: "/directory/add_directory", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "unknown field", path: "/directory/add_directory", body: `{"directory_name":"x","extra":1}`, wantCode: http.StatusBadRequest},
		{name: "broken json", path: "/directory/add_directory", body: `{`, wantCode: http.StatusBadRequest},
		{name: "rename unknown", path: "/directory/rename_directory", body: `{"directory_id":999,"new_directory_name":"x"}`, wantCode: http.StatusNotFound},
		{name: "rename", path: "/directory/rename_directory", body: fmt.Sprintf(`{"directory_id":%d,"new_directory_name":"Archive"}`, docs.DirectoryID), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.json(t, http.MethodPost, tt.path, e.user, tt.body)
			assert.Equal(t, tt.wantCode, res.StatusCode)
		})
	}

	res = e.json(t, http.MethodGet, "/directory/get_all_directory", e.user, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	dirs := decodeBody[[]directoryResponse](t, res)
	require.Len(t, dirs, 1)
	assert.Equal(t, "Archive", dirs[0].DirectoryName)

	res = e.json(t, http.MethodGet, "/directory/get_remote_all_directory", e.user, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []remote.Entry{{Name: "Archive", IsDirectory: true}}, decodeBody[[]remote.Entry](t, res))

	e.mem.FailOn("create_directory", errors.New("boom"))
	res = e.json(t, http.MethodPost, "/directory/add_directory", e.user, `{"directory_name":"New"}`)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	e.mem.FailOn("create_directory", nil)

	res = e.json(t, http.MethodPost, "/directory/delete_directory", e.user, fmt.Sprintf(`{"directory_id":%d}`, docs.DirectoryID))
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestHandler_files(t *testing.T) {
	e := newAPIEnv(t, Options{})
	content := []byte("quarterly numbers")

	res := e.upload(t, e.user, 0, "報告.txt", content)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	f := decodeBody[fileResponse](t, res)
	assert.Equal(t, int64(1), f.FileSize)

	res = e.upload(t, e.user, 0, "big.bin", make([]byte, 20*1024))
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	assert.Contains(t, decodeBody[APIError](t, res).Message, "user tier")

	res = e.json(t, http.MethodPost, "/file/get_all_file", e.user, `{}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	entries := decodeBody[[]storage.Entry](t, res)
	require.Len(t, entries, 1)
	assert.Equal(t, "報告.txt", entries[0].Name)
	assert.Equal(t, "テキスト ドキュメント", entries[0].Type)

	res = e.json(t, http.MethodPost, "/file/download_file", e.user, fmt.Sprintf(`{"file_id":%d}`, f.FileID))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "attachment; filename*=UTF-8''%E5%A0%B1%E5%91%8A.txt", res.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/plain"))
	got, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	res = e.json(t, http.MethodPost, "/file/rename_file", e.user, fmt.Sprintf(`{"file_id":%d,"new_file_name":"report.txt"}`, f.FileID))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "report.txt", decodeBody[fileResponse](t, res).FileName)
	assert.Equal(t, content, e.mem.Content("acme", "report.txt"))

	res = e.json(t, http.MethodPost, "/file/delete_file", e.user, fmt.Sprintf(`{"file_id":%d}`, f.FileID))
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res = e.json(t, http.MethodPost, "/file/download_file", e.user, fmt.Sprintf(`{"file_id":%d}`, f.FileID))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = e.json(t, http.MethodGet, "/file/get_storage", e.user, "")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res = e.json(t, http.MethodGet, "/file/get_storage", e.admin, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHandler_uploadLimit(t *testing.T) {
	e := newAPIEnv(t, Options{MaxUploadSize: 1024})
	res := e.upload(t, e.user, 0, "a.bin", make([]byte, 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)

	// without a Content-Length the limit is hit while the form is parsed
	body, contentType := uploadBody(t, 0, "a.bin", make([]byte, 4096))
	res = e.do(t, http.MethodPost, "/file/upload_file", e.user, struct{ io.Reader }{body}, contentType)
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestHandler_rateLimit(t *testing.T) {
	e := newAPIEnv(t, Options{RequestsPerSecond: 0.001, Burst: 1})
	res := e.json(t, http.MethodGet, "/user/get_all_user", e.user, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res = e.json(t, http.MethodGet, "/user/get_all_user", e.user, "")
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestHandler_tenancy(t *testing.T) {
	e := newAPIEnv(t, Options{})

	res := e.json(t, http.MethodPost, "/company/add_company", e.user, `{"company_name":"Beta","storage_name":"beta","storage":100}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res = e.json(t, http.MethodPost, "/company/add_company", e.admin, `{"company_name":"Beta","storage_name":"beta","storage":100}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	beta := decodeBody[companyResponse](t, res)

	res = e.json(t, http.MethodGet, fmt.Sprintf("/company/get_company/%d", beta.ID), e.admin, "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res = e.json(t, http.MethodGet, "/company/get_company/abc", e.admin, "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = e.json(t, http.MethodDelete, fmt.Sprintf("/company/delete_company/%d", beta.ID), e.admin, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = e.json(t, http.MethodPost, "/department/add_department", e.admin, `{"department_name":"Sales","storage":10}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	sales := decodeBody[departmentResponse](t, res)

	res = e.json(t, http.MethodPost, "/user/add_user", e.admin,
		fmt.Sprintf(`{"department_id":%d,"personal_id":"dave01","user_name":"Dave","storage":10}`, sales.ID))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	dave := decodeBody[userResponse](t, res)

	res = e.json(t, http.MethodDelete, fmt.Sprintf("/department/delete_department/%d", sales.ID), e.admin, "")
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	res = e.json(t, http.MethodDelete, fmt.Sprintf("/user/delete_user/%d", dave.ID), e.admin, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestHandler_favorites(t *testing.T) {
	e := newAPIEnv(t, Options{})
	res := e.json(t, http.MethodPost, "/directory/add_directory", e.user, `{"directory_name":"Docs"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	docs := decodeBody[directoryResponse](t, res)

	res = e.json(t, http.MethodPost, "/favorite/add_favorite", e.user, fmt.Sprintf(`{"directory_id":%d,"favorite_name":"docs"}`, docs.DirectoryID))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	fav := decodeBody[favoriteResponse](t, res)

	res = e.json(t, http.MethodPut, "/favorite/update_favorite", e.user, fmt.Sprintf(`{"id":%d,"favorite_name":"my docs"}`, fav.ID))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, docs.DirectoryID, decodeBody[favoriteResponse](t, res).DirectoryID)

	res = e.json(t, http.MethodGet, "/favorite/get_all_favorite", e.user, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decodeBody[[]favoriteResponse](t, res), 1)

	res = e.json(t, http.MethodDelete, fmt.Sprintf("/favorite/delete_favorite/%d", fav.ID), e.user, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res = e.json(t, http.MethodDelete, fmt.Sprintf("/favorite/delete_favorite/%d", fav.ID), e.user, "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: validator.ValidationErrors{}, want: http.StatusBadRequest},
		{name: "invalid argument", err: fmt.Errorf("%w: x", storage.ErrInvalidArgument), want: http.StatusBadRequest},
		{name: "expired token", err: auth.ErrTokenExpired, want: http.StatusUnauthorized},
		{name: "forbidden", err: storage.ErrForbidden, want: http.StatusForbidden},
		{name: "not found", err: fmt.Errorf("%w: file", storage.ErrNotFound), want: http.StatusNotFound},
		{name: "conflict", err: storage.ErrConflict, want: http.StatusConflict},
		{name: "quota", err: &storage.QuotaError{Tier: storage.TierCompany}, want: http.StatusRequestEntityTooLarge},
		{name: "body too big", err: &http.MaxBytesError{Limit: 1}, want: http.StatusRequestEntityTooLarge},
		{name: "body too big while parsing", err: fmt.Errorf("%w: %w", errCantParseBody, &http.MaxBytesError{Limit: 1}), want: http.StatusRequestEntityTooLarge},
		{name: "remote", err: fmt.Errorf("%w: %w", storage.ErrRemoteStorage, remote.ErrCopyTimeout), want: http.StatusBadGateway},
		{name: "inconsistent", err: fmt.Errorf("%w: %w", storage.ErrInconsistent, errors.New("db")), want: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}

func TestNewAPIError_hidesInternals(t *testing.T) {
	err := newAPIError(errors.New("dial tcp 10.0.0.1:3306: refused"))
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.NotContains(t, err.Message, "10.0.0.1")
}
