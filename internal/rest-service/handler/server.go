// Package handler exposes the cabinet API over HTTP.
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/handler/middleware"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/storage"
)

// Service is the storage layer the API drives.
type Service interface {
	ListDirectories(ctx context.Context, p *auth.Principal) ([]*database.Directory, error)
	CreateDirectory(ctx context.Context, p *auth.Principal, parentID uint, name string, private bool) (*database.Directory, error)
	RenameDirectory(ctx context.Context, p *auth.Principal, id uint, name string) (*database.Directory, error)
	DeleteDirectory(ctx context.Context, p *auth.Principal, id uint) error
	ListRemote(ctx context.Context, p *auth.Principal) ([]remote.Entry, error)
	GrantPermission(ctx context.Context, p *auth.Principal, userID, directoryID uint) error
	RevokePermission(ctx context.Context, p *auth.Principal, userID, directoryID uint) error

	ListFiles(ctx context.Context, p *auth.Principal, directoryID uint) ([]storage.Entry, error)
	Upload(ctx context.Context, p *auth.Principal, directoryID uint, name string, content io.Reader, size int64) (*database.File, error)
	DownloadFile(ctx context.Context, p *auth.Principal, id uint) (*remote.Download, error)
	RenameFile(ctx context.Context, p *auth.Principal, id uint, name string) (*database.File, error)
	DeleteFile(ctx context.Context, p *auth.Principal, id uint) error
	StorageUsage(ctx context.Context, p *auth.Principal) ([]storage.CompanyUsage, error)

	ListFavorites(ctx context.Context, p *auth.Principal) ([]*database.Favorite, error)
	AddFavorite(ctx context.Context, p *auth.Principal, name string, directoryID uint) (*database.Favorite, error)
	UpdateFavorite(ctx context.Context, p *auth.Principal, id uint, name string, directoryID uint) (*database.Favorite, error)
	DeleteFavorite(ctx context.Context, p *auth.Principal, id uint) error

	GetCompany(ctx context.Context, p *auth.Principal, id uint) (*database.Company, error)
	ListCompanies(ctx context.Context, p *auth.Principal) ([]*database.Company, error)
	CreateCompany(ctx context.Context, p *auth.Principal, in storage.CompanyInput) (*database.Company, error)
	UpdateCompany(ctx context.Context, p *auth.Principal, id uint, in storage.CompanyInput) (*database.Company, error)
	DeleteCompany(ctx context.Context, p *auth.Principal, id uint) error

	ListDepartments(ctx context.Context, p *auth.Principal) ([]*database.Department, error)
	CreateDepartment(ctx context.Context, p *auth.Principal, in storage.DepartmentInput) (*database.Department, error)
	UpdateDepartment(ctx context.Context, p *auth.Principal, id uint, in storage.DepartmentInput) (*database.Department, error)
	DeleteDepartment(ctx context.Context, p *auth.Principal, id uint) error

	ListUsers(ctx context.Context, p *auth.Principal) ([]*database.User, error)
	CreateUser(ctx context.Context, p *auth.Principal, in storage.UserInput) (*database.User, error)
	DeleteUser(ctx context.Context, p *auth.Principal, id uint) error
}

type Options struct {
	RequestTimeout time.Duration
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxUploadSize is in bytes.
	MaxUploadSize int64
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, int, time.Duration) {}

type server struct {
	svc  Service
	opts Options
	l    *log.Entry
}

// handlerFunc is an API route body. It runs with a verified principal.
type handlerFunc func(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error

// NewHandler registers every API route. obs may be nil.
func NewHandler(svc Service, v middleware.Verifier, obs middleware.RequestObserver, opts Options, l *log.Entry) *http.ServeMux {
	if obs == nil {
		obs = noopObserver{}
	}
	s := &server{svc: svc, opts: opts, l: l}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}

	handler := http.NewServeMux()
	handle := func(pattern string, h handlerFunc) {
		chain := []middleware.Middleware{middleware.RequestID(l), middleware.Metrics(obs, pattern)}
		if limiter != nil {
			chain = append(chain, middleware.RateLimit(limiter))
		}
		if opts.RequestTimeout > 0 {
			chain = append(chain, middleware.Timeout(opts.RequestTimeout))
		}
		chain = append(chain, middleware.CheckAuth(v))
		handler.Handle(pattern, middleware.Chain(s.wrap(h), chain...))
	}

	handle("GET /directory/get_all_directory", s.listDirectories)
	handle("POST /directory/add_directory", s.createDirectory)
	handle("POST /directory/rename_directory", s.renameDirectory)
	handle("POST /directory/delete_directory", s.deleteDirectory)
	handle("GET /directory/get_remote_all_directory", s.listRemote)
	handle("POST /directory/grant_permission", s.grantPermission)
	handle("POST /directory/revoke_permission", s.revokePermission)

	handle("POST /file/get_all_file", s.listFiles)
	handle("POST /file/download_file", s.downloadFile)
	handle("POST /file/upload_file", s.uploadFile)
	handle("POST /file/rename_file", s.renameFile)
	handle("POST /file/delete_file", s.deleteFile)
	handle("GET /file/get_storage", s.storageUsage)

	handle("GET /favorite/get_all_favorite", s.listFavorites)
	handle("POST /favorite/add_favorite", s.addFavorite)
	handle("PUT /favorite/update_favorite", s.updateFavorite)
	handle("DELETE /favorite/delete_favorite/{favorite_id}", s.deleteFavorite)

	handle("GET /company/get_company/{company_id}", s.getCompany)
	handle("GET /company/get_all_company", s.listCompanies)
	handle("POST /company/add_company", s.createCompany)
	handle("PUT /company/update_company", s.updateCompany)
	handle("DELETE /company/delete_company/{company_id}", s.deleteCompany)

	handle("GET /department/get_all_department", s.listDepartments)
	handle("POST /department/add_department", s.createDepartment)
	handle("PUT /department/update_department", s.updateDepartment)
	handle("DELETE /department/delete_department/{department_id}", s.deleteDepartment)

	handle("GET /user/get_all_user", s.listUsers)
	handle("POST /user/add_user", s.createUser)
	handle("DELETE /user/delete_user/{user_id}", s.deleteUser)

	handler.Handle("GET /healthz", middleware.Metrics(obs, "GET /healthz")(http.HandlerFunc(healthz)))
	return handler
}

func healthz(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) wrap(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		l := middleware.Logger(r.Context(), s.l)
		p, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(rw, l, errNoPrincipal)
			return
		}
		if err := h(rw, r, p); err != nil {
			writeError(rw, l.WithField("user_id", p.UserID), err)
		}
	})
}

func (s *server) listDirectories(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	dirs, err := s.svc.ListDirectories(r.Context(), p)
	if err != nil {
		return err
	}
	res := make([]directoryResponse, 0, len(dirs))
	for _, d := range dirs {
		res = append(res, newDirectoryResponse(d))
	}
	writeJSON(rw, http.StatusOK, res)
	return nil
}

func (s *server) createDirectory(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req directoryCreate
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := s.svc.CreateDirectory(r.Context(), p, req.DirectoryID, req.DirectoryName, req.OpenFlg)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusCreated, newDirectoryResponse(d))
	return nil
}

func (s *server) renameDirectory(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req directoryRename
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := s.svc.RenameDirectory(r.Context(), p, req.DirectoryID, req.NewDirectoryName)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, newDirectoryResponse(d))
	return nil
}

func (s *server) deleteDirectory(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req directoryDelete
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := s.svc.DeleteDirectory(r.Context(), p, req.DirectoryID); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) listRemote(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	entries, err := s.svc.ListRemote(r.Context(), p)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []remote.Entry{}
	}
	writeJSON(rw, http.StatusOK, entries)
	return nil
}

func (s *server) grantPermission(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req permissionChange
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := s.svc.GrantPermission(r.Context(), p, req.UserID, req.DirectoryID); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) revokePermission(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req permissionChange
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := s.svc.RevokePermission(r.Context(), p, req.UserID, req.DirectoryID); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) listFiles(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req fileList
	if err := decode(r, &req); err != nil {
		return err
	}
	entries, err := s.svc.ListFiles(r.Context(), p, req.DirectoryID)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, entries)
	return nil
}

func (s *server) uploadFile(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	if s.opts.MaxUploadSize > 0 {
		if r.ContentLength > s.opts.MaxUploadSize {
			return &http.MaxBytesError{Limit: s.opts.MaxUploadSize}
		}
		r.Body = http.MaxBytesReader(rw, r.Body, s.opts.MaxUploadSize)
	}
	ud, err := newUploadData(r)
	if err != nil {
		return err
	}
	defer func() {
		_ = ud.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	f, err := s.svc.Upload(r.Context(), p, ud.directoryID, ud.file.header.Filename, ud.file.f, ud.file.header.Size)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusCreated, newFileResponse(f))
	return nil
}

// downloadFile streams the spooled copy and removes it whatever happens to
// the transfer.
func (s *server) downloadFile(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req fileRef
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := s.svc.DownloadFile(r.Context(), p, req.FileID)
	if err != nil {
		return err
	}
	l := middleware.Logger(r.Context(), s.l).WithField("file_id", req.FileID)
	defer func() {
		if err := d.Close(); err != nil {
			l.WithError(err).Error("can't remove download spool")
		}
	}()

	mtype, err := mimetype.DetectReader(d)
	if err != nil {
		return fmt.Errorf("can't detect content type: %w", err)
	}
	if _, err := d.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("can't rewind download: %w", err)
	}
	rw.Header().Set("Content-Type", mtype.String())
	rw.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	rw.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(d.FileName))
	rw.WriteHeader(http.StatusOK)
	if _, err := io.Copy(rw, d); err != nil {
		l.WithError(err).Warning("download interrupted")
		return nil
	}
	l.Info("file sent")
	return nil
}

func (s *server) renameFile(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req fileRename
	if err := decode(r, &req); err != nil {
		return err
	}
	f, err := s.svc.RenameFile(r.Context(), p, req.FileID, req.NewFileName)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, newFileResponse(f))
	return nil
}

func (s *server) deleteFile(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req fileRef
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := s.svc.DeleteFile(r.Context(), p, req.FileID); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) storageUsage(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	res, err := s.svc.StorageUsage(r.Context(), p)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, res)
	return nil
}

func (s *server) listFavorites(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	favs, err := s.svc.ListFavorites(r.Context(), p)
	if err != nil {
		return err
	}
	res := make([]favoriteResponse, 0, len(favs))
	for _, f := range favs {
		res = append(res, newFavoriteResponse(f))
	}
	writeJSON(rw, http.StatusOK, res)
	return nil
}

func (s *server) addFavorite(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req favoriteCreate
	if err := decode(r, &req); err != nil {
		return err
	}
	f, err := s.svc.AddFavorite(r.Context(), p, req.FavoriteName, req.DirectoryID)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusCreated, newFavoriteResponse(f))
	return nil
}

func (s *server) updateFavorite(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req favoriteUpdate
	if err := decode(r, &req); err != nil {
		return err
	}
	f, err := s.svc.UpdateFavorite(r.Context(), p, req.ID, req.FavoriteName, req.DirectoryID)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, newFavoriteResponse(f))
	return nil
}

func (s *server) deleteFavorite(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	id, err := pathID(r, "favorite_id")
	if err != nil {
		return err
	}
	if err := s.svc.DeleteFavorite(r.Context(), p, id); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) getCompany(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	id, err := pathID(r, "company_id")
	if err != nil {
		return err
	}
	c, err := s.svc.GetCompany(r.Context(), p, id)
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, newCompanyResponse(c))
	return nil
}

func (s *server) listCompanies(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	companies, err := s.svc.ListCompanies(r.Context(), p)
	if err != nil {
		return err
	}
	res := make([]companyResponse, 0, len(companies))
	for _, c := range companies {
		res = append(res, newCompanyResponse(c))
	}
	writeJSON(rw, http.StatusOK, res)
	return nil
}

func (s *server) createCompany(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req companyCreate
	if err := decode(r, &req); err != nil {
		return err
	}
	c, err := s.svc.CreateCompany(r.Context(), p, storage.CompanyInput{
		Name:        req.CompanyName,
		StorageName: req.StorageName,
		Storage:     req.Storage,
	})
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusCreated, newCompanyResponse(c))
	return nil
}

func (s *server) updateCompany(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req companyUpdate
	if err := decode(r, &req); err != nil {
		return err
	}
	c, err := s.svc.UpdateCompany(r.Context(), p, req.ID, storage.CompanyInput{Name: req.CompanyName, Storage: req.Storage})
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, newCompanyResponse(c))
	return nil
}

func (s *server) deleteCompany(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	id, err := pathID(r, "company_id")
	if err != nil {
		return err
	}
	if err := s.svc.DeleteCompany(r.Context(), p, id); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) listDepartments(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	deps, err := s.svc.ListDepartments(r.Context(), p)
	if err != nil {
		return err
	}
	res := make([]departmentResponse, 0, len(deps))
	for _, d := range deps {
		res = append(res, newDepartmentResponse(d))
	}
	writeJSON(rw, http.StatusOK, res)
	return nil
}

func (s *server) createDepartment(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req departmentCreate
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := s.svc.CreateDepartment(r.Context(), p, storage.DepartmentInput{Name: req.DepartmentName, Storage: req.Storage})
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusCreated, newDepartmentResponse(d))
	return nil
}

func (s *server) updateDepartment(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req departmentUpdate
	if err := decode(r, &req); err != nil {
		return err
	}
	d, err := s.svc.UpdateDepartment(r.Context(), p, req.ID, storage.DepartmentInput{Name: req.DepartmentName, Storage: req.Storage})
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusOK, newDepartmentResponse(d))
	return nil
}

func (s *server) deleteDepartment(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	id, err := pathID(r, "department_id")
	if err != nil {
		return err
	}
	if err := s.svc.DeleteDepartment(r.Context(), p, id); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *server) listUsers(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	users, err := s.svc.ListUsers(r.Context(), p)
	if err != nil {
		return err
	}
	res := make([]userResponse, 0, len(users))
	for _, u := range users {
		res = append(res, newUserResponse(u))
	}
	writeJSON(rw, http.StatusOK, res)
	return nil
}

func (s *server) createUser(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	var req userCreate
	if err := decode(r, &req); err != nil {
		return err
	}
	u, err := s.svc.CreateUser(r.Context(), p, storage.UserInput{
		DepartmentID: req.DepartmentID,
		PersonalID:   req.PersonalID,
		Name:         req.UserName,
		Storage:      req.Storage,
		Permission:   req.Permission,
		Admin:        req.Admin,
	})
	if err != nil {
		return err
	}
	writeJSON(rw, http.StatusCreated, newUserResponse(u))
	return nil
}

func (s *server) deleteUser(rw http.ResponseWriter, r *http.Request, p *auth.Principal) error {
	id, err := pathID(r, "user_id")
	if err != nil {
		return err
	}
	if err := s.svc.DeleteUser(r.Context(), p, id); err != nil {
		return err
	}
	rw.WriteHeader(http.StatusNoContent)
	return nil
}
