// Package storage keeps the relational mirror of company directories and
// files in step with the remote file share.
//
// Every mutating operation calls the remote store first and writes the
// database second, in one transaction. A database failure after a remote
// change is reported as ErrInconsistent.
package storage

import (
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/hierarchy"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
)

// RemoteStorage is the file share holding the bytes, one share per company.
type RemoteStorage interface {
	CreateShare(ctx context.Context, share string) error
	DeleteShare(ctx context.Context, share string) error
	CreateFolder(ctx context.Context, share, p string) error
	DeleteFolder(ctx context.Context, share, p string) error
	RenameFolder(ctx context.Context, share, oldPath, newPath string) error
	ListChildren(ctx context.Context, share, p string) ([]remote.Entry, error)
	UploadFile(ctx context.Context, share, dir, name string, content io.Reader, size int64) error
	DownloadFile(ctx context.Context, share, dir, name string) (*remote.Download, error)
	RenameFile(ctx context.Context, share, dir, oldName, newName string) error
	DeleteFile(ctx context.Context, share, dir, name string) error
}

// QuotaMetrics counts rejected uploads per tier.
type QuotaMetrics interface {
	QuotaRejected(tier string)
}

type noopQuotaMetrics struct{}

func (noopQuotaMetrics) QuotaRejected(string) {}

type Server struct {
	repo    *database.Repository
	rs      RemoteStorage
	metrics QuotaMetrics
	now     func() time.Time
	l       *log.Entry
}

func NewServer(repo *database.Repository, rs RemoteStorage, l *log.Entry) *Server {
	return &Server{
		repo:    repo,
		rs:      rs,
		metrics: noopQuotaMetrics{},
		now:     time.Now,
		l:       l,
	}
}

// WithQuotaMetrics replaces the quota rejection counter.
func (s *Server) WithQuotaMetrics(m QuotaMetrics) *Server {
	if m != nil {
		s.metrics = m
	}
	return s
}

func (s *Server) logger(p *auth.Principal) *log.Entry {
	return s.l.WithFields(log.Fields{"user_id": p.UserID, "company_id": p.CompanyID})
}

func (s *Server) shareName(ctx context.Context, companyID uint) (string, error) {
	c, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return "", notFound("company", err)
	}
	return c.StorageName, nil
}

// remoteDir is the remote folder of d, "" for the company root.
func remoteDir(d *database.Directory) string {
	p, _, ok := hierarchy.ResolvePath(d.Node())
	if !ok {
		return ""
	}
	return p
}

// accessible applies the open_flg rule: the root and public directories are
// open to the whole company, private ones need a permission row.
func (s *Server) accessible(ctx context.Context, p *auth.Principal, d *database.Directory) (bool, error) {
	if d.Class == hierarchy.RootClass || !d.Private {
		return true, nil
	}
	granted, err := s.repo.PermittedDirectories(ctx, p.UserID, []uint{d.ID})
	if err != nil {
		return false, internal(err)
	}
	return granted[d.ID], nil
}

// directoryFor loads an active directory of the principal's company the
// principal may access. Zero id stands for the company root.
func (s *Server) directoryFor(ctx context.Context, p *auth.Principal, id uint) (*database.Directory, error) {
	var (
		d   *database.Directory
		err error
	)
	if id == 0 {
		d, err = s.repo.GetRootDirectory(ctx, p.CompanyID)
	} else {
		d, err = s.repo.GetDirectory(ctx, p.CompanyID, id)
	}
	if err != nil {
		return nil, notFound("directory", err)
	}
	ok, err := s.accessible(ctx, p, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return d, nil
}
