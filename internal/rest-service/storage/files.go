package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/hierarchy"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
)

const maxFileName = 255

func validFileName(name string) error {
	if !hierarchy.ValidName(name) || utf8.RuneCountInString(name) > maxFileName {
		return fmt.Errorf("%w: file name %q", ErrInvalidArgument, name)
	}
	return nil
}

// checkQuota runs the user, department and company checks in that order and
// reports the first tier sizeKB would overflow.
func (s *Server) checkQuota(ctx context.Context, p *auth.Principal, sizeKB int64) error {
	used, err := s.repo.UserUsage(ctx, p.UserID)
	if err != nil {
		return internal(err)
	}
	if used+sizeKB > p.Storage {
		return &QuotaError{Tier: TierUser, Used: used, Size: sizeKB, Limit: p.Storage}
	}

	dep, err := s.repo.GetDepartment(ctx, p.CompanyID, p.DepartmentID)
	if err != nil {
		return notFound("department", err)
	}
	if used, err = s.repo.DepartmentUsage(ctx, dep.ID); err != nil {
		return internal(err)
	}
	if used+sizeKB > dep.Storage {
		return &QuotaError{Tier: TierDepartment, Used: used, Size: sizeKB, Limit: dep.Storage}
	}

	company, err := s.repo.GetCompany(ctx, p.CompanyID)
	if err != nil {
		return notFound("company", err)
	}
	if used, err = s.repo.CompanyUsage(ctx, company.ID); err != nil {
		return internal(err)
	}
	if used+sizeKB > company.Storage {
		return &QuotaError{Tier: TierCompany, Used: used, Size: sizeKB, Limit: company.Storage}
	}
	return nil
}

// Upload stores content as name in the directory. An active file with the
// same name is overwritten in place and its row reused.
func (s *Server) Upload(ctx context.Context, p *auth.Principal, directoryID uint, name string, content io.Reader, size int64) (*database.File, error) {
	if err := validFileName(name); err != nil {
		return nil, err
	}
	d, err := s.directoryFor(ctx, p, directoryID)
	if err != nil {
		return nil, err
	}
	sizeKB := SizeKB(size)
	l := s.logger(p).WithFields(log.Fields{"directory_id": d.ID, "file": name, "size_kb": sizeKB})

	if err := s.checkQuota(ctx, p, sizeKB); err != nil {
		var qe *QuotaError
		if errors.As(err, &qe) {
			s.metrics.QuotaRejected(qe.Tier)
			l.WithField("tier", qe.Tier).Info("upload rejected by quota")
		}
		return nil, err
	}

	ft, err := s.repo.FindFileType(ctx, extension(name))
	if err != nil {
		return nil, internal(err)
	}
	var ftID *uint
	if ft != nil {
		ftID = &ft.ID
	}
	existing, err := s.findFile(ctx, d.ID, name)
	if err != nil {
		return nil, err
	}
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}

	if err := s.rs.UploadFile(ctx, share, remoteDir(d), name, content, size); err != nil {
		l.WithError(err).Error("can't upload file")
		return nil, remoteFailure(err)
	}

	now := s.now()
	if existing != nil {
		if err := s.repo.OverwriteFile(ctx, existing.ID, sizeKB, ftID, now, p.UserID); err != nil {
			l.WithError(err).Error("file uploaded but row was not updated")
			return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
		}
		existing.Size, existing.FileTypeID, existing.FileType = sizeKB, ftID, ft
		existing.FileUpdateAt, existing.UserID = now, p.UserID
		l.WithField("file_id", existing.ID).Info("file overwritten")
		return existing, nil
	}

	f := &database.File{
		DirectoryID:  d.ID,
		UserID:       p.UserID,
		Name:         name,
		Size:         sizeKB,
		FileTypeID:   ftID,
		FileType:     ft,
		FileUpdateAt: now,
		Audit:        database.Audit{CreateAcc: &p.UserID, UpdateAcc: &p.UserID},
	}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		l.WithError(err).Error("file uploaded but row was not created")
		return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	l.WithField("file_id", f.ID).Info("file uploaded")
	return f, nil
}

// findFile returns the active file called name in the directory, nil if there is none.
func (s *Server) findFile(ctx context.Context, directoryID uint, name string) (*database.File, error) {
	f, err := s.repo.FindFileByName(ctx, directoryID, name)
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, internal(err)
	}
	return f, nil
}

// fileFor loads an active file of the principal's company in a directory the
// principal may access.
func (s *Server) fileFor(ctx context.Context, p *auth.Principal, id uint) (*database.File, error) {
	f, err := s.repo.GetFile(ctx, p.CompanyID, id)
	if err != nil {
		return nil, notFound("file", err)
	}
	ok, err := s.accessible(ctx, p, f.Directory)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return f, nil
}

// RenameFile copies the remote file to the new name and removes the old one.
func (s *Server) RenameFile(ctx context.Context, p *auth.Principal, id uint, name string) (*database.File, error) {
	if err := validFileName(name); err != nil {
		return nil, err
	}
	f, err := s.fileFor(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if f.Name == name {
		return f, nil
	}
	other, err := s.findFile(ctx, f.DirectoryID, name)
	if err != nil {
		return nil, err
	}
	if other != nil {
		return nil, fmt.Errorf("%w: file %q already exists", ErrConflict, name)
	}
	ft, err := s.repo.FindFileType(ctx, extension(name))
	if err != nil {
		return nil, internal(err)
	}
	var ftID *uint
	if ft != nil {
		ftID = &ft.ID
	}
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}

	dir := remoteDir(f.Directory)
	l := s.logger(p).WithFields(log.Fields{"file_id": f.ID, "dir": dir, "from": f.Name, "to": name})
	if err := s.rs.RenameFile(ctx, share, dir, f.Name, name); err != nil {
		l.WithError(err).Error("can't rename remote file")
		return nil, remoteFailure(err)
	}
	if err := s.repo.RenameFile(ctx, f.ID, name, ftID, p.UserID); err != nil {
		l.WithError(err).Error("remote file renamed but row was not")
		return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	f.Name, f.FileTypeID, f.FileType = name, ftID, ft
	l.Info("file renamed")
	return f, nil
}

func (s *Server) DeleteFile(ctx context.Context, p *auth.Principal, id uint) error {
	f, err := s.fileFor(ctx, p, id)
	if err != nil {
		return err
	}
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return err
	}
	dir := remoteDir(f.Directory)
	l := s.logger(p).WithFields(log.Fields{"file_id": f.ID, "dir": dir, "file": f.Name})
	if err := s.rs.DeleteFile(ctx, share, dir, f.Name); err != nil {
		l.WithError(err).Error("can't delete remote file")
		return remoteFailure(err)
	}
	if err := s.repo.SoftDeleteFile(ctx, f.ID, p.UserID); err != nil {
		l.WithError(err).Error("remote file deleted but row was not")
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	l.Info("file deleted")
	return nil
}

// DownloadFile spools the content to a temporary file. The caller must Close
// the result once it has been sent.
func (s *Server) DownloadFile(ctx context.Context, p *auth.Principal, id uint) (*remote.Download, error) {
	f, err := s.fileFor(ctx, p, id)
	if err != nil {
		return nil, err
	}
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}
	d, err := s.rs.DownloadFile(ctx, share, remoteDir(f.Directory), f.Name)
	if err != nil {
		s.logger(p).WithField("file_id", f.ID).WithError(err).Error("can't download file")
		return nil, remoteFailure(err)
	}
	return d, nil
}

// ListFiles returns the visible child directories of directoryID followed by
// its files, each group sorted by name.
func (s *Server) ListFiles(ctx context.Context, p *auth.Principal, directoryID uint) ([]Entry, error) {
	d, err := s.directoryFor(ctx, p, directoryID)
	if err != nil {
		return nil, err
	}
	children, err := s.repo.ListChildDirectories(ctx, p.CompanyID, hierarchy.StoredPath(hierarchy.ChildPath(d.Node())))
	if err != nil {
		return nil, internal(err)
	}
	if children, err = s.visibleChildren(ctx, p, children); err != nil {
		return nil, err
	}
	files, err := s.repo.ListFiles(ctx, d.ID)
	if err != nil {
		return nil, internal(err)
	}
	sort.SliceStable(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	res := make([]Entry, 0, len(children)+len(files))
	for _, c := range children {
		res = append(res, directoryEntry(c))
	}
	for _, f := range files {
		res = append(res, fileEntry(f))
	}
	return res, nil
}
