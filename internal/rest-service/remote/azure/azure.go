// Package azure keeps company shares in Azure Files.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/directory"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/fileerror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
)

type Config struct {
	ConnectionString string `mapstructure:"connection_string" validate:"required"`
}

type Backend struct {
	svc *service.Client
	l   *log.Entry
}

func New(cfg Config, l *log.Entry) (*Backend, error) {
	svc, err := service.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("can't create azure file service client: %w", err)
	}
	return &Backend{svc: svc, l: l.WithField("remote", "azure")}, nil
}

// mapErr translates storage error codes into the remote sentinels.
func mapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case fileerror.HasCode(err, fileerror.ResourceNotFound, fileerror.ShareNotFound, fileerror.ParentNotFound):
		return fmt.Errorf("%w: %s: %w", remote.ErrNotFound, what, err)
	case fileerror.HasCode(err, fileerror.ResourceAlreadyExists, fileerror.ShareAlreadyExists):
		return fmt.Errorf("%w: %s: %w", remote.ErrAlreadyExists, what, err)
	case fileerror.HasCode(err, fileerror.DirectoryNotEmpty):
		return fmt.Errorf("%w: %s: %w", remote.ErrNotEmpty, what, err)
	case fileerror.HasCode(err, fileerror.InvalidResourceName):
		return fmt.Errorf("%w: %s: %w", remote.ErrInvalidPath, what, err)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func (b *Backend) dirClient(share, dir string) *directory.Client {
	c := b.svc.NewShareClient(share).NewRootDirectoryClient()
	for _, seg := range strings.Split(remote.CleanDir(dir), "/") {
		if seg != "" {
			c = c.NewSubdirectoryClient(seg)
		}
	}
	return c
}

func (b *Backend) fileClient(share, dir, name string) *file.Client {
	return b.dirClient(share, dir).NewFileClient(name)
}

func (b *Backend) CreateShare(ctx context.Context, share string) error {
	_, err := b.svc.NewShareClient(share).Create(ctx, nil)
	return mapErr(err, "share "+share)
}

func (b *Backend) DeleteShare(ctx context.Context, share string) error {
	_, err := b.svc.NewShareClient(share).Delete(ctx, nil)
	return mapErr(err, "share "+share)
}

func (b *Backend) CreateDirectory(ctx context.Context, share, dir string) error {
	_, err := b.dirClient(share, dir).Create(ctx, nil)
	return mapErr(err, "directory "+dir)
}

func (b *Backend) DeleteDirectory(ctx context.Context, share, dir string) error {
	_, err := b.dirClient(share, dir).Delete(ctx, nil)
	return mapErr(err, "directory "+dir)
}

func (b *Backend) DirectoryExists(ctx context.Context, share, dir string) (bool, error) {
	_, err := b.dirClient(share, dir).GetProperties(ctx, nil)
	return exists(mapErr(err, "directory "+dir))
}

func exists(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, remote.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (b *Backend) List(ctx context.Context, share, dir string) ([]remote.Entry, error) {
	var entries []remote.Entry
	pager := b.dirClient(share, dir).NewListFilesAndDirectoriesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapErr(err, "directory "+dir)
		}
		if page.Segment == nil {
			continue
		}
		for _, d := range page.Segment.Directories {
			if d.Name != nil {
				entries = append(entries, remote.Entry{Name: *d.Name, IsDirectory: true})
			}
		}
		for _, f := range page.Segment.Files {
			if f.Name != nil {
				entries = append(entries, remote.Entry{Name: *f.Name})
			}
		}
	}
	return entries, nil
}

func (b *Backend) UploadFile(ctx context.Context, share, dir, name string, content io.Reader, size int64) error {
	fc := b.fileClient(share, dir, name)
	what := "file " + remote.Join(dir, name)
	if _, err := fc.Create(ctx, size, nil); err != nil {
		return mapErr(err, what)
	}
	if size == 0 {
		return nil
	}
	if err := fc.UploadStream(ctx, content, nil); err != nil {
		b.l.WithField("path", remote.Join(dir, name)).WithError(err).Error("upload failed, removing partial file")
		if _, derr := fc.Delete(ctx, nil); derr != nil {
			b.l.WithError(derr).Error("can't remove partial file")
		}
		return mapErr(err, what)
	}
	return nil
}

func (b *Backend) DownloadFile(ctx context.Context, share, dir, name string, w io.Writer) error {
	what := "file " + remote.Join(dir, name)
	res, err := b.fileClient(share, dir, name).DownloadStream(ctx, nil)
	if err != nil {
		return mapErr(err, what)
	}
	defer res.Body.Close()
	if _, err := io.Copy(w, res.Body); err != nil {
		return fmt.Errorf("can't read %s: %w", what, err)
	}
	return nil
}

func (b *Backend) FileExists(ctx context.Context, share, dir, name string) (bool, error) {
	_, err := b.fileClient(share, dir, name).GetProperties(ctx, nil)
	return exists(mapErr(err, "file "+remote.Join(dir, name)))
}

func (b *Backend) DeleteFile(ctx context.Context, share, dir, name string) error {
	_, err := b.fileClient(share, dir, name).Delete(ctx, nil)
	return mapErr(err, "file "+remote.Join(dir, name))
}

func (b *Backend) StartCopy(ctx context.Context, share, srcDir, srcName, dstDir, dstName string) error {
	src := b.fileClient(share, srcDir, srcName)
	_, err := b.fileClient(share, dstDir, dstName).StartCopyFromURL(ctx, src.URL(), nil)
	return mapErr(err, "copy "+remote.Join(srcDir, srcName))
}

func (b *Backend) CopyStatus(ctx context.Context, share, dir, name string) (remote.CopyStatus, error) {
	props, err := b.fileClient(share, dir, name).GetProperties(ctx, nil)
	if err != nil {
		return "", mapErr(err, "file "+remote.Join(dir, name))
	}
	return copyStatus(props.CopyStatus), nil
}

// copyStatus treats a file without copy metadata as copied.
func copyStatus(s *file.CopyStatusType) remote.CopyStatus {
	if s == nil {
		return remote.CopySuccess
	}
	switch *s {
	case file.CopyStatusTypePending:
		return remote.CopyPending
	case file.CopyStatusTypeSuccess:
		return remote.CopySuccess
	case file.CopyStatusTypeAborted:
		return remote.CopyAborted
	default:
		return remote.CopyFailed
	}
}
