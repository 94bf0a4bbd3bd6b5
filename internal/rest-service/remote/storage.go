package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCopyPollAttempts = 10
	DefaultCopyPollInterval = time.Second
	DefaultParallelism      = 4
)

// Storage implements folder and rename protocols over a Backend.
type Storage struct {
	b        Backend
	tempDir  string
	attempts int
	interval time.Duration
	parallel int
	metrics  Metrics
	l        *log.Entry
}

type Option func(*Storage)

// WithCopyPolling bounds the wait for a server side copy.
func WithCopyPolling(attempts int, interval time.Duration) Option {
	return func(s *Storage) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if interval >= 0 {
			s.interval = interval
		}
	}
}

func WithTempDir(dir string) Option {
	return func(s *Storage) { s.tempDir = dir }
}

func WithMetrics(m Metrics) Option {
	return func(s *Storage) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithParallelism limits concurrent calls while walking a folder.
func WithParallelism(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.parallel = n
		}
	}
}

func NewStorage(b Backend, l *log.Entry, opts ...Option) *Storage {
	s := &Storage{
		b:        b,
		tempDir:  os.TempDir(),
		attempts: DefaultCopyPollAttempts,
		interval: DefaultCopyPollInterval,
		parallel: DefaultParallelism,
		metrics:  noopMetrics{},
		l:        l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) call(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveRemoteOperation(op, time.Since(start), err)
	return err
}

// CreateShare creates the namespace of a company. An existing share is reused.
func (s *Storage) CreateShare(ctx context.Context, share string) error {
	err := s.call("create_share", func() error { return s.b.CreateShare(ctx, share) })
	if errors.Is(err, ErrAlreadyExists) {
		s.l.WithField("share", share).Warning("share already exists, reusing it")
		return nil
	}
	return err
}

func (s *Storage) DeleteShare(ctx context.Context, share string) error {
	return s.call("delete_share", func() error { return s.b.DeleteShare(ctx, share) })
}

func (s *Storage) CreateFolder(ctx context.Context, share, p string) error {
	return s.call("create_directory", func() error { return s.b.CreateDirectory(ctx, share, CleanDir(p)) })
}

func (s *Storage) Exists(ctx context.Context, share, p string) (bool, error) {
	var ok bool
	err := s.call("directory_exists", func() (err error) {
		ok, err = s.b.DirectoryExists(ctx, share, CleanDir(p))
		return err
	})
	return ok, err
}

func (s *Storage) ListChildren(ctx context.Context, share, p string) ([]Entry, error) {
	var res []Entry
	err := s.call("list", func() (err error) {
		res, err = s.b.List(ctx, share, CleanDir(p))
		return err
	})
	return res, err
}

// DeleteFolder removes p and everything below it, children first.
func (s *Storage) DeleteFolder(ctx context.Context, share, p string) error {
	dir := CleanDir(p)
	if dir == "" {
		return fmt.Errorf("%w: the share root can't be deleted", ErrInvalidPath)
	}
	entries, err := s.ListChildren(ctx, share, dir)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallel)
	for _, e := range entries {
		if e.IsDirectory {
			eg.Go(func() error { return s.DeleteFolder(egCtx, share, Join(dir, e.Name)) })
			continue
		}
		eg.Go(func() error { return s.DeleteFile(egCtx, share, dir, e.Name) })
	}
	if err := eg.Wait(); err != nil {
		s.l.WithFields(log.Fields{"share": share, "path": dir}).WithError(err).Error("can't delete folder content")
		return err
	}
	return s.call("delete_directory", func() error { return s.b.DeleteDirectory(ctx, share, dir) })
}

// RenameFolder creates newPath, copies the tree of oldPath into it and then
// removes oldPath. When any copy fails the old tree is kept and the partial
// newPath tree is removed.
func (s *Storage) RenameFolder(ctx context.Context, share, oldPath, newPath string) error {
	src, dst := CleanDir(oldPath), CleanDir(newPath)
	if src == "" || dst == "" {
		return fmt.Errorf("%w: the share root can't be renamed", ErrInvalidPath)
	}
	if src == dst {
		return nil
	}
	if err := s.CreateFolder(ctx, share, dst); err != nil {
		return err
	}
	if err := s.copyTree(ctx, share, src, dst); err != nil {
		l := s.l.WithFields(log.Fields{"share": share, "from": src, "to": dst})
		l.WithError(err).Error("can't copy folder")
		if cleanupErr := s.DeleteFolder(context.WithoutCancel(ctx), share, dst); cleanupErr != nil {
			l.WithError(cleanupErr).Error("can't remove partial folder copy")
		}
		return err
	}
	return s.DeleteFolder(ctx, share, src)
}

func (s *Storage) copyTree(ctx context.Context, share, src, dst string) error {
	entries, err := s.ListChildren(ctx, share, src)
	if err != nil {
		return err
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallel)
	for _, e := range entries {
		if e.IsDirectory {
			eg.Go(func() error {
				child := Join(dst, e.Name)
				if err := s.CreateFolder(egCtx, share, child); err != nil {
					return err
				}
				return s.copyTree(egCtx, share, Join(src, e.Name), child)
			})
			continue
		}
		eg.Go(func() error { return s.copyFile(egCtx, share, src, e.Name, dst, e.Name) })
	}
	return eg.Wait()
}

func (s *Storage) copyFile(ctx context.Context, share, srcDir, srcName, dstDir, dstName string) error {
	if err := s.call("start_copy", func() error {
		return s.b.StartCopy(ctx, share, srcDir, srcName, dstDir, dstName)
	}); err != nil {
		return err
	}
	return s.waitCopy(ctx, share, dstDir, dstName)
}

func (s *Storage) waitCopy(ctx context.Context, share, dir, name string) error {
	l := s.l.WithFields(log.Fields{"share": share, "path": Join(dir, name)})
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var status CopyStatus
		if err := s.call("copy_status", func() (err error) {
			status, err = s.b.CopyStatus(ctx, share, dir, name)
			return err
		}); err != nil {
			return err
		}
		switch status {
		case CopySuccess:
			return nil
		case CopyFailed, CopyAborted:
			return fmt.Errorf("%w: status %s", ErrCopyFailed, status)
		}
		l.WithField("attempt", attempt).Debug("copy pending")
		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
	return fmt.Errorf("%w: %s after %d checks", ErrCopyTimeout, Join(dir, name), s.attempts)
}

// RenameFile copies the file to newName, waits for the copy and removes the
// original. The original is kept when the copy fails or times out.
func (s *Storage) RenameFile(ctx context.Context, share, dir, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	dir = CleanDir(dir)
	if err := s.copyFile(ctx, share, dir, oldName, dir, newName); err != nil {
		s.l.WithFields(log.Fields{"share": share, "dir": dir, "from": oldName, "to": newName}).
			WithError(err).Error("can't copy file")
		return err
	}
	return s.DeleteFile(ctx, share, dir, oldName)
}

func (s *Storage) UploadFile(ctx context.Context, share, dir, name string, content io.Reader, size int64) error {
	return s.call("upload_file", func() error {
		return s.b.UploadFile(ctx, share, CleanDir(dir), name, content, size)
	})
}

func (s *Storage) FileExists(ctx context.Context, share, dir, name string) (bool, error) {
	var ok bool
	err := s.call("file_exists", func() (err error) {
		ok, err = s.b.FileExists(ctx, share, CleanDir(dir), name)
		return err
	})
	return ok, err
}

func (s *Storage) DeleteFile(ctx context.Context, share, dir, name string) error {
	return s.call("delete_file", func() error { return s.b.DeleteFile(ctx, share, CleanDir(dir), name) })
}

// Download is file content spooled to a temporary file. Close removes it.
type Download struct {
	*os.File
	FileName string
	Size     int64
}

func (d *Download) Close() error {
	return errors.Join(d.File.Close(), os.Remove(d.File.Name()))
}

// DownloadFile fetches the content into a temporary file. The caller must
// Close the result; on error nothing is left behind.
func (s *Storage) DownloadFile(ctx context.Context, share, dir, name string) (*Download, error) {
	tmp, err := os.CreateTemp(s.tempDir, "cabinet-download-*")
	if err != nil {
		return nil, fmt.Errorf("can't create temp file: %w", err)
	}
	d := &Download{File: tmp, FileName: name}
	fail := func(err error) (*Download, error) {
		if cerr := d.Close(); cerr != nil {
			s.l.WithField("temp_file", tmp.Name()).WithError(cerr).Error("can't remove temp file")
		}
		return nil, err
	}

	if err := s.call("download_file", func() error {
		return s.b.DownloadFile(ctx, share, CleanDir(dir), name, tmp)
	}); err != nil {
		return fail(err)
	}
	if d.Size, err = tmp.Seek(0, io.SeekCurrent); err != nil {
		return fail(err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fail(err)
	}
	return d, nil
}
