package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotEmpty      = errors.New("directory is not empty")

	ErrCantCreateStorage = errors.New("can't create storage dir")
	ErrCantWriteFile     = errors.New("can't write file")
)

const (
	CopyPending = "pending"
	CopySuccess = "success"
	CopyFailed  = "failed"
)

type Entry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
}

// DefaultCopyRetention is how long a finished copy keeps its status.
const DefaultCopyRetention = 10 * time.Minute

type copyState struct {
	status   string
	finished time.Time
}

// Storage keeps every share as a directory tree under path.
type Storage struct {
	path string
	l    *log.Entry
	// copies maps share/dst to *copyState.
	copies        sync.Map
	copyRetention time.Duration
}

func NewStorage(basePath string, l *log.Entry) (*Storage, error) {
	storagePath := filepath.Join(basePath, "shares")
	if err := os.MkdirAll(storagePath, fs.ModePerm); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCantCreateStorage, err)
	}
	return &Storage{
		path:          storagePath,
		l:             l.WithField("storage_base_path", storagePath),
		copyRetention: DefaultCopyRetention,
	}, nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// resolve maps a share relative path to the local filesystem.
func (s *Storage) resolve(share, p string) (string, error) {
	if !validSegment(share) {
		return "", fmt.Errorf("%w: share %q", ErrInvalidPath, share)
	}
	parts := []string{s.path, share}
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}
		if !validSegment(seg) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		parts = append(parts, seg)
	}
	return filepath.Join(parts...), nil
}

func notFound(err error, what string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (s *Storage) CreateShare(share string) error {
	p, err := s.resolve(share, "")
	if err != nil {
		return err
	}
	if err := os.Mkdir(p, fs.ModePerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: share %s", ErrAlreadyExists, share)
		}
		return err
	}
	return nil
}

func (s *Storage) DeleteShare(share string) error {
	p, err := s.resolve(share, "")
	if err != nil {
		return err
	}
	if !isDir(p) {
		return fmt.Errorf("%w: share %s", ErrNotFound, share)
	}
	return os.RemoveAll(p)
}

func (s *Storage) CreateDir(share, dir string) error {
	p, err := s.resolve(share, dir)
	if err != nil {
		return err
	}
	if !isDir(filepath.Dir(p)) {
		return fmt.Errorf("%w: parent of %s", ErrNotFound, dir)
	}
	if err := os.Mkdir(p, fs.ModePerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, dir)
		}
		return err
	}
	return nil
}

// DeleteDir removes an empty directory.
func (s *Storage) DeleteDir(share, dir string) error {
	p, err := s.resolve(share, dir)
	if err != nil {
		return err
	}
	root, _ := s.resolve(share, "")
	if p == root {
		return fmt.Errorf("%w: share root", ErrInvalidPath)
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return notFound(err, dir)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrNotEmpty, dir)
	}
	return os.Remove(p)
}

func (s *Storage) DirExists(share, dir string) (bool, error) {
	p, err := s.resolve(share, dir)
	if err != nil {
		return false, err
	}
	return isDir(p), nil
}

func (s *Storage) List(share, dir string) ([]Entry, error) {
	p, err := s.resolve(share, dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, notFound(err, dir)
	}
	res := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".upload-") {
			continue
		}
		res = append(res, Entry{Name: e.Name(), IsDirectory: e.IsDir()})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// SaveFile writes the file atomically; its directory must exist.
func (s *Storage) SaveFile(share, filePath string, file io.Reader) error {
	p, err := s.resolve(share, filePath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if !isDir(dir) {
		return fmt.Errorf("%w: directory of %s", ErrNotFound, filePath)
	}
	if isDir(p) {
		return fmt.Errorf("%w: %s is a directory", ErrAlreadyExists, filePath)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		s.l.WithField("dir", dir).WithError(err).Error(ErrCantWriteFile)
		return ErrCantWriteFile
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		s.l.WithField("file_path", filePath).WithError(err).Error(ErrCantWriteFile)
		return ErrCantWriteFile
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *Storage) GetFile(share, filePath string) (*os.File, error) {
	p, err := s.resolve(share, filePath)
	if err != nil {
		return nil, err
	}
	if !isFile(p) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, notFound(err, filePath)
	}
	return f, nil
}

func (s *Storage) FileExists(share, filePath string) (bool, error) {
	p, err := s.resolve(share, filePath)
	if err != nil {
		return false, err
	}
	return isFile(p), nil
}

func (s *Storage) DeleteFile(share, filePath string) error {
	p, err := s.resolve(share, filePath)
	if err != nil {
		return err
	}
	if !isFile(p) {
		return fmt.Errorf("%w: %s", ErrNotFound, filePath)
	}
	return os.Remove(p)
}

// StartCopy copies src to dst in the background. CopyStatus reports progress.
func (s *Storage) StartCopy(share, src, dst string) error {
	srcFile, err := s.GetFile(share, src)
	if err != nil {
		return err
	}
	dstPath, err := s.resolve(share, dst)
	if err != nil {
		_ = srcFile.Close()
		return err
	}
	if !isDir(filepath.Dir(dstPath)) {
		_ = srcFile.Close()
		return fmt.Errorf("%w: directory of %s", ErrNotFound, dst)
	}
	s.expireCopies(time.Now())
	key := copyKey(share, dst)
	s.copies.Store(key, &copyState{status: CopyPending})
	go func() {
		defer srcFile.Close()
		status := CopySuccess
		if err := s.SaveFile(share, dst, srcFile); err != nil {
			s.l.WithFields(log.Fields{"share": share, "from": src, "to": dst}).WithError(err).Error("copy failed")
			status = CopyFailed
		}
		s.copies.Store(key, &copyState{status: status, finished: time.Now()})
	}()
	return nil
}

func copyKey(share, dst string) string {
	return share + "/" + strings.Trim(dst, "/")
}

// expireCopies drops finished copies older than the retention.
func (s *Storage) expireCopies(now time.Time) {
	s.copies.Range(func(k, v any) bool {
		c := v.(*copyState)
		if !c.finished.IsZero() && now.Sub(c.finished) >= s.copyRetention {
			s.copies.CompareAndDelete(k, v)
		}
		return true
	})
}

// CopyStatus reports the last copy into dst. A file that exists without a
// recorded copy counts as copied, so a successful copy is forgotten once it
// has been reported.
func (s *Storage) CopyStatus(share, dst string) (string, error) {
	key := copyKey(share, dst)
	if v, ok := s.copies.Load(key); ok {
		c := v.(*copyState)
		if c.status == CopySuccess {
			s.copies.CompareAndDelete(key, v)
		}
		return c.status, nil
	}
	exists, err := s.FileExists(share, dst)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: no copy to %s", ErrNotFound, dst)
	}
	return CopySuccess, nil
}
