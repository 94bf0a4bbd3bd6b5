// Package remote talks to the hierarchical file share that holds file content.
//
// Backend is the primitive per-share API a provider offers. Storage layers the
// folder and rename protocols on top of any Backend.
package remote

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("remote object not found")
	ErrAlreadyExists = errors.New("remote object already exists")
	ErrNotEmpty      = errors.New("remote directory is not empty")
	ErrCopyFailed    = errors.New("remote copy failed")
	ErrCopyTimeout   = errors.New("remote copy did not complete in time")
	ErrInvalidPath   = errors.New("invalid remote path")
)

type CopyStatus string

const (
	CopyPending CopyStatus = "pending"
	CopySuccess CopyStatus = "success"
	CopyFailed  CopyStatus = "failed"
	CopyAborted CopyStatus = "aborted"
)

// Entry is a child of a remote directory.
type Entry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
}

// Backend is implemented by every remote provider. Directory paths are
// slash separated and relative to the share root, "" being the root itself.
//
//go:generate mockgen -destination=mock_remote/backend.go -package=mock_remote . Backend
type Backend interface {
	CreateShare(ctx context.Context, share string) error
	DeleteShare(ctx context.Context, share string) error

	// CreateDirectory fails with ErrAlreadyExists, or ErrNotFound when the parent is missing.
	CreateDirectory(ctx context.Context, share, dir string) error
	// DeleteDirectory removes an empty directory.
	DeleteDirectory(ctx context.Context, share, dir string) error
	DirectoryExists(ctx context.Context, share, dir string) (bool, error)
	List(ctx context.Context, share, dir string) ([]Entry, error)

	UploadFile(ctx context.Context, share, dir, name string, content io.Reader, size int64) error
	DownloadFile(ctx context.Context, share, dir, name string, w io.Writer) error
	FileExists(ctx context.Context, share, dir, name string) (bool, error)
	DeleteFile(ctx context.Context, share, dir, name string) error

	// StartCopy begins a server side copy, CopyStatus reports its progress on the destination.
	StartCopy(ctx context.Context, share, srcDir, srcName, dstDir, dstName string) error
	CopyStatus(ctx context.Context, share, dir, name string) (CopyStatus, error)
}

// Metrics observes every backend call.
type Metrics interface {
	ObserveRemoteOperation(operation string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRemoteOperation(string, time.Duration, error) {}

// CleanDir normalizes a directory path: no leading or trailing slash.
func CleanDir(dir string) string {
	return strings.Trim(dir, "/")
}

// Join builds the slash separated path of name inside dir.
func Join(dir, name string) string {
	dir = CleanDir(dir)
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Split is the inverse of Join.
func Split(p string) (dir, name string) {
	p = CleanDir(p)
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
