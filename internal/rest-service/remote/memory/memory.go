// Package memory is an in-process remote backend for tests and local runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
)

type share struct {
	dirs   map[string]bool
	files  map[string][]byte
	copies map[string]*pendingCopy
}

type pendingCopy struct {
	polls  int
	status remote.CopyStatus
	data   []byte
}

// Backend keeps shares in memory. Safe for concurrent use.
type Backend struct {
	mu        sync.Mutex
	shares    map[string]*share
	copyPolls int
	copyFinal remote.CopyStatus
	failures  map[string]error
}

type Option func(*Backend)

// WithCopyDelay makes a copy report pending for polls status checks before
// reaching final.
func WithCopyDelay(polls int, final remote.CopyStatus) Option {
	return func(b *Backend) {
		b.copyPolls = polls
		b.copyFinal = final
	}
}

func New(opts ...Option) *Backend {
	b := &Backend{
		shares:    map[string]*share{},
		copyFinal: remote.CopySuccess,
		failures:  map[string]error{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FailOn makes every later call of operation return err. A nil err clears it.
func (b *Backend) FailOn(operation string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, operation)
		return
	}
	b.failures[operation] = err
}

func (b *Backend) get(op, name string) (*share, error) {
	if err := b.failures[op]; err != nil {
		return nil, err
	}
	s, ok := b.shares[name]
	if !ok {
		return nil, fmt.Errorf("%w: share %s", remote.ErrNotFound, name)
	}
	return s, nil
}

func (b *Backend) CreateShare(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failures["create_share"]; err != nil {
		return err
	}
	if _, ok := b.shares[name]; ok {
		return fmt.Errorf("%w: share %s", remote.ErrAlreadyExists, name)
	}
	b.shares[name] = &share{
		dirs:   map[string]bool{"": true},
		files:  map[string][]byte{},
		copies: map[string]*pendingCopy{},
	}
	return nil
}

func (b *Backend) DeleteShare(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.get("delete_share", name); err != nil {
		return err
	}
	delete(b.shares, name)
	return nil
}

func (b *Backend) CreateDirectory(_ context.Context, name, dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("create_directory", name)
	if err != nil {
		return err
	}
	if s.dirs[dir] {
		return fmt.Errorf("%w: %s", remote.ErrAlreadyExists, dir)
	}
	parent, _ := remote.Split(dir)
	if !s.dirs[parent] {
		return fmt.Errorf("%w: parent of %s", remote.ErrNotFound, dir)
	}
	s.dirs[dir] = true
	return nil
}

func (b *Backend) DeleteDirectory(_ context.Context, name, dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("delete_directory", name)
	if err != nil {
		return err
	}
	if dir == "" || !s.dirs[dir] {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, dir)
	}
	if len(s.children(dir)) > 0 {
		return fmt.Errorf("%w: %s", remote.ErrNotEmpty, dir)
	}
	delete(s.dirs, dir)
	return nil
}

func (b *Backend) DirectoryExists(_ context.Context, name, dir string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("directory_exists", name)
	if err != nil {
		return false, err
	}
	return s.dirs[dir], nil
}

func (s *share) children(dir string) []remote.Entry {
	var res []remote.Entry
	for d := range s.dirs {
		if d == "" {
			continue
		}
		if parent, child := remote.Split(d); parent == dir {
			res = append(res, remote.Entry{Name: child, IsDirectory: true})
		}
	}
	for f := range s.files {
		if parent, child := remote.Split(f); parent == dir {
			res = append(res, remote.Entry{Name: child})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

func (b *Backend) List(_ context.Context, name, dir string) ([]remote.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("list", name)
	if err != nil {
		return nil, err
	}
	if !s.dirs[dir] {
		return nil, fmt.Errorf("%w: %s", remote.ErrNotFound, dir)
	}
	return s.children(dir), nil
}

func (b *Backend) UploadFile(_ context.Context, name, dir, file string, content io.Reader, _ int64) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("upload_file", name)
	if err != nil {
		return err
	}
	if !s.dirs[dir] {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, dir)
	}
	s.files[remote.Join(dir, file)] = data
	return nil
}

func (b *Backend) DownloadFile(_ context.Context, name, dir, file string, w io.Writer) error {
	b.mu.Lock()
	s, err := b.get("download_file", name)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	data, ok := s.files[remote.Join(dir, file)]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, remote.Join(dir, file))
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	return err
}

func (b *Backend) FileExists(_ context.Context, name, dir, file string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("file_exists", name)
	if err != nil {
		return false, err
	}
	_, ok := s.files[remote.Join(dir, file)]
	return ok, nil
}

func (b *Backend) DeleteFile(_ context.Context, name, dir, file string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("delete_file", name)
	if err != nil {
		return err
	}
	p := remote.Join(dir, file)
	if _, ok := s.files[p]; !ok {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, p)
	}
	delete(s.files, p)
	return nil
}

func (b *Backend) StartCopy(_ context.Context, name, srcDir, srcName, dstDir, dstName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("start_copy", name)
	if err != nil {
		return err
	}
	data, ok := s.files[remote.Join(srcDir, srcName)]
	if !ok {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, remote.Join(srcDir, srcName))
	}
	if !s.dirs[dstDir] {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, dstDir)
	}
	c := &pendingCopy{polls: b.copyPolls, status: b.copyFinal, data: bytes.Clone(data)}
	dst := remote.Join(dstDir, dstName)
	s.copies[dst] = c
	if c.polls == 0 {
		s.finish(dst, c)
	}
	return nil
}

func (s *share) finish(dst string, c *pendingCopy) {
	if c.status == remote.CopySuccess {
		s.files[dst] = c.data
	}
}

func (b *Backend) CopyStatus(_ context.Context, name, dir, file string) (remote.CopyStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.get("copy_status", name)
	if err != nil {
		return "", err
	}
	dst := remote.Join(dir, file)
	c, ok := s.copies[dst]
	if !ok {
		if _, exists := s.files[dst]; exists {
			return remote.CopySuccess, nil
		}
		return "", fmt.Errorf("%w: no copy to %s", remote.ErrNotFound, dst)
	}
	if c.polls > 0 {
		c.polls--
		if c.polls == 0 {
			s.finish(dst, c)
		}
		return remote.CopyPending, nil
	}
	return c.status, nil
}

// Paths returns every directory and file of a share, directories with a
// trailing slash. Used by tests to compare whole trees.
func (b *Backend) Paths(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.shares[name]
	if !ok {
		return nil
	}
	var res []string
	for d := range s.dirs {
		if d != "" {
			res = append(res, d+"/")
		}
	}
	for f := range s.files {
		res = append(res, f)
	}
	sort.Strings(res)
	return res
}

// Content returns the bytes of a file, nil when it does not exist.
func (b *Backend) Content(name, p string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.shares[name]; ok {
		return s.files[strings.Trim(p, "/")]
	}
	return nil
}
