// Package fileshare is the remote backend for the storage-service nodes.
package fileshare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
)

const DefaultTimeout = 30 * time.Second

var ErrUnexpectedStatus = errors.New("unexpected storage node response")

type Config struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type requester interface {
	Do(req *http.Request) (*http.Response, error)
}

// Backend sends every call to one storage node over HTTP.
type Backend struct {
	baseURL string
	r       requester
	l       *log.Entry
}

func New(cfg Config, l *log.Entry) (*Backend, error) {
	if _, err := url.Parse(cfg.URL); err != nil || cfg.URL == "" {
		return nil, fmt.Errorf("invalid storage node url %q: %w", cfg.URL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Backend{
		baseURL: cfg.URL,
		r:       &http.Client{Timeout: timeout},
		l:       l.WithField("storage_node", cfg.URL),
	}, nil
}

// endpoint escapes every path segment so names keep their slashes out of the route.
func (b *Backend) endpoint(share, kind, p string) (string, error) {
	elems := []string{"shares", url.PathEscape(share)}
	if kind != "" {
		elems = append(elems, kind)
	}
	for _, seg := range strings.Split(remote.CleanDir(p), "/") {
		if seg != "" {
			elems = append(elems, url.PathEscape(seg))
		}
	}
	return url.JoinPath(b.baseURL, elems...)
}

func (b *Backend) do(ctx context.Context, method, share, kind, p string, body io.Reader, size int64) (*http.Response, error) {
	u, err := b.endpoint(share, kind, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrInvalidPath, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if size >= 0 && body != nil {
		req.ContentLength = size
	}
	res, err := b.r.Do(req)
	if err != nil {
		b.l.WithFields(log.Fields{"method": method, "url": u}).WithError(err).Error("storage node request failed")
		return nil, err
	}
	return res, nil
}

// expect closes the response unless it carries the wanted status, mapping
// the node's error codes. conflict is the error a 409 stands for.
func expect(res *http.Response, want int, conflict error) error {
	if res.StatusCode == want {
		return nil
	}
	defer res.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	detail := strings.TrimSpace(string(msg))
	switch res.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", remote.ErrNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", conflict, detail)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", remote.ErrInvalidPath, detail)
	default:
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, res.StatusCode, detail)
	}
}

func (b *Backend) call(ctx context.Context, method, share, kind, p string, body io.Reader, want int, conflict error) error {
	res, err := b.do(ctx, method, share, kind, p, body, -1)
	if err != nil {
		return err
	}
	if err := expect(res, want, conflict); err != nil {
		return err
	}
	_ = res.Body.Close()
	return nil
}

func (b *Backend) exists(ctx context.Context, share, kind, p string) (bool, error) {
	res, err := b.do(ctx, http.MethodHead, share, kind, p, nil, -1)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}
}

func (b *Backend) CreateShare(ctx context.Context, share string) error {
	return b.call(ctx, http.MethodPut, share, "", "", nil, http.StatusCreated, remote.ErrAlreadyExists)
}

func (b *Backend) DeleteShare(ctx context.Context, share string) error {
	return b.call(ctx, http.MethodDelete, share, "", "", nil, http.StatusNoContent, remote.ErrNotEmpty)
}

func (b *Backend) CreateDirectory(ctx context.Context, share, dir string) error {
	return b.call(ctx, http.MethodPut, share, "directories", dir, nil, http.StatusCreated, remote.ErrAlreadyExists)
}

func (b *Backend) DeleteDirectory(ctx context.Context, share, dir string) error {
	return b.call(ctx, http.MethodDelete, share, "directories", dir, nil, http.StatusNoContent, remote.ErrNotEmpty)
}

func (b *Backend) DirectoryExists(ctx context.Context, share, dir string) (bool, error) {
	return b.exists(ctx, share, "directories", dir)
}

func (b *Backend) List(ctx context.Context, share, dir string) ([]remote.Entry, error) {
	res, err := b.do(ctx, http.MethodGet, share, "directories", dir, nil, -1)
	if err != nil {
		return nil, err
	}
	if err := expect(res, http.StatusOK, remote.ErrAlreadyExists); err != nil {
		return nil, err
	}
	defer res.Body.Close()
	var entries []remote.Entry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("can't decode listing of %s/%s: %w", share, dir, err)
	}
	return entries, nil
}

func (b *Backend) UploadFile(ctx context.Context, share, dir, name string, content io.Reader, size int64) error {
	res, err := b.do(ctx, http.MethodPut, share, "files", remote.Join(dir, name), content, size)
	if err != nil {
		return err
	}
	if err := expect(res, http.StatusCreated, remote.ErrAlreadyExists); err != nil {
		return err
	}
	return res.Body.Close()
}

func (b *Backend) DownloadFile(ctx context.Context, share, dir, name string, w io.Writer) error {
	res, err := b.do(ctx, http.MethodGet, share, "files", remote.Join(dir, name), nil, -1)
	if err != nil {
		return err
	}
	if err := expect(res, http.StatusOK, remote.ErrAlreadyExists); err != nil {
		return err
	}
	defer res.Body.Close()
	if _, err := io.Copy(w, res.Body); err != nil {
		return fmt.Errorf("can't read %s from storage node: %w", remote.Join(dir, name), err)
	}
	return nil
}

func (b *Backend) FileExists(ctx context.Context, share, dir, name string) (bool, error) {
	return b.exists(ctx, share, "files", remote.Join(dir, name))
}

func (b *Backend) DeleteFile(ctx context.Context, share, dir, name string) error {
	return b.call(ctx, http.MethodDelete, share, "files", remote.Join(dir, name), nil, http.StatusNoContent, remote.ErrNotEmpty)
}

type copyRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type copyResponse struct {
	Status remote.CopyStatus `json:"status"`
}

func (b *Backend) StartCopy(ctx context.Context, share, srcDir, srcName, dstDir, dstName string) error {
	body, err := json.Marshal(copyRequest{Source: remote.Join(srcDir, srcName), Destination: remote.Join(dstDir, dstName)})
	if err != nil {
		return err
	}
	return b.call(ctx, http.MethodPost, share, "copies", "", bytes.NewReader(body), http.StatusAccepted, remote.ErrAlreadyExists)
}

func (b *Backend) CopyStatus(ctx context.Context, share, dir, name string) (remote.CopyStatus, error) {
	res, err := b.do(ctx, http.MethodGet, share, "copies", remote.Join(dir, name), nil, -1)
	if err != nil {
		return "", err
	}
	if err := expect(res, http.StatusOK, remote.ErrAlreadyExists); err != nil {
		return "", err
	}
	defer res.Body.Close()
	c := &copyResponse{}
	if err := json.NewDecoder(res.Body).Decode(c); err != nil {
		return "", fmt.Errorf("can't decode copy status: %w", err)
	}
	return c.Status, nil
}
