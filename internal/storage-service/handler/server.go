package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/storage-service/storage"
)

const (
	urlPatternShare     = "/shares/{share}"
	urlPatternDirectory = "/shares/{share}/directories/{path...}"
	urlPatternFile      = "/shares/{share}/files/{path...}"
	urlPatternCopies    = "/shares/{share}/copies"
	urlPatternCopy      = "/shares/{share}/copies/{path...}"
)

type Storage interface {
	CreateShare(share string) error
	DeleteShare(share string) error
	CreateDir(share, dir string) error
	DeleteDir(share, dir string) error
	DirExists(share, dir string) (bool, error)
	List(share, dir string) ([]storage.Entry, error)
	SaveFile(share, filePath string, file io.Reader) error
	GetFile(share, filePath string) (*os.File, error)
	FileExists(share, filePath string) (bool, error)
	DeleteFile(share, filePath string) error
	StartCopy(share, src, dst string) error
	CopyStatus(share, dst string) (string, error)
}

type handlerFunc func(rw http.ResponseWriter, r *http.Request, rd *requestData)

func NewHandler(s Storage, l *log.Entry) *http.ServeMux {
	handler := http.NewServeMux()
	route := func(pattern string, needPath bool, h handlerFunc) {
		handler.HandleFunc(pattern, func(rw http.ResponseWriter, r *http.Request) {
			rd, err := newRequestData(r, l.WithField("client", r.RemoteAddr), needPath)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
			h(rw, r, rd)
		})
	}

	route("PUT "+urlPatternShare, false, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		respond(rw, rd, http.StatusCreated, s.CreateShare(rd.share))
	})
	route("DELETE "+urlPatternShare, false, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		respond(rw, rd, http.StatusNoContent, s.DeleteShare(rd.share))
	})

	route("PUT "+urlPatternDirectory, true, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		respond(rw, rd, http.StatusCreated, s.CreateDir(rd.share, rd.path))
	})
	route("DELETE "+urlPatternDirectory, true, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		respond(rw, rd, http.StatusNoContent, s.DeleteDir(rd.share, rd.path))
	})
	route("HEAD "+urlPatternDirectory, false, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		ok, err := s.DirExists(rd.share, rd.path)
		exists(rw, rd, ok, err)
	})
	route("GET "+urlPatternDirectory, false, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		entries, err := s.List(rd.share, rd.path)
		if err != nil {
			respond(rw, rd, 0, err)
			return
		}
		writeJSON(rw, rd, entries)
	})

	route("PUT "+urlPatternFile, true, func(rw http.ResponseWriter, r *http.Request, rd *requestData) {
		defer r.Body.Close()
		respond(rw, rd, http.StatusCreated, s.SaveFile(rd.share, rd.path, r.Body))
	})
	route("HEAD "+urlPatternFile, true, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		ok, err := s.FileExists(rd.share, rd.path)
		exists(rw, rd, ok, err)
	})
	route("GET "+urlPatternFile, true, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		f, err := s.GetFile(rd.share, rd.path)
		if err != nil {
			respond(rw, rd, 0, err)
			return
		}
		defer f.Close()
		rw.Header().Set("Content-Type", "application/octet-stream")
		if i, err := io.Copy(rw, f); err != nil {
			rd.l.WithError(err).Error("can't send file")
		} else {
			rd.l.WithField("size", i).Debug("file sent")
		}
	})
	route("DELETE "+urlPatternFile, true, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		respond(rw, rd, http.StatusNoContent, s.DeleteFile(rd.share, rd.path))
	})

	route("POST "+urlPatternCopies, false, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		if err := rd.parseCopy(); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		respond(rw, rd, http.StatusAccepted, s.StartCopy(rd.share, rd.copy.Source, rd.copy.Destination))
	})
	route("GET "+urlPatternCopy, true, func(rw http.ResponseWriter, _ *http.Request, rd *requestData) {
		status, err := s.CopyStatus(rd.share, rd.path)
		if err != nil {
			respond(rw, rd, 0, err)
			return
		}
		writeJSON(rw, rd, map[string]string{"status": status})
	})

	return handler
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists), errors.Is(err, storage.ErrNotEmpty):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respond(rw http.ResponseWriter, rd *requestData, success int, err error) {
	if err != nil {
		code := statusOf(err)
		l := rd.l.WithError(err).WithField("status", code)
		if code == http.StatusInternalServerError {
			l.Error("request failed")
		} else {
			l.Info("request rejected")
		}
		http.Error(rw, err.Error(), code)
		return
	}
	rd.l.WithField("status", success).Info("request done")
	rw.WriteHeader(success)
}

func exists(rw http.ResponseWriter, rd *requestData, ok bool, err error) {
	switch {
	case err != nil:
		rw.WriteHeader(statusOf(err))
	case !ok:
		rw.WriteHeader(http.StatusNotFound)
	default:
		rw.WriteHeader(http.StatusOK)
	}
	rd.l.WithField("exists", ok).Debug("existence checked")
}

func writeJSON(rw http.ResponseWriter, rd *requestData, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		rd.l.WithError(err).Error("can't encode response")
	}
}
