package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const (
	fieldNameShare = "share"
	fieldNamePath  = "path"
)

var (
	errNoShare        = errors.New("share has not been provided")
	errNoPath         = errors.New("path has not been provided")
	errCantParseCopy  = errors.New("can't parse copy request")
	errIncompleteCopy = errors.New("copy request needs source and destination")
)

type requestData struct {
	share string
	path  string
	body  io.ReadCloser
	copy  *copyRequest
	l     *log.Entry
}

type copyRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// newRequestData reads the share and path values. needPath rejects requests
// addressing the share root.
func newRequestData(r *http.Request, logger *log.Entry, needPath bool) (*requestData, error) {
	rd := &requestData{
		share: r.PathValue(fieldNameShare),
		path:  r.PathValue(fieldNamePath),
		body:  r.Body,
	}
	rd.l = logger.WithFields(log.Fields{
		fieldNameShare: rd.share,
		fieldNamePath:  rd.path,
		"method":       r.Method,
	})
	if rd.share == "" {
		rd.l.Error(errNoShare)
		return nil, errNoShare
	}
	if needPath && rd.path == "" {
		rd.l.Error(errNoPath)
		return nil, errNoPath
	}
	return rd, nil
}

func (rd *requestData) parseCopy() error {
	c := &copyRequest{}
	if err := json.NewDecoder(rd.body).Decode(c); err != nil {
		rd.l.WithError(err).Error(errCantParseCopy)
		return errCantParseCopy
	}
	if c.Source == "" || c.Destination == "" {
		rd.l.Error(errIncompleteCopy)
		return errIncompleteCopy
	}
	rd.copy = c
	rd.l = rd.l.WithFields(log.Fields{"source": c.Source, "destination": c.Destination})
	return nil
}
