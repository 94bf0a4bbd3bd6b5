package storage

import (
	"errors"
	"fmt"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrQuotaExceeded   = errors.New("storage quota exceeded")
	ErrForbidden       = errors.New("forbidden")
	ErrRemoteStorage   = errors.New("remote storage failure")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInconsistent means the remote store changed but the database write
	// after it failed.
	ErrInconsistent = errors.New("remote storage changed but database update failed")
	ErrInternal     = errors.New("internal error")
)

const (
	TierUser       = "user"
	TierDepartment = "department"
	TierCompany    = "company"
)

// QuotaError names the tier an upload would overflow.
type QuotaError struct {
	Tier  string
	Used  int64
	Size  int64
	Limit int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s tier, %d KB used + %d KB > %d KB", ErrQuotaExceeded, e.Tier, e.Used, e.Size, e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

func notFound(what string, err error) error {
	if database.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%w: can't load %s: %w", ErrInternal, what, err)
}

func remoteFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrRemoteStorage, err)
}

func internal(err error) error {
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
