package storage

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/hierarchy"
)

func (s *Server) permissionTargets(ctx context.Context, p *auth.Principal, userID, directoryID uint) (*database.User, *database.Directory, error) {
	if !p.CanGrant() {
		return nil, nil, fmt.Errorf("%w: permission management is not allowed", ErrForbidden)
	}
	u, err := s.repo.GetUser(ctx, p.CompanyID, userID)
	if err != nil {
		return nil, nil, notFound("user", err)
	}
	d, err := s.repo.GetDirectory(ctx, p.CompanyID, directoryID)
	if err != nil {
		return nil, nil, notFound("directory", err)
	}
	if d.Class == hierarchy.RootClass {
		return nil, nil, fmt.Errorf("%w: the company root needs no permission", ErrInvalidArgument)
	}
	return u, d, nil
}

// GrantPermission lets userID see a private directory. Granting twice is a no-op.
func (s *Server) GrantPermission(ctx context.Context, p *auth.Principal, userID, directoryID uint) error {
	u, d, err := s.permissionTargets(ctx, p, userID, directoryID)
	if err != nil {
		return err
	}
	if err := s.repo.GrantPermission(ctx, u.ID, d.ID); err != nil {
		return internal(err)
	}
	s.logger(p).WithFields(log.Fields{"target_user_id": u.ID, "directory_id": d.ID}).Info("permission granted")
	return nil
}

func (s *Server) RevokePermission(ctx context.Context, p *auth.Principal, userID, directoryID uint) error {
	u, d, err := s.permissionTargets(ctx, p, userID, directoryID)
	if err != nil {
		return err
	}
	if err := s.repo.RevokePermission(ctx, u.ID, d.ID); err != nil {
		return notFound("permission", err)
	}
	s.logger(p).WithFields(log.Fields{"target_user_id": u.ID, "directory_id": d.ID}).Info("permission revoked")
	return nil
}
