package storage

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
)

// ListFavorites skips favorites whose directory is deleted or no longer accessible.
func (s *Server) ListFavorites(ctx context.Context, p *auth.Principal) ([]*database.Favorite, error) {
	favs, err := s.repo.ListFavorites(ctx, p.UserID)
	if err != nil {
		return nil, internal(err)
	}
	var private []uint
	for _, f := range favs {
		if f.Directory != nil && f.Directory.Private {
			private = append(private, f.Directory.ID)
		}
	}
	granted, err := s.repo.PermittedDirectories(ctx, p.UserID, private)
	if err != nil {
		return nil, internal(err)
	}
	res := make([]*database.Favorite, 0, len(favs))
	for _, f := range favs {
		d := f.Directory
		if d == nil || d.Deleted || d.CompanyID != p.CompanyID {
			continue
		}
		if d.Private && !granted[d.ID] {
			continue
		}
		res = append(res, f)
	}
	return res, nil
}

func (s *Server) checkFavorite(ctx context.Context, p *auth.Principal, name string, directoryID, excludeID uint) (*database.Directory, error) {
	if err := validTenancyName("favorite", name); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(name) > maxDirectoryName {
		return nil, fmt.Errorf("%w: favorite name %q", ErrInvalidArgument, name)
	}
	d, err := s.directoryFor(ctx, p, directoryID)
	if err != nil {
		return nil, err
	}
	taken, err := s.repo.FavoriteNameTaken(ctx, p.UserID, name, excludeID)
	if err != nil {
		return nil, internal(err)
	}
	if taken {
		return nil, fmt.Errorf("%w: favorite %q already exists", ErrConflict, name)
	}
	return d, nil
}

func (s *Server) AddFavorite(ctx context.Context, p *auth.Principal, name string, directoryID uint) (*database.Favorite, error) {
	d, err := s.checkFavorite(ctx, p, name, directoryID, 0)
	if err != nil {
		return nil, err
	}
	f := &database.Favorite{
		UserID:      p.UserID,
		DirectoryID: d.ID,
		Directory:   d,
		Name:        name,
		Audit:       database.Audit{CreateAcc: &p.UserID, UpdateAcc: &p.UserID},
	}
	if err := s.repo.CreateFavorite(ctx, f); err != nil {
		return nil, internal(err)
	}
	return f, nil
}

// UpdateFavorite renames a favorite and points it at directoryID, zero
// keeping the current directory.
func (s *Server) UpdateFavorite(ctx context.Context, p *auth.Principal, id uint, name string, directoryID uint) (*database.Favorite, error) {
	f, err := s.repo.GetFavorite(ctx, p.UserID, id)
	if err != nil {
		return nil, notFound("favorite", err)
	}
	if directoryID == 0 {
		directoryID = f.DirectoryID
	}
	d, err := s.checkFavorite(ctx, p, name, directoryID, f.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFavorite(ctx, f.ID, name, d.ID, p.UserID); err != nil {
		return nil, internal(err)
	}
	f.Name, f.DirectoryID, f.Directory = name, d.ID, d
	return f, nil
}

// DeleteFavorite works whatever the state of the directory it points at.
func (s *Server) DeleteFavorite(ctx context.Context, p *auth.Principal, id uint) error {
	if err := s.repo.DeleteFavorite(ctx, p.UserID, id); err != nil {
		return notFound("favorite", err)
	}
	return nil
}
