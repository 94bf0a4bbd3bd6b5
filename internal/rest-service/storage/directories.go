package storage

import (
	"context"
	"fmt"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/hierarchy"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
)

const maxDirectoryName = 100

func validDirectoryName(name string) error {
	if !hierarchy.ValidName(name) || utf8.RuneCountInString(name) > maxDirectoryName {
		return fmt.Errorf("%w: directory name %q", ErrInvalidArgument, name)
	}
	return nil
}

// CreateDirectory adds name under parentID, remote folder first. The creator
// of a private directory is granted access to it.
func (s *Server) CreateDirectory(ctx context.Context, p *auth.Principal, parentID uint, name string, private bool) (*database.Directory, error) {
	if err := validDirectoryName(name); err != nil {
		return nil, err
	}
	parent, err := s.directoryFor(ctx, p, parentID)
	if err != nil {
		return nil, err
	}
	childPath := hierarchy.ChildPath(parent.Node())
	stored := hierarchy.StoredPath(childPath)

	taken, err := s.repo.SiblingExists(ctx, p.CompanyID, stored, name, 0)
	if err != nil {
		return nil, internal(err)
	}
	if taken {
		return nil, fmt.Errorf("%w: directory %q already exists", ErrConflict, name)
	}
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}

	l := s.logger(p).WithFields(log.Fields{"path": childPath, "name": name})
	if err := s.rs.CreateFolder(ctx, share, childPath+name); err != nil {
		l.WithError(err).Error("can't create remote folder")
		return nil, remoteFailure(err)
	}

	d := &database.Directory{
		CompanyID: p.CompanyID,
		Path:      stored,
		Name:      name,
		Class:     hierarchy.ChildClass(childPath),
		Private:   private,
		Audit:     database.Audit{CreateAcc: &p.UserID, UpdateAcc: &p.UserID},
	}
	err = s.repo.Transaction(ctx, func(tx *database.Repository) error {
		if err := tx.CreateDirectory(ctx, d); err != nil {
			return err
		}
		if !private {
			return nil
		}
		// the creator keeps access to a private directory
		return tx.GrantPermission(ctx, p.UserID, d.ID)
	})
	if err != nil {
		l.WithError(err).Error("remote folder created but directory row was not")
		return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	l.WithField("directory_id", d.ID).Info("directory created")
	return d, nil
}

// RenameDirectory renames the remote folder tree and rewrites the stored
// path of every descendant in one transaction.
func (s *Server) RenameDirectory(ctx context.Context, p *auth.Principal, id uint, name string) (*database.Directory, error) {
	if err := validDirectoryName(name); err != nil {
		return nil, err
	}
	d, err := s.directoryFor(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if d.Class == hierarchy.RootClass {
		return nil, fmt.Errorf("%w: the company root can't be renamed", ErrInvalidArgument)
	}
	if d.Name == name {
		return d, nil
	}
	taken, err := s.repo.SiblingExists(ctx, p.CompanyID, d.Path, name, d.ID)
	if err != nil {
		return nil, internal(err)
	}
	if taken {
		return nil, fmt.Errorf("%w: directory %q already exists", ErrConflict, name)
	}
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}

	oldFull := remoteDir(d)
	newFull := hierarchy.ChildPath(hierarchy.Node{Path: d.Path, Name: name, Class: d.Class})
	l := s.logger(p).WithFields(log.Fields{"directory_id": d.ID, "from": oldFull, "to": newFull})

	if err := s.rs.RenameFolder(ctx, share, oldFull, newFull); err != nil {
		l.WithError(err).Error("can't rename remote folder")
		return nil, remoteFailure(err)
	}

	err = s.repo.Transaction(ctx, func(tx *database.Repository) error {
		if err := tx.RenameDirectory(ctx, d.ID, name, p.UserID); err != nil {
			return err
		}
		descendants, err := tx.ListDescendants(ctx, p.CompanyID, oldFull)
		if err != nil {
			return err
		}
		return tx.MoveDirectories(ctx, descendants, oldFull, newFull, p.UserID)
	})
	if err != nil {
		l.WithError(err).Error("remote folder renamed but directory rows were not")
		return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	d.Name = name
	l.Info("directory renamed")
	return d, nil
}

// DeleteDirectory removes the remote tree and soft deletes the directory,
// its descendants and every file below them.
func (s *Server) DeleteDirectory(ctx context.Context, p *auth.Principal, id uint) error {
	d, err := s.directoryFor(ctx, p, id)
	if err != nil {
		return err
	}
	if d.Class == hierarchy.RootClass {
		return fmt.Errorf("%w: the company root can't be deleted", ErrInvalidArgument)
	}
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return err
	}
	full := remoteDir(d)
	l := s.logger(p).WithFields(log.Fields{"directory_id": d.ID, "path": full})

	if err := s.rs.DeleteFolder(ctx, share, full); err != nil {
		l.WithError(err).Error("can't delete remote folder")
		return remoteFailure(err)
	}

	var deleted int
	err = s.repo.Transaction(ctx, func(tx *database.Repository) error {
		descendants, err := tx.ListDescendants(ctx, p.CompanyID, full)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(descendants)+1)
		ids = append(ids, d.ID)
		for _, child := range descendants {
			ids = append(ids, child.ID)
		}
		deleted = len(ids)
		if err := tx.SoftDeleteDirectories(ctx, ids, p.UserID); err != nil {
			return err
		}
		return tx.SoftDeleteFilesIn(ctx, ids, p.UserID)
	})
	if err != nil {
		l.WithError(err).Error("remote folder deleted but directory rows were not")
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	l.WithField("directories", deleted).Info("directory deleted")
	return nil
}

// ListDirectories returns every directory of the company the principal can see.
func (s *Server) ListDirectories(ctx context.Context, p *auth.Principal) ([]*database.Directory, error) {
	dirs, err := s.repo.ListVisibleDirectories(ctx, p.CompanyID, p.UserID)
	if err != nil {
		return nil, internal(err)
	}
	return dirs, nil
}

// ListRemote returns the top level entries of the company share as stored remotely.
func (s *Server) ListRemote(ctx context.Context, p *auth.Principal) ([]remote.Entry, error) {
	share, err := s.shareName(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}
	entries, err := s.rs.ListChildren(ctx, share, "")
	if err != nil {
		s.logger(p).WithError(err).Error("can't list remote share")
		return nil, remoteFailure(err)
	}
	return entries, nil
}

// visibleChildren filters dirs down to the ones the principal may access.
func (s *Server) visibleChildren(ctx context.Context, p *auth.Principal, dirs []*database.Directory) ([]*database.Directory, error) {
	var private []uint
	for _, d := range dirs {
		if d.Private {
			private = append(private, d.ID)
		}
	}
	granted, err := s.repo.PermittedDirectories(ctx, p.UserID, private)
	if err != nil {
		return nil, internal(err)
	}
	res := dirs[:0]
	for _, d := range dirs {
		if !d.Private || granted[d.ID] {
			res = append(res, d)
		}
	}
	return res, nil
}
