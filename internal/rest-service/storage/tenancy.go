package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/hierarchy"
)

// DefaultDepartment is created with every company.
const DefaultDepartment = "なし"

const maxTenancyName = 100

var shareNamePattern = regexp.MustCompile(`^[a-z0-9](-?[a-z0-9])+$`)

// ValidShareName applies the file share naming rules: 3 to 63 lowercase
// letters, digits and single dashes, starting and ending alphanumeric.
func ValidShareName(name string) bool {
	return len(name) >= 3 && len(name) <= 63 && shareNamePattern.MatchString(name)
}

type CompanyInput struct {
	Name        string
	StorageName string
	// Storage is the quota in KB.
	Storage int64
}

type DepartmentInput struct {
	Name    string
	Storage int64
}

type UserInput struct {
	DepartmentID uint
	PersonalID   string
	Name         string
	Storage      int64
	Permission   bool
	Admin        bool
}

func requireAdmin(p *auth.Principal) error {
	if !p.Admin {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	return nil
}

func validTenancyName(what, name string) error {
	if strings.TrimSpace(name) == "" || utf8.RuneCountInString(name) > maxTenancyName {
		return fmt.Errorf("%w: %s name %q", ErrInvalidArgument, what, name)
	}
	return nil
}

func validQuota(kb int64) error {
	if kb < 0 {
		return fmt.Errorf("%w: negative storage quota", ErrInvalidArgument)
	}
	return nil
}

// GetCompany returns a company. Non admins can only see their own.
func (s *Server) GetCompany(ctx context.Context, p *auth.Principal, id uint) (*database.Company, error) {
	if !p.Admin && id != p.CompanyID {
		return nil, ErrForbidden
	}
	c, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		return nil, notFound("company", err)
	}
	return c, nil
}

func (s *Server) ListCompanies(ctx context.Context, p *auth.Principal) ([]*database.Company, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	res, err := s.repo.ListCompanies(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return res, nil
}

// CreateCompany creates the remote share, then the company with its default
// department and root directory.
func (s *Server) CreateCompany(ctx context.Context, p *auth.Principal, in CompanyInput) (*database.Company, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := validTenancyName("company", in.Name); err != nil {
		return nil, err
	}
	if !ValidShareName(in.StorageName) {
		return nil, fmt.Errorf("%w: storage name %q", ErrInvalidArgument, in.StorageName)
	}
	if err := validQuota(in.Storage); err != nil {
		return nil, err
	}
	nameTaken, storageTaken, err := s.repo.CompanyNamesTaken(ctx, in.Name, in.StorageName, 0)
	if err != nil {
		return nil, internal(err)
	}
	switch {
	case nameTaken:
		return nil, fmt.Errorf("%w: company %q already exists", ErrConflict, in.Name)
	case storageTaken:
		return nil, fmt.Errorf("%w: storage name %q is in use", ErrConflict, in.StorageName)
	}

	l := s.logger(p).WithField("share", in.StorageName)
	if err := s.rs.CreateShare(ctx, in.StorageName); err != nil {
		l.WithError(err).Error("can't create share")
		return nil, remoteFailure(err)
	}

	c := &database.Company{
		Name:        in.Name,
		StorageName: in.StorageName,
		Storage:     in.Storage,
		Audit:       database.Audit{CreateAcc: &p.UserID, UpdateAcc: &p.UserID},
	}
	err = s.repo.Transaction(ctx, func(tx *database.Repository) error {
		if err := tx.CreateCompany(ctx, c); err != nil {
			return err
		}
		dep := &database.Department{
			CompanyID: c.ID,
			Name:      DefaultDepartment,
			Storage:   in.Storage,
			Audit:     c.Audit,
		}
		if err := tx.CreateDepartment(ctx, dep); err != nil {
			return err
		}
		return tx.CreateDirectory(ctx, &database.Directory{
			CompanyID: c.ID,
			Class:     hierarchy.RootClass,
			Audit:     c.Audit,
		})
	})
	if err != nil {
		l.WithError(err).Error("share created but company rows were not")
		return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	l.WithField("company_id", c.ID).Info("company created")
	return c, nil
}

// UpdateCompany changes the name and quota. The storage name is fixed.
func (s *Server) UpdateCompany(ctx context.Context, p *auth.Principal, id uint, in CompanyInput) (*database.Company, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := validTenancyName("company", in.Name); err != nil {
		return nil, err
	}
	if err := validQuota(in.Storage); err != nil {
		return nil, err
	}
	c, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		return nil, notFound("company", err)
	}
	if in.StorageName != "" && in.StorageName != c.StorageName {
		return nil, fmt.Errorf("%w: storage name can't be changed", ErrInvalidArgument)
	}
	nameTaken, _, err := s.repo.CompanyNamesTaken(ctx, in.Name, "", c.ID)
	if err != nil {
		return nil, internal(err)
	}
	if nameTaken {
		return nil, fmt.Errorf("%w: company %q already exists", ErrConflict, in.Name)
	}
	c.Name, c.Storage, c.UpdateAcc = in.Name, in.Storage, &p.UserID
	if err := s.repo.UpdateCompany(ctx, c); err != nil {
		return nil, internal(err)
	}
	return c, nil
}

// DeleteCompany removes the remote share and then every row of the company.
func (s *Server) DeleteCompany(ctx context.Context, p *auth.Principal, id uint) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	c, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		return notFound("company", err)
	}
	l := s.logger(p).WithFields(log.Fields{"share": c.StorageName, "target_company_id": c.ID})
	if err := s.rs.DeleteShare(ctx, c.StorageName); err != nil {
		l.WithError(err).Error("can't delete share")
		return remoteFailure(err)
	}
	if err := s.repo.Transaction(ctx, func(tx *database.Repository) error {
		return tx.DeleteCompany(ctx, c.ID)
	}); err != nil {
		l.WithError(err).Error("share deleted but company rows were not")
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	l.Info("company deleted")
	return nil
}

func (s *Server) ListDepartments(ctx context.Context, p *auth.Principal) ([]*database.Department, error) {
	res, err := s.repo.ListDepartments(ctx, p.CompanyID)
	if err != nil {
		return nil, internal(err)
	}
	return res, nil
}

func (s *Server) GetDepartment(ctx context.Context, p *auth.Principal, id uint) (*database.Department, error) {
	d, err := s.repo.GetDepartment(ctx, p.CompanyID, id)
	if err != nil {
		return nil, notFound("department", err)
	}
	return d, nil
}

func (s *Server) CreateDepartment(ctx context.Context, p *auth.Principal, in DepartmentInput) (*database.Department, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, p, in, 0); err != nil {
		return nil, err
	}
	d := &database.Department{
		CompanyID: p.CompanyID,
		Name:      in.Name,
		Storage:   in.Storage,
		Audit:     database.Audit{CreateAcc: &p.UserID, UpdateAcc: &p.UserID},
	}
	if err := s.repo.CreateDepartment(ctx, d); err != nil {
		return nil, internal(err)
	}
	return d, nil
}

func (s *Server) UpdateDepartment(ctx context.Context, p *auth.Principal, id uint, in DepartmentInput) (*database.Department, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	d, err := s.GetDepartment(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, p, in, d.ID); err != nil {
		return nil, err
	}
	d.Name, d.Storage, d.UpdateAcc = in.Name, in.Storage, &p.UserID
	if err := s.repo.UpdateDepartment(ctx, d); err != nil {
		return nil, internal(err)
	}
	return d, nil
}

func (s *Server) checkDepartment(ctx context.Context, p *auth.Principal, in DepartmentInput, excludeID uint) error {
	if err := validTenancyName("department", in.Name); err != nil {
		return err
	}
	if err := validQuota(in.Storage); err != nil {
		return err
	}
	taken, err := s.repo.DepartmentNameTaken(ctx, p.CompanyID, in.Name, excludeID)
	if err != nil {
		return internal(err)
	}
	if taken {
		return fmt.Errorf("%w: department %q already exists", ErrConflict, in.Name)
	}
	return nil
}

// DeleteDepartment refuses while users are still assigned to it.
func (s *Server) DeleteDepartment(ctx context.Context, p *auth.Principal, id uint) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	d, err := s.GetDepartment(ctx, p, id)
	if err != nil {
		return err
	}
	n, err := s.repo.CountDepartmentUsers(ctx, d.ID)
	if err != nil {
		return internal(err)
	}
	if n > 0 {
		return fmt.Errorf("%w: department has %d users", ErrConflict, n)
	}
	if err := s.repo.DeleteDepartment(ctx, d.ID); err != nil {
		return internal(err)
	}
	return nil
}

func (s *Server) ListUsers(ctx context.Context, p *auth.Principal) ([]*database.User, error) {
	res, err := s.repo.ListUsers(ctx, p.CompanyID)
	if err != nil {
		return nil, internal(err)
	}
	return res, nil
}

func (s *Server) CreateUser(ctx context.Context, p *auth.Principal, in UserInput) (*database.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := validTenancyName("user", in.Name); err != nil {
		return nil, err
	}
	if err := validTenancyName("personal id", in.PersonalID); err != nil {
		return nil, err
	}
	if err := validQuota(in.Storage); err != nil {
		return nil, err
	}
	if _, err := s.GetDepartment(ctx, p, in.DepartmentID); err != nil {
		return nil, err
	}
	taken, err := s.repo.PersonalIDTaken(ctx, in.PersonalID)
	if err != nil {
		return nil, internal(err)
	}
	if taken {
		return nil, fmt.Errorf("%w: personal id %q is in use", ErrConflict, in.PersonalID)
	}
	u := &database.User{
		CompanyID:    p.CompanyID,
		DepartmentID: in.DepartmentID,
		PersonalID:   in.PersonalID,
		Name:         in.Name,
		Storage:      in.Storage,
		Permission:   in.Permission,
		Admin:        in.Admin,
		Audit:        database.Audit{CreateAcc: &p.UserID, UpdateAcc: &p.UserID},
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, internal(err)
	}
	return u, nil
}

func (s *Server) DeleteUser(ctx context.Context, p *auth.Principal, id uint) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	u, err := s.repo.GetUser(ctx, p.CompanyID, id)
	if err != nil {
		return notFound("user", err)
	}
	if err := s.repo.SoftDeleteUser(ctx, u.ID, p.UserID); err != nil {
		return internal(err)
	}
	return nil
}
