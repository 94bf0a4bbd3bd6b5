package database

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrRecordNotFound = gorm.ErrRecordNotFound

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn against a repository bound to a single transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) GetCompany(ctx context.Context, id uint) (*Company, error) {
	c := &Company{}
	return c, r.db.WithContext(ctx).First(c, id).Error
}

func (r *Repository) ListCompanies(ctx context.Context) ([]*Company, error) {
	var res []*Company
	return res, r.db.WithContext(ctx).Order("id").Find(&res).Error
}

// CompanyNamesTaken reports which of the unique company columns are in use by
// a company other than excludeID.
func (r *Repository) CompanyNamesTaken(ctx context.Context, name, storageName string, excludeID uint) (nameTaken, storageTaken bool, err error) {
	var n int64
	if err = r.db.WithContext(ctx).Model(&Company{}).
		Where("company_name = ? AND id <> ?", name, excludeID).
		Count(&n).Error; err != nil {
		return false, false, err
	}
	nameTaken = n > 0
	if storageName == "" {
		return nameTaken, false, nil
	}
	if err = r.db.WithContext(ctx).Model(&Company{}).
		Where("storage_name = ? AND id <> ?", storageName, excludeID).
		Count(&n).Error; err != nil {
		return false, false, err
	}
	return nameTaken, n > 0, nil
}

func (r *Repository) CreateCompany(ctx context.Context, c *Company) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repository) UpdateCompany(ctx context.Context, c *Company) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// DeleteCompany removes the company and every row it owns.
func (r *Repository) DeleteCompany(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	dirs := db.Model(&Directory{}).Select("id").Where("company_id = ?", id)
	users := db.Model(&User{}).Select("id").Where("company_id = ?", id)
	steps := []func() error{
		func() error {
			return db.Where("directory_id IN (?) OR user_id IN (?)", dirs, users).Delete(&Favorite{}).Error
		},
		func() error {
			return db.Where("directory_id IN (?) OR user_id IN (?)", dirs, users).Delete(&Permission{}).Error
		},
		func() error {
			return db.Where("directory_id IN (?) OR user_id IN (?)", dirs, users).Delete(&File{}).Error
		},
		func() error { return db.Where("company_id = ?", id).Delete(&Directory{}).Error },
		func() error { return db.Where("company_id = ?", id).Delete(&User{}).Error },
		func() error { return db.Where("company_id = ?", id).Delete(&Department{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	res := db.Delete(&Company{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Repository) GetDepartment(ctx context.Context, companyID, id uint) (*Department, error) {
	d := &Department{}
	return d, r.db.WithContext(ctx).Where("company_id = ?", companyID).First(d, id).Error
}

func (r *Repository) ListDepartments(ctx context.Context, companyID uint) ([]*Department, error) {
	var res []*Department
	return res, r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("id").Find(&res).Error
}

func (r *Repository) DepartmentNameTaken(ctx context.Context, companyID uint, name string, excludeID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Department{}).
		Where("company_id = ? AND department_name = ? AND id <> ?", companyID, name, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) CreateDepartment(ctx context.Context, d *Department) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *Repository) UpdateDepartment(ctx context.Context, d *Department) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *Repository) DeleteDepartment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&Department{}, id).Error
}

// CountDepartmentUsers counts users of any state, since they keep the foreign key.
func (r *Repository) CountDepartmentUsers(ctx context.Context, id uint) (int64, error) {
	var n int64
	return n, r.db.WithContext(ctx).Model(&User{}).Where("department_id = ?", id).Count(&n).Error
}

func (r *Repository) GetUser(ctx context.Context, companyID, id uint) (*User, error) {
	u := &User{}
	return u, r.db.WithContext(ctx).
		Where("company_id = ? AND delete_flg = ?", companyID, false).
		First(u, id).Error
}

func (r *Repository) GetUserByID(ctx context.Context, id uint) (*User, error) {
	u := &User{}
	return u, r.db.WithContext(ctx).Where("delete_flg = ?", false).First(u, id).Error
}

func (r *Repository) ListUsers(ctx context.Context, companyID uint) ([]*User, error) {
	var res []*User
	return res, r.db.WithContext(ctx).
		Where("company_id = ? AND delete_flg = ?", companyID, false).
		Order("id").
		Find(&res).Error
}

func (r *Repository) PersonalIDTaken(ctx context.Context, personalID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&User{}).Where("personal_id = ?", personalID).Count(&n).Error
	return n > 0, err
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) SoftDeleteUser(ctx context.Context, id, by uint) error {
	return r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]any{"delete_flg": true, "update_acc": by}).Error
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// likePrefix escapes s for a LIKE ... ESCAPE '!' prefix match.
func likePrefix(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s) + "%"
}
