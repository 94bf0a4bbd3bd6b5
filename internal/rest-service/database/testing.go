package database

import (
	"context"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
)

// NewTestRepository opens a migrated sqlite database in a temporary directory.
func NewTestRepository(t testing.TB) *Repository {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.FatalLevel)
	db, err := NewDb(DriverSQLite, filepath.Join(t.TempDir(), "test.db"), logger.WithField("in_test", true))
	if err != nil {
		t.Fatalf("can't open test database: %s", err)
	}
	t.Cleanup(func() {
		if conn, err := db.DB(); err == nil {
			_ = conn.Close()
		}
	})
	return NewRepository(db)
}

// Tenant is a company with its default department, one user and the root directory.
type Tenant struct {
	Company    *Company
	Department *Department
	User       *User
	Root       *Directory
}

// Fixture inserts rows directly, bypassing the remote store.
type Fixture struct {
	t    testing.TB
	repo *Repository
}

func NewFixture(t testing.TB, repo *Repository) *Fixture {
	return &Fixture{t: t, repo: repo}
}

func (f *Fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("can't prepare test: %s", err)
	}
}

func (f *Fixture) Tenant(name string, companyQuota, departmentQuota, userQuota int64) *Tenant {
	f.t.Helper()
	c := &Company{Name: name, StorageName: name, Storage: companyQuota}
	f.must(f.repo.db.Create(c).Error)
	d := &Department{CompanyID: c.ID, Name: "なし", Storage: departmentQuota}
	f.must(f.repo.db.Create(d).Error)
	u := f.User(c.ID, d.ID, name+"-user", userQuota)
	root := &Directory{CompanyID: c.ID, Name: "", Class: 0, Audit: Audit{CreateAcc: &u.ID}}
	f.must(f.repo.db.Create(root).Error)
	return &Tenant{Company: c, Department: d, User: u, Root: root}
}

func (f *Fixture) User(companyID, departmentID uint, personalID string, quota int64) *User {
	f.t.Helper()
	u := &User{
		CompanyID:    companyID,
		DepartmentID: departmentID,
		PersonalID:   personalID,
		Name:         personalID,
		Storage:      quota,
	}
	f.must(f.repo.db.Create(u).Error)
	return u
}

func (f *Fixture) Directory(companyID uint, path *string, name string, class int, private bool) *Directory {
	f.t.Helper()
	d := &Directory{CompanyID: companyID, Path: path, Name: name, Class: class, Private: private}
	f.must(f.repo.db.Create(d).Error)
	return d
}

func (f *Fixture) File(directoryID, userID uint, name string, sizeKB int64) *File {
	f.t.Helper()
	file := &File{DirectoryID: directoryID, UserID: userID, Name: name, Size: sizeKB}
	f.must(f.repo.db.Create(file).Error)
	return file
}

func (f *Fixture) Permission(userID, directoryID uint) {
	f.t.Helper()
	f.must(f.repo.GrantPermission(context.Background(), userID, directoryID))
}
