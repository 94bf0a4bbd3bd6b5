package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote/memory"
)

var errBoom = errors.New("boom")

func getLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.FatalLevel)
	return logger.WithField("in_test", true)
}

type quotaSpy struct {
	tiers []string
}

func (q *quotaSpy) QuotaRejected(tier string) {
	q.tiers = append(q.tiers, tier)
}

type env struct {
	s      *Server
	repo   *database.Repository
	mem    *memory.Backend
	fx     *database.Fixture
	tenant *database.Tenant
	p      *auth.Principal
	quota  *quotaSpy
}

func principalOf(u *database.User) *auth.Principal {
	return &auth.Principal{
		UserID:       u.ID,
		CompanyID:    u.CompanyID,
		DepartmentID: u.DepartmentID,
		PersonalID:   u.PersonalID,
		UserName:     u.Name,
		Storage:      u.Storage,
		Permission:   u.Permission,
		Admin:        u.Admin,
	}
}

// newEnv prepares the "acme" tenant with its share already created.
func newEnv(t *testing.T, companyQuota, departmentQuota, userQuota int64) *env {
	t.Helper()
	repo := database.NewTestRepository(t)
	fx := database.NewFixture(t, repo)
	tn := fx.Tenant("acme", companyQuota, departmentQuota, userQuota)
	mem := memory.New()
	require.NoError(t, mem.CreateShare(context.Background(), tn.Company.StorageName))
	rs := remote.NewStorage(mem, getLogger(),
		remote.WithCopyPolling(3, 0),
		remote.WithTempDir(t.TempDir()),
	)
	spy := &quotaSpy{}
	return &env{
		s:      NewServer(repo, rs, getLogger()).WithQuotaMetrics(spy),
		repo:   repo,
		mem:    mem,
		fx:     fx,
		tenant: tn,
		p:      principalOf(tn.User),
		quota:  spy,
	}
}

func (e *env) mkdir(t *testing.T, parentID uint, name string, private bool) *database.Directory {
	t.Helper()
	d, err := e.s.CreateDirectory(context.Background(), e.p, parentID, name, private)
	require.NoError(t, err)
	return d
}

func (e *env) upload(t *testing.T, dirID uint, name string, size int) *database.File {
	t.Helper()
	f, err := e.s.Upload(context.Background(), e.p, dirID, name, bytes.NewReader(make([]byte, size)), int64(size))
	require.NoError(t, err)
	return f
}

func (e *env) paths() []string {
	return e.mem.Paths(e.tenant.Company.StorageName)
}

func (e *env) reload(t *testing.T, id uint) *database.Directory {
	t.Helper()
	d, err := e.repo.GetDirectory(context.Background(), e.tenant.Company.ID, id)
	require.NoError(t, err)
	return d
}

func TestServer_CreateDirectory(t *testing.T) {
	e := newEnv(t, 1000, 1000, 1000)
	ctx := context.Background()

	docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
	assert.Nil(t, docs.Path)
	assert.Equal(t, 1, docs.Class)

	year := e.mkdir(t, docs.ID, "2024", false)
	require.NotNil(t, year.Path)
	assert.Equal(t, "Docs/", *year.Path)
	assert.Equal(t, 2, year.Class)
	assert.Equal(t, []string{"Docs/", "Docs/2024/"}, e.paths())

	tests := []struct {
		name     string
		parentID uint
		dirName  string
		fail     error
		wantErr  error
	}{
		{name: "sibling exists", parentID: e.tenant.Root.ID, dirName: "Docs", wantErr: ErrConflict},
		{name: "nested sibling exists", parentID: docs.ID, dirName: "2024", wantErr: ErrConflict},
		{name: "empty name", parentID: docs.ID, dirName: " ", wantErr: ErrInvalidArgument},
		{name: "slash in name", parentID: docs.ID, dirName: "a/b", wantErr: ErrInvalidArgument},
		{name: "padded sibling name", parentID: e.tenant.Root.ID, dirName: " Docs", wantErr: ErrInvalidArgument},
		{name: "unknown parent", parentID: 9999, dirName: "x", wantErr: ErrNotFound},
		{name: "remote failure", parentID: docs.ID, dirName: "x", fail: errBoom, wantErr: ErrRemoteStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.mem.FailOn("create_directory", tt.fail)
			defer e.mem.FailOn("create_directory", nil)
			before := e.paths()

			_, err := e.s.CreateDirectory(ctx, e.p, tt.parentID, tt.dirName, false)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, e.paths())
			children, err := e.repo.ListChildDirectories(ctx, e.tenant.Company.ID, docs.Path)
			require.NoError(t, err)
			assert.Len(t, children, 1)
		})
	}
}

func TestServer_CreateDirectory_privateParent(t *testing.T) {
	e := newEnv(t, 1000, 1000, 1000)
	secret := e.mkdir(t, e.tenant.Root.ID, "Secret", true)
	other := principalOf(e.fx.User(e.tenant.Company.ID, e.tenant.Department.ID, "bob", 1000))

	_, err := e.s.CreateDirectory(context.Background(), other, secret.ID, "x", false)
	require.ErrorIs(t, err, ErrForbidden)

	e.fx.Permission(other.UserID, secret.ID)
	_, err = e.s.CreateDirectory(context.Background(), other, secret.ID, "x", false)
	require.NoError(t, err)
}

func TestServer_RenameDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("descendants follow", func(t *testing.T) {
		e := newEnv(t, 1000, 1000, 1000)
		docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
		year := e.mkdir(t, docs.ID, "2024", false)
		month := e.mkdir(t, year.ID, "01", false)
		e.upload(t, month.ID, "a.txt", 10)

		got, err := e.s.RenameDirectory(ctx, e.p, docs.ID, "Archive")
		require.NoError(t, err)
		assert.Equal(t, "Archive", got.Name)
		assert.Equal(t, "Archive/", *e.reload(t, year.ID).Path)
		assert.Equal(t, "Archive/2024/", *e.reload(t, month.ID).Path)
		assert.Equal(t, []string{"Archive/", "Archive/2024/", "Archive/2024/01/", "Archive/2024/01/a.txt"}, e.paths())
	})

	t.Run("sibling conflict changes nothing", func(t *testing.T) {
		e := newEnv(t, 1000, 1000, 1000)
		docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
		e.mkdir(t, e.tenant.Root.ID, "Other", false)
		before := e.paths()

		_, err := e.s.RenameDirectory(ctx, e.p, docs.ID, "Other")
		require.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, before, e.paths())
		assert.Equal(t, "Docs", e.reload(t, docs.ID).Name)
	})

	t.Run("twice converges", func(t *testing.T) {
		once := newEnv(t, 1000, 1000, 1000)
		twice := newEnv(t, 1000, 1000, 1000)
		var children [2]*database.Directory
		for i, e := range []*env{once, twice} {
			docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
			children[i] = e.mkdir(t, docs.ID, "2024", false)
			if e == twice {
				_, err := e.s.RenameDirectory(ctx, e.p, docs.ID, "X")
				require.NoError(t, err)
			}
			_, err := e.s.RenameDirectory(ctx, e.p, docs.ID, "Y")
			require.NoError(t, err)
		}
		if diff := cmp.Diff(once.paths(), twice.paths()); diff != "" {
			t.Errorf("remote trees differ (-once +twice):\n%s", diff)
		}
		assert.Equal(t, *once.reload(t, children[0].ID).Path, *twice.reload(t, children[1].ID).Path)
	})

	t.Run("remote failure keeps rows", func(t *testing.T) {
		e := newEnv(t, 1000, 1000, 1000)
		docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
		e.upload(t, docs.ID, "a.txt", 10)
		e.mem.FailOn("start_copy", errBoom)

		_, err := e.s.RenameDirectory(ctx, e.p, docs.ID, "Archive")
		require.ErrorIs(t, err, ErrRemoteStorage)
		assert.Equal(t, "Docs", e.reload(t, docs.ID).Name)

		e.mem.FailOn("start_copy", nil)
		got, err := e.s.RenameDirectory(ctx, e.p, docs.ID, "Archive")
		require.NoError(t, err)
		assert.Equal(t, "Archive", got.Name)
	})

	t.Run("root and same name", func(t *testing.T) {
		e := newEnv(t, 1000, 1000, 1000)
		_, err := e.s.RenameDirectory(ctx, e.p, e.tenant.Root.ID, "x")
		require.ErrorIs(t, err, ErrInvalidArgument)

		docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
		got, err := e.s.RenameDirectory(ctx, e.p, docs.ID, "Docs")
		require.NoError(t, err)
		assert.Equal(t, "Docs", got.Name)
	})
}

func TestServer_DeleteDirectory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 1000, 1000, 1000)
	docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
	year := e.mkdir(t, docs.ID, "2024", false)
	month := e.mkdir(t, year.ID, "01", false)
	keep := e.mkdir(t, e.tenant.Root.ID, "Docs2", false)
	inDocs := e.upload(t, docs.ID, "a.txt", 10)
	inMonth := e.upload(t, month.ID, "b.txt", 10)
	kept := e.upload(t, keep.ID, "c.txt", 10)

	require.NoError(t, e.s.DeleteDirectory(ctx, e.p, docs.ID))

	for _, id := range []uint{docs.ID, year.ID, month.ID} {
		_, err := e.repo.GetDirectory(ctx, e.tenant.Company.ID, id)
		assert.True(t, database.IsNotFound(err), "directory %d still active", id)
	}
	for _, id := range []uint{inDocs.ID, inMonth.ID} {
		_, err := e.repo.GetFile(ctx, e.tenant.Company.ID, id)
		assert.True(t, database.IsNotFound(err), "file %d still active", id)
	}
	_, err := e.repo.GetFile(ctx, e.tenant.Company.ID, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Docs2/", "Docs2/c.txt"}, e.paths())

	require.ErrorIs(t, e.s.DeleteDirectory(ctx, e.p, e.tenant.Root.ID), ErrInvalidArgument)
	require.ErrorIs(t, e.s.DeleteDirectory(ctx, e.p, docs.ID), ErrNotFound)
}

func TestServer_Upload_quota(t *testing.T) {
	ctx := context.Background()
	const kb = 1024

	t.Run("user tier", func(t *testing.T) {
		e := newEnv(t, 1_000_000, 500_000, 10_000)
		e.upload(t, e.tenant.Root.ID, "big.bin", 9_000*kb)
		before := e.paths()

		_, err := e.s.Upload(ctx, e.p, e.tenant.Root.ID, "more.bin", bytes.NewReader(make([]byte, 2_000*kb)), 2_000*kb)
		var qe *QuotaError
		require.ErrorAs(t, err, &qe)
		require.ErrorIs(t, err, ErrQuotaExceeded)
		assert.Equal(t, &QuotaError{Tier: TierUser, Used: 9_000, Size: 2_000, Limit: 10_000}, qe)
		assert.Equal(t, before, e.paths())
		assert.Equal(t, []string{TierUser}, e.quota.tiers)

		files, err := e.repo.ListFiles(ctx, e.tenant.Root.ID)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	tests := []struct {
		name                      string
		company, department, user int64
		wantTier                  string
	}{
		{name: "department tier", company: 1000, department: 10, user: 1000, wantTier: TierDepartment},
		{name: "company tier", company: 10, department: 1000, user: 1000, wantTier: TierCompany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.company, tt.department, tt.user)
			e.upload(t, e.tenant.Root.ID, "a.bin", 8*kb)

			_, err := e.s.Upload(ctx, e.p, e.tenant.Root.ID, "b.bin", bytes.NewReader(make([]byte, 3*kb)), 3*kb)
			var qe *QuotaError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.wantTier, qe.Tier)
			assert.Nil(t, e.mem.Content("acme", "b.bin"))
		})
	}
}

func TestServer_Upload(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 1000, 1000, 1000)
	docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)

	first := e.upload(t, docs.ID, "a.txt", 1)
	assert.Equal(t, int64(1), first.Size)
	require.NotNil(t, first.FileTypeID)

	second := e.upload(t, docs.ID, "a.txt", 3000)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(3), second.Size)
	assert.Len(t, e.mem.Content("acme", "Docs/a.txt"), 3000)

	files, err := e.repo.ListFiles(ctx, docs.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(3), files[0].Size)

	t.Run("rejections", func(t *testing.T) {
		long := string(bytes.Repeat([]byte("a"), 256))
		tests := []struct {
			name     string
			dirID    uint
			fileName string
			fail     error
			wantErr  error
		}{
			{name: "name too long", dirID: docs.ID, fileName: long, wantErr: ErrInvalidArgument},
			{name: "trailing space", dirID: docs.ID, fileName: "x.txt ", wantErr: ErrInvalidArgument},
			{name: "unknown directory", dirID: 9999, fileName: "x.txt", wantErr: ErrNotFound},
			{name: "remote failure", dirID: docs.ID, fileName: "x.txt", fail: errBoom, wantErr: ErrRemoteStorage},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				e.mem.FailOn("upload_file", tt.fail)
				defer e.mem.FailOn("upload_file", nil)
				_, err := e.s.Upload(ctx, e.p, tt.dirID, tt.fileName, bytes.NewReader([]byte("x")), 1)
				require.ErrorIs(t, err, tt.wantErr)
				_, err = e.repo.FindFileByName(ctx, docs.ID, tt.fileName)
				assert.True(t, database.IsNotFound(err))
			})
		}
	})
}

func TestServer_ListFiles(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 1000, 1000, 1000)
	docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
	e.mkdir(t, docs.ID, "b-folder", false)
	e.mkdir(t, docs.ID, "a-folder", false)
	hiddenPath := "Docs/"
	e.fx.Directory(e.tenant.Company.ID, &hiddenPath, "hidden", 2, true)
	e.upload(t, docs.ID, "notes.md", 2048)
	e.upload(t, docs.ID, "a.txt", 10)

	got, err := e.s.ListFiles(ctx, e.p, docs.ID)
	require.NoError(t, err)

	type row struct {
		Name   string
		Size   string
		Type   string
		Icon   int
		Folder bool
	}
	var rows []row
	for _, entry := range got {
		r := row{Name: entry.Name, Type: entry.Type, Icon: entry.IconID, Folder: entry.IsDirectory}
		if entry.Size != nil {
			r.Size = *entry.Size
		}
		assert.NotEmpty(t, entry.UpdatedAt)
		rows = append(rows, r)
	}
	want := []row{
		{Name: "a-folder", Type: FolderType, Icon: FolderIconID, Folder: true},
		{Name: "b-folder", Type: FolderType, Icon: FolderIconID, Folder: true},
		{Name: "a.txt", Size: "1KB", Type: "テキスト ドキュメント", Icon: 1},
		{Name: "notes.md", Size: "2KB", Type: "mdファイル"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("ListFiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_Files(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 1000, 1000, 1000)
	docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
	content := []byte("hello cabinet")
	f, err := e.s.Upload(ctx, e.p, docs.ID, "a.txt", bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	e.upload(t, docs.ID, "taken.txt", 1)

	_, err = e.s.RenameFile(ctx, e.p, f.ID, "taken.txt")
	require.ErrorIs(t, err, ErrConflict)

	renamed, err := e.s.RenameFile(ctx, e.p, f.ID, "b.csv")
	require.NoError(t, err)
	assert.Equal(t, "b.csv", renamed.Name)
	assert.Nil(t, e.mem.Content("acme", "Docs/a.txt"))
	assert.Equal(t, content, e.mem.Content("acme", "Docs/b.csv"))

	d, err := e.s.DownloadFile(ctx, e.p, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.csv", d.FileName)
	got, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	require.NoError(t, d.Close())

	other := e.fx.Tenant("other", 1000, 1000, 1000)
	_, err = e.s.DownloadFile(ctx, principalOf(other.User), f.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.s.DeleteFile(ctx, e.p, f.ID))
	assert.Nil(t, e.mem.Content("acme", "Docs/b.csv"))
	_, err = e.s.DownloadFile(ctx, e.p, f.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServer_visibility(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 1000, 1000, 1000)
	e.mkdir(t, e.tenant.Root.ID, "Public", false)
	secret := e.mkdir(t, e.tenant.Root.ID, "Secret", true)
	f := e.upload(t, secret.ID, "plan.txt", 1)
	bob := principalOf(e.fx.User(e.tenant.Company.ID, e.tenant.Department.ID, "bob", 1000))
	granter := principalOf(e.fx.User(e.tenant.Company.ID, e.tenant.Department.ID, "carol", 1000))
	granter.Permission = true

	names := func(p *auth.Principal) []string {
		dirs, err := e.s.ListDirectories(ctx, p)
		require.NoError(t, err)
		var res []string
		for _, d := range dirs {
			res = append(res, d.Name)
		}
		return res
	}
	assert.Equal(t, []string{"Public"}, names(bob))
	_, err := e.s.ListFiles(ctx, bob, secret.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = e.s.DownloadFile(ctx, bob, f.ID)
	require.ErrorIs(t, err, ErrForbidden)

	require.ErrorIs(t, e.s.GrantPermission(ctx, bob, bob.UserID, secret.ID), ErrForbidden)
	require.NoError(t, e.s.GrantPermission(ctx, granter, bob.UserID, secret.ID))
	require.NoError(t, e.s.GrantPermission(ctx, granter, bob.UserID, secret.ID))
	assert.Equal(t, []string{"Public", "Secret"}, names(bob))

	require.NoError(t, e.s.RevokePermission(ctx, granter, bob.UserID, secret.ID))
	require.ErrorIs(t, e.s.RevokePermission(ctx, granter, bob.UserID, secret.ID), ErrNotFound)
	assert.Equal(t, []string{"Public"}, names(bob))
}

func TestServer_Favorites(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 1000, 1000, 1000)
	docs := e.mkdir(t, e.tenant.Root.ID, "Docs", false)
	secret := e.mkdir(t, e.tenant.Root.ID, "Secret", true)
	bob := principalOf(e.fx.User(e.tenant.Company.ID, e.tenant.Department.ID, "bob", 1000))

	fav, err := e.s.AddFavorite(ctx, bob, "docs", docs.ID)
	require.NoError(t, err)
	_, err = e.s.AddFavorite(ctx, bob, "docs", docs.ID)
	require.ErrorIs(t, err, ErrConflict)
	_, err = e.s.AddFavorite(ctx, bob, "secret", secret.ID)
	require.ErrorIs(t, err, ErrForbidden)

	e.fx.Permission(bob.UserID, secret.ID)
	sec, err := e.s.AddFavorite(ctx, bob, "secret", secret.ID)
	require.NoError(t, err)
	_, err = e.s.UpdateFavorite(ctx, bob, sec.ID, "docs", secret.ID)
	require.ErrorIs(t, err, ErrConflict)
	updated, err := e.s.UpdateFavorite(ctx, bob, sec.ID, "hidden", secret.ID)
	require.NoError(t, err)
	assert.Equal(t, "hidden", updated.Name)

	require.NoError(t, e.repo.RevokePermission(ctx, bob.UserID, secret.ID))
	require.NoError(t, e.s.DeleteDirectory(ctx, e.p, docs.ID))
	favs, err := e.s.ListFavorites(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, favs)

	require.NoError(t, e.s.DeleteFavorite(ctx, bob, fav.ID))
	require.ErrorIs(t, e.s.DeleteFavorite(ctx, bob, fav.ID), ErrNotFound)
}

func TestServer_rootByZeroID(t *testing.T) {
	e := newEnv(t, 1000, 1000, 1000)
	d := e.mkdir(t, 0, "Docs", false)
	assert.Equal(t, 1, d.Class)
	e.upload(t, 0, "top.txt", 1)

	got, err := e.s.ListFiles(context.Background(), e.p, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Docs", got[0].Name)
	assert.Equal(t, "top.txt", got[1].Name)
	assert.Equal(t, []string{"Docs/", "top.txt"}, e.paths())
}
