package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/hierarchy"
)

// Node returns the hierarchy view of the directory.
func (d *Directory) Node() hierarchy.Node {
	return hierarchy.Node{Path: d.Path, Name: d.Name, Class: d.Class}
}

func (r *Repository) activeDirectories(ctx context.Context, companyID uint) *gorm.DB {
	return r.db.WithContext(ctx).Where("company_id = ? AND delete_flg = ?", companyID, false)
}

// GetDirectory returns an active directory of the company, the root included.
func (r *Repository) GetDirectory(ctx context.Context, companyID, id uint) (*Directory, error) {
	d := &Directory{}
	return d, r.activeDirectories(ctx, companyID).First(d, id).Error
}

func (r *Repository) GetRootDirectory(ctx context.Context, companyID uint) (*Directory, error) {
	d := &Directory{}
	return d, r.activeDirectories(ctx, companyID).
		Where("directory_class = ?", hierarchy.RootClass).
		First(d).Error
}

func wherePath(db *gorm.DB, path *string) *gorm.DB {
	if path == nil {
		return db.Where("path IS NULL")
	}
	return db.Where("path = ?", *path)
}

// SiblingExists reports whether an active directory named name is stored
// under path, ignoring excludeID.
func (r *Repository) SiblingExists(ctx context.Context, companyID uint, path *string, name string, excludeID uint) (bool, error) {
	var n int64
	err := wherePath(r.activeDirectories(ctx, companyID).Model(&Directory{}), path).
		Where("directory_name = ? AND directory_class <> ? AND id <> ?", name, hierarchy.RootClass, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) CreateDirectory(ctx context.Context, d *Directory) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// ListChildDirectories returns the active directories stored under path.
func (r *Repository) ListChildDirectories(ctx context.Context, companyID uint, path *string) ([]*Directory, error) {
	var res []*Directory
	return res, wherePath(r.activeDirectories(ctx, companyID), path).
		Where("directory_class <> ?", hierarchy.RootClass).
		Order("directory_name").
		Find(&res).Error
}

// ListDescendants returns every active directory below the directory whose
// full path is ancestor.
func (r *Repository) ListDescendants(ctx context.Context, companyID uint, ancestor string) ([]*Directory, error) {
	var found []*Directory
	if err := r.activeDirectories(ctx, companyID).
		Where("path LIKE ? ESCAPE '!'", likePrefix(ancestor)).
		Order("directory_class, id").
		Find(&found).Error; err != nil {
		return nil, err
	}
	// LIKE ignores ASCII case on sqlite
	res := found[:0]
	for _, d := range found {
		if hierarchy.IsDescendantPath(d.Path, ancestor) {
			res = append(res, d)
		}
	}
	return res, nil
}

func (r *Repository) RenameDirectory(ctx context.Context, id uint, name string, by uint) error {
	return r.db.WithContext(ctx).Model(&Directory{}).
		Where("id = ?", id).
		Updates(map[string]any{"directory_name": name, "update_acc": by}).Error
}

// MoveDirectories rewrites the stored path of every directory in dirs from
// under oldPrefix to under newPrefix.
func (r *Repository) MoveDirectories(ctx context.Context, dirs []*Directory, oldPrefix, newPrefix string, by uint) error {
	for _, d := range dirs {
		if d.Path == nil {
			continue
		}
		p := hierarchy.RewritePrefix(*d.Path, oldPrefix, newPrefix)
		if err := r.db.WithContext(ctx).Model(&Directory{}).
			Where("id = ?", d.ID).
			Updates(map[string]any{"path": p, "update_acc": by}).Error; err != nil {
			return err
		}
		d.Path = &p
	}
	return nil
}

func (r *Repository) SoftDeleteDirectories(ctx context.Context, ids []uint, by uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&Directory{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"delete_flg": true, "update_acc": by}).Error
}

func (r *Repository) SoftDeleteFilesIn(ctx context.Context, directoryIDs []uint, by uint) error {
	if len(directoryIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&File{}).
		Where("directory_id IN ? AND delete_flg = ?", directoryIDs, false).
		Updates(map[string]any{"delete_flg": true, "update_acc": by}).Error
}

// ListVisibleDirectories returns the active, non-root directories of the company
// that are public or explicitly granted to userID.
func (r *Repository) ListVisibleDirectories(ctx context.Context, companyID, userID uint) ([]*Directory, error) {
	var res []*Directory
	granted := r.db.Model(&Permission{}).Select("directory_id").Where("user_id = ?", userID)
	return res, r.activeDirectories(ctx, companyID).
		Where("directory_class <> ?", hierarchy.RootClass).
		Where("open_flg = ? OR id IN (?)", false, granted).
		Order("directory_name, id").
		Find(&res).Error
}

// PermittedDirectories returns which of ids are explicitly granted to userID.
func (r *Repository) PermittedDirectories(ctx context.Context, userID uint, ids []uint) (map[uint]bool, error) {
	res := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	var granted []uint
	if err := r.db.WithContext(ctx).Model(&Permission{}).
		Where("user_id = ? AND directory_id IN ?", userID, ids).
		Pluck("directory_id", &granted).Error; err != nil {
		return nil, err
	}
	for _, id := range granted {
		res[id] = true
	}
	return res, nil
}

func (r *Repository) GrantPermission(ctx context.Context, userID, directoryID uint) error {
	p := &Permission{UserID: userID, DirectoryID: directoryID}
	return r.db.WithContext(ctx).Where(p).FirstOrCreate(p).Error
}

func (r *Repository) RevokePermission(ctx context.Context, userID, directoryID uint) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND directory_id = ?", userID, directoryID).
		Delete(&Permission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
