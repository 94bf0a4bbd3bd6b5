package database

import (
	"context"
	"time"
)

// GetFile returns an active file whose directory belongs to the company.
func (r *Repository) GetFile(ctx context.Context, companyID, id uint) (*File, error) {
	f := &File{}
	return f, r.db.WithContext(ctx).
		Select("cd_files.*").
		Joins("JOIN cd_directories ON cd_directories.id = cd_files.directory_id").
		Where("cd_directories.company_id = ? AND cd_directories.delete_flg = ?", companyID, false).
		Where("cd_files.id = ? AND cd_files.delete_flg = ?", id, false).
		Preload("Directory").
		First(f).Error
}

func (r *Repository) FindFileByName(ctx context.Context, directoryID uint, name string) (*File, error) {
	f := &File{}
	return f, r.db.WithContext(ctx).
		Where("directory_id = ? AND file_name = ? AND delete_flg = ?", directoryID, name, false).
		First(f).Error
}

func (r *Repository) ListFiles(ctx context.Context, directoryID uint) ([]*File, error) {
	var res []*File
	return res, r.db.WithContext(ctx).
		Preload("FileType").
		Where("directory_id = ? AND delete_flg = ?", directoryID, false).
		Order("file_name, id").
		Find(&res).Error
}

func (r *Repository) CreateFile(ctx context.Context, f *File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// OverwriteFile stores new content metadata on an existing row.
func (r *Repository) OverwriteFile(ctx context.Context, id uint, size int64, fileTypeID *uint, updatedAt time.Time, by uint) error {
	return r.db.WithContext(ctx).Model(&File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"file_size":      size,
			"filetype_id":    fileTypeID,
			"file_update_at": updatedAt,
			"user_id":        by,
			"update_acc":     by,
		}).Error
}

func (r *Repository) RenameFile(ctx context.Context, id uint, name string, fileTypeID *uint, by uint) error {
	return r.db.WithContext(ctx).Model(&File{}).
		Where("id = ?", id).
		Updates(map[string]any{"file_name": name, "filetype_id": fileTypeID, "update_acc": by}).Error
}

func (r *Repository) SoftDeleteFile(ctx context.Context, id, by uint) error {
	return r.db.WithContext(ctx).Model(&File{}).
		Where("id = ?", id).
		Updates(map[string]any{"delete_flg": true, "update_acc": by}).Error
}

// UserUsage sums the KB of the user's active files.
func (r *Repository) UserUsage(ctx context.Context, userID uint) (int64, error) {
	var total int64
	return total, r.db.WithContext(ctx).Model(&File{}).
		Select("COALESCE(SUM(file_size), 0)").
		Where("user_id = ? AND delete_flg = ?", userID, false).
		Scan(&total).Error
}

// DepartmentUsage sums the KB of active files owned by the department's users.
func (r *Repository) DepartmentUsage(ctx context.Context, departmentID uint) (int64, error) {
	var total int64
	return total, r.db.WithContext(ctx).Model(&File{}).
		Select("COALESCE(SUM(cd_files.file_size), 0)").
		Joins("JOIN cd_users ON cd_users.id = cd_files.user_id").
		Where("cd_users.department_id = ? AND cd_files.delete_flg = ?", departmentID, false).
		Scan(&total).Error
}

// CompanyUsage sums the KB of active files in the company's directories.
func (r *Repository) CompanyUsage(ctx context.Context, companyID uint) (int64, error) {
	var total int64
	return total, r.db.WithContext(ctx).Model(&File{}).
		Select("COALESCE(SUM(cd_files.file_size), 0)").
		Joins("JOIN cd_directories ON cd_directories.id = cd_files.directory_id").
		Where("cd_directories.company_id = ? AND cd_files.delete_flg = ?", companyID, false).
		Scan(&total).Error
}

type CompanyUsage struct {
	CompanyID   uint
	CompanyName string
	Storage     int64
	Used        int64
}

const usageColumns = `cd_companies.id AS company_id, cd_companies.company_name AS company_name,
	cd_companies.storage AS storage, COALESCE(SUM(cd_files.file_size), 0) AS used`

func (r *Repository) UsageByCompany(ctx context.Context) ([]*CompanyUsage, error) {
	var res []*CompanyUsage
	return res, r.db.WithContext(ctx).Model(&Company{}).
		Select(usageColumns).
		Joins("LEFT JOIN cd_directories ON cd_directories.company_id = cd_companies.id").
		Joins("LEFT JOIN cd_files ON cd_files.directory_id = cd_directories.id AND cd_files.delete_flg = ?", false).
		Group("cd_companies.id, cd_companies.company_name, cd_companies.storage").
		Order("cd_companies.id").
		Scan(&res).Error
}

// FindFileType returns nil when the extension is not registered.
func (r *Repository) FindFileType(ctx context.Context, extension string) (*FileType, error) {
	if extension == "" {
		return nil, nil
	}
	var res []*FileType
	if err := r.db.WithContext(ctx).Where("extension = ?", extension).Limit(1).Find(&res).Error; err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0], nil
}
