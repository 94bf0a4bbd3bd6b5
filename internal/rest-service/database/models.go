package database

import "time"

// Audit columns shared by the company-owned tables.
type Audit struct {
	CreateAt  time.Time `gorm:"autoCreateTime"`
	CreateAcc *uint
	UpdateAt  time.Time `gorm:"autoUpdateTime"`
	UpdateAcc *uint
}

type Company struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"column:company_name;size:100;not null;uniqueIndex"`
	StorageName string `gorm:"size:63;not null;uniqueIndex"`
	// Storage is the quota in KB.
	Storage int64 `gorm:"not null"`
	Audit
}

func (Company) TableName() string { return "cd_companies" }

type Department struct {
	ID        uint     `gorm:"primaryKey"`
	CompanyID uint     `gorm:"not null;index"`
	Company   *Company `gorm:"constraint:OnDelete:RESTRICT"`
	Name      string   `gorm:"column:department_name;size:100;not null"`
	Storage   int64    `gorm:"not null"`
	Audit
}

func (Department) TableName() string { return "cd_departments" }

type User struct {
	ID           uint        `gorm:"primaryKey"`
	CompanyID    uint        `gorm:"not null;index"`
	Company      *Company    `gorm:"constraint:OnDelete:RESTRICT"`
	DepartmentID uint        `gorm:"not null;index"`
	Department   *Department `gorm:"constraint:OnDelete:RESTRICT"`
	PersonalID   string      `gorm:"size:100;not null;uniqueIndex"`
	Name         string      `gorm:"column:user_name;size:100;not null"`
	Storage      int64       `gorm:"not null"`
	Permission   bool        `gorm:"not null"`
	Admin        bool        `gorm:"not null"`
	Deleted      bool        `gorm:"column:delete_flg;not null"`
	Audit
}

func (User) TableName() string { return "cd_users" }

type Directory struct {
	ID        uint     `gorm:"primaryKey"`
	CompanyID uint     `gorm:"not null;index:idx_directory_company_path"`
	Company   *Company `gorm:"constraint:OnDelete:RESTRICT"`
	Path      *string  `gorm:"size:700;index:idx_directory_company_path"`
	Name      string   `gorm:"column:directory_name;size:100;not null"`
	Class     int      `gorm:"column:directory_class;not null"`
	// Private is stored as open_flg: true means an explicit Permission is required.
	Private bool `gorm:"column:open_flg;not null"`
	Deleted bool `gorm:"column:delete_flg;not null"`
	Audit
}

func (Directory) TableName() string { return "cd_directories" }

type Permission struct {
	UserID      uint       `gorm:"primaryKey;autoIncrement:false"`
	User        *User      `gorm:"constraint:OnDelete:CASCADE"`
	DirectoryID uint       `gorm:"primaryKey;autoIncrement:false"`
	Directory   *Directory `gorm:"constraint:OnDelete:CASCADE"`
	CreateAt    time.Time  `gorm:"autoCreateTime"`
}

func (Permission) TableName() string { return "cd_permissions" }

type FileType struct {
	ID        uint   `gorm:"primaryKey"`
	Extension string `gorm:"size:10;not null;uniqueIndex"`
	Name      string `gorm:"column:filetype_name;size:100;not null"`
	IconID    int    `gorm:"not null"`
}

func (FileType) TableName() string { return "cd_filetypes" }

type File struct {
	ID          uint       `gorm:"primaryKey"`
	DirectoryID uint       `gorm:"not null;index"`
	Directory   *Directory `gorm:"constraint:OnDelete:RESTRICT"`
	UserID      uint       `gorm:"not null;index"`
	User        *User      `gorm:"constraint:OnDelete:RESTRICT"`
	Name        string     `gorm:"column:file_name;size:255;not null"`
	// Size is in KB.
	Size         int64     `gorm:"column:file_size;not null"`
	FileTypeID   *uint     `gorm:"column:filetype_id"`
	FileType     *FileType `gorm:"constraint:OnDelete:SET NULL"`
	FileUpdateAt time.Time `gorm:"not null"`
	Deleted      bool      `gorm:"column:delete_flg;not null"`
	Audit
}

func (File) TableName() string { return "cd_files" }

type Favorite struct {
	ID          uint       `gorm:"primaryKey"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_favorite_user_name"`
	User        *User      `gorm:"constraint:OnDelete:CASCADE"`
	DirectoryID uint       `gorm:"not null;index"`
	Directory   *Directory `gorm:"constraint:OnDelete:CASCADE"`
	Name        string     `gorm:"column:favorite_name;size:100;not null;uniqueIndex:idx_favorite_user_name"`
	Audit
}

func (Favorite) TableName() string { return "cd_favorites" }

// Models lists the tables in migration order.
func Models() []any {
	return []any{
		&Company{}, &Department{}, &User{}, &Directory{},
		&Permission{}, &FileType{}, &File{}, &Favorite{},
	}
}
