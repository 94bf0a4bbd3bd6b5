package handler

import "github.com/konorlevich/cloud_cabinet/internal/rest-service/database"

type directoryResponse struct {
	DirectoryID    uint    `json:"directory_id"`
	DirectoryName  string  `json:"directory_name"`
	Path           *string `json:"path"`
	DirectoryClass int     `json:"directory_class"`
	OpenFlg        bool    `json:"open_flg"`
}

func newDirectoryResponse(d *database.Directory) directoryResponse {
	return directoryResponse{
		DirectoryID:    d.ID,
		DirectoryName:  d.Name,
		Path:           d.Path,
		DirectoryClass: d.Class,
		OpenFlg:        d.Private,
	}
}

type fileResponse struct {
	DirectoryID uint   `json:"directory_id"`
	FileID      uint   `json:"file_id"`
	FileName    string `json:"file_name"`
	// FileSize is in KB.
	FileSize int64 `json:"file_size"`
}

func newFileResponse(f *database.File) fileResponse {
	return fileResponse{DirectoryID: f.DirectoryID, FileID: f.ID, FileName: f.Name, FileSize: f.Size}
}

type favoriteResponse struct {
	ID             uint    `json:"id"`
	DirectoryID    uint    `json:"directory_id"`
	FavoriteName   string  `json:"favorite_name"`
	DirectoryPath  *string `json:"directory_path"`
	DirectoryClass int     `json:"directory_class"`
}

func newFavoriteResponse(f *database.Favorite) favoriteResponse {
	res := favoriteResponse{ID: f.ID, DirectoryID: f.DirectoryID, FavoriteName: f.Name}
	if f.Directory != nil {
		res.DirectoryPath = f.Directory.Path
		res.DirectoryClass = f.Directory.Class
	}
	return res
}

type companyResponse struct {
	ID          uint   `json:"id"`
	StorageName string `json:"storage_name"`
	CompanyName string `json:"company_name"`
	Storage     int64  `json:"storage"`
}

func newCompanyResponse(c *database.Company) companyResponse {
	return companyResponse{ID: c.ID, StorageName: c.StorageName, CompanyName: c.Name, Storage: c.Storage}
}

type departmentResponse struct {
	ID             uint   `json:"id"`
	CompanyID      uint   `json:"company_id"`
	DepartmentName string `json:"department_name"`
	Storage        int64  `json:"storage"`
}

func newDepartmentResponse(d *database.Department) departmentResponse {
	return departmentResponse{ID: d.ID, CompanyID: d.CompanyID, DepartmentName: d.Name, Storage: d.Storage}
}

type userResponse struct {
	ID           uint   `json:"id"`
	CompanyID    uint   `json:"company_id"`
	DepartmentID uint   `json:"department_id"`
	PersonalID   string `json:"personal_id"`
	UserName     string `json:"user_name"`
	Storage      int64  `json:"storage"`
	Permission   bool   `json:"permission"`
	Admin        bool   `json:"admin"`
}

func newUserResponse(u *database.User) userResponse {
	return userResponse{
		ID:           u.ID,
		CompanyID:    u.CompanyID,
		DepartmentID: u.DepartmentID,
		PersonalID:   u.PersonalID,
		UserName:     u.Name,
		Storage:      u.Storage,
		Permission:   u.Permission,
		Admin:        u.Admin,
	}
}
