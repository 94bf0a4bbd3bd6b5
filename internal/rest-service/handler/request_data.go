package handler

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	fieldNameDirectoryID = "directory_id"
	fieldNameFile        = "file"

	// multipart parts above this are spooled to disk
	maxUploadMemory = 32 << 20
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type directoryCreate struct {
	DirectoryID   uint   `json:"directory_id"`
	DirectoryName string `json:"directory_name" validate:"required,max=100"`
	OpenFlg       bool   `json:"open_flg"`
}

type directoryRename struct {
	DirectoryID      uint   `json:"directory_id" validate:"required"`
	NewDirectoryName string `json:"new_directory_name" validate:"required,max=100"`
}

type directoryDelete struct {
	DirectoryID uint `json:"directory_id" validate:"required"`
}

type permissionChange struct {
	UserID      uint `json:"user_id" validate:"required"`
	DirectoryID uint `json:"directory_id" validate:"required"`
}

type fileList struct {
	DirectoryID uint `json:"directory_id"`
}

type fileRef struct {
	FileID uint `json:"file_id" validate:"required"`
}

type fileRename struct {
	FileID      uint   `json:"file_id" validate:"required"`
	NewFileName string `json:"new_file_name" validate:"required,max=255"`
}

type favoriteCreate struct {
	DirectoryID  uint   `json:"directory_id" validate:"required"`
	FavoriteName string `json:"favorite_name" validate:"required,max=100"`
}

type favoriteUpdate struct {
	ID           uint   `json:"id" validate:"required"`
	DirectoryID  uint   `json:"directory_id"`
	FavoriteName string `json:"favorite_name" validate:"required,max=100"`
}

type companyCreate struct {
	StorageName string `json:"storage_name" validate:"required,min=3,max=63"`
	CompanyName string `json:"company_name" validate:"required,max=100"`
	Storage     int64  `json:"storage" validate:"gt=0"`
}

type companyUpdate struct {
	ID          uint   `json:"id" validate:"required"`
	CompanyName string `json:"company_name" validate:"required,max=100"`
	Storage     int64  `json:"storage" validate:"gt=0"`
}

type departmentCreate struct {
	DepartmentName string `json:"department_name" validate:"required,max=100"`
	Storage        int64  `json:"storage" validate:"gte=0"`
}

type departmentUpdate struct {
	ID             uint   `json:"id" validate:"required"`
	DepartmentName string `json:"department_name" validate:"required,max=100"`
	Storage        int64  `json:"storage" validate:"gte=0"`
}

type userCreate struct {
	DepartmentID uint   `json:"department_id" validate:"required"`
	PersonalID   string `json:"personal_id" validate:"required,max=100"`
	UserName     string `json:"user_name" validate:"required,max=100"`
	Storage      int64  `json:"storage" validate:"gt=0"`
	Permission   bool   `json:"permission"`
	Admin        bool   `json:"admin"`
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errCantParseBody, err)
	}
	return validate.Struct(v)
}

// pathID reads a numeric path value such as {company_id}.
func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s %q", errBadID, name, r.PathValue(name))
	}
	return uint(id), nil
}

type fileData struct {
	f      multipart.File
	header *multipart.FileHeader
}

type uploadData struct {
	directoryID uint
	file        *fileData
}

func (u *uploadData) Close() error {
	return u.file.f.Close()
}

// newUploadData parses the multipart upload form. The caller closes the file.
func newUploadData(r *http.Request) (*uploadData, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("%w: %w", errCantParseBody, err)
	}
	ud := &uploadData{}
	if v := r.FormValue(fieldNameDirectoryID); v != "" {
		id, err := strconv.ParseUint(v, 10, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", errBadID, fieldNameDirectoryID, v)
		}
		ud.directoryID = uint(id)
	}
	f, fh, err := r.FormFile(fieldNameFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNoFile, err)
	}
	ud.file = &fileData{f: f, header: fh}
	return ud, nil
}
