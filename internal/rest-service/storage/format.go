package storage

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
)

const (
	FolderType   = "ファイルフォルダー"
	FolderIconID = 99
	TimeLayout   = "2006-01-02 15:04:05"
)

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// Entry is one row of a directory listing, a file or a child folder.
type Entry struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Size        *string `json:"size"`
	Type        string  `json:"type"`
	IconID      int     `json:"icon_id"`
	UpdatedAt   string  `json:"updated_at"`
	IsDirectory bool    `json:"is_directory"`
}

// FormatSize renders a KB amount the way listings show it: "1KB", "1.50MB".
// Anything below one KB is shown as 1KB.
func FormatSize(kb float64) string {
	if kb < 1 {
		return "1KB"
	}
	unit := 0
	for kb >= 1024 && unit < len(sizeUnits)-1 {
		kb /= 1024
		unit++
	}
	if kb == float64(int64(kb)) {
		return strconv.FormatInt(int64(kb), 10) + sizeUnits[unit]
	}
	return strconv.FormatFloat(kb, 'f', 2, 64) + sizeUnits[unit]
}

// SizeKB converts a byte count to whole KB, rounding up, at least 1.
func SizeKB(bytes int64) int64 {
	kb := (bytes + 1023) / 1024
	if kb < 1 {
		return 1
	}
	return kb
}

// extension is the lookup key of the filetype registry: the suffix from the
// last dot, case as given. Leading dots don't start an extension, so
// ".bashrc" has none.
func extension(name string) string {
	return path.Ext(strings.TrimLeft(name, "."))
}

func typeLabel(name string, ft *database.FileType) (string, int) {
	if ft != nil {
		return ft.Name, ft.IconID
	}
	return strings.TrimPrefix(extension(name), ".") + "ファイル", 0
}

func fileEntry(f *database.File) Entry {
	size := FormatSize(float64(f.Size))
	label, icon := typeLabel(f.Name, f.FileType)
	return Entry{
		ID:        f.ID,
		Name:      f.Name,
		Size:      &size,
		Type:      label,
		IconID:    icon,
		UpdatedAt: formatTime(f.FileUpdateAt),
	}
}

func directoryEntry(d *database.Directory) Entry {
	return Entry{
		ID:          d.ID,
		Name:        d.Name,
		Type:        FolderType,
		IconID:      FolderIconID,
		UpdatedAt:   formatTime(d.UpdateAt),
		IsDirectory: true,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}
