package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/database"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		kb   float64
		want string
	}{
		{kb: 0, want: "1KB"},
		{kb: 0.5, want: "1KB"},
		{kb: 1, want: "1KB"},
		{kb: 1023, want: "1023KB"},
		{kb: 1024, want: "1MB"},
		{kb: 1536, want: "1.50MB"},
		{kb: 1100, want: "1.07MB"},
		{kb: 1 << 20, want: "1GB"},
		{kb: 1 << 30, want: "1TB"},
		{kb: 1 << 41, want: "2048TB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.kb))
		})
	}
}

func TestSizeKB(t *testing.T) {
	for bytes, want := range map[int64]int64{0: 1, 1: 1, 1023: 1, 1024: 1, 1025: 2, 9_216_000: 9000} {
		assert.Equal(t, want, SizeKB(bytes), "bytes=%d", bytes)
	}
}

func TestExtension(t *testing.T) {
	for name, want := range map[string]string{
		"a.txt": ".txt", "archive.tar.gz": ".gz", "Makefile": "", ".bashrc": "", "..hidden": "", ".env.local": ".local",
	} {
		assert.Equal(t, want, extension(name), name)
	}
}

func TestTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		ft       *database.FileType
		wantName string
		wantIcon int
	}{
		{name: "registered", file: "a.pdf", ft: &database.FileType{Name: "PDF ファイル", IconID: 3}, wantName: "PDF ファイル", wantIcon: 3},
		{name: "unknown extension", file: "notes.md", wantName: "mdファイル"},
		{name: "no extension", file: "Makefile", wantName: "ファイル"},
		{name: "case kept", file: "IMG.JPG", wantName: "JPGファイル"},
		{name: "dotfile", file: ".bashrc", wantName: "ファイル"},
		{name: "dotfile with extension", file: ".config.json", wantName: "jsonファイル"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, icon := typeLabel(tt.file, tt.ft)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantIcon, icon)
		})
	}
}
