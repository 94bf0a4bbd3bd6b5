package database

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed filetypes.yaml
var fileTypesYAML []byte

type fileTypeSeed struct {
	Extension string `yaml:"extension"`
	Name      string `yaml:"name"`
	Icon      int    `yaml:"icon"`
}

// SeedFileTypes inserts the known extensions, keeping rows that already exist.
func SeedFileTypes(db *gorm.DB) error {
	var seeds []fileTypeSeed
	if err := yaml.Unmarshal(fileTypesYAML, &seeds); err != nil {
		return fmt.Errorf("can't parse file types: %w", err)
	}
	if len(seeds) == 0 {
		return nil
	}
	rows := make([]*FileType, 0, len(seeds))
	for _, s := range seeds {
		rows = append(rows, &FileType{Extension: s.Extension, Name: s.Name, IconID: s.Icon})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
}
