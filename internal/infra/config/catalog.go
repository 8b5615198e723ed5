package config

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// catalogFile is the on-disk catalog layout:
//
//	videos:
//	  - BAACAgIAAxkBAAMDaJ2F...   # Telegram file_id
//	  - https://example.com/2.mp4
type catalogFile struct {
	Videos []string `yaml:"videos"`
}

// LoadCatalogFile reads the ordered video list from a YAML file.
func LoadCatalogFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return f.Videos, nil
}
