package config

import (
	"fmt"
	"os"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
	"gopkg.in/yaml.v3"
)

// Manifest is a YAML batch of icons plus optional output settings.
type Manifest struct {
	OutputDir  string                `yaml:"output_dir,omitempty"`
	ReturnSVGs bool                  `yaml:"return_svgs,omitempty"`
	Icons      []fetcher.IconRequest `yaml:"icons"`
}

// LoadManifest reads and validates an icon manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("icon manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("icon manifest: %w", err)
	}
	if len(m.Icons) < 1 {
		return nil, fmt.Errorf("icon manifest: at least one icon entry is required")
	}
	for i, icon := range m.Icons {
		if err := icon.Validate(); err != nil {
			return nil, fmt.Errorf("icon manifest: icons[%d]: %w", i, err)
		}
	}
	return &m, nil
}
