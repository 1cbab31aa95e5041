package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/bilgisen/nnews/internal/models"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Source families.
const (
	FamilyRSS      = "rss"
	FamilyTelegram = "telegram"
	FamilyNational = "national"
)

// Per-source defaults applied when the registry leaves a field empty.
const (
	DefaultScanLimit        = 20
	DefaultMaxItems         = 15
	DefaultDescriptionLimit = 500
)

// DefaultFallbackPaths are tried on base_url after the primary feed URL.
var DefaultFallbackPaths = []string{"/rss.xml", "/feed/", "/rss/", "/news.rss"}

//go:embed sources.yaml
var embeddedSources []byte

type registryFile struct {
	Sources []models.SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
}

// Registry is the validated list of configured sources.
type Registry struct {
	sources []models.SourceConfig
}

// LoadSources reads the registry from path, or the built-in one when path is empty.
func LoadSources(path string) (*Registry, error) {
	data := embeddedSources
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
		}
		data = b
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a YAML registry document.
func ParseSources(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid sources: %w", err)
	}

	seen := make(map[string]bool, len(file.Sources))
	for i := range file.Sources {
		src := &file.Sources[i]
		if seen[src.ID] {
			return nil, fmt.Errorf("invalid sources: duplicate id %q", src.ID)
		}
		seen[src.ID] = true
		applyDefaults(src)
	}

	return &Registry{sources: file.Sources}, nil
}

func applyDefaults(src *models.SourceConfig) {
	if src.ScanLimit == 0 {
		src.ScanLimit = DefaultScanLimit
	}
	if src.MaxItems == 0 {
		src.MaxItems = DefaultMaxItems
	}
	if src.DescriptionLimit == 0 {
		src.DescriptionLimit = DefaultDescriptionLimit
	}
	if src.BaseURL != "" && len(src.FallbackPaths) == 0 {
		src.FallbackPaths = append([]string(nil), DefaultFallbackPaths...)
	}
}

// Family returns the enabled sources of one family ordered by priority.
func (r *Registry) Family(family string) []models.SourceConfig {
	var out []models.SourceConfig
	for _, s := range r.sources {
		if s.Family == family && s.IsEnabled() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// All returns every configured source, enabled or not.
func (r *Registry) All() []models.SourceConfig {
	return append([]models.SourceConfig(nil), r.sources...)
}

// Families lists the family names present in the registry.
func (r *Registry) Families() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.sources {
		if !seen[s.Family] {
			seen[s.Family] = true
			out = append(out, s.Family)
		}
	}
	sort.Strings(out)
	return out
}
