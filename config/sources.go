package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sources/*.yaml
var builtinSources embed.FS

// ErrUnknownSource is returned when a caller names a source nobody configured.
var ErrUnknownSource = errors.New("unknown source")

// Sources is the registry of scrapeable agencies, keyed by name.
type Sources map[string]*SourceConfig

// Get returns the named source or ErrUnknownSource.
func (s Sources) Get(name string) (*SourceConfig, error) {
	src, ok := s[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return src, nil
}

// Names returns the configured source names, sorted.
func (s Sources) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadSources loads the built-in source definitions, then any *.yaml / *.yml
// files from dir. A file in dir replaces a built-in source with the same name.
func LoadSources(dir string) (Sources, error) {
	sources := make(Sources)

	builtin, err := fs.Glob(builtinSources, "sources/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list built-in sources: %w", err)
	}
	for _, file := range builtin {
		data, err := builtinSources.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := sources.add(file, data); err != nil {
			return nil, err
		}
	}

	if dir == "" {
		return sources, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return sources, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := sources.add(file, data); err != nil {
			return nil, err
		}
		log.Printf("[config] Loaded source configuration from %s", file)
	}

	return sources, nil
}

// ParseSource decodes and validates a single source definition.
func ParseSource(data []byte) (*SourceConfig, error) {
	var src SourceConfig
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	src.Name = strings.ToLower(strings.TrimSpace(src.Name))
	src.setDefaults()
	if err := src.compile(); err != nil {
		return nil, err
	}
	return &src, nil
}

func (s Sources) add(file string, data []byte) error {
	src, err := ParseSource(data)
	if err != nil {
		return fmt.Errorf("invalid source config %s: %w", file, err)
	}
	s[src.Name] = src
	return nil
}
