package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Loader loads gate catalogs from YAML files and caches them by file
// modification time. A loader belongs to one engine goroutine; it is not
// safe for concurrent use.
type Loader struct {
	dir    string
	logger zerolog.Logger
	cache  map[int]*cachedCatalog
}

type cachedCatalog struct {
	catalog *Catalog
	modTime time.Time
}

// NewLoader creates a loader reading gate{1,2,3}_patterns.yaml from dir.
func NewLoader(dir string, logger zerolog.Logger) *Loader {
	return &Loader{
		dir:    dir,
		logger: logger,
		cache:  make(map[int]*cachedCatalog),
	}
}

// LoadGatePatterns returns the catalog for gate 1, 2 or 3. The file is
// re-parsed only when its mtime has advanced; a parse or validation failure
// returns an error and keeps the previously cached catalog intact.
func (l *Loader) LoadGatePatterns(gate int) (*Catalog, error) {
	if gate < 1 || gate > 3 {
		return nil, fmt.Errorf("invalid gate number %d", gate)
	}

	path := filepath.Join(l.dir, fmt.Sprintf("gate%d_patterns.yaml", gate))
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat pattern file: %w", err)
	}

	if cached, ok := l.cache[gate]; ok && !info.ModTime().After(cached.modTime) {
		return cached.catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern file: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := Validate(&catalog); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	l.cache[gate] = &cachedCatalog{catalog: &catalog, modTime: info.ModTime()}
	l.logger.Info().Int("gate", gate).Int("patterns", len(catalog.Patterns)).
		Str("file", path).Msg("pattern catalog loaded")
	return &catalog, nil
}

// Validate checks catalog structure: every pattern has name and description,
// every condition has name, indicator and a known operator.
func Validate(catalog *Catalog) error {
	if len(catalog.Patterns) == 0 {
		return fmt.Errorf("catalog has no patterns")
	}

	for key, pattern := range catalog.Patterns {
		if pattern == nil {
			return fmt.Errorf("pattern %q: empty config", key)
		}
		if pattern.Name == "" {
			return fmt.Errorf("pattern %q: missing name", key)
		}
		if pattern.Description == "" {
			return fmt.Errorf("pattern %q: missing description", key)
		}

		if err := validateConditions(key, pattern.Conditions); err != nil {
			return err
		}
		for variant, cfg := range pattern.Variants {
			if cfg == nil || len(cfg.Conditions) == 0 {
				return fmt.Errorf("pattern %q variant %q: no conditions", key, variant)
			}
			if err := validateConditions(key+"/"+variant, cfg.Conditions); err != nil {
				return err
			}
		}
		for env, cfg := range pattern.EnvironmentConditions {
			if cfg == nil || len(cfg.Conditions) == 0 {
				return fmt.Errorf("pattern %q environment %q: no conditions", key, env)
			}
			if err := validateConditions(key+"/"+env, cfg.Conditions); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateConditions(scope string, conditions []*Condition) error {
	for i, cond := range conditions {
		if cond == nil {
			return fmt.Errorf("%s: condition %d is empty", scope, i)
		}
		if cond.Name == "" {
			return fmt.Errorf("%s: condition %d missing name", scope, i)
		}
		if cond.Indicator == "" {
			return fmt.Errorf("%s: condition %q missing indicator", scope, cond.Name)
		}
		if !validOperators[cond.Operator] {
			return fmt.Errorf("%s: condition %q has unknown operator %q", scope, cond.Name, cond.Operator)
		}
	}
	return nil
}
