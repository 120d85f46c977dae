// Package catalog loads the model catalog used by evaluation runs and
// answer synthesis.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

type catalogFile struct {
	Default string               `yaml:"default"`
	Models  []domain.ModelConfig `yaml:"models"`
}

// Catalog is an immutable, file-backed model registry. The default entry
// backs every answer request that does not name a model.
type Catalog struct {
	models    []domain.ModelConfig
	byID      map[string]domain.ModelConfig
	defaultID string
}

// Load reads and validates the catalog file at path. Every model needs an
// id, every id must be unique, and the declared default must exist.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model catalog declares no models")
	}

	byID := make(map[string]domain.ModelConfig, len(file.Models))
	for _, model := range file.Models {
		id := strings.TrimSpace(model.ID)
		if id == "" {
			return nil, fmt.Errorf("model catalog entry without id")
		}
		if _, exists := byID[id]; exists {
			return nil, fmt.Errorf("duplicate model id %q in catalog", id)
		}
		byID[id] = model
	}

	defaultID := strings.TrimSpace(file.Default)
	if defaultID == "" {
		defaultID = file.Models[0].ID
	}
	if _, ok := byID[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q not declared in catalog", defaultID)
	}

	return &Catalog{
		models:    file.Models,
		byID:      byID,
		defaultID: defaultID,
	}, nil
}

func (c *Catalog) All() []domain.ModelConfig {
	out := make([]domain.ModelConfig, len(c.models))
	copy(out, c.models)
	return out
}

// Resolve maps ids to configured models. An empty list resolves to the
// whole catalog so evaluation requests can mean "every model we track".
func (c *Catalog) Resolve(ids []string) ([]domain.ModelConfig, error) {
	if len(ids) == 0 {
		return c.All(), nil
	}
	out := make([]domain.ModelConfig, 0, len(ids))
	for _, id := range ids {
		model, ok := c.byID[strings.TrimSpace(id)]
		if !ok {
			return nil, fmt.Errorf("model %q not in catalog", id)
		}
		out = append(out, model)
	}
	return out, nil
}

func (c *Catalog) Default() domain.ModelConfig {
	return c.byID[c.defaultID]
}
