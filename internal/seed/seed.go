// Package seed loads the startup dataset: reference graph and initial blocks.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/float/internal/models"
)

//go:embed default.yaml
var defaultDataset []byte

// Load reads the dataset at path, or the bundled default when path is empty.
// JSON files are accepted since JSON is valid YAML.
func Load(path string) (*models.Dataset, error) {
	data := defaultDataset
	source := "embedded default"
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("seed: read %s: %w", path, err)
		}
		data = raw
		source = path
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("seed: %s: %w", source, err)
	}
	return ds, nil
}

// Parse decodes a dataset document.
func Parse(data []byte) (*models.Dataset, error) {
	var ds models.Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i := range ds.Nodes {
		if len(ds.Nodes[i].Extra) == 0 {
			ds.Nodes[i].Extra = nil
		}
	}
	return &ds, nil
}
