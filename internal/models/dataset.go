package models

// Dataset is the bundled startup snapshot: reference graph plus initial blocks.
type Dataset struct {
	Meta   map[string]any `yaml:"meta" json:"meta"`
	Nodes  []Node         `yaml:"nodes" json:"nodes"`
	Edges  []Edge         `yaml:"edges" json:"edges"`
	Blocks []Block        `yaml:"blocks" json:"blocks"`
}
