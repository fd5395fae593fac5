package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/conveyordev/conveyor/internal/graph"
)

// DefaultManifestName is the manifest looked up in the working directory
// when no -f flag is given.
const DefaultManifestName = "conveyor.yaml"

// TaskDef is one task entry in the manifest. Order matters: declaration
// order is the scheduling tie-break order.
type TaskDef struct {
	Name string            `yaml:"name"`
	Deps []string          `yaml:"deps,omitempty"`
	Cmds []string          `yaml:"cmds,omitempty"`
	Dir  string            `yaml:"dir,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
}

// Manifest is the declarative pipeline definition.
type Manifest struct {
	Tasks []TaskDef `yaml:"tasks"`
}

// LoadManifest reads and parses a YAML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if len(m.Tasks) == 0 {
		return nil, fmt.Errorf("manifest %s defines no tasks", path)
	}
	for i, task := range m.Tasks {
		if task.Name == "" {
			return nil, fmt.Errorf("manifest %s: task %d has no name", path, i)
		}
	}

	return &m, nil
}

// Graph builds and validates the task graph from the manifest.
// Duplicate names, unknown prerequisites, and cycles are all rejected here,
// before anything executes. A task with no cmds is a valid aggregation node.
func (m *Manifest) Graph() (*graph.Graph, error) {
	g := graph.New()

	for _, def := range m.Tasks {
		task := &graph.Task{
			Name:     def.Name,
			Deps:     def.Deps,
			Commands: def.Cmds,
			Dir:      def.Dir,
			Env:      def.Env,
		}
		if err := g.Define(task); err != nil {
			return nil, err
		}
	}

	if _, err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// StarterManifest is written by `conveyor init` as a working example.
const StarterManifest = `tasks:
  - name: test
    cmds:
      - go test ./...

  - name: build
    cmds:
      - go build ./...

  - name: publish
    deps: [build]
    cmds:
      - echo "publishing"

  - name: all
    deps: [test, build, publish]
`

// WriteStarterManifest writes the example manifest to path.
// Refuses to overwrite an existing file.
func WriteStarterManifest(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(StarterManifest), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
