package pulumi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Plugin packages every generated program may import.
var Dependencies = map[string]string{
	"@pulumi/pulumi":       "^3.0.0",
	"@pulumi/aws":          "^5.0.0",
	"@pulumi/azure-native": "^2.0.0",
	"@pulumi/gcp":          "^6.0.0",
}

// Project describes the files written for one preview or deployment.
type Project struct {
	Name        string
	Description string
	Program     string
}

type projectDescriptor struct {
	Name        string `yaml:"name"`
	Runtime     string `yaml:"runtime"`
	Description string `yaml:"description,omitempty"`
}

type packageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Main         string            `json:"main"`
	Private      bool              `json:"private"`
	Dependencies map[string]string `json:"dependencies"`
}

// Write lays out index.ts, package.json and Pulumi.yaml in dir.
func Write(dir string, p Project) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	descriptor, err := yaml.Marshal(projectDescriptor{Name: p.Name, Runtime: "nodejs", Description: p.Description})
	if err != nil {
		return fmt.Errorf("encode Pulumi.yaml: %w", err)
	}
	manifest, err := json.MarshalIndent(packageManifest{
		Name:         p.Name,
		Version:      "1.0.0",
		Main:         "index.ts",
		Private:      true,
		Dependencies: Dependencies,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode package.json: %w", err)
	}

	files := map[string][]byte{
		"index.ts":     []byte(p.Program),
		"package.json": manifest,
		"Pulumi.yaml":  descriptor,
	}
	for filename, content := range files {
		if err := os.WriteFile(filepath.Join(dir, filename), content, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
	}
	return nil
}
