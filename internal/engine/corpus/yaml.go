package corpus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type file struct {
	Documents []Document `yaml:"documents"`
}

// LoadYAML reads a document list of the form
//
//	documents:
//	  - id: d1
//	    source: doc
//	    title: Quarterly report
//	    body: ...
func LoadYAML(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}
	if err := checkDocuments(f.Documents); err != nil {
		return nil, fmt.Errorf("corpus file %s: %w", path, err)
	}
	return f.Documents, nil
}
