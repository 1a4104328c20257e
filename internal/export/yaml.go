package export

import (
	"fmt"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Records []models.CapturedDataSet `yaml:"records"`
}

func renderYAML(records []models.CapturedDataSet) ([]byte, error) {
	data, err := yaml.Marshal(yamlDocument{Records: records})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}
