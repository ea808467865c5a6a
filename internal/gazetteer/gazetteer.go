package gazetteer

import (
	_ "embed"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

//go:embed districts.yaml
var embeddedDistricts []byte

type department struct {
	Department     string `yaml:"department"`
	Municipalities []struct {
		Name      string   `yaml:"name"`
		Districts []string `yaml:"districts"`
	} `yaml:"municipalities"`
}

// Load returns the district table from path, or the embedded table when
// path is empty. Order follows the file.
func Load(path string) ([]models.District, error) {
	data := embeddedDistricts
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read gazetteer: %w", err)
		}
		data = raw
	}

	districts, err := Parse(data)
	if err != nil {
		return nil, err
	}

	logger.Info("Gazetteer loaded",
		zap.String("source", sourceName(path)),
		zap.Int("districts", len(districts)),
	)

	return districts, nil
}

func Parse(data []byte) ([]models.District, error) {
	var departments []department
	if err := yaml.Unmarshal(data, &departments); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer: %w", err)
	}

	var districts []models.District
	for _, d := range departments {
		for _, m := range d.Municipalities {
			for _, name := range m.Districts {
				districts = append(districts, models.District{
					Name:         name,
					Municipality: m.Name,
					Department:   d.Department,
				})
			}
		}
	}

	if len(districts) == 0 {
		return nil, fmt.Errorf("gazetteer has no districts")
	}

	return districts, nil
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
