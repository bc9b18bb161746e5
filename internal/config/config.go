package config

import (
	"encoding/json"
	"os"

	"trade-assistant-go/internal/models"
)

// LoadConfig reads the JSON config file at path into a Config struct and
// fills in defaults for unset values.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	cfg := &models.Config{}
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
