package plugins

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Manifest is the externally supplied plugin descriptor, read from a
// plugin.json at the root of each plugin directory. Only the name is
// required; the port is advisory (the registry may grant a different one).
type Manifest struct {
	Name        string `json:"name" validate:"required"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Author      string `json:"author,omitempty"`
	Category    string `json:"category,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Port        int    `json:"port,omitempty" validate:"omitempty,gte=1024,lte=65535"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseManifestFile reads and validates a plugin manifest.
func ParseManifestFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if err := validate.Struct(m); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	return m, nil
}
