// Package plugins discovers user-installed worker plugins under the plugins
// root and turns their manifests into tool definitions.
package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"aetherd/internal/config"
	"aetherd/pkg/logging"
)

// Discovered pairs a parsed manifest with the directory it came from.
type Discovered struct {
	// DirName is the plugin's directory name under the plugins root.
	DirName string
	// Dir is the absolute plugin directory.
	Dir string
	Manifest Manifest
}

// ID returns the tool id for the plugin: the manifest name, falling back to
// the directory name.
func (d Discovered) ID() string {
	if d.Manifest.Name != "" {
		return d.Manifest.Name
	}
	return d.DirName
}

// ToolConfig derives a ToolConfig from the discovered plugin. The port must
// already have been granted by the port registry.
func (d Discovered) ToolConfig(port int) config.ToolConfig {
	displayName := d.Manifest.DisplayName
	if displayName == "" {
		displayName = d.ID()
	}
	return config.ToolConfig{
		ID:          d.ID(),
		Port:        port,
		DisplayName: displayName,
		Category:    d.Manifest.Category,
		Icon:        d.Manifest.Icon,
		Version:     d.Manifest.Version,
		Author:      d.Manifest.Author,
		IsPlugin:    true,
		Path:        d.Dir,
	}
}

// Registry scans and loads plugin directories.
type Registry struct {
	root string
}

// NewRegistry creates a registry over the given plugins root directory.
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// Root returns the plugins root directory.
func (r *Registry) Root() string {
	return r.root
}

// Scan enumerates plugin subdirectories and parses their manifests.
// Directories without a manifest are skipped silently; invalid manifests are
// skipped with a logged diagnostic and never abort the scan.
func (r *Registry) Scan() ([]Discovered, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugins directory %s: %w", r.root, err)
	}

	var found []Discovered
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(r.root, entry.Name())
		manifestPath := filepath.Join(dir, config.ManifestName)
		if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
			continue
		}

		manifest, err := ParseManifestFile(manifestPath)
		if err != nil {
			logging.Warn("PluginRegistry", "Skipping plugin %s: %v", entry.Name(), err)
			continue
		}

		found = append(found, Discovered{
			DirName:  entry.Name(),
			Dir:      dir,
			Manifest: manifest,
		})
	}

	return found, nil
}

// Load re-reads a single plugin by id. The id matches either the plugin's
// directory name or its manifest name. The plugin directory must already
// exist (installation is the caller's responsibility).
func (r *Registry) Load(id string) (Discovered, error) {
	// Fast path: directory named after the id
	dir := filepath.Join(r.root, id)
	manifestPath := filepath.Join(dir, config.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		manifest, err := ParseManifestFile(manifestPath)
		if err != nil {
			return Discovered{}, err
		}
		return Discovered{DirName: id, Dir: dir, Manifest: manifest}, nil
	}

	// Slow path: manifest name differs from directory name
	all, err := r.Scan()
	if err != nil {
		return Discovered{}, err
	}
	for _, d := range all {
		if d.ID() == id {
			return d, nil
		}
	}

	return Discovered{}, fmt.Errorf("plugin %q not found under %s", id, r.root)
}
