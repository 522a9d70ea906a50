package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// MarkerName is the ready marker written into a tool's virtualenv directory
// once provisioning succeeds. It is a cache, never a security boundary.
const MarkerName = ".aether-env.json"

// readyMarker records a completed provisioning run.
type readyMarker struct {
	Tool             string `json:"tool"`
	Timestamp        string `json:"timestamp"`
	RuntimePath      string `json:"runtimePath"`
	RequirementsHash string `json:"requirementsHash,omitempty"`
}

func markerPath(envDir string) string {
	return filepath.Join(envDir, MarkerName)
}

func readMarker(envDir string) (readyMarker, bool) {
	data, err := os.ReadFile(markerPath(envDir))
	if err != nil {
		return readyMarker{}, false
	}
	var m readyMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return readyMarker{}, false
	}
	return m, true
}

func writeMarker(envDir, toolID, runtimePath, requirementsHash string) error {
	m := readyMarker{
		Tool:             toolID,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		RuntimePath:      runtimePath,
		RequirementsHash: requirementsHash,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(markerPath(envDir), data, 0o644)
}

// hashRequirements fingerprints a dependency manifest so a changed manifest
// invalidates the ready marker. Returns "" when no manifest exists.
func hashRequirements(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
