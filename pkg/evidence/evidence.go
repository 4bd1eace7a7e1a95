// Package evidence writes and validates the deterministic JSON
// artifacts of a forest-change run. Artifacts are byte-stable: the
// same inputs always produce identical files, so their SHA-256 digests
// can stand in audit trails.
package evidence

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// CanonicalJSON serializes a payload with sorted object keys, no
// insignificant whitespace and a single trailing newline. Payloads are
// built from map[string]any so encoding/json's key sorting applies.
func CanonicalJSON(payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("evidence: canonical marshal: %w", err)
	}

	return append(b, '\n'), nil
}

// WriteJSON writes a payload as canonical JSON. The file is written
// through a temporary name and renamed into place so partially written
// artifacts never become visible.
func WriteJSON(path string, payload any) error {
	b, err := CanonicalJSON(payload)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("evidence: create artifact dir: %w", err)
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("evidence: write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("evidence: finalize %s: %w", filepath.Base(path), err)
	}

	return nil
}

// Round6 rounds to six decimal places, the precision hectare figures
// carry in evidence artifacts.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
