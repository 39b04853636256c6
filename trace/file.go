package trace

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/witness"
)

// ReadTrace loads a JSON trace file.
func ReadTrace(path string) (*witness.Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	var t witness.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", path, err)
	}
	log.Debug(log.WitnessMonitoring, "ReadTrace", "path", path, "events", len(t.Events), "calls", len(t.PrecompileWork), "decommits", len(t.Decommits))
	return &t, nil
}

// WriteTrace stores t as indented JSON.
func WriteTrace(path string, t *witness.Trace) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trace %s: %w", path, err)
	}
	return nil
}
