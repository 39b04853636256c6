package trace

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/witgen/types"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// CircuitDiff describes one circuit that differs between two dumps. Only
// is set when the circuit exists on one side alone.
type CircuitDiff struct {
	Resource types.Resource
	Index    int
	Only     string
	Text     string
}

func (d CircuitDiff) String() string {
	if d.Only != "" {
		return fmt.Sprintf("%s[%d]: only in %s", d.Resource, d.Index, d.Only)
	}
	return fmt.Sprintf("%s[%d]:\n%s", d.Resource, d.Index, d.Text)
}

type circuitID struct {
	resource types.Resource
	index    int
}

// DiffRecords compares two circuit dumps by resource and index, ignoring run
// ids. Results follow the order of a, then circuits only present in b.
func DiffRecords(a, b []RawCircuitRecord) ([]CircuitDiff, error) {
	right := make(map[circuitID]json.RawMessage, len(b))
	for _, r := range b {
		right[circuitID{r.Resource, r.Index}] = r.Circuit
	}
	seen := make(map[circuitID]bool, len(a))
	differ := gojsondiff.New()

	var out []CircuitDiff
	for _, l := range a {
		id := circuitID{l.Resource, l.Index}
		seen[id] = true
		rc, ok := right[id]
		if !ok {
			out = append(out, CircuitDiff{Resource: l.Resource, Index: l.Index, Only: "left"})
			continue
		}
		delta, err := differ.Compare(l.Circuit, rc)
		if err != nil {
			return nil, fmt.Errorf("diff %s[%d]: %w", l.Resource, l.Index, err)
		}
		if !delta.Modified() {
			continue
		}
		var leftObj map[string]interface{}
		if err := json.Unmarshal(l.Circuit, &leftObj); err != nil {
			return nil, err
		}
		f := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
		text, err := f.Format(delta)
		if err != nil {
			return nil, fmt.Errorf("format %s[%d]: %w", l.Resource, l.Index, err)
		}
		out = append(out, CircuitDiff{Resource: l.Resource, Index: l.Index, Text: text})
	}
	for _, r := range b {
		if !seen[circuitID{r.Resource, r.Index}] {
			out = append(out, CircuitDiff{Resource: r.Resource, Index: r.Index, Only: "right"})
		}
	}
	return out, nil
}
