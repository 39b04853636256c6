package types

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/witgen/witerrors"
	"gopkg.in/yaml.v2"
)

// GeometryConfig is the per-resource capacity of one circuit instance: the
// number of atomic work units (requests or rounds) a single circuit absorbs.
type GeometryConfig struct {
	CyclesPerLogDemuxer               uint32 `yaml:"cycles_per_log_demuxer" json:"cycles_per_log_demuxer"`
	CyclesPerStorageSorter            uint32 `yaml:"cycles_per_storage_sorter" json:"cycles_per_storage_sorter"`
	CyclesPerTransientStorageSorter   uint32 `yaml:"cycles_per_transient_storage_sorter" json:"cycles_per_transient_storage_sorter"`
	CyclesPerEventsOrL1MessagesSorter uint32 `yaml:"cycles_per_events_or_l1_messages_sorter" json:"cycles_per_events_or_l1_messages_sorter"`
	CyclesPerCodeDecommitter          uint32 `yaml:"cycles_per_code_decommitter" json:"cycles_per_code_decommitter"`
	CyclesPerKeccak256Circuit         uint32 `yaml:"cycles_per_keccak256_circuit" json:"cycles_per_keccak256_circuit"`
	CyclesPerSha256Circuit            uint32 `yaml:"cycles_per_sha256_circuit" json:"cycles_per_sha256_circuit"`
	CyclesPerEcrecoverCircuit         uint32 `yaml:"cycles_per_ecrecover_circuit" json:"cycles_per_ecrecover_circuit"`
	CyclesPerSecp256r1VerifyCircuit   uint32 `yaml:"cycles_per_secp256r1_verify_circuit" json:"cycles_per_secp256r1_verify_circuit"`
	CyclesPerModexpCircuit            uint32 `yaml:"cycles_per_modexp_circuit" json:"cycles_per_modexp_circuit"`
	CyclesPerEcaddCircuit             uint32 `yaml:"cycles_per_ecadd_circuit" json:"cycles_per_ecadd_circuit"`
	CyclesPerEcmulCircuit             uint32 `yaml:"cycles_per_ecmul_circuit" json:"cycles_per_ecmul_circuit"`
	CyclesPerEcpairingCircuit         uint32 `yaml:"cycles_per_ecpairing_circuit" json:"cycles_per_ecpairing_circuit"`

	// Limits caps the number of circuits per resource name. Zero or absent
	// means unlimited.
	Limits map[string]uint32 `yaml:"limits,omitempty" json:"limits,omitempty"`
}

// DefaultGeometry returns the latest production geometry.
func DefaultGeometry() GeometryConfig {
	return GeometryConfig{
		CyclesPerLogDemuxer:               58125,
		CyclesPerStorageSorter:            44343,
		CyclesPerTransientStorageSorter:   50875,
		CyclesPerEventsOrL1MessagesSorter: 31287,
		CyclesPerCodeDecommitter:          2845,
		CyclesPerKeccak256Circuit:         293,
		CyclesPerSha256Circuit:            2206,
		CyclesPerEcrecoverCircuit:         7,
		CyclesPerSecp256r1VerifyCircuit:   4,
		CyclesPerModexpCircuit:            17,
		CyclesPerEcaddCircuit:             752,
		CyclesPerEcmulCircuit:             15,
		CyclesPerEcpairingCircuit:         1,
	}
}

// UniformGeometry sets every resource to the same capacity.
func UniformGeometry(capacity uint32) GeometryConfig {
	return GeometryConfig{
		CyclesPerLogDemuxer:               capacity,
		CyclesPerStorageSorter:            capacity,
		CyclesPerTransientStorageSorter:   capacity,
		CyclesPerEventsOrL1MessagesSorter: capacity,
		CyclesPerCodeDecommitter:          capacity,
		CyclesPerKeccak256Circuit:         capacity,
		CyclesPerSha256Circuit:            capacity,
		CyclesPerEcrecoverCircuit:         capacity,
		CyclesPerSecp256r1VerifyCircuit:   capacity,
		CyclesPerModexpCircuit:            capacity,
		CyclesPerEcaddCircuit:             capacity,
		CyclesPerEcmulCircuit:             capacity,
		CyclesPerEcpairingCircuit:         capacity,
	}
}

// LoadGeometry reads a YAML geometry file. Fields absent from the file keep
// their default value.
func LoadGeometry(path string) (GeometryConfig, error) {
	g := DefaultGeometry()
	data, err := os.ReadFile(path)
	if err != nil {
		return g, fmt.Errorf("read geometry %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, &g); err != nil {
		return g, fmt.Errorf("parse geometry %s: %w", path, err)
	}
	return g, nil
}

// Capacity returns the per-circuit capacity of r.
func (g *GeometryConfig) Capacity(r Resource) int {
	switch r {
	case ResourceStorage:
		return int(g.CyclesPerStorageSorter)
	case ResourceTransientStorage:
		return int(g.CyclesPerTransientStorageSorter)
	case ResourceEvents, ResourceL1Messages:
		return int(g.CyclesPerEventsOrL1MessagesSorter)
	case ResourceEcrecover:
		return int(g.CyclesPerEcrecoverCircuit)
	case ResourceKeccak256:
		return int(g.CyclesPerKeccak256Circuit)
	case ResourceSha256:
		return int(g.CyclesPerSha256Circuit)
	case ResourceSecp256r1Verify:
		return int(g.CyclesPerSecp256r1VerifyCircuit)
	case ResourceModexp:
		return int(g.CyclesPerModexpCircuit)
	case ResourceEcadd:
		return int(g.CyclesPerEcaddCircuit)
	case ResourceEcmul:
		return int(g.CyclesPerEcmulCircuit)
	case ResourceEcpairing:
		return int(g.CyclesPerEcpairingCircuit)
	case ResourceCodeDecommitter:
		return int(g.CyclesPerCodeDecommitter)
	default:
		return 0
	}
}

// MaxCircuits returns the configured circuit limit for r, 0 when unlimited.
func (g *GeometryConfig) MaxCircuits(r Resource) int {
	return int(g.Limits[r.String()])
}

// Validate rejects geometries that could never drain a queue.
func (g *GeometryConfig) Validate() error {
	if g.CyclesPerLogDemuxer == 0 {
		return witerrors.Exhausted(witerrors.ErrGInvalidCapacity, "log_demuxer")
	}
	for _, r := range AllResources() {
		if g.Capacity(r) <= 0 {
			return witerrors.Exhausted(witerrors.ErrGInvalidCapacity, "%s", r)
		}
	}
	for name := range g.Limits {
		if _, err := ParseResource(name); err != nil {
			return fmt.Errorf("geometry limits: %w", err)
		}
	}
	return nil
}
