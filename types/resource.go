package types

import "fmt"

// Resource names one independent witness queue. The declaration order is the
// order in which per-resource memory queues are merged.
type Resource uint8

const (
	ResourceStorage Resource = iota
	ResourceTransientStorage
	ResourceEvents
	ResourceL1Messages
	ResourceEcrecover
	ResourceKeccak256
	ResourceSha256
	ResourceSecp256r1Verify
	ResourceModexp
	ResourceEcadd
	ResourceEcmul
	ResourceEcpairing
	ResourceCodeDecommitter
	numResources
)

var resourceNames = [numResources]string{
	"storage",
	"transient_storage",
	"events",
	"l1_messages",
	"ecrecover",
	"keccak256",
	"sha256",
	"secp256r1_verify",
	"modexp",
	"ecadd",
	"ecmul",
	"ecpairing",
	"code_decommitter",
}

// AllResources lists every resource in merge order.
func AllResources() []Resource {
	out := make([]Resource, numResources)
	for i := range out {
		out[i] = Resource(i)
	}
	return out
}

func (r Resource) String() string {
	if r < numResources {
		return resourceNames[r]
	}
	return fmt.Sprintf("resource(%d)", uint8(r))
}

// IsPrecompile reports whether r is fed by precompile log events.
func (r Resource) IsPrecompile() bool {
	return r >= ResourceEcrecover && r <= ResourceEcpairing
}

func ParseResource(s string) (Resource, error) {
	for i, name := range resourceNames {
		if name == s {
			return Resource(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resource %q", s)
}

func (r Resource) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Resource) UnmarshalText(b []byte) error {
	v, err := ParseResource(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// PrecompileResource maps a formal precompile address to its resource.
func PrecompileResource(e *RawAccessEvent) (Resource, bool) {
	switch e.Address {
	case EcrecoverFormalAddress:
		return ResourceEcrecover, true
	case Keccak256FormalAddress:
		return ResourceKeccak256, true
	case Sha256FormalAddress:
		return ResourceSha256, true
	case Secp256r1VerifyFormalAddress:
		return ResourceSecp256r1Verify, true
	case ModexpFormalAddress:
		return ResourceModexp, true
	case EcaddFormalAddress:
		return ResourceEcadd, true
	case EcmulFormalAddress:
		return ResourceEcmul, true
	case EcpairingFormalAddress:
		return ResourceEcpairing, true
	default:
		return 0, false
	}
}
