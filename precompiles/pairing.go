package precompiles

import (
	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// PairingState is the running product of the pairs absorbed so far. A
// failed pair clears Success and zeroes the product for the rest of the call.
type PairingState struct {
	Success bool          `json:"success"`
	Product hexutil.Bytes `json:"product"`
	Pairs   uint64        `json:"pairs"`
}

func gtBytes(z *bn254.GT) hexutil.Bytes {
	b := z.Bytes()
	return append(hexutil.Bytes(nil), b[:]...)
}

// InitialPairingState is the empty product.
func InitialPairingState() PairingState {
	var one bn254.GT
	one.SetOne()
	return PairingState{Success: true, Product: gtBytes(&one)}
}

func (s PairingState) product() (bn254.GT, error) {
	var z bn254.GT
	err := z.SetBytes(s.Product)
	return z, err
}

// g2 loads (x_im, x_re, y_im, y_re), all zero being the point at infinity.
func g2(w []uint256.Int) (bn254.G2Affine, bool) {
	var q bn254.G2Affine
	if !setFp(&q.X.A1, &w[0]) || !setFp(&q.X.A0, &w[1]) || !setFp(&q.Y.A1, &w[2]) || !setFp(&q.Y.A0, &w[3]) {
		return q, false
	}
	if q.IsInfinity() {
		return q, true
	}
	return q, q.IsOnCurve() && q.IsInSubGroup()
}

// pairFactor returns e(P, Q) for six words (x1, y1, x2_im, x2_re, y2_im, y2_re).
func pairFactor(w []uint256.Int) (bn254.GT, bool) {
	var one bn254.GT
	one.SetOne()
	p, okP := g1(&w[0], &w[1])
	q, okQ := g2(w[2:6])
	if !okP || !okQ {
		return one, false
	}
	if p.IsInfinity() || q.IsInfinity() {
		return one, true
	}
	e, err := bn254.Pair([]bn254.G1Affine{p}, []bn254.G2Affine{q})
	if err != nil {
		return one, false
	}
	return e, true
}

func (s PairingState) absorb(w []uint256.Int) (PairingState, error) {
	next := PairingState{Success: s.Success, Product: s.Product, Pairs: s.Pairs + 1}
	if !s.Success {
		return next, nil
	}
	factor, ok := pairFactor(w)
	if !ok {
		var zero bn254.GT
		return PairingState{Success: false, Product: gtBytes(&zero), Pairs: next.Pairs}, nil
	}
	acc, err := s.product()
	if err != nil {
		return s, err
	}
	acc.Mul(&acc, &factor)
	next.Product = gtBytes(&acc)
	return next, nil
}

// outputs are (success, product == 1).
func (s PairingState) outputs() ([]uint256.Int, error) {
	acc, err := s.product()
	if err != nil {
		return nil, err
	}
	return []uint256.Int{boolWord(s.Success), boolWord(s.Success && acc.IsOne())}, nil
}

// pairingRounds absorbs one pair per round.
type pairingRounds struct{}

// Ecpairing returns the processor of the bn254 pairing check.
func Ecpairing() chunker.Processor[Request, PairingState] {
	return pairingRounds{}
}

func (pairingRounds) Resource() types.Resource { return types.ResourceEcpairing }
func (pairingRounds) Initial() PairingState    { return InitialPairingState() }

func (pairingRounds) Begin(req Request, _ PairingState) (chunker.Setup, PairingState, error) {
	return callSetup(&req, req.PrecompileABI().PrecompileInterpretedData), InitialPairingState(), nil
}

func (pairingRounds) RoundIO(round, total uint64) (int, int) {
	if round+1 == total {
		return 6, 2
	}
	return 6, 0
}

func (pairingRounds) Apply(req Request, acc PairingState, round, total uint64, reads, writes []uint256.Int) (PairingState, error) {
	next, err := acc.absorb(reads)
	if err != nil {
		return acc, err
	}
	if round+1 == total {
		want, err := next.outputs()
		if err != nil {
			return acc, err
		}
		if err := compareOutput(types.ResourceEcpairing, &req, want, writes); err != nil {
			return acc, err
		}
	}
	return next, nil
}

func (pairingRounds) Finalize(acc PairingState) common.Hash {
	return common.Keccak256(acc.Product)
}
