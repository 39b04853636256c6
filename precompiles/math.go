package precompiles

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// setFp loads a canonical base field element; words at or above the
// modulus are rejected.
func setFp(z *fp.Element, w *uint256.Int) bool {
	b := w.Bytes32()
	return z.SetBytesCanonical(b[:]) == nil
}

// g1 loads an affine point, (0, 0) being the point at infinity.
func g1(x, y *uint256.Int) (bn254.G1Affine, bool) {
	var p bn254.G1Affine
	if !setFp(&p.X, x) || !setFp(&p.Y, y) {
		return p, false
	}
	return p, p.IsOnCurve()
}

func g1Words(success bool, p *bn254.G1Affine) []uint256.Int {
	if !success {
		return []uint256.Int{{}, {}, {}}
	}
	x, y := p.X.Bytes(), p.Y.Bytes()
	out := make([]uint256.Int, 3)
	out[0] = boolWord(true)
	out[1].SetBytes32(x[:])
	out[2].SetBytes32(y[:])
	return out
}

func ecadd(in []uint256.Int) []uint256.Int {
	a, okA := g1(&in[0], &in[1])
	b, okB := g1(&in[2], &in[3])
	if !okA || !okB {
		return g1Words(false, nil)
	}
	var r bn254.G1Affine
	r.Add(&a, &b)
	return g1Words(true, &r)
}

func ecmul(in []uint256.Int) []uint256.Int {
	p, ok := g1(&in[0], &in[1])
	if !ok {
		return g1Words(false, nil)
	}
	var r bn254.G1Affine
	r.ScalarMultiplication(&p, in[2].ToBig())
	return g1Words(true, &r)
}

// ecrecover expects v already reduced to the recovery id {0, 1}.
func ecrecover(in []uint256.Int) []uint256.Int {
	fail := []uint256.Int{{}, {}}
	hash, v, r, s := in[0].Bytes32(), &in[1], &in[2], &in[3]
	if !v.IsUint64() || v.Uint64() > 1 {
		return fail
	}
	if !crypto.ValidateSignatureValues(byte(v.Uint64()), r.ToBig(), s.ToBig(), false) {
		return fail
	}
	sig := make([]byte, 65)
	rb, sb := r.Bytes32(), s.Bytes32()
	copy(sig[0:32], rb[:])
	copy(sig[32:64], sb[:])
	sig[64] = byte(v.Uint64())
	pub, err := crypto.Ecrecover(hash[:], sig)
	if err != nil {
		return fail
	}
	addr := crypto.Keccak256(pub[1:])[12:]
	out := []uint256.Int{boolWord(true), {}}
	out[1].SetBytes(addr)
	return out
}

// secp256r1Verify reports success false when an input is out of range or
// the key is not on the curve, and valid for the signature check itself.
func secp256r1Verify(in []uint256.Int) []uint256.Int {
	fail := []uint256.Int{{}, {}}
	curve := elliptic.P256()
	params := curve.Params()
	hash := in[0].Bytes32()
	r, s, x, y := in[1].ToBig(), in[2].ToBig(), in[3].ToBig(), in[4].ToBig()
	for _, scalar := range []*big.Int{r, s} {
		if scalar.Sign() == 0 || scalar.Cmp(params.N) >= 0 {
			return fail
		}
	}
	if x.Cmp(params.P) >= 0 || y.Cmp(params.P) >= 0 || !curve.IsOnCurve(x, y) {
		return fail
	}
	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	return []uint256.Int{boolWord(true), boolWord(ecdsa.Verify(pub, hash[:], r, s))}
}

// modexp returns 0 for a zero modulus.
func modexp(in []uint256.Int) []uint256.Int {
	base, exp, mod := in[0], in[1], in[2]
	if mod.IsZero() {
		return []uint256.Int{{}}
	}
	result := new(uint256.Int).Mod(uint256.NewInt(1), &mod)
	b := new(uint256.Int).Mod(&base, &mod)
	for i := exp.BitLen() - 1; i >= 0; i-- {
		result.MulMod(result, result, &mod)
		if (exp[i/64]>>(uint(i)%64))&1 == 1 {
			result.MulMod(result, b, &mod)
		}
	}
	return []uint256.Int{*result}
}
