package witness

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	crand "crypto/rand"
	"math/big"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/precompiles"
	"github.com/colorfulnotion/witgen/types"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/exp/rand"
)

// demoKey signs the ecrecover calls of demo traces.
const demoKey = "289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"

var demoContracts = []common.Address{
	common.HexToAddress("0x000000000000000000000000000000000000c0de"),
	common.HexToAddress("0x000000000000000000000000000000000000beef"),
	common.HexToAddress("0x000000000000000000000000000000000000f00d"),
}

func words(b []byte) uint256.Int {
	var w uint256.Int
	w.SetBytes32(b)
	return w
}

func g1Words(p *bn254.G1Affine) (uint256.Int, uint256.Int) {
	x, y := p.X.Bytes(), p.Y.Bytes()
	return words(x[:]), words(y[:])
}

func g2Words(q *bn254.G2Affine) [4]uint256.Int {
	a, b := q.X.A1.Bytes(), q.X.A0.Bytes()
	c, d := q.Y.A1.Bytes(), q.Y.A0.Bytes()
	return [4]uint256.Int{words(a[:]), words(b[:]), words(c[:]), words(d[:])}
}

// DemoTrace records a block of ops storage, log and precompile operations
// chosen by seed. Secp256r1 signatures are randomised; everything else is
// deterministic.
func DemoTrace(seed uint64, ops int) (*Trace, error) {
	rng := rand.New(rand.NewSource(seed))
	b := NewBuilder()
	key, err := crypto.HexToECDSA(demoKey)
	if err != nil {
		return nil, err
	}
	p256, err := ecdsa.GenerateKey(elliptic.P256(), crand.Reader)
	if err != nil {
		return nil, err
	}
	_, _, g1Gen, g2Gen := bn254.Generators()

	var logs []types.Timestamp
	for i := 0; i < ops; i++ {
		addr := demoContracts[rng.Intn(len(demoContracts))]
		slot := uint64(rng.Intn(8))
		transient := rng.Intn(5) == 0
		switch op := rng.Intn(20); {
		case op < 5:
			b.Read(transient, addr, slot)
		case op < 10:
			b.Write(transient, addr, slot, uint64(rng.Intn(4)))
		case op < 12:
			b.Rollback(transient, addr, slot)
		case op == 12:
			logs = append(logs, b.Log(types.EventAuxByte, addr, slot, rng.Uint64()))
		case op == 13:
			logs = append(logs, b.Log(types.L1MessageAuxByte, addr, slot, rng.Uint64()))
		case op == 14 && len(logs) > 0:
			b.RollbackLog(logs[rng.Intn(len(logs))])
		case op == 15:
			b.NextTx()
		case op == 16:
			var p bn254.G1Affine
			p.ScalarMultiplication(&g1Gen, big.NewInt(int64(rng.Intn(1000)+1)))
			x1, y1 := g1Words(&g1Gen)
			x2, y2 := g1Words(&p)
			b.Call(func(l precompiles.Layout) precompiles.Work { return precompiles.SynthesizeEcadd(l, x1, y1, x2, y2) })
			x, y := g1Words(&p)
			s := *uint256.NewInt(rng.Uint64())
			b.Call(func(l precompiles.Layout) precompiles.Work { return precompiles.SynthesizeEcmul(l, x, y, s) })
		case op == 17:
			msg := make([]byte, rng.Intn(300))
			rng.Read(msg)
			b.Call(func(l precompiles.Layout) precompiles.Work {
				return precompiles.SynthesizeSha256(l, precompiles.Sha256Pad(msg))
			})
			b.Call(func(l precompiles.Layout) precompiles.Work {
				return precompiles.SynthesizeKeccak256(l, precompiles.Keccak256Pad(msg))
			})
			base, exp, mod := *uint256.NewInt(rng.Uint64()), *uint256.NewInt(rng.Uint64()), *uint256.NewInt(rng.Uint64() | 1)
			b.Call(func(l precompiles.Layout) precompiles.Work { return precompiles.SynthesizeModexp(l, base, exp, mod) })
		case op == 18:
			msg := make([]byte, 32)
			rng.Read(msg)
			hash := crypto.Keccak256(msg)
			sig, err := crypto.Sign(hash, key)
			if err != nil {
				return nil, err
			}
			h, r, s, v := words(hash), words(sig[0:32]), words(sig[32:64]), *uint256.NewInt(uint64(sig[64]))
			b.Call(func(l precompiles.Layout) precompiles.Work { return precompiles.SynthesizeEcrecover(l, h, v, r, s) })

			sr, ss, err := ecdsa.Sign(crand.Reader, p256, hash)
			if err != nil {
				return nil, err
			}
			var r1, s1, x1, y1 uint256.Int
			r1.SetFromBig(sr)
			s1.SetFromBig(ss)
			x1.SetFromBig(p256.X)
			y1.SetFromBig(p256.Y)
			b.Call(func(l precompiles.Layout) precompiles.Work {
				return precompiles.SynthesizeSecp256r1Verify(l, h, r1, s1, x1, y1)
			})
		case op == 19:
			var p, neg bn254.G1Affine
			p.ScalarMultiplication(&g1Gen, big.NewInt(int64(rng.Intn(1000)+1)))
			neg.Neg(&p)
			q := g2Words(&g2Gen)
			px, py := g1Words(&p)
			nx, ny := g1Words(&neg)
			pairs := [][6]uint256.Int{
				{px, py, q[0], q[1], q[2], q[3]},
				{nx, ny, q[0], q[1], q[2], q[3]},
			}
			b.Call(func(l precompiles.Layout) precompiles.Work { return precompiles.SynthesizeEcpairing(l, pairs) })

			code := make([]uint256.Int, 2*rng.Intn(6)+1)
			for j := range code {
				code[j] = *uint256.NewInt(rng.Uint64())
			}
			b.Decommit(types.BytecodeVersionEraVM, code)
			b.UnroutableCall(common.HexToAddress("0x0000000000000000000000000000000000008011"))
		}
	}
	return b.Trace(), nil
}
