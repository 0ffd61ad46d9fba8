package circuits

import (
	"hash"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcbn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/paw-chain/prover/x/prover/types"
)

// BlockInputs is the native form of a BlockCircuit assignment.
type BlockInputs struct {
	InstanceHash [32]byte
	BlockNumber  uint64
	GasUsed      uint64
	GasLimit     uint64
	Timestamp    uint64
	ParentHash   [32]byte
	TxHashes     [][32]byte
}

// FieldElement reduces a big endian byte string modulo the BN254 scalar field.
func FieldElement(b []byte) *big.Int {
	var el fr.Element
	el.SetBytes(b)
	return el.BigInt(new(big.Int))
}

// BlockCommitment computes the value BlockCircuit expects as its public
// BlockCommitment for cfg.
func BlockCommitment(cfg types.CircuitConfig, in BlockInputs) (*big.Int, error) {
	if len(in.TxHashes) > cfg.MaxTxs {
		return nil, types.ErrWitness.Wrapf("%d transactions exceed %s capacity of %d", len(in.TxHashes), cfg.Name, cfg.MaxTxs)
	}

	h := mimcbn254.NewMiMC()
	writeBigInt(h, FieldElement(in.InstanceHash[:]))
	writeUint64(h, in.BlockNumber)
	writeUint64(h, in.GasUsed)
	writeUint64(h, in.GasLimit)
	writeUint64(h, in.Timestamp)
	writeBigInt(h, FieldElement(in.ParentHash[:]))
	writeUint64(h, uint64(len(in.TxHashes)))
	for i := 0; i < cfg.MaxTxs; i++ {
		if i < len(in.TxHashes) {
			writeBigInt(h, FieldElement(in.TxHashes[i][:]))
		} else {
			writeUint64(h, 0)
		}
	}
	return sumHash(h), nil
}

// BlockAssignment builds a full BlockCircuit assignment for cfg.
func BlockAssignment(cfg types.CircuitConfig, in BlockInputs) (*BlockCircuit, error) {
	commitment, err := BlockCommitment(cfg, in)
	if err != nil {
		return nil, err
	}

	assignment := NewBlockCircuit(cfg.MaxTxs)
	assignment.InstanceHash = FieldElement(in.InstanceHash[:])
	assignment.BlockCommitment = commitment
	assignment.BlockNumber = in.BlockNumber
	assignment.GasUsed = in.GasUsed
	assignment.GasLimit = in.GasLimit
	assignment.Timestamp = in.Timestamp
	assignment.ParentHash = FieldElement(in.ParentHash[:])
	assignment.TxCount = len(in.TxHashes)
	for i := range assignment.TxHashes {
		if i < len(in.TxHashes) {
			assignment.TxHashes[i] = FieldElement(in.TxHashes[i][:])
		} else {
			assignment.TxHashes[i] = 0
		}
	}
	return assignment, nil
}

// BlockPublicAssignment builds the public part of a BlockCircuit assignment
// from its hex encoded instance.
func BlockPublicAssignment(cfg types.CircuitConfig, instance []*big.Int) (*BlockCircuit, error) {
	if len(instance) != 2 {
		return nil, types.ErrVerification.Wrapf("block circuit has 2 public inputs, got %d", len(instance))
	}
	assignment := NewBlockCircuit(cfg.MaxTxs)
	assignment.InstanceHash = instance[0]
	assignment.BlockCommitment = instance[1]
	return fillSecret(assignment), nil
}

// fillSecret zeroes the secret inputs so a public-only witness can be built.
func fillSecret(c *BlockCircuit) *BlockCircuit {
	c.BlockNumber, c.GasUsed, c.GasLimit, c.Timestamp, c.ParentHash, c.TxCount = 0, 0, 0, 0, 0, 0
	for i := range c.TxHashes {
		c.TxHashes[i] = 0
	}
	return c
}

// ChunkProof splits a serialized proof into the chunks of an AggregationCircuit.
func ChunkProof(proof []byte) ([AggregationChunks]*big.Int, error) {
	var chunks [AggregationChunks]*big.Int
	if len(proof) == 0 || len(proof) > AggregationChunks*ChunkSize {
		return chunks, types.ErrProofGeneration.Wrapf("proof of %d bytes cannot be aggregated", len(proof))
	}
	for i := range chunks {
		start := i * ChunkSize
		end := min(start+ChunkSize, len(proof))
		if start >= len(proof) {
			chunks[i] = new(big.Int)
			continue
		}
		chunks[i] = new(big.Int).SetBytes(proof[start:end])
	}
	return chunks, nil
}

// AggregationDigest computes the public digest of a serialized proof.
func AggregationDigest(proof []byte) (*big.Int, error) {
	chunks, err := ChunkProof(proof)
	if err != nil {
		return nil, err
	}
	h := mimcbn254.NewMiMC()
	writeUint64(h, uint64(len(proof)))
	for _, c := range chunks {
		writeBigInt(h, c)
	}
	return sumHash(h), nil
}

// AggregationAssignment builds a full AggregationCircuit assignment.
func AggregationAssignment(proof []byte) (*AggregationCircuit, error) {
	digest, err := AggregationDigest(proof)
	if err != nil {
		return nil, err
	}
	chunks, err := ChunkProof(proof)
	if err != nil {
		return nil, err
	}
	assignment := &AggregationCircuit{Digest: digest, Length: len(proof)}
	for i, c := range chunks {
		assignment.Chunks[i] = c
	}
	return assignment, nil
}

// AggregationPublicAssignment builds the public part of an AggregationCircuit.
func AggregationPublicAssignment(digest *big.Int) *AggregationCircuit {
	assignment := &AggregationCircuit{Digest: digest, Length: 0}
	for i := range assignment.Chunks {
		assignment.Chunks[i] = 0
	}
	return assignment
}

func writeUint64(h hash.Hash, v uint64) {
	var el fr.Element
	el.SetUint64(v)
	bytes := el.Bytes()
	h.Write(bytes[:])
}

func writeBigInt(h hash.Hash, v *big.Int) {
	var el fr.Element
	el.SetBigInt(v)
	bytes := el.Bytes()
	h.Write(bytes[:])
}

func sumHash(h hash.Hash) *big.Int {
	return new(big.Int).SetBytes(h.Sum(nil))
}
