package circuits

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// BlockCircuit proves knowledge of a block header and its transaction list
// matching a public commitment.
//
// Circuit Statement: "BlockCommitment is the MiMC commitment of the protocol
// instance hash, the header fields and the first TxCount transaction hashes
// of a block that did not exceed its gas limit."
//
// The circuit is sized by the MaxTxs of its configuration; use NewBlockCircuit
// for both the definition and the assignment.
type BlockCircuit struct {
	// Public inputs
	InstanceHash    frontend.Variable `gnark:",public"` // keccak of the protocol instance, reduced mod r
	BlockCommitment frontend.Variable `gnark:",public"`

	// Private inputs
	BlockNumber frontend.Variable `gnark:",secret"`
	GasUsed     frontend.Variable `gnark:",secret"`
	GasLimit    frontend.Variable `gnark:",secret"`
	Timestamp   frontend.Variable `gnark:",secret"`
	ParentHash  frontend.Variable `gnark:",secret"`
	TxCount     frontend.Variable `gnark:",secret"`
	TxHashes    []frontend.Variable `gnark:",secret"`
}

// NewBlockCircuit allocates a circuit with room for maxTxs transactions.
func NewBlockCircuit(maxTxs int) *BlockCircuit {
	return &BlockCircuit{TxHashes: make([]frontend.Variable, maxTxs)}
}

// Define implements the gnark Circuit interface.
func (circuit *BlockCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("failed to initialize MiMC: %w", err)
	}

	// Header fields are 64 bit values
	api.ToBinary(circuit.GasUsed, 64)
	api.ToBinary(circuit.GasLimit, 64)
	api.ToBinary(circuit.BlockNumber, 64)
	api.ToBinary(circuit.Timestamp, 64)

	api.AssertIsLessOrEqual(circuit.GasUsed, circuit.GasLimit)
	api.AssertIsLessOrEqual(circuit.TxCount, len(circuit.TxHashes))

	h.Write(
		circuit.InstanceHash,
		circuit.BlockNumber,
		circuit.GasUsed,
		circuit.GasLimit,
		circuit.Timestamp,
		circuit.ParentHash,
		circuit.TxCount,
	)

	// active stays 1 while i < TxCount
	active := frontend.Variable(1)
	for i := range circuit.TxHashes {
		active = api.Mul(active, api.Sub(1, api.IsZero(api.Sub(circuit.TxCount, i))))
		h.Write(api.Select(active, circuit.TxHashes[i], 0))
	}

	api.AssertIsEqual(h.Sum(), circuit.BlockCommitment)
	return nil
}
