package circuits

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// AggregationChunks is the number of field elements a serialized block proof
// is split into. Each chunk carries ChunkSize bytes.
const (
	AggregationChunks = 8
	ChunkSize         = 31
)

// AggregationCircuit binds a serialized block proof to a single public digest.
type AggregationCircuit struct {
	Digest frontend.Variable `gnark:",public"`

	Length frontend.Variable                    `gnark:",secret"`
	Chunks [AggregationChunks]frontend.Variable `gnark:",secret"`
}

// Define implements the gnark Circuit interface.
func (circuit *AggregationCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("failed to initialize MiMC: %w", err)
	}

	api.AssertIsLessOrEqual(circuit.Length, AggregationChunks*ChunkSize)
	api.AssertIsDifferent(circuit.Length, 0)

	h.Write(circuit.Length)
	for i := range circuit.Chunks {
		h.Write(circuit.Chunks[i])
	}
	api.AssertIsEqual(h.Sum(), circuit.Digest)
	return nil
}
