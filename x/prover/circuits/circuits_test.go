package circuits

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/prover/x/prover/types"
)

func tinyConfig(t *testing.T) types.CircuitConfig {
	t.Helper()
	cfg, err := ConfigByName("tiny")
	require.NoError(t, err)
	return cfg
}

func sampleInputs() BlockInputs {
	in := BlockInputs{
		BlockNumber: 1234,
		GasUsed:     42_000,
		GasLimit:    63_000,
		Timestamp:   1_700_000_000,
	}
	in.InstanceHash[0] = 0xff // above the field modulus before reduction
	in.InstanceHash[31] = 0x01
	in.ParentHash[31] = 0x02
	var tx [32]byte
	tx[0] = 0xab
	in.TxHashes = [][32]byte{tx}
	return in
}

func TestSelectConfig(t *testing.T) {
	tests := []struct {
		gas  uint64
		want string
	}{
		{0, "tiny"},
		{63_000, "tiny"},
		{63_001, "small"},
		{1_500_000, "medium"},
		{6_000_000, "large"},
	}
	for _, tt := range tests {
		cfg, err := SelectConfig(tt.gas)
		require.NoError(t, err)
		require.Equal(t, tt.want, cfg.Name)
	}

	_, err := SelectConfig(6_000_001)
	require.Error(t, err)
	require.True(t, types.ErrNoCircuitParams.Is(err))
	require.Contains(t, err.Error(), "No circuit parameters found for block with gas used=6000001")
}

func TestConfigsOrderedByCapacity(t *testing.T) {
	for i := 1; i < len(Configs); i++ {
		require.Less(t, Configs[i-1].BlockGasLimit, Configs[i].BlockGasLimit)
		require.LessOrEqual(t, Configs[i-1].MaxTxs, Configs[i].MaxTxs)
	}
	_, err := ConfigByName("huge")
	require.Error(t, err)
}

func TestBlockCircuitValidAssignment(t *testing.T) {
	cfg := tinyConfig(t)
	assignment, err := BlockAssignment(cfg, sampleInputs())
	require.NoError(t, err)

	assert := test.NewAssert(t)
	assert.SolvingSucceeded(NewBlockCircuit(cfg.MaxTxs), assignment, test.WithCurves(ecc.BN254))
}

func TestBlockCircuitRejectsWrongCommitment(t *testing.T) {
	cfg := tinyConfig(t)
	assignment, err := BlockAssignment(cfg, sampleInputs())
	require.NoError(t, err)
	assignment.BlockCommitment = big.NewInt(7)

	assert := test.NewAssert(t)
	assert.SolvingFailed(NewBlockCircuit(cfg.MaxTxs), assignment, test.WithCurves(ecc.BN254))
}

func TestBlockCircuitRejectsGasAboveLimit(t *testing.T) {
	cfg := tinyConfig(t)
	in := sampleInputs()
	in.GasUsed = in.GasLimit + 1
	assignment, err := BlockAssignment(cfg, in)
	require.NoError(t, err)

	err = test.IsSolved(NewBlockCircuit(cfg.MaxTxs), assignment, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestBlockCircuitIgnoresInactiveSlots(t *testing.T) {
	cfg := tinyConfig(t)
	assignment, err := BlockAssignment(cfg, sampleInputs())
	require.NoError(t, err)
	assignment.TxHashes[1] = 99

	require.NoError(t, test.IsSolved(NewBlockCircuit(cfg.MaxTxs), assignment, ecc.BN254.ScalarField()))
}

func TestBlockCommitmentRejectsTooManyTxs(t *testing.T) {
	cfg := tinyConfig(t)
	in := sampleInputs()
	in.TxHashes = make([][32]byte, cfg.MaxTxs+1)

	_, err := BlockCommitment(cfg, in)
	require.Error(t, err)
	require.True(t, types.ErrWitness.Is(err))
}

func TestFieldElementReduces(t *testing.T) {
	var max [32]byte
	for i := range max {
		max[i] = 0xff
	}
	v := FieldElement(max[:])
	require.Equal(t, -1, v.Cmp(ecc.BN254.ScalarField()))
	require.Equal(t, big.NewInt(5), FieldElement([]byte{5}))
}

func TestAggregationCircuit(t *testing.T) {
	proof := make([]byte, 164)
	for i := range proof {
		proof[i] = byte(i)
	}
	assignment, err := AggregationAssignment(proof)
	require.NoError(t, err)

	assert := test.NewAssert(t)
	assert.SolvingSucceeded(&AggregationCircuit{}, assignment, test.WithCurves(ecc.BN254))

	assignment.Chunks[0] = big.NewInt(1)
	assert.SolvingFailed(&AggregationCircuit{}, assignment, test.WithCurves(ecc.BN254))
}

func TestChunkProofBounds(t *testing.T) {
	_, err := ChunkProof(nil)
	require.Error(t, err)
	_, err = ChunkProof(make([]byte, AggregationChunks*ChunkSize+1))
	require.Error(t, err)

	chunks, err := ChunkProof([]byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0x0102), chunks[0])
	require.Zero(t, chunks[1].Sign())
}
