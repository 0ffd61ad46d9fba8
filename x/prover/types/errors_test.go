package types

import (
	"testing"

	sdkerrors "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorDefinitions(t *testing.T) {
	errorTests := []struct {
		name string
		err  *sdkerrors.Error
		code uint32
	}{
		{"ErrInvalidOptions", ErrInvalidOptions, 2},
		{"ErrInvalidMode", ErrInvalidMode, 3},
		{"ErrPeerTransport", ErrPeerTransport, 10},
		{"ErrPeerLookup", ErrPeerLookup, 11},
		{"ErrNoCircuitParams", ErrNoCircuitParams, 20},
		{"ErrUnknownCircuit", ErrUnknownCircuit, 21},
		{"ErrWitness", ErrWitness, 22},
		{"ErrProofGeneration", ErrProofGeneration, 23},
		{"ErrVerification", ErrVerification, 24},
		{"ErrMockProver", ErrMockProver, 25},
		{"ErrKeySetup", ErrKeySetup, 26},
		{"ErrTaskPanic", ErrTaskPanic, 30},
		{"ErrTaskMissing", ErrTaskMissing, 31},
	}

	seen := make(map[uint32]string)
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, ModuleName, tt.err.Codespace())
			require.Equal(t, tt.code, tt.err.ABCICode())
			if prev, ok := seen[tt.code]; ok {
				t.Fatalf("code %d shared by %s and %s", tt.code, prev, tt.name)
			}
			seen[tt.code] = tt.name
		})
	}
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	err := ErrNoCircuitParams.Wrapf("block with gas used=%d", 42)
	require.True(t, ErrNoCircuitParams.Is(err))
	require.Contains(t, err.Error(), "gas used=42")
}
