package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProverMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ProverMode
		wantErr bool
	}{
		{"witness_capture", ProverModeWitnessCapture, false},
		{"offline_prover", ProverModeOfflineProver, false},
		{" Legacy_Prover ", ProverModeLegacyProver, false},
		{"verifier", ProverModeVerifier, false},
		{"", "", true},
		{"prover", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProverMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, ErrInvalidMode.Is(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestProverModeAcquiresLive(t *testing.T) {
	require.True(t, ProverModeWitnessCapture.AcquiresLive())
	require.True(t, ProverModeLegacyProver.AcquiresLive())
	require.False(t, ProverModeOfflineProver.AcquiresLive())
	require.False(t, ProverModeVerifier.AcquiresLive())
}

func TestProverModeFlagValue(t *testing.T) {
	var m ProverMode
	require.NoError(t, m.Set("verifier"))
	require.Equal(t, ProverModeVerifier, m)
	require.Equal(t, "mode", m.Type())
	require.Error(t, m.Set("bogus"))
	require.Equal(t, ProverModeVerifier, m)
	require.Contains(t, ProverModeUsage(), "offline_prover")
}

func TestProverModeJSONByName(t *testing.T) {
	bz, err := json.Marshal(TaskOptions{ProverMode: ProverModeLegacyProver})
	require.NoError(t, err)
	require.Contains(t, string(bz), `"prover_mode":"legacy_prover"`)
}

func TestProverModeDecodeRejectsUnknown(t *testing.T) {
	var opts TaskOptions
	require.NoError(t, json.Unmarshal([]byte(`{"prover_mode":"Offline_Prover"}`), &opts))
	require.Equal(t, ProverModeOfflineProver, opts.ProverMode)

	opts = TaskOptions{}
	require.NoError(t, json.Unmarshal([]byte(`{"prover_mode":""}`), &opts))
	require.Empty(t, opts.ProverMode)

	var info NodeInformation
	err := json.Unmarshal([]byte(`{"id":"peer","tasks":[{"options":{"prover_mode":"turbo"}}]}`), &info)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidMode)
}
