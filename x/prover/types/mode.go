package types

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var (
	_ pflag.Value              = (*ProverMode)(nil)
	_ encoding.TextUnmarshaler = (*ProverMode)(nil)
)

// ProverMode selects how a task obtains its witness and what it produces.
type ProverMode string

const (
	// ProverModeWitnessCapture acquires a witness and writes it to WitnessPath
	ProverModeWitnessCapture ProverMode = "witness_capture"
	// ProverModeOfflineProver proves from a witness previously written to WitnessPath
	ProverModeOfflineProver ProverMode = "offline_prover"
	// ProverModeLegacyProver acquires the witness live and proves it
	ProverModeLegacyProver ProverMode = "legacy_prover"
	// ProverModeVerifier verifies the proofs stored at ProofPath
	ProverModeVerifier ProverMode = "verifier"
)

// AllProverModes lists the modes in the order the CLI documents them.
func AllProverModes() []ProverMode {
	return []ProverMode{
		ProverModeWitnessCapture,
		ProverModeOfflineProver,
		ProverModeLegacyProver,
		ProverModeVerifier,
	}
}

// ParseProverMode converts a CLI or JSON name into a ProverMode.
func ParseProverMode(s string) (ProverMode, error) {
	mode := ProverMode(strings.ToLower(strings.TrimSpace(s)))
	if err := mode.Validate(); err != nil {
		return "", err
	}
	return mode, nil
}

// Validate rejects unknown modes.
func (m ProverMode) Validate() error {
	for _, known := range AllProverModes() {
		if m == known {
			return nil
		}
	}
	return ErrInvalidMode.Wrapf("%q", string(m))
}

// AcquiresLive reports whether the witness is fetched from the data source
// rather than read from WitnessPath.
func (m ProverMode) AcquiresLive() bool {
	return m == ProverModeWitnessCapture || m == ProverModeLegacyProver
}

func (m ProverMode) String() string {
	return string(m)
}

// Set implements pflag.Value.
func (m *ProverMode) Set(s string) error {
	parsed, err := ParseProverMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// UnmarshalText rejects unknown mode names when decoding JSON documents.
// An empty name leaves the mode unset for ValidateBasic to report.
func (m *ProverMode) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*m = ""
		return nil
	}
	return m.Set(string(text))
}

// Type implements pflag.Value.
func (m *ProverMode) Type() string {
	return "mode"
}

// ProverModeUsage renders the accepted mode names for help output.
func ProverModeUsage() string {
	names := make([]string, 0, len(AllProverModes()))
	for _, m := range AllProverModes() {
		names = append(names, string(m))
	}
	return fmt.Sprintf("one of: %s", strings.Join(names, " | "))
}
