package circuits

import (
	"github.com/paw-chain/prover/x/prover/types"
)

// Configs lists the compiled circuit shapes ordered by capacity. A block is
// proved with the first configuration whose gas bound covers it.
var Configs = []types.CircuitConfig{
	{
		Name:          "tiny",
		BlockGasLimit: 63_000,
		MaxTxs:        2,
		MaxCalldata:   10_500,
		MaxRws:        476_052,
		MaxCopyRows:   11_000,
		K:             16,
	},
	{
		Name:          "small",
		BlockGasLimit: 300_000,
		MaxTxs:        8,
		MaxCalldata:   69_750,
		MaxRws:        1_048_576,
		MaxCopyRows:   140_000,
		K:             18,
	},
	{
		Name:          "medium",
		BlockGasLimit: 1_500_000,
		MaxTxs:        32,
		MaxCalldata:   349_000,
		MaxRws:        4_194_304,
		MaxCopyRows:   700_000,
		K:             20,
	},
	{
		Name:          "large",
		BlockGasLimit: 6_000_000,
		MaxTxs:        80,
		MaxCalldata:   1_400_000,
		MaxRws:        16_777_216,
		MaxCopyRows:   2_800_000,
		K:             22,
	},
}

// SelectConfig returns the smallest configuration able to hold a block that
// used gasUsed.
func SelectConfig(gasUsed uint64) (types.CircuitConfig, error) {
	for _, cfg := range Configs {
		if gasUsed <= cfg.BlockGasLimit {
			return cfg, nil
		}
	}
	return types.CircuitConfig{}, types.ErrNoCircuitParams.Wrapf(
		"No circuit parameters found for block with gas used=%d", gasUsed,
	)
}

// ConfigByName looks up a configuration from the table.
func ConfigByName(name string) (types.CircuitConfig, error) {
	for _, cfg := range Configs {
		if cfg.Name == name {
			return cfg, nil
		}
	}
	return types.CircuitConfig{}, types.ErrNoCircuitParams.Wrapf("unknown circuit configuration %q", name)
}
