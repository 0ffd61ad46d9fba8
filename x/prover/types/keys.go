package types

const (
	// ModuleName defines the module name, also used as the error codespace
	ModuleName = "prover"

	// CircuitSuper is the only circuit selector the bundled engine understands
	CircuitSuper = "super"
)
