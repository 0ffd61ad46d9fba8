package types

// CircuitConfig describes the capacity of a compiled circuit shape.
type CircuitConfig struct {
	Name          string `json:"name"`
	BlockGasLimit uint64 `json:"block_gas_limit"`
	MaxTxs        int    `json:"max_txs"`
	MaxCalldata   int    `json:"max_calldata"`
	MaxRws        int    `json:"max_rws"`
	MaxCopyRows   int    `json:"max_copy_rows"`
	K             uint8  `json:"k"`
}

// ProofResultInstrumentation records phase timings in milliseconds.
type ProofResultInstrumentation struct {
	// Mock is the time spent solving the circuit without proving
	Mock uint32 `json:"mock"`
	// Circuit is the time spent compiling the constraint system
	Circuit uint32 `json:"circuit"`
	VK      uint32 `json:"vk"`
	PK      uint32 `json:"pk"`
	Proof   uint32 `json:"proof"`
	Verify  uint32 `json:"verify"`
	// Protocol is the time spent building the witness assignment
	Protocol uint32 `json:"protocol"`
}

// ProofResult is a single serialized proof plus its public instance.
type ProofResult struct {
	// Label identifies the circuit configuration that produced the proof
	Label string `json:"label"`
	Proof []byte `json:"proof"`
	// Instance holds the public inputs, hex encoded
	Instance []string                   `json:"instance"`
	K        uint8                      `json:"k"`
	Aux      ProofResultInstrumentation `json:"aux"`
}

// IsEmpty reports whether no proof was produced.
func (p ProofResult) IsEmpty() bool {
	return len(p.Proof) == 0
}

// Clone deep copies the proof result.
func (p ProofResult) Clone() ProofResult {
	out := p
	if p.Proof != nil {
		out.Proof = append([]byte(nil), p.Proof...)
	}
	if p.Instance != nil {
		out.Instance = append([]string(nil), p.Instance...)
	}
	return out
}

// Proofs is the artifact produced for a task. The coordinator never inspects it.
type Proofs struct {
	Config      CircuitConfig `json:"config"`
	Circuit     ProofResult   `json:"circuit"`
	Aggregation ProofResult   `json:"aggregation"`
	Gas         uint64        `json:"gas"`
}

// Clone deep copies the artifact.
func (p Proofs) Clone() Proofs {
	out := p
	out.Circuit = p.Circuit.Clone()
	out.Aggregation = p.Aggregation.Clone()
	return out
}
