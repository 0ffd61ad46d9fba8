package types

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// TaskOptions fully describes a unit of work. Two options are the same task
// iff every field except Retry is equal, so the struct must stay comparable
// with ==. Optional locators are empty strings rather than pointers for that
// reason.
type TaskOptions struct {
	// Circuit selects the circuit family, e.g. "super"
	Circuit string `json:"circuit"`
	// Block is the target block number
	Block uint64 `json:"block"`
	// ProverMode controls witness acquisition and output
	ProverMode ProverMode `json:"prover_mode"`
	// RPC is the URL of the node the witness is acquired from
	RPC string `json:"rpc"`
	// Retry re-queues the task if it previously completed with an error
	Retry bool `json:"retry"`
	// Param locates setup parameters, either a directory or a file
	Param string `json:"param,omitempty"`
	// WitnessPath is the witness input (offline) or output (capture) location
	WitnessPath string `json:"witness_path,omitempty"`
	// ProofPath is where the caller persists (or the verifier reads) proofs
	ProofPath string `json:"proof_path,omitempty"`

	Aggregate    bool `json:"aggregate"`
	VerifyProof  bool `json:"verify_proof"`
	Mock         bool `json:"mock"`
	MockFeedback bool `json:"mock_feedback"`

	ProtocolInstance ProtocolInstance `json:"protocol_instance"`
}

// ValidateBasic checks that the fields required by the selected mode are present.
func (o TaskOptions) ValidateBasic() error {
	if err := o.ProverMode.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(o.Circuit) == "" {
		return ErrInvalidOptions.Wrap("circuit must be set")
	}

	var missing []string
	require := func(ok bool, what string) {
		if !ok {
			missing = append(missing, what)
		}
	}

	switch o.ProverMode {
	case ProverModeWitnessCapture:
		require(o.Block != 0, "block number")
		require(o.Param != "", "kparams path")
		require(o.RPC != "", "L2 RPC url")
		require(o.WitnessPath != "", "witness path for output")
	case ProverModeOfflineProver:
		require(o.Param != "", "kparams path")
		require(o.ProofPath != "", "proof path for output")
		require(o.WitnessPath != "", "witness path for input")
	case ProverModeLegacyProver:
		require(o.Block != 0, "block number")
		require(o.Param != "", "kparams path")
		require(o.RPC != "", "L2 RPC url")
	case ProverModeVerifier:
		require(o.ProofPath != "", "proof path for input")
	}

	if len(missing) > 0 {
		return ErrInvalidOptions.Wrapf("%s requires %s", o.ProverMode, strings.Join(missing, ", "))
	}
	return nil
}

// Identity returns the dedup key of the task. Retry is a request flag and not
// part of what is being proved.
func (o TaskOptions) Identity() TaskOptions {
	o.Retry = false
	return o
}

// SameTask reports whether o and other describe the same unit of work.
func (o TaskOptions) SameTask(other TaskOptions) bool {
	return o.Identity() == other.Identity()
}

// String is a compact identifier used in logs.
func (o TaskOptions) String() string {
	return fmt.Sprintf("%s/%s/block=%d", o.ProverMode, o.Circuit, o.Block)
}

// RequestMetaData carries the L1 proposal metadata of the proved block.
type RequestMetaData struct {
	ID               uint64 `json:"id"`
	Timestamp        uint64 `json:"timestamp"`
	L1Height         uint64 `json:"l1_height"`
	L1Hash           string `json:"l1_hash"`
	DepositsHash     string `json:"deposits_hash"`
	BlobHash         string `json:"blob_hash"`
	TxListByteOffset uint64 `json:"tx_list_byte_offset"`
	TxListByteSize   uint64 `json:"tx_list_byte_size"`
	GasLimit         uint64 `json:"gas_limit"`
	Coinbase         string `json:"coinbase"`
	Difficulty       string `json:"difficulty"`
	ExtraData        string `json:"extra_data"`
	ParentMetaHash   string `json:"parent_metahash"`
}

// ProtocolInstance is the immutable statement a proof attests to.
type ProtocolInstance struct {
	L1SignalService string          `json:"l1_signal_service"`
	L2SignalService string          `json:"l2_signal_service"`
	L2Contract      string          `json:"l2_contract"`
	RequestMetaData RequestMetaData `json:"request_meta_data"`
	BlockHash       string          `json:"block_hash"`
	ParentHash      string          `json:"parent_hash"`
	SignalRoot      string          `json:"signal_root"`
	Graffiti        string          `json:"graffiti"`
	Prover          string          `json:"prover"`
	Treasury        string          `json:"treasury"`

	GasUsed                 uint64 `json:"gas_used"`
	ParentGasUsed           uint64 `json:"parent_gas_used"`
	BlockMaxGasLimit        uint64 `json:"block_max_gas_limit"`
	MaxTransactionsPerBlock uint64 `json:"max_transactions_per_block"`
	MaxBytesPerTxList       uint64 `json:"max_bytes_per_tx_list"`
	AnchorGasLimit          uint64 `json:"anchor_gas_limit"`
}

// Hash returns the keccak-256 digest of the instance, encoded as a sequence
// of 32 byte words in declaration order. Hex fields are left padded, integers
// are big endian.
func (pi ProtocolInstance) Hash() [32]byte {
	h := sha3.NewLegacyKeccak256()

	word := func(hexValue string) {
		h.Write(common.LeftPadBytes(common.FromHex(hexValue), 32))
	}
	number := func(v uint64) {
		var buf [32]byte
		binary.BigEndian.PutUint64(buf[24:], v)
		h.Write(buf[:])
	}

	word(pi.L1SignalService)
	word(pi.L2SignalService)
	word(pi.L2Contract)

	md := pi.RequestMetaData
	number(md.ID)
	number(md.Timestamp)
	number(md.L1Height)
	word(md.L1Hash)
	word(md.DepositsHash)
	word(md.BlobHash)
	number(md.TxListByteOffset)
	number(md.TxListByteSize)
	number(md.GasLimit)
	word(md.Coinbase)
	word(md.Difficulty)
	word(md.ExtraData)
	word(md.ParentMetaHash)

	word(pi.BlockHash)
	word(pi.ParentHash)
	word(pi.SignalRoot)
	word(pi.Graffiti)
	word(pi.Prover)
	word(pi.Treasury)
	number(pi.GasUsed)
	number(pi.ParentGasUsed)
	number(pi.BlockMaxGasLimit)
	number(pi.MaxTransactionsPerBlock)
	number(pi.MaxBytesPerTxList)
	number(pi.AnchorGasLimit)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
