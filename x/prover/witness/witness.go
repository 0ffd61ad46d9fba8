package witness

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/paw-chain/prover/x/prover/circuits"
	"github.com/paw-chain/prover/x/prover/types"
)

// Witness is the block data a proof is computed from. It is the document
// written in witness_capture mode and read back by offline_prover.
type Witness struct {
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	ParentHash  string   `json:"parent_hash"`
	Gas         uint64   `json:"gas_used"`
	GasLimit    uint64   `json:"gas_limit"`
	Timestamp   uint64   `json:"timestamp"`
	Coinbase    string   `json:"coinbase"`
	TxHashes    []string `json:"tx_hashes"`

	ProtocolInstance types.ProtocolInstance `json:"protocol_instance"`
}

// GasUsed is the resource metric circuit selection is keyed on.
func (w *Witness) GasUsed() uint64 {
	return w.Gas
}

// ValidateBasic checks the fields required to build circuit inputs.
func (w *Witness) ValidateBasic() error {
	if w.GasUsed() > w.GasLimit {
		return types.ErrWitness.Wrapf("gas used %d exceeds gas limit %d", w.GasUsed(), w.GasLimit)
	}
	if !isHash(w.ParentHash) {
		return types.ErrWitness.Wrapf("invalid parent hash %q", w.ParentHash)
	}
	for i, tx := range w.TxHashes {
		if !isHash(tx) {
			return types.ErrWitness.Wrapf("invalid transaction hash %d: %q", i, tx)
		}
	}
	return nil
}

// BlockInputs converts the witness into the native inputs of the block circuit.
func (w *Witness) BlockInputs() (circuits.BlockInputs, error) {
	if err := w.ValidateBasic(); err != nil {
		return circuits.BlockInputs{}, err
	}

	in := circuits.BlockInputs{
		InstanceHash: w.ProtocolInstance.Hash(),
		BlockNumber:  w.BlockNumber,
		GasUsed:      w.GasUsed(),
		GasLimit:     w.GasLimit,
		Timestamp:    w.Timestamp,
		ParentHash:   common.HexToHash(w.ParentHash),
		TxHashes:     make([][32]byte, len(w.TxHashes)),
	}
	for i, tx := range w.TxHashes {
		in.TxHashes[i] = common.HexToHash(tx)
	}
	return in, nil
}

func isHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

// ReadFile loads a witness document.
func ReadFile(path string) (*Witness, error) {
	bz, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, types.ErrWitness.Wrapf("read %s: %s", path, err)
	}
	var w Witness
	if err := json.Unmarshal(bz, &w); err != nil {
		return nil, types.ErrWitness.Wrapf("decode %s: %s", path, err)
	}
	return &w, nil
}

// WriteFile stores a witness document, replacing any previous one.
func WriteFile(path string, w *Witness) error {
	bz, err := json.Marshal(w)
	if err != nil {
		return types.ErrWitness.Wrapf("encode: %s", err)
	}
	if err := os.WriteFile(path, bz, 0o600); err != nil {
		return types.ErrWitness.Wrapf("write %s: %s", path, err)
	}
	return nil
}

// Provider acquires a witness for a task from its data source.
type Provider interface {
	Acquire(ctx context.Context, opts types.TaskOptions) (*Witness, error)
}
