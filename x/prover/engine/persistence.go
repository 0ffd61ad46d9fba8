package engine

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/paw-chain/prover/x/prover/types"
)

// InstanceHex encodes public inputs as 0x prefixed 32 byte words.
func InstanceHex(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("0x%064x", v)
	}
	return out
}

// ParseInstance decodes the output of InstanceHex.
func ParseInstance(values []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, s := range values {
		bz, err := hexutil.Decode(s)
		if err != nil {
			return nil, types.ErrVerification.Wrapf("instance %d: %s", i, err)
		}
		out[i] = new(big.Int).SetBytes(bz)
	}
	return out, nil
}

// ReadProofs loads proofs written by WriteProofs.
func ReadProofs(path string) (*types.Proofs, error) {
	bz, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, types.ErrVerification.Wrapf("read %s: %s", path, err)
	}
	var proofs types.Proofs
	if err := json.Unmarshal(bz, &proofs); err != nil {
		return nil, types.ErrVerification.Wrapf("decode %s: %s", path, err)
	}
	return &proofs, nil
}

// WriteProofs persists proofs as JSON.
func WriteProofs(path string, proofs *types.Proofs) error {
	bz, err := json.Marshal(proofs)
	if err != nil {
		return fmt.Errorf("encode proofs: %w", err)
	}
	if err := os.WriteFile(path, bz, 0o600); err != nil {
		return fmt.Errorf("write proofs %s: %w", path, err)
	}
	return nil
}
