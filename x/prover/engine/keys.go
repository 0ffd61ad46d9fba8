package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/paw-chain/prover/x/prover/types"
)

// KeyPair is a compiled circuit with its groth16 keys.
type KeyPair struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
}

// KeyCache memoizes key pairs by cache key for the lifetime of the process.
type KeyCache interface {
	GenProvingKey(ctx context.Context, key string, generate func(context.Context) (*KeyPair, error)) (*KeyPair, error)
}

// Function variables for testing
var (
	groth16Setup = groth16.Setup
)

// SetGroth16Setup allows tests to observe or stub key generation.
func SetGroth16Setup(fn func(constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error)) {
	groth16Setup = fn
}

// Groth16SetupFunc exposes the current setup function (useful for restoring after stubs).
func Groth16SetupFunc() func(constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	return groth16Setup
}

// CacheKey derives the key cache entry of a circuit shape.
func CacheKey(circuit string, cfg types.CircuitConfig, param string, aggregation bool) string {
	label := "setup"
	if param != "" {
		label = filepath.Clean(param)
	}
	key := fmt.Sprintf("%s-%s-%s", circuit, cfg.Name, label)
	if aggregation {
		key += "-a"
	}
	return key
}

// KeyPaths returns where the proving and verifying keys of cfg live. A
// directory holds one file pair per configuration; a file is used as the
// proving key with the verifying key next to it.
func KeyPaths(param string, cfg types.CircuitConfig, aggregation bool) (pkPath, vkPath string) {
	if info, err := os.Stat(param); err == nil && info.IsDir() {
		base := fmt.Sprintf("groth16_bn254_%s", cfg.Name)
		if aggregation {
			base += "_agg"
		}
		return filepath.Join(param, base+".pk"), filepath.Join(param, base+".vk")
	}
	return param, strings.TrimSuffix(param, filepath.Ext(param)) + ".vk"
}

// compile builds the constraint system of circuit.
func compile(circuit frontend.Circuit) (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, types.ErrKeySetup.Wrapf("failed to compile circuit: %s", err)
	}
	return ccs, nil
}

// setupKeys runs a fresh groth16 setup.
func setupKeys(ccs constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, vk, err := groth16Setup(ccs)
	if err != nil {
		return nil, nil, types.ErrKeySetup.Wrapf("failed to setup circuit: %s", err)
	}
	return pk, vk, nil
}

// loadKeys reads a key pair written by writeKeys.
func loadKeys(pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(pkPath, pk); err != nil {
		return nil, nil, err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

// writeKeys persists a key pair so later processes can skip setup.
func writeKeys(pkPath, vkPath string, pk groth16.ProvingKey, vk groth16.VerifyingKey) error {
	if err := writeTo(pkPath, pk); err != nil {
		return err
	}
	return writeTo(vkPath, vk)
}

func readFrom(path string, dst io.ReaderFrom) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return types.ErrKeySetup.Wrapf("open %s: %s", path, err)
	}
	defer f.Close()

	if _, err := dst.ReadFrom(f); err != nil {
		return types.ErrKeySetup.Wrapf("read %s: %s", path, err)
	}
	return nil
}

func writeTo(path string, src io.WriterTo) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return types.ErrKeySetup.Wrapf("create %s: %s", path, err)
	}
	defer f.Close()

	if _, err := src.WriteTo(f); err != nil {
		return types.ErrKeySetup.Wrapf("write %s: %s", path, err)
	}
	return nil
}
