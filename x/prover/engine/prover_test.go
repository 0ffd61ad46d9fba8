package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cosmossdk.io/log"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/paw-chain/prover/x/prover/types"
	"github.com/paw-chain/prover/x/prover/witness"
)

// memoryCache is a minimal KeyCache for tests.
type memoryCache struct {
	mu   sync.Mutex
	keys map[string]*KeyPair
}

func newMemoryCache() *memoryCache {
	return &memoryCache{keys: make(map[string]*KeyPair)}
}

func (c *memoryCache) GenProvingKey(ctx context.Context, key string, generate func(context.Context) (*KeyPair, error)) (*KeyPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kp, ok := c.keys[key]; ok {
		return kp, nil
	}
	kp, err := generate(ctx)
	if err != nil {
		return nil, err
	}
	c.keys[key] = kp
	return kp, nil
}

type staticProvider struct {
	w *witness.Witness
}

func (p staticProvider) Acquire(context.Context, types.TaskOptions) (*witness.Witness, error) {
	cp := *p.w
	return &cp, nil
}

type ProverTestSuite struct {
	suite.Suite

	dir         string
	witnessPath string
	proofPath   string
	cache       *memoryCache
	prover      *Prover
	setups      int
	restore     func(constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error)
}

func TestProverTestSuite(t *testing.T) {
	suite.Run(t, new(ProverTestSuite))
}

func (s *ProverTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.witnessPath = filepath.Join(s.dir, "witness.json")
	s.proofPath = filepath.Join(s.dir, "proof.json")
	s.cache = newMemoryCache()

	w := &witness.Witness{
		BlockNumber: 3,
		BlockHash:   common.HexToHash("0x03").Hex(),
		ParentHash:  common.HexToHash("0x02").Hex(),
		Gas:         21_000,
		GasLimit:    63_000,
		Timestamp:   1_700_000_000,
		TxHashes:    []string{common.HexToHash("0xaa").Hex()},
	}
	w.ProtocolInstance.GasUsed = 21_000
	s.Require().NoError(witness.WriteFile(s.witnessPath, w))
	s.prover = NewProver(staticProvider{w: w}, log.NewNopLogger())

	s.setups = 0
	s.restore = Groth16SetupFunc()
	restore := s.restore
	SetGroth16Setup(func(ccs constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error) {
		s.setups++
		return restore(ccs)
	})
}

func (s *ProverTestSuite) TearDownTest() {
	SetGroth16Setup(s.restore)
}

func (s *ProverTestSuite) offlineOptions() types.TaskOptions {
	return types.TaskOptions{
		Circuit:     types.CircuitSuper,
		ProverMode:  types.ProverModeOfflineProver,
		Param:       s.dir,
		WitnessPath: s.witnessPath,
		ProofPath:   s.proofPath,
		VerifyProof: true,
	}
}

func (s *ProverTestSuite) TestOfflineProveAndVerify() {
	opts := s.offlineOptions()
	proofs, err := s.prover.Prove(context.Background(), s.cache, opts)
	s.Require().NoError(err)
	s.Require().Equal("tiny", proofs.Config.Name)
	s.Require().Equal(uint64(21_000), proofs.Gas)
	s.Require().Equal("super-63000", proofs.Circuit.Label)
	s.Require().NotEmpty(proofs.Circuit.Proof)
	s.Require().Len(proofs.Circuit.Instance, 2)
	s.Require().True(proofs.Aggregation.IsEmpty())
	s.Require().Equal(1, s.setups)

	// keys were written into the param directory
	pkPath, vkPath := KeyPaths(s.dir, proofs.Config, false)
	s.Require().FileExists(pkPath)
	s.Require().FileExists(vkPath)

	// second proof reuses the cached key pair
	_, err = s.prover.Prove(context.Background(), s.cache, opts)
	s.Require().NoError(err)
	s.Require().Equal(1, s.setups)

	// a verifier in a fresh process loads the persisted keys
	s.Require().NoError(WriteProofs(s.proofPath, proofs))
	verified, err := s.prover.Prove(context.Background(), newMemoryCache(), types.TaskOptions{
		Circuit:     types.CircuitSuper,
		ProverMode:  types.ProverModeVerifier,
		Param:       s.dir,
		ProofPath:   s.proofPath,
		WitnessPath: s.witnessPath,
	})
	s.Require().NoError(err)
	s.Require().Equal(proofs.Circuit.Proof, verified.Circuit.Proof)
	s.Require().Equal(1, s.setups)
}

func (s *ProverTestSuite) TestVerifierRejectsTamperedInstance() {
	proofs, err := s.prover.Prove(context.Background(), s.cache, s.offlineOptions())
	s.Require().NoError(err)

	proofs.Circuit.Instance[1] = "0x" + "00000000000000000000000000000000000000000000000000000000000000ff"
	s.Require().NoError(WriteProofs(s.proofPath, proofs))

	_, err = s.prover.Prove(context.Background(), s.cache, types.TaskOptions{
		Circuit:    types.CircuitSuper,
		ProverMode: types.ProverModeVerifier,
		Param:      s.dir,
		ProofPath:  s.proofPath,
	})
	s.Require().Error(err)
	s.Require().True(errors.Is(err, types.ErrVerification))
}

func (s *ProverTestSuite) TestAggregate() {
	opts := s.offlineOptions()
	opts.Aggregate = true
	proofs, err := s.prover.Prove(context.Background(), s.cache, opts)
	s.Require().NoError(err)
	s.Require().False(proofs.Aggregation.IsEmpty())
	s.Require().Equal("super-63000-a", proofs.Aggregation.Label)
	s.Require().Len(proofs.Aggregation.Instance, 1)
	s.Require().Equal(2, s.setups)
}

func (s *ProverTestSuite) TestMock() {
	opts := s.offlineOptions()
	opts.Mock = true
	proofs, err := s.prover.Prove(context.Background(), s.cache, opts)
	s.Require().NoError(err)
	s.Require().True(proofs.Circuit.IsEmpty())
	s.Require().Len(proofs.Circuit.Instance, 2)
	s.Require().Equal(0, s.setups)
}

func (s *ProverTestSuite) TestProveAnnotatesTaskSpan() {
	recorder := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("engine-test").Start(context.Background(), "task.execute")

	opts := s.offlineOptions()
	opts.Mock = true
	_, err := s.prover.Prove(ctx, s.cache, opts)
	s.Require().NoError(err)
	span.End()

	ended := recorder.Ended()
	s.Require().Len(ended, 1)
	s.Require().Contains(ended[0].Attributes(), attribute.String("circuit.config", "tiny"))

	events := ended[0].Events()
	s.Require().Len(events, 2)
	s.Require().Equal("witness.acquired", events[0].Name)
	s.Require().Contains(events[0].Attributes, attribute.Int("witness.txs", 1))
	s.Require().Contains(events[0].Attributes, attribute.Int64("witness.gas", 21_000))
	s.Require().Equal("proof.generated", events[1].Name)
	s.Require().Contains(events[1].Attributes, attribute.Bool("proof.mock", true))
}

func (s *ProverTestSuite) TestMockRejectsInvalidWitness() {
	w, err := witness.ReadFile(s.witnessPath)
	s.Require().NoError(err)
	w.Gas = 10
	w.GasLimit = 5
	in := s.offlineOptions()
	in.Mock = true
	in.MockFeedback = true
	s.Require().NoError(witness.WriteFile(s.witnessPath, w))

	_, err = s.prover.Prove(context.Background(), s.cache, in)
	s.Require().Error(err)
	s.Require().True(errors.Is(err, types.ErrWitness))
}

func (s *ProverTestSuite) TestWitnessCapture() {
	out := filepath.Join(s.dir, "captured.json")
	proofs, err := s.prover.Prove(context.Background(), s.cache, types.TaskOptions{
		Circuit:     types.CircuitSuper,
		Block:       3,
		ProverMode:  types.ProverModeWitnessCapture,
		RPC:         "http://localhost:8545",
		Param:       s.dir,
		WitnessPath: out,
	})
	s.Require().NoError(err)
	s.Require().Equal(uint64(21_000), proofs.Gas)
	s.Require().True(proofs.Circuit.IsEmpty())

	captured, err := witness.ReadFile(out)
	s.Require().NoError(err)
	s.Require().Equal(uint64(3), captured.BlockNumber)
}

func (s *ProverTestSuite) TestUnknownCircuit() {
	opts := s.offlineOptions()
	opts.Circuit = "evm"
	_, err := s.prover.Prove(context.Background(), s.cache, opts)
	s.Require().True(errors.Is(err, types.ErrUnknownCircuit))
}

func (s *ProverTestSuite) TestNoCircuitParams() {
	w, err := witness.ReadFile(s.witnessPath)
	s.Require().NoError(err)
	w.Gas = 7_000_000
	w.GasLimit = 30_000_000
	s.Require().NoError(witness.WriteFile(s.witnessPath, w))

	_, err = s.prover.Prove(context.Background(), s.cache, s.offlineOptions())
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "No circuit parameters found for block with gas used=7000000")
}

func (s *ProverTestSuite) TestInvalidOptions() {
	opts := s.offlineOptions()
	opts.WitnessPath = ""
	_, err := s.prover.Prove(context.Background(), s.cache, opts)
	s.Require().True(errors.Is(err, types.ErrInvalidOptions))
}

func (s *ProverTestSuite) TestKeyPathsForFile() {
	file := filepath.Join(s.dir, "keys.pk")
	s.Require().NoError(os.WriteFile(file, nil, 0o600))
	pk, vk := KeyPaths(file, types.CircuitConfig{Name: "tiny"}, false)
	s.Require().Equal(file, pk)
	s.Require().Equal(filepath.Join(s.dir, "keys.vk"), vk)

	pk, _ = KeyPaths(s.dir, types.CircuitConfig{Name: "tiny"}, true)
	s.Require().Equal(filepath.Join(s.dir, "groth16_bn254_tiny_agg.pk"), pk)
}

func (s *ProverTestSuite) TestCacheKey() {
	cfg := types.CircuitConfig{Name: "small"}
	s.Require().Equal("super-small-setup", CacheKey("super", cfg, "", false))
	s.Require().Equal("super-small-/params-a", CacheKey("super", cfg, "/params/", true))
}
