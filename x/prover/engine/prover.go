package engine

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"cosmossdk.io/log"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/paw-chain/prover/app/telemetry"
	"github.com/paw-chain/prover/x/prover/circuits"
	"github.com/paw-chain/prover/x/prover/types"
	"github.com/paw-chain/prover/x/prover/witness"
)

// Prover computes proofs for the "super" circuit family with groth16 over
// BN254. It holds no state; compiled circuits and keys live in the KeyCache
// handed to every call.
type Prover struct {
	witnesses witness.Provider
	logger    log.Logger
}

// NewProver creates a prover acquiring live witnesses from witnesses.
func NewProver(witnesses witness.Provider, logger log.Logger) *Prover {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Prover{
		witnesses: witnesses,
		logger:    logger.With("module", "engine"),
	}
}

// Prove runs the task described by opts. witness_capture returns proofs with
// only Gas set after writing the witness; verifier returns the stored proofs
// once they verified.
func (p *Prover) Prove(ctx context.Context, cache KeyCache, opts types.TaskOptions) (*types.Proofs, error) {
	if err := opts.ValidateBasic(); err != nil {
		return nil, err
	}
	if opts.Circuit != types.CircuitSuper {
		return nil, types.ErrUnknownCircuit.Wrapf("%q", opts.Circuit)
	}
	if cache == nil {
		cache = noCache{}
	}

	if opts.ProverMode == types.ProverModeVerifier {
		return p.verifyStored(ctx, cache, opts)
	}

	started := time.Now()
	w, err := p.loadWitness(ctx, opts)
	if err != nil {
		return nil, err
	}
	protocolMs := elapsedMs(started)
	span := trace.SpanFromContext(ctx)
	telemetry.AddSpanEvent(span, "witness.acquired",
		attribute.Int64("witness.block", int64(w.BlockNumber)),
		attribute.Int("witness.txs", len(w.TxHashes)),
		attribute.Int64("witness.gas", int64(w.GasUsed())),
	)

	if opts.ProverMode == types.ProverModeWitnessCapture {
		if err := witness.WriteFile(opts.WitnessPath, w); err != nil {
			return nil, err
		}
		p.logger.Info("done creating witness", "path", opts.WitnessPath, "block", w.BlockNumber)
		return &types.Proofs{Gas: w.GasUsed()}, nil
	}

	cfg, err := circuits.SelectConfig(w.GasUsed())
	if err != nil {
		return nil, err
	}
	p.logger.Info("using circuit parameters", "config", cfg.Name, "max_txs", cfg.MaxTxs, "gas_used", w.GasUsed())
	telemetry.AddSpanAttributes(span,
		attribute.String("circuit.config", cfg.Name),
		attribute.Int("circuit.k", int(cfg.K)),
	)

	in, err := w.BlockInputs()
	if err != nil {
		return nil, err
	}
	assignment, err := circuits.BlockAssignment(cfg, in)
	if err != nil {
		return nil, err
	}
	commitment, err := circuits.BlockCommitment(cfg, in)
	if err != nil {
		return nil, err
	}
	instance := []*big.Int{circuits.FieldElement(in.InstanceHash[:]), commitment}

	proofs := &types.Proofs{
		Config: cfg,
		Gas:    w.GasUsed(),
		Circuit: types.ProofResult{
			Label:    fmt.Sprintf("%s-%d", opts.Circuit, cfg.BlockGasLimit),
			Instance: InstanceHex(instance),
			K:        cfg.K,
		},
		Aggregation: types.ProofResult{
			Label: fmt.Sprintf("%s-%d-a", opts.Circuit, cfg.BlockGasLimit),
			K:     cfg.K,
		},
	}
	proofs.Circuit.Aux.Protocol = protocolMs

	if opts.Mock {
		started := time.Now()
		if err := test.IsSolved(circuits.NewBlockCircuit(cfg.MaxTxs), assignment, ecc.BN254.ScalarField()); err != nil {
			if opts.MockFeedback {
				return nil, types.ErrMockProver.Wrap(err.Error())
			}
			return nil, types.ErrMockProver.Wrapf("block %d does not satisfy %s", opts.Block, cfg.Name)
		}
		proofs.Circuit.Aux.Mock = elapsedMs(started)
		telemetry.AddSpanEvent(span, "proof.generated", attribute.Bool("proof.mock", true))
		return proofs, nil
	}

	kp, err := p.keyPair(ctx, cache, opts, cfg, false, &proofs.Circuit.Aux)
	if err != nil {
		return nil, err
	}
	if proofs.Circuit.Proof, err = prove(kp, assignment, &proofs.Circuit.Aux); err != nil {
		return nil, err
	}
	if opts.VerifyProof {
		public, err := circuits.BlockPublicAssignment(cfg, instance)
		if err != nil {
			return nil, err
		}
		if err := verify(kp, proofs.Circuit.Proof, public, &proofs.Circuit.Aux); err != nil {
			return nil, err
		}
	}

	if opts.Aggregate {
		if err := p.aggregate(ctx, cache, opts, cfg, proofs); err != nil {
			return nil, err
		}
	}
	telemetry.AddSpanEvent(span, "proof.generated",
		attribute.Bool("proof.mock", false),
		attribute.Bool("proof.aggregated", opts.Aggregate),
		attribute.Int64("proof.prove_ms", int64(proofs.Circuit.Aux.Proof)),
	)
	return proofs, nil
}

// aggregate wraps the block proof into an AggregationCircuit proof.
func (p *Prover) aggregate(ctx context.Context, cache KeyCache, opts types.TaskOptions, cfg types.CircuitConfig, proofs *types.Proofs) error {
	started := time.Now()
	assignment, err := circuits.AggregationAssignment(proofs.Circuit.Proof)
	if err != nil {
		return err
	}
	digest, err := circuits.AggregationDigest(proofs.Circuit.Proof)
	if err != nil {
		return err
	}
	proofs.Aggregation.Instance = InstanceHex([]*big.Int{digest})
	proofs.Aggregation.Aux.Protocol = elapsedMs(started)

	kp, err := p.keyPair(ctx, cache, opts, cfg, true, &proofs.Aggregation.Aux)
	if err != nil {
		return err
	}
	if proofs.Aggregation.Proof, err = prove(kp, assignment, &proofs.Aggregation.Aux); err != nil {
		return err
	}
	if opts.VerifyProof {
		return verify(kp, proofs.Aggregation.Proof, circuits.AggregationPublicAssignment(digest), &proofs.Aggregation.Aux)
	}
	return nil
}

// verifyStored checks the proofs at opts.ProofPath. When a witness is given
// the public instance is recomputed from it first.
func (p *Prover) verifyStored(ctx context.Context, cache KeyCache, opts types.TaskOptions) (*types.Proofs, error) {
	stored, err := ReadProofs(opts.ProofPath)
	if err != nil {
		return nil, err
	}
	cfg, err := circuits.ConfigByName(stored.Config.Name)
	if err != nil {
		return nil, err
	}
	instance, err := ParseInstance(stored.Circuit.Instance)
	if err != nil {
		return nil, err
	}

	if opts.WitnessPath != "" {
		w, err := witness.ReadFile(opts.WitnessPath)
		if err != nil {
			return nil, err
		}
		in, err := w.BlockInputs()
		if err != nil {
			return nil, err
		}
		commitment, err := circuits.BlockCommitment(cfg, in)
		if err != nil {
			return nil, err
		}
		if len(instance) != 2 || instance[0].Cmp(circuits.FieldElement(in.InstanceHash[:])) != 0 || instance[1].Cmp(commitment) != 0 {
			return nil, types.ErrVerification.Wrap("public instance does not match witness")
		}
	}

	kp, err := p.keyPair(ctx, cache, opts, cfg, false, &stored.Circuit.Aux)
	if err != nil {
		return nil, err
	}
	public, err := circuits.BlockPublicAssignment(cfg, instance)
	if err != nil {
		return nil, err
	}
	if err := verify(kp, stored.Circuit.Proof, public, &stored.Circuit.Aux); err != nil {
		return nil, err
	}

	if !stored.Aggregation.IsEmpty() {
		digest, err := circuits.AggregationDigest(stored.Circuit.Proof)
		if err != nil {
			return nil, err
		}
		aggKP, err := p.keyPair(ctx, cache, opts, cfg, true, &stored.Aggregation.Aux)
		if err != nil {
			return nil, err
		}
		if err := verify(aggKP, stored.Aggregation.Proof, circuits.AggregationPublicAssignment(digest), &stored.Aggregation.Aux); err != nil {
			return nil, err
		}
	}

	p.logger.Info("proof verified", "path", opts.ProofPath, "config", cfg.Name)
	return stored, nil
}

func (p *Prover) loadWitness(ctx context.Context, opts types.TaskOptions) (*witness.Witness, error) {
	if opts.ProverMode.AcquiresLive() {
		if p.witnesses == nil {
			return nil, types.ErrWitness.Wrap("no witness provider configured")
		}
		return p.witnesses.Acquire(ctx, opts)
	}
	return witness.ReadFile(opts.WitnessPath)
}

// keyPair returns the cached key pair of a circuit shape. On a miss the
// circuit is compiled and its keys are loaded from opts.Param or generated.
func (p *Prover) keyPair(
	ctx context.Context,
	cache KeyCache,
	opts types.TaskOptions,
	cfg types.CircuitConfig,
	aggregation bool,
	aux *types.ProofResultInstrumentation,
) (*KeyPair, error) {
	key := CacheKey(opts.Circuit, cfg, opts.Param, aggregation)
	return cache.GenProvingKey(ctx, key, func(context.Context) (*KeyPair, error) {
		var circuit frontend.Circuit = circuits.NewBlockCircuit(cfg.MaxTxs)
		if aggregation {
			circuit = &circuits.AggregationCircuit{}
		}

		started := time.Now()
		ccs, err := compile(circuit)
		if err != nil {
			return nil, err
		}
		aux.Circuit = elapsedMs(started)

		var pkPath, vkPath string
		if opts.Param != "" {
			pkPath, vkPath = KeyPaths(opts.Param, cfg, aggregation)
			if fileExists(pkPath) && fileExists(vkPath) {
				started = time.Now()
				pk, vk, err := loadKeys(pkPath, vkPath)
				if err != nil {
					return nil, err
				}
				aux.PK = elapsedMs(started)
				p.logger.Info("loaded proving key", "key", key, "path", pkPath)
				return &KeyPair{CCS: ccs, PK: pk, VK: vk}, nil
			}
		}

		started = time.Now()
		pk, vk, err := setupKeys(ccs)
		if err != nil {
			return nil, err
		}
		aux.PK = elapsedMs(started)
		aux.VK = aux.PK

		if pkPath != "" {
			if err := writeKeys(pkPath, vkPath, pk, vk); err != nil {
				return nil, err
			}
			p.logger.Info("wrote proving key", "key", key, "path", pkPath)
		}
		return &KeyPair{CCS: ccs, PK: pk, VK: vk}, nil
	})
}

func prove(kp *KeyPair, assignment frontend.Circuit, aux *types.ProofResultInstrumentation) ([]byte, error) {
	started := time.Now()
	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, types.ErrProofGeneration.Wrapf("failed to create witness: %s", err)
	}
	proof, err := groth16.Prove(kp.CCS, kp.PK, full)
	if err != nil {
		return nil, types.ErrProofGeneration.Wrap(err.Error())
	}

	buf := new(bytes.Buffer)
	if _, err := proof.WriteTo(buf); err != nil {
		return nil, types.ErrProofGeneration.Wrapf("failed to serialize proof: %s", err)
	}
	aux.Proof = elapsedMs(started)
	return buf.Bytes(), nil
}

func verify(kp *KeyPair, proofBytes []byte, public frontend.Circuit, aux *types.ProofResultInstrumentation) error {
	started := time.Now()
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return types.ErrVerification.Wrapf("failed to deserialize proof: %s", err)
	}
	publicWitness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return types.ErrVerification.Wrapf("failed to create witness: %s", err)
	}
	if err := groth16.Verify(proof, kp.VK, publicWitness); err != nil {
		return types.ErrVerification.Wrap(err.Error())
	}
	aux.Verify = elapsedMs(started)
	return nil
}

// noCache generates on every call.
type noCache struct{}

func (noCache) GenProvingKey(ctx context.Context, _ string, generate func(context.Context) (*KeyPair, error)) (*KeyPair, error) {
	return generate(ctx)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func elapsedMs(since time.Time) uint32 {
	ms := time.Since(since).Milliseconds()
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}
