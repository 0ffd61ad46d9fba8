package witness

import (
	"context"
	"math/big"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/paw-chain/prover/x/prover/types"
)

// DefaultRPCTimeout bounds a single witness acquisition.
const DefaultRPCTimeout = 2 * time.Minute

// RPCProvider reads the target block from an Ethereum JSON-RPC node.
type RPCProvider struct {
	timeout time.Duration
	logger  log.Logger
}

var _ Provider = (*RPCProvider)(nil)

// NewRPCProvider creates a provider. A zero timeout selects DefaultRPCTimeout.
func NewRPCProvider(timeout time.Duration, logger log.Logger) *RPCProvider {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &RPCProvider{timeout: timeout, logger: logger.With("module", "witness")}
}

// blockTransactions decodes the transaction hashes of eth_getBlockByNumber
// called without full transaction objects.
type blockTransactions struct {
	Transactions []common.Hash `json:"transactions"`
}

// Acquire dials opts.RPC and builds the witness of opts.Block.
func (p *RPCProvider) Acquire(ctx context.Context, opts types.TaskOptions) (*Witness, error) {
	if opts.RPC == "" {
		return nil, types.ErrWitness.Wrap("no rpc url")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, opts.RPC)
	if err != nil {
		return nil, types.ErrWitness.Wrapf("dial %s: %s", opts.RPC, err)
	}
	defer client.Close()

	number := new(big.Int).SetUint64(opts.Block)
	header, err := client.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, types.ErrWitness.Wrapf("header of block %d: %s", opts.Block, err)
	}

	var body blockTransactions
	if err := client.Client().CallContext(ctx, &body, "eth_getBlockByNumber", hexutil.EncodeBig(number), false); err != nil {
		return nil, types.ErrWitness.Wrapf("transactions of block %d: %s", opts.Block, err)
	}

	w := &Witness{
		BlockNumber:      header.Number.Uint64(),
		BlockHash:        header.Hash().Hex(),
		ParentHash:       header.ParentHash.Hex(),
		Gas:              header.GasUsed,
		GasLimit:         header.GasLimit,
		Timestamp:        header.Time,
		Coinbase:         header.Coinbase.Hex(),
		TxHashes:         make([]string, len(body.Transactions)),
		ProtocolInstance: opts.ProtocolInstance,
	}
	for i, tx := range body.Transactions {
		w.TxHashes[i] = tx.Hex()
	}

	p.logger.Info("acquired witness",
		"block", w.BlockNumber,
		"gas_used", w.Gas,
		"txs", len(w.TxHashes),
	)
	return w, nil
}
