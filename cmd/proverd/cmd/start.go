package cmd

import (
	"context"
	"errors"
	"net"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/paw-chain/prover/api"
	"github.com/paw-chain/prover/app/health"
	"github.com/paw-chain/prover/app/telemetry"
	"github.com/paw-chain/prover/p2p/rpc"
	"github.com/paw-chain/prover/x/prover/coordinator"
	"github.com/paw-chain/prover/x/prover/engine"
	"github.com/paw-chain/prover/x/prover/witness"
)

const healthRefreshInterval = 10 * time.Second

// StartCmd runs a long lived node.
func StartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the node: peer RPC, REST gateway, health, metrics and the duty cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sctx := GetServerContextFromCmd(cmd)
			cfg, err := ReadNodeConfig(sctx.Viper)
			if err != nil {
				return err
			}
			return RunNode(cmd.Context(), cfg, sctx.Logger)
		},
	}

	AddNodeFlags(cmd)
	return cmd
}

// Node bundles the services of a running prover node.
type Node struct {
	Coordinator *coordinator.Coordinator
	Checker     *health.Checker
	Gateway     *api.Server
	Telemetry   *telemetry.Provider
}

// NewNode wires the coordinator and its servers from cfg.
func NewNode(cfg NodeConfig, logger log.Logger) (*Node, error) {
	tp, err := telemetry.NewProvider(telemetry.Config{
		TracingEnabled: cfg.OTLPEndpoint != "",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		MetricsEnabled: cfg.MetricsLaddr != "",
		Environment:    cfg.Environment,
		NodeID:         cfg.NodeID,
	})
	if err != nil {
		return nil, err
	}

	prover := engine.NewProver(witness.NewRPCProvider(cfg.WitnessTimeout, logger), logger)

	var (
		peers    coordinator.PeerClient
		resolver coordinator.Resolver
	)
	if cfg.NodeLookup != "" {
		client := rpc.NewClient(cfg.PeerTimeout, logger)
		client.SetMetrics(tp.PeerMetrics())
		peers = client
		resolver = rpc.NewDNSResolver()
	}

	node := coordinator.NewCoordinator(coordinator.Config{
		NodeID:     cfg.NodeID,
		NodeLookup: cfg.NodeLookup,
	}, prover, peers, resolver, logger)

	checker, err := health.NewChecker(logger, health.Config{
		MaxResponseTime: cfg.PeerTimeout,
		CacheDuration:   5 * time.Second,
		Version:         Version,
	}, node, resolver, tp)
	if err != nil {
		return nil, err
	}

	apiCfg := api.DefaultConfig()
	if cfg.APILaddr != "" {
		host, port, err := net.SplitHostPort(cfg.APILaddr)
		if err != nil {
			return nil, err
		}
		apiCfg.Host, apiCfg.Port = host, port
	}
	apiCfg.JWTSecret = []byte(cfg.APIJWTSecret)
	apiCfg.CORSOrigins = cfg.APICORSOrigins
	apiCfg.RateLimitRPS = cfg.APIRateLimit

	gateway, err := api.NewServer(node, apiCfg, logger)
	if err != nil {
		return nil, err
	}

	return &Node{
		Coordinator: node,
		Checker:     checker,
		Gateway:     gateway,
		Telemetry:   tp,
	}, nil
}

// RunNode serves every configured listener and drives the duty cycle until
// ctx is cancelled or one of them fails.
func RunNode(ctx context.Context, cfg NodeConfig, logger log.Logger) error {
	n, err := NewNode(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.Telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown", "error", err)
		}
	}()

	logger.Info("starting proverd", "node", n.Coordinator.NodeID(), "lookup", cfg.NodeLookup)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.PeerLaddr != "" {
		g.Go(func() error {
			return rpc.NewServer(cfg.PeerLaddr, n.Coordinator, logger).Start(ctx)
		})
	}
	if cfg.APILaddr != "" {
		g.Go(func() error { return n.Gateway.Start(ctx) })
	}
	if cfg.MetricsLaddr != "" {
		g.Go(func() error { return serveHTTP(ctx, "metrics", cfg.MetricsLaddr, MetricsHandler(n.Telemetry.Gatherer()), logger) })
	}
	if cfg.HealthLaddr != "" {
		g.Go(func() error { return serveHTTP(ctx, "health", cfg.HealthLaddr, n.Checker.Handler(), logger) })
	}
	if cfg.GRPCHealthLaddr != "" {
		g.Go(func() error {
			return serveGRPCHealth(ctx, cfg.GRPCHealthLaddr, n.Checker, healthRefreshInterval, logger)
		})
	}
	g.Go(func() error {
		err := n.Coordinator.Run(ctx, cfg.Interval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}
