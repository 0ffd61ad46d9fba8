package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paw-chain/prover/p2p/rpc"
	"github.com/paw-chain/prover/x/prover/witness"
)

const (
	flagNodeID          = "node-id"
	flagLookup          = "lookup"
	flagPeerLaddr       = "peer-laddr"
	flagPeerTimeout     = "peer-timeout"
	flagInterval        = "interval"
	flagWitnessTimeout  = "witness-timeout"
	flagAPILaddr        = "api-laddr"
	flagAPIJWTSecret    = "api-jwt-secret"
	flagAPICORSOrigins  = "api-cors-origins"
	flagAPIRateLimit    = "api-rate-limit"
	flagMetricsLaddr    = "metrics-laddr"
	flagHealthLaddr     = "health-laddr"
	flagGRPCHealthLaddr = "grpc-health-laddr"
	flagOTLPEndpoint    = "otlp-endpoint"
	flagTraceSampleRate = "trace-sample-rate"
	flagEnvironment     = "environment"
)

// NodeConfig is the resolved configuration of a long running node. An empty
// listen address disables that listener.
type NodeConfig struct {
	NodeID         string
	NodeLookup     string
	PeerLaddr      string
	PeerTimeout    time.Duration
	Interval       time.Duration
	WitnessTimeout time.Duration

	APILaddr       string
	APIJWTSecret   string
	APICORSOrigins []string
	APIRateLimit   int

	MetricsLaddr    string
	HealthLaddr     string
	GRPCHealthLaddr string

	OTLPEndpoint    string
	TraceSampleRate float64
	Environment     string
}

// DefaultNodeConfig returns the configuration used when nothing is set.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		PeerLaddr:       "0.0.0.0:9000",
		PeerTimeout:     rpc.DefaultTimeout,
		Interval:        time.Second,
		WitnessTimeout:  witness.DefaultRPCTimeout,
		APILaddr:        "0.0.0.0:8080",
		APICORSOrigins:  []string{"http://localhost:3000"},
		APIRateLimit:    100,
		MetricsLaddr:    "0.0.0.0:36660",
		HealthLaddr:     "0.0.0.0:36661",
		GRPCHealthLaddr: "0.0.0.0:36662",
		TraceSampleRate: 0.1,
		Environment:     "development",
	}
}

// AddNodeFlags registers the flags of a long running node on cmd.
func AddNodeFlags(cmd *cobra.Command) {
	def := DefaultNodeConfig()
	f := cmd.Flags()

	f.String(flagNodeID, "", "election tie-break id (random when empty)")
	f.String(flagLookup, "", "host:port resolved into peer addresses (standalone when empty)")
	f.String(flagPeerLaddr, def.PeerLaddr, "peer JSON-RPC listen address")
	f.Duration(flagPeerTimeout, def.PeerTimeout, "deadline of a single peer call")
	f.Duration(flagInterval, def.Interval, "pause between duty cycles")
	f.Duration(flagWitnessTimeout, def.WitnessTimeout, "deadline of a witness acquisition")
	f.String(flagAPILaddr, def.APILaddr, "operator REST gateway listen address")
	f.String(flagAPIJWTSecret, "", "HS256 secret required for task submission over REST")
	f.StringSlice(flagAPICORSOrigins, def.APICORSOrigins, "allowed CORS origins")
	f.Int(flagAPIRateLimit, def.APIRateLimit, "REST requests per second per client IP")
	f.String(flagMetricsLaddr, def.MetricsLaddr, "Prometheus listen address")
	f.String(flagHealthLaddr, def.HealthLaddr, "HTTP health listen address")
	f.String(flagGRPCHealthLaddr, def.GRPCHealthLaddr, "gRPC health listen address")
	f.String(flagOTLPEndpoint, "", "OTLP/HTTP trace collector (tracing disabled when empty)")
	f.Float64(flagTraceSampleRate, def.TraceSampleRate, "fraction of traces sampled")
	f.String(flagEnvironment, def.Environment, "environment reported in traces")
}

// ReadNodeConfig resolves a NodeConfig from v.
func ReadNodeConfig(v *viper.Viper) (NodeConfig, error) {
	def := DefaultNodeConfig()
	cfg := NodeConfig{
		NodeID:          v.GetString(flagNodeID),
		NodeLookup:      strings.TrimSpace(v.GetString(flagLookup)),
		PeerLaddr:       stringOr(v, flagPeerLaddr, def.PeerLaddr),
		APILaddr:        stringOr(v, flagAPILaddr, def.APILaddr),
		APIJWTSecret:    v.GetString(flagAPIJWTSecret),
		MetricsLaddr:    stringOr(v, flagMetricsLaddr, def.MetricsLaddr),
		HealthLaddr:     stringOr(v, flagHealthLaddr, def.HealthLaddr),
		GRPCHealthLaddr: stringOr(v, flagGRPCHealthLaddr, def.GRPCHealthLaddr),
		OTLPEndpoint:    v.GetString(flagOTLPEndpoint),
		Environment:     stringOr(v, flagEnvironment, def.Environment),
	}

	var err error
	if cfg.PeerTimeout, err = durationOr(v, flagPeerTimeout, def.PeerTimeout); err != nil {
		return cfg, err
	}
	if cfg.Interval, err = durationOr(v, flagInterval, def.Interval); err != nil {
		return cfg, err
	}
	if cfg.WitnessTimeout, err = durationOr(v, flagWitnessTimeout, def.WitnessTimeout); err != nil {
		return cfg, err
	}

	cfg.APIRateLimit = def.APIRateLimit
	if v.IsSet(flagAPIRateLimit) {
		if cfg.APIRateLimit, err = cast.ToIntE(v.Get(flagAPIRateLimit)); err != nil {
			return cfg, fmt.Errorf("%s: %w", flagAPIRateLimit, err)
		}
	}

	cfg.TraceSampleRate = def.TraceSampleRate
	if v.IsSet(flagTraceSampleRate) {
		if cfg.TraceSampleRate, err = cast.ToFloat64E(v.Get(flagTraceSampleRate)); err != nil {
			return cfg, fmt.Errorf("%s: %w", flagTraceSampleRate, err)
		}
	}

	cfg.APICORSOrigins = def.APICORSOrigins
	if v.IsSet(flagAPICORSOrigins) {
		cfg.APICORSOrigins = stringList(v.Get(flagAPICORSOrigins))
	}

	return cfg, cfg.Validate()
}

// Validate checks the ranges of the numeric settings.
func (c NodeConfig) Validate() error {
	switch {
	case c.PeerTimeout <= 0:
		return fmt.Errorf("%s must be positive", flagPeerTimeout)
	case c.Interval <= 0:
		return fmt.Errorf("%s must be positive", flagInterval)
	case c.WitnessTimeout <= 0:
		return fmt.Errorf("%s must be positive", flagWitnessTimeout)
	case c.APIRateLimit <= 0:
		return fmt.Errorf("%s must be positive", flagAPIRateLimit)
	case c.TraceSampleRate < 0 || c.TraceSampleRate > 1:
		return fmt.Errorf("%s must be between 0 and 1", flagTraceSampleRate)
	case c.NodeLookup != "" && !strings.Contains(c.NodeLookup, ":"):
		return fmt.Errorf("%s must be host:port, got %q", flagLookup, c.NodeLookup)
	}
	return nil
}

func stringOr(v *viper.Viper, key, fallback string) string {
	if !v.IsSet(key) {
		return fallback
	}
	return strings.TrimSpace(v.GetString(key))
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	if !v.IsSet(key) {
		return fallback, nil
	}
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// stringList accepts a slice from flags or the config file, or a comma
// separated string from the environment.
func stringList(raw interface{}) []string {
	if s, ok := raw.(string); ok {
		raw = strings.Split(s, ",")
	}
	var out []string
	for _, item := range cast.ToStringSlice(raw) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
