package rpc

import (
	"cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// cometLogger exposes a cosmossdk.io/log Logger as a CometBFT logger.
type cometLogger struct {
	log.Logger
}

var _ cmtlog.Logger = cometLogger{}

// NewCometLogger wraps logger for the CometBFT RPC server.
func NewCometLogger(logger log.Logger) cmtlog.Logger {
	return cometLogger{Logger: logger}
}

func (l cometLogger) With(keyVals ...interface{}) cmtlog.Logger {
	return cometLogger{Logger: l.Logger.With(keyVals...)}
}
