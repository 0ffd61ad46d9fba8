package types

import (
	sdkerrors "cosmossdk.io/errors"
)

// Prover module sentinel errors

var (
	// Request errors
	ErrInvalidOptions = sdkerrors.Register(ModuleName, 2, "invalid task options")
	ErrInvalidMode    = sdkerrors.Register(ModuleName, 3, "invalid prover mode")

	// Peer errors
	ErrPeerTransport = sdkerrors.Register(ModuleName, 10, "peer transport failure")
	ErrPeerLookup    = sdkerrors.Register(ModuleName, 11, "peer lookup failed")

	// Computation errors
	ErrNoCircuitParams = sdkerrors.Register(ModuleName, 20, "no circuit parameters found")
	ErrUnknownCircuit  = sdkerrors.Register(ModuleName, 21, "unknown circuit")
	ErrWitness         = sdkerrors.Register(ModuleName, 22, "witness unavailable")
	ErrProofGeneration = sdkerrors.Register(ModuleName, 23, "proof generation failed")
	ErrVerification    = sdkerrors.Register(ModuleName, 24, "proof verification failed")
	ErrMockProver      = sdkerrors.Register(ModuleName, 25, "mock prover failed")
	ErrKeySetup        = sdkerrors.Register(ModuleName, 26, "proving key setup failed")

	// Execution errors
	ErrTaskPanic   = sdkerrors.Register(ModuleName, 30, "task panicked")
	ErrTaskMissing = sdkerrors.Register(ModuleName, 31, "task no longer registered")
)
