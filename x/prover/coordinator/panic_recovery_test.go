package coordinator

import (
	"errors"
	"fmt"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/prover/x/prover/types"
)

func TestPanicMessage(t *testing.T) {
	require.Equal(t, "boom", PanicMessage("boom"))
	require.Equal(t, "wrapped: boom", PanicMessage(fmt.Errorf("wrapped: %w", errors.New("boom"))))
	require.Equal(t, unknownPanic, PanicMessage(struct{}{}))
	require.Equal(t, unknownPanic, PanicMessage(3.14))
}

func TestSafeExecuteWithReturn(t *testing.T) {
	logger := log.NewTestLogger(t)

	v, err := SafeExecuteWithReturn(logger, "ok", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)

	want := errors.New("plain failure")
	_, err = SafeExecuteWithReturn(logger, "err", func() (int, error) { return 0, want })
	require.ErrorIs(t, err, want)

	v, err = SafeExecuteWithReturn(logger, "panics", func() (int, error) { panic("kaboom") })
	require.Zero(t, v)
	require.ErrorIs(t, err, types.ErrTaskPanic)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "panics", pe.Handler)
	require.Equal(t, "kaboom", pe.Error())
}

func TestRandomWorkerID(t *testing.T) {
	id := RandomWorkerID()
	require.Len(t, id, 32)
	require.Regexp(t, "^[0-9a-f]{32}$", id)
	require.NotEqual(t, id, RandomWorkerID())

	// version and variant nibbles of a v4 UUID
	require.Equal(t, byte('4'), id[12])
	require.Contains(t, "89ab", string(id[16]))
}

func TestRegistryCandidatesInOrder(t *testing.T) {
	r := NewTaskRegistry()
	done := types.NewSuccess(&types.Proofs{})
	r.Append(types.Task{Options: taskOptions(3)})
	r.Append(types.Task{Options: taskOptions(1), Result: &done})
	r.Append(types.Task{Options: taskOptions(2)})

	require.Equal(t, []types.TaskOptions{taskOptions(3), taskOptions(2)}, r.Candidates())
	require.Equal(t, 3, r.Len())

	retry := taskOptions(1)
	retry.Retry = true
	task, ok := r.Find(retry)
	require.True(t, ok)
	require.True(t, task.HasResult())

	_, ok = r.Find(taskOptions(9))
	require.False(t, ok)
}
