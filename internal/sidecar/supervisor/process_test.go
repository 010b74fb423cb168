//go:build !windows

package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/supervisor"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const echoScript = `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/^{"id":\([0-9]*\),.*/\1/p')
  printf 'booting crew\n'
  printf '{"type":"log","message":"got %s"}\n' "$id"
  printf '{"id":%s,"reply":"%s","error":null}\n' "$id" "$CALENDAR_DB_PATH"
done
`

func createProcessSupervisor(t *testing.T, script string, stopTimeout time.Duration) *supervisor.WorkerSupervisor {
	s, err := supervisor.New(supervisor.Params{
		Config: supervisor.Config{
			Start: worker.StartConfig{
				Cmd:  "sh",
				Args: []string{"-c", script},
			},
			Stop: worker.StopConfig{Timeout: stopTimeout},
			DataStore: supervisor.DataStoreConfig{
				Path: "/data/calendar_llm.db",
			},
		},
		Log: zap.NewNop(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Stop(context.Background())
	})

	return s
}

func TestSupervisor_Process_Echo(t *testing.T) {
	s := createProcessSupervisor(t, echoScript, time.Second)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		reply, err := s.Send(ctx, "hi")
		require.NoError(t, err)
		assert.Equal(t, "/data/calendar_llm.db", reply)
	}
}

func TestSupervisor_Process_ExitCode(t *testing.T) {
	s := createProcessSupervisor(t, `read -r line; exit 1`, time.Second)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.Send(ctx, "x")
	assert.ErrorIs(t, err, supervisor.ErrUnexpectedExit)
	assert.EqualError(t, err, "worker exited unexpectedly (code=1)")

	require.Eventually(t, func() bool {
		return s.State() == supervisor.StateStopped
	}, 2*time.Second, 10*time.Millisecond)

	_, err = s.Send(ctx, "y")
	assert.ErrorIs(t, err, supervisor.ErrNotRunning)
}

func TestSupervisor_Process_StopEscalatesToKill(t *testing.T) {
	s := createProcessSupervisor(t, `trap '' TERM; while true; do sleep 0.05; done`, 100*time.Millisecond)
	require.NoError(t, s.Start(context.Background()))

	start := time.Now()
	require.NoError(t, s.Stop(context.Background()))

	assert.Equal(t, supervisor.StateStopped, s.State())
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSupervisor_Process_MissingExecutable(t *testing.T) {
	s, err := supervisor.New(supervisor.Params{
		Config: supervisor.Config{
			Start:     worker.StartConfig{Cmd: "/nonexistent/crewai_runner"},
			DataStore: supervisor.DataStoreConfig{Path: "/data/calendar_llm.db"},
		},
		Log: zap.NewNop(),
	})
	require.NoError(t, err)

	err = s.Start(context.Background())

	var spawnErr *supervisor.SpawnError
	assert.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, supervisor.StateStopped, s.State())
}
