package supervisor_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/protocol"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/worker"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/supervisor"
	"go.uber.org/zap"
)

// fakeWorker is an in-memory worker. Requests written to its stdin are
// decoded onto the requests channel; tests answer through emit.
type fakeWorker struct {
	config  worker.StartConfig
	streams worker.Streams

	startErr error

	// stubborn workers ignore Terminate and Kill until exit is called
	stubborn atomic.Bool

	stdinR *io.PipeReader
	stdinW *io.PipeWriter

	requests chan protocol.Request

	once      sync.Once
	done      chan struct{}
	exitEvent worker.ExitEvent
}

var _ worker.Worker = (*fakeWorker)(nil)

func newFakeWorker(config worker.StartConfig, streams worker.Streams) *fakeWorker {
	r, w := io.Pipe()

	return &fakeWorker{
		config:   config,
		streams:  streams,
		stdinR:   r,
		stdinW:   w,
		requests: make(chan protocol.Request, 16),
		done:     make(chan struct{}),
	}
}

func (f *fakeWorker) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}

	go func() {
		scanner := bufio.NewScanner(f.stdinR)
		for scanner.Scan() {
			var req protocol.Request
			if err := json.Unmarshal(scanner.Bytes(), &req); err == nil {
				f.requests <- req
			}
		}
	}()

	return nil
}

func (f *fakeWorker) Stdin() io.WriteCloser {
	return f.stdinW
}

// emit writes a raw line to the worker's stdout.
func (f *fakeWorker) emit(line string) {
	_, _ = f.streams.Stdout.Write([]byte(line + "\n"))
}

// emitErr writes a raw line to the worker's stderr.
func (f *fakeWorker) emitErr(line string) {
	_, _ = f.streams.Stderr.Write([]byte(line + "\n"))
}

// reply answers the request with the given id.
func (f *fakeWorker) reply(id int64, reply string) {
	b, _ := json.Marshal(map[string]any{"id": id, "reply": reply, "error": nil})
	f.emit(string(b))
}

// next returns the next request received by the worker.
func (f *fakeWorker) next() protocol.Request {
	select {
	case req := <-f.requests:
		return req
	case <-time.After(2 * time.Second):
		panic("no request received")
	}
}

func (f *fakeWorker) exit(evt worker.ExitEvent) {
	f.once.Do(func() {
		_ = f.stdinR.Close()
		f.exitEvent = evt
		close(f.done)
	})
}

func (f *fakeWorker) exitCode(code int) {
	f.exit(worker.ExitEvent{Code: &code})
}

func (f *fakeWorker) Terminate() error {
	if f.stubborn.Load() {
		return nil
	}

	_ = f.stdinW.Close()
	sig := 15
	f.exit(worker.ExitEvent{Signal: &sig})
	return nil
}

func (f *fakeWorker) Kill() error {
	if f.stubborn.Load() {
		return nil
	}

	sig := 9
	f.exit(worker.ExitEvent{Signal: &sig})
	return nil
}

func (f *fakeWorker) Wait(ctx context.Context) (worker.ExitEvent, error) {
	select {
	case <-f.done:
		return f.exitEvent, nil
	case <-ctx.Done():
		return worker.ExitEvent{}, ctx.Err()
	}
}

func (f *fakeWorker) WaitFor(ctx context.Context, timeout time.Duration) (worker.ExitEvent, error) {
	if timeout <= 0 {
		return f.Wait(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return f.Wait(ctx)
}

func (f *fakeWorker) Done() <-chan struct{} {
	return f.done
}

func (f *fakeWorker) Pid() int {
	return 4242
}

// fakeFactory hands out fake workers and records every spawn.
type fakeFactory struct {
	mu       sync.Mutex
	workers  []*fakeWorker
	startErr error
}

func (f *fakeFactory) create(
	_ context.Context,
	config worker.StartConfig,
	streams worker.Streams,
	_ *zap.Logger,
) (worker.Worker, error) {
	w := newFakeWorker(config, streams)
	w.startErr = f.startErr

	f.mu.Lock()
	f.workers = append(f.workers, w)
	f.mu.Unlock()

	return w, nil
}

func (f *fakeFactory) spawned() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.workers)
}

func (f *fakeFactory) last() *fakeWorker {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.workers[len(f.workers)-1]
}

func testConfig() supervisor.Config {
	return supervisor.Config{
		Start: worker.StartConfig{
			Cmd: "crewai_runner",
			Env: map[string]string{"OPENAI_LOG": "debug"},
		},
		Stop: worker.StopConfig{Timeout: time.Second},
		DataStore: supervisor.DataStoreConfig{
			Path: "/tmp/calendar_llm.db",
		},
	}
}
