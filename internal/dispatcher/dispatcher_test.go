package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(CmdStatus, func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: CmdStatus})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var handled atomic.Int32
	done := make(chan struct{})
	d.Register(CmdRotateLeft, func(e Event) (any, error) {
		if handled.Add(1) == 3 {
			close(done)
		}
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: CmdRotateLeft})
		if err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered handler did not drain the queue")
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(CmdThrottleUp, func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1))

	// First event occupies the worker, second fills the buffer.
	// Allow a few attempts for the worker goroutine to pick up the first.
	var dropErr error
	for i := 0; i < 50; i++ {
		if _, err := d.Dispatch(Event{Command: CmdThrottleUp}); err != nil {
			dropErr = err
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(block)

	if dropErr == nil {
		t.Error("expected a drop once the queue was full")
	}
}

func TestDispatcher_BlockingHandlerNeverDrops(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var handled atomic.Int32
	d.Register(CmdThrottleDown, func(e Event) (any, error) {
		handled.Add(1)
		return nil, nil
	}, Buffered(1), Blocking())

	for i := 0; i < 20; i++ {
		if _, err := d.Dispatch(Event{Command: CmdThrottleDown}); err != nil {
			t.Fatalf("blocking dispatch %d failed: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for handled.Load() < 20 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 20 events handled", handled.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(CmdFlightStart, func(e Event) (any, error) {
		return nil, fmt.Errorf("boom")
	}, Logged())

	_, err := d.Dispatch(Event{Command: CmdFlightStart})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	foundError := false
	for _, m := range logger.messages {
		if len(m) >= 5 && m[:5] == "ERROR" {
			foundError = true
		}
	}
	if !foundError {
		t.Error("expected an error log entry")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(CmdFlightEnd, func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(CmdFlightEnd) {
		t.Error("expected handler for registered command")
	}
	if d.HasHandler(CmdRotateRight) {
		t.Error("did not expect handler for unregistered command")
	}
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(CmdStatus, func(e Event) (any, error) { return nil, nil })
	d.Register(CmdFlightEnd, func(e Event) (any, error) { return nil, nil })

	cmds := d.Commands()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0] != CmdFlightEnd || cmds[1] != CmdStatus {
		t.Errorf("unexpected ordering: %v", cmds)
	}
}
