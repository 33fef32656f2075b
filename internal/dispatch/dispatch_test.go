package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dubber/internal/jobs"
)

func pendingChunks(count int) []*jobs.Chunk {
	chunks := make([]*jobs.Chunk, 0, count)
	for i := 0; i < count; i++ {
		chunks = append(chunks, &jobs.Chunk{
			Index:    i,
			StartSec: float64(i * 60),
			EndSec:   float64((i + 1) * 60),
			Status:   jobs.ChunkPending,
		})
	}
	return chunks
}

func TestDispatcherRunAllSucceed(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	chunks := pendingChunks(4)

	result := dispatcher.Run(context.Background(), chunks, 2, func(_ context.Context, chunk *jobs.Chunk) (string, error) {
		return fmt.Sprintf("/tmp/dubbed_%03d.mp4", chunk.Index), nil
	})

	if !result.AllSucceeded() {
		t.Fatalf("expected clean run, got %+v", result)
	}
	if len(result.Succeeded) != 4 {
		t.Fatalf("succeeded = %v, want 4 entries", result.Succeeded)
	}
	for _, chunk := range chunks {
		if chunk.Status != jobs.ChunkSucceeded {
			t.Errorf("chunk %d status = %s, want succeeded", chunk.Index, chunk.Status)
		}
		if chunk.Attempts != 1 {
			t.Errorf("chunk %d attempts = %d, want 1", chunk.Index, chunk.Attempts)
		}
		if chunk.DubbedPath == "" {
			t.Errorf("chunk %d missing dubbed path", chunk.Index)
		}
	}
}

func TestDispatcherRespectsConcurrencyBound(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	chunks := pendingChunks(12)

	var running, peak atomic.Int64
	result := dispatcher.Run(context.Background(), chunks, 3, func(_ context.Context, _ *jobs.Chunk) (string, error) {
		now := running.Add(1)
		for {
			observed := peak.Load()
			if now <= observed || peak.CompareAndSwap(observed, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return "out.mp4", nil
	})

	if len(result.Succeeded) != 12 {
		t.Fatalf("succeeded = %d, want 12", len(result.Succeeded))
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("observed %d concurrent chunks, bound is 3", got)
	}
}

func TestDispatcherFailureDoesNotStopSiblings(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	chunks := pendingChunks(5)

	opErr := errors.New("translation service unavailable")
	result := dispatcher.Run(context.Background(), chunks, 2, func(_ context.Context, chunk *jobs.Chunk) (string, error) {
		if chunk.Index == 2 {
			return "", opErr
		}
		return "out.mp4", nil
	})

	if len(result.Succeeded) != 4 {
		t.Errorf("succeeded = %v, want 4 entries", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0] != 2 {
		t.Fatalf("failed = %v, want [2]", result.Failed)
	}
	if result.AllSucceeded() {
		t.Error("run with a failed chunk must not report success")
	}

	for _, chunk := range chunks {
		if !chunk.IsTerminal() {
			t.Errorf("chunk %d left non-terminal: %s", chunk.Index, chunk.Status)
		}
	}
	if chunks[2].Error == "" {
		t.Error("failed chunk should record its error")
	}
	if chunks[2].DubbedPath != "" {
		t.Error("failed chunk must not record a dubbed path")
	}
}

func TestDispatcherSkipsAfterCancel(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	chunks := pendingChunks(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := dispatcher.Run(ctx, chunks, 2, func(_ context.Context, _ *jobs.Chunk) (string, error) {
		t.Error("operation must not run for a cancelled context")
		return "", nil
	})

	if len(result.Skipped) != 3 {
		t.Fatalf("skipped = %v, want all 3", result.Skipped)
	}
	for _, chunk := range chunks {
		if chunk.Status != jobs.ChunkPending {
			t.Errorf("skipped chunk %d status = %s, want pending", chunk.Index, chunk.Status)
		}
		if chunk.Attempts != 0 {
			t.Errorf("skipped chunk %d attempts = %d, want 0", chunk.Index, chunk.Attempts)
		}
	}
}

func TestDispatcherOutcomeCallback(t *testing.T) {
	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	dispatcher := NewDispatcher(nil, WithOutcomeFunc(func(outcome Outcome) {
		mu.Lock()
		outcomes = append(outcomes, outcome)
		mu.Unlock()
	}))

	chunks := pendingChunks(4)
	dispatcher.Run(context.Background(), chunks, 4, func(_ context.Context, chunk *jobs.Chunk) (string, error) {
		if chunk.Index%2 == 1 {
			return "", errors.New("boom")
		}
		return "out.mp4", nil
	})

	if len(outcomes) != 4 {
		t.Fatalf("outcomes = %d, want 4", len(outcomes))
	}
	failures := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failures++
		}
	}
	if failures != 2 {
		t.Errorf("failed outcomes = %d, want 2", failures)
	}
}

// The callback reads every chunk while sibling workers are still running;
// the race detector flags any chunk write that escapes the dispatcher's
// critical section.
func TestDispatcherCallbackSeesSettledChunks(t *testing.T) {
	chunks := pendingChunks(8)

	dispatcher := NewDispatcher(nil, WithOutcomeFunc(func(outcome Outcome) {
		if _, err := json.Marshal(chunks); err != nil {
			t.Errorf("encode chunk set: %v", err)
		}
		for _, chunk := range chunks {
			if chunk.Index == outcome.Index && !chunk.IsTerminal() {
				t.Errorf("chunk %d not terminal inside its own outcome callback", outcome.Index)
			}
		}
	}))

	result := dispatcher.Run(context.Background(), chunks, 4, func(_ context.Context, chunk *jobs.Chunk) (string, error) {
		time.Sleep(time.Millisecond)
		if chunk.Index%3 == 0 {
			return "", errors.New("boom")
		}
		return "out.mp4", nil
	})

	if got := len(result.Succeeded) + len(result.Failed); got != 8 {
		t.Fatalf("settled chunks = %d, want 8", got)
	}
}

func TestDispatcherRetryIncrementsAttempts(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	chunks := pendingChunks(2)

	attempt := func(fail bool) Operation {
		return func(_ context.Context, _ *jobs.Chunk) (string, error) {
			if fail {
				return "", errors.New("transient")
			}
			return "out.mp4", nil
		}
	}

	dispatcher.Run(context.Background(), chunks, 2, attempt(true))
	if chunks[0].Attempts != 1 || chunks[0].Status != jobs.ChunkFailed {
		t.Fatalf("after first run: %+v", chunks[0])
	}

	dispatcher.Run(context.Background(), chunks, 2, attempt(false))
	if chunks[0].Attempts != 2 || chunks[0].Status != jobs.ChunkSucceeded {
		t.Fatalf("after retry: %+v", chunks[0])
	}
	if chunks[0].Error != "" {
		t.Errorf("retried chunk should clear its previous error, got %q", chunks[0].Error)
	}
}
