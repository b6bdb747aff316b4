package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/voxup/internal/models"
	tu "github.com/desertthunder/voxup/internal/testing"
)

func newTestQueue(items ItemResolver, transport *tu.MockTransport, ledger models.Ledger, cfg QueueConfig) *UploadQueue {
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 20 * time.Millisecond
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Millisecond
	}
	cfg.OwnerID = "owner"
	cfg.Logger = tu.NopLogger()
	return NewUploadQueue(items, transport, ledger, cfg)
}

func waitDrained(t *testing.T, q *UploadQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func alwaysFail(string, int) (bool, error) { return false, nil }

func TestUploadQueue(t *testing.T) {
	t.Run("Concurrency Bound", func(t *testing.T) {
		t.Run("three keys with two slots", func(t *testing.T) {
			transport := &tu.MockTransport{Delay: 20 * time.Millisecond}
			ledger := &tu.MemoryLedger{}
			q := newTestQueue(tu.Items("a", "b", "c"), transport, ledger, QueueConfig{Concurrency: 2})

			q.Enqueue("a", "b", "c")
			waitDrained(t, q)

			if got := transport.MaxConcurrent(); got > 2 {
				t.Errorf("expected at most 2 in flight, got %d", got)
			}
			for _, k := range []string{"a", "b", "c"} {
				if !ledger.Has(k) {
					t.Errorf("expected %s in ledger", k)
				}
			}
			if len(q.Uploading()) != 0 {
				t.Errorf("expected nothing in flight, got %v", q.Uploading())
			}
		})

		t.Run("Many Keys", func(t *testing.T) {
			keys := make([]string, 40)
			for i := range keys {
				keys[i] = fmt.Sprintf("k%02d", i)
			}

			transport := &tu.MockTransport{Delay: 5 * time.Millisecond}
			q := newTestQueue(tu.Items(keys...), transport, &tu.MemoryLedger{}, QueueConfig{Concurrency: 10})

			q.Enqueue(keys...)
			waitDrained(t, q)

			if got := transport.MaxConcurrent(); got > 10 {
				t.Errorf("expected at most 10 in flight, got %d", got)
			}
			if got := transport.MaxConcurrent(); got < 2 {
				t.Errorf("expected uploads to overlap, max concurrency %d", got)
			}
			if s := q.Stats(); s.Uploaded != 40 || s.Dispatched != 40 {
				t.Errorf("unexpected stats %+v", s)
			}
		})

		t.Run("Slots Refill On First Completion", func(t *testing.T) {
			slow := 150 * time.Millisecond
			transport := &tu.MockTransport{Result: func(key string, _ int) (bool, error) {
				if key == "slow" {
					time.Sleep(slow)
				}
				return true, nil
			}}
			q := newTestQueue(tu.Items("slow", "f1", "f2", "f3"), transport, &tu.MemoryLedger{}, QueueConfig{Concurrency: 2})

			start := time.Now()
			q.Enqueue("slow", "f1", "f2", "f3")
			waitDrained(t, q)

			for _, c := range transport.Calls() {
				if c.Key == "f3" && c.At.Sub(start) >= slow {
					t.Errorf("f3 should start while slow is still running, started after %v", c.At.Sub(start))
				}
			}
		})
	})

	t.Run("Retry Ceiling", func(t *testing.T) {
		t.Run("always failing key backs off then drops", func(t *testing.T) {
			base := 30 * time.Millisecond
			transport := &tu.MockTransport{Result: alwaysFail}
			ledger := &tu.MemoryLedger{}
			q := newTestQueue(tu.Items("x"), transport, ledger, QueueConfig{MaxAttempts: 3, BaseDelay: base})

			q.Enqueue("x")
			waitDrained(t, q)

			calls := transport.CallsFor("x")
			if len(calls) != 3 {
				t.Fatalf("expected exactly 3 attempts, got %d", len(calls))
			}
			if gap := calls[1].At.Sub(calls[0].At); gap < base {
				t.Errorf("second attempt after %v, want >= %v", gap, base)
			}
			if gap := calls[2].At.Sub(calls[1].At); gap < 2*base {
				t.Errorf("third attempt after %v, want >= %v", gap, 2*base)
			}
			if ledger.Has("x") {
				t.Error("exhausted key must not be completed")
			}

			time.Sleep(8 * base)
			if n := len(transport.CallsFor("x")); n != 3 {
				t.Errorf("expected no automatic attempts after exhaustion, got %d", n)
			}
			if s := q.Stats(); s.Exhausted != 1 || s.Failed != 3 {
				t.Errorf("unexpected stats %+v", s)
			}
		})

		t.Run("Errors Count Like Failures", func(t *testing.T) {
			transport := &tu.MockTransport{Result: func(string, int) (bool, error) {
				return false, errors.New("connection reset")
			}}
			q := newTestQueue(tu.Items("e"), transport, &tu.MemoryLedger{}, QueueConfig{MaxAttempts: 2, BaseDelay: 5 * time.Millisecond})

			q.Enqueue("e")
			waitDrained(t, q)

			if n := len(transport.CallsFor("e")); n != 2 {
				t.Errorf("expected 2 attempts, got %d", n)
			}
		})

		t.Run("Panics Count Like Failures", func(t *testing.T) {
			transport := &tu.MockTransport{Result: func(_ string, attempt int) (bool, error) {
				if attempt == 1 {
					panic("boom")
				}
				return true, nil
			}}
			ledger := &tu.MemoryLedger{}
			q := newTestQueue(tu.Items("p"), transport, ledger, QueueConfig{BaseDelay: 5 * time.Millisecond})

			q.Enqueue("p")
			waitDrained(t, q)

			if !ledger.Has("p") {
				t.Error("expected recovery on the second attempt")
			}
		})

		t.Run("Recovers After Transient Failure", func(t *testing.T) {
			transport := &tu.MockTransport{Result: func(_ string, attempt int) (bool, error) {
				return attempt == 2, nil
			}}
			ledger := &tu.MemoryLedger{}
			q := newTestQueue(tu.Items("t"), transport, ledger, QueueConfig{BaseDelay: 5 * time.Millisecond})

			q.Enqueue("t")
			waitDrained(t, q)

			if !ledger.Has("t") || len(transport.CallsFor("t")) != 2 {
				t.Errorf("expected success on attempt 2, calls=%d", len(transport.CallsFor("t")))
			}
		})

		t.Run("Re-enqueue After Exhaustion Starts Fresh", func(t *testing.T) {
			transport := &tu.MockTransport{Result: alwaysFail}
			q := newTestQueue(tu.Items("x"), transport, &tu.MemoryLedger{}, QueueConfig{MaxAttempts: 2, BaseDelay: 5 * time.Millisecond})

			q.Enqueue("x")
			waitDrained(t, q)
			q.Enqueue("x")
			waitDrained(t, q)

			if n := len(transport.CallsFor("x")); n != 4 {
				t.Errorf("expected a full second cycle of 2 attempts, got %d total", n)
			}
		})

		t.Run("Ledger Write Failure Counts As Failed Attempt", func(t *testing.T) {
			transport := &tu.MockTransport{}
			ledger := &tu.MemoryLedger{FailWrites: true}
			q := newTestQueue(tu.Items("w"), transport, ledger, QueueConfig{MaxAttempts: 2, BaseDelay: 5 * time.Millisecond})

			q.Enqueue("w")
			waitDrained(t, q)

			if n := len(transport.CallsFor("w")); n != 2 {
				t.Errorf("expected 2 attempts, got %d", n)
			}
			if s := q.Stats(); s.Uploaded != 0 || s.Exhausted != 1 {
				t.Errorf("unexpected stats %+v", s)
			}
		})
	})

	t.Run("Delay Gate", func(t *testing.T) {
		t.Run("Gated Key Does Not Block Others", func(t *testing.T) {
			base := 200 * time.Millisecond
			release := make(chan struct{})
			transport := &tu.MockTransport{Result: func(key string, attempt int) (bool, error) {
				if key == "x" {
					return attempt > 1, nil
				}
				return true, nil
			}}
			q := newTestQueue(tu.Items("x", "y"), transport, &tu.MemoryLedger{}, QueueConfig{Concurrency: 1, BaseDelay: base})

			q.Enqueue("x")
			go func() {
				for len(transport.CallsFor("x")) == 0 {
					time.Sleep(time.Millisecond)
				}
				time.Sleep(20 * time.Millisecond)
				q.Enqueue("y")
				close(release)
			}()
			<-release
			waitDrained(t, q)

			x := transport.CallsFor("x")
			y := transport.CallsFor("y")
			if len(x) != 2 || len(y) != 1 {
				t.Fatalf("unexpected calls x=%d y=%d", len(x), len(y))
			}
			if !y[0].At.Before(x[1].At) {
				t.Error("ready key y should be dispatched while x waits out its backoff")
			}
		})
	})

	t.Run("Duplicate Suppression", func(t *testing.T) {
		t.Run("repeated enqueue dispatches once", func(t *testing.T) {
			transport := &tu.MockTransport{Delay: 10 * time.Millisecond}
			q := newTestQueue(tu.Items("d"), transport, &tu.MemoryLedger{}, QueueConfig{})

			q.Enqueue("d", "d")
			q.Enqueue("d")
			waitDrained(t, q)

			if n := len(transport.CallsFor("d")); n != 1 {
				t.Errorf("expected a single transport call, got %d", n)
			}
		})

		t.Run("In Flight Key Is Not Dispatched Again", func(t *testing.T) {
			transport := &tu.MockTransport{Delay: 50 * time.Millisecond}
			q := newTestQueue(tu.Items("f"), transport, &tu.MemoryLedger{}, QueueConfig{})

			q.Enqueue("f")
			for len(q.Uploading()) == 0 {
				time.Sleep(time.Millisecond)
			}
			q.Enqueue("f")
			waitDrained(t, q)

			if n := len(transport.CallsFor("f")); n != 1 {
				t.Errorf("expected a single transport call, got %d", n)
			}
		})

		t.Run("Completed Key Is A No-op", func(t *testing.T) {
			transport := &tu.MockTransport{}
			ledger := &tu.MemoryLedger{}
			_ = ledger.Record("done", "hash-done", models.SourceRemote)
			q := newTestQueue(tu.Items("done"), transport, ledger, QueueConfig{})

			q.Enqueue("done")
			waitDrained(t, q)

			if n := len(transport.Calls()); n != 0 {
				t.Errorf("expected no transport calls, got %d", n)
			}
		})
	})

	t.Run("Unresolvable Items Are Dropped", func(t *testing.T) {
		items := tu.Items("ok")
		items["nohash"] = models.Item{Key: "nohash", Name: "nohash.opus"}
		transport := &tu.MockTransport{}
		ledger := &tu.MemoryLedger{}
		q := newTestQueue(items, transport, ledger, QueueConfig{})

		q.Enqueue("ok", "nohash", "missing")
		waitDrained(t, q)

		if len(transport.Calls()) != 1 || !ledger.Has("ok") {
			t.Errorf("expected only ok to be uploaded, calls=%v", transport.Calls())
		}
		if s := q.Stats(); s.Skipped != 2 {
			t.Errorf("expected 2 skipped, got %+v", s)
		}
	})

	t.Run("Upload Request", func(t *testing.T) {
		transport := &tu.MockTransport{}
		loc := &models.Location{City: "Jeddah"}
		q := newTestQueue(tu.Items("r"), transport, &tu.MemoryLedger{}, QueueConfig{Location: staticLocation{loc}})

		q.Enqueue("r")
		waitDrained(t, q)

		req := transport.Calls()[0].Req
		if req.OwnerID != "owner" || req.Hash != "hash-r" || req.Name != "r.opus" {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Location == nil || req.Location.City != "Jeddah" {
			t.Errorf("expected location attached at upload time, got %+v", req.Location)
		}
	})

	t.Run("Drain Termination And Restart", func(t *testing.T) {
		transport := &tu.MockTransport{}
		ledger := &tu.MemoryLedger{}
		q := newTestQueue(tu.Items("a", "b"), transport, ledger, QueueConfig{})

		if err := q.Wait(context.Background()); err != nil || !q.Idle() {
			t.Fatal("fresh queue should be idle")
		}

		q.Enqueue("a")
		waitDrained(t, q)
		if !q.Idle() || q.Pending() != 0 {
			t.Fatalf("expected idle empty queue, pending=%d", q.Pending())
		}

		q.Enqueue("b")
		waitDrained(t, q)
		if !ledger.Has("b") {
			t.Error("queue should restart on a later enqueue")
		}
	})

	t.Run("Concurrent Enqueue", func(t *testing.T) {
		keys := make([]string, 50)
		for i := range keys {
			keys[i] = fmt.Sprintf("c%02d", i)
		}
		transport := &tu.MockTransport{Delay: time.Millisecond}
		ledger := &tu.MemoryLedger{}
		q := newTestQueue(tu.Items(keys...), transport, ledger, QueueConfig{Concurrency: 4})

		var wg sync.WaitGroup
		for _, k := range keys {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.Enqueue(k, k)
			}()
		}
		wg.Wait()
		waitDrained(t, q)

		if n := len(transport.Calls()); n != len(keys) {
			t.Errorf("expected %d calls, got %d", len(keys), n)
		}
		if len(ledger.Keys()) != len(keys) {
			t.Errorf("expected all keys completed, got %d", len(ledger.Keys()))
		}
	})

	t.Run("Progress And Metrics", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 64)
		rec := &fakeRecorder{}
		transport := &tu.MockTransport{Result: func(key string, attempt int) (bool, error) {
			return key == "good" || attempt > 1, nil
		}}
		q := newTestQueue(tu.Items("good", "flaky"), transport, &tu.MemoryLedger{}, QueueConfig{
			BaseDelay: 5 * time.Millisecond,
			Progress:  progress,
			Recorder:  rec,
		})

		q.Enqueue("good", "flaky")
		waitDrained(t, q)

		phases := map[Phase]int{}
		for len(progress) > 0 {
			u := <-progress
			phases[u.Phase]++
		}
		if phases[Dispatch] != 3 || phases[Uploaded] != 2 || phases[Retry] != 1 {
			t.Errorf("unexpected phase counts %v", phases)
		}

		rec.mu.Lock()
		defer rec.mu.Unlock()
		if rec.outcomes[OutcomeSuccess] != 2 || rec.outcomes[OutcomeFailure] != 1 {
			t.Errorf("unexpected outcomes %v", rec.outcomes)
		}
	})

	t.Run("Wait Honors Context", func(t *testing.T) {
		transport := &tu.MockTransport{Delay: 200 * time.Millisecond}
		q := newTestQueue(tu.Items("slow"), transport, &tu.MemoryLedger{}, QueueConfig{})

		q.Enqueue("slow")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := q.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		waitDrained(t, q)
	})
}

func TestQueueDefaults(t *testing.T) {
	q := NewUploadQueue(tu.Items(), &tu.MockTransport{}, &tu.MemoryLedger{}, QueueConfig{Logger: tu.NopLogger()})

	if q.cfg.Concurrency != 10 || q.cfg.MaxAttempts != 3 {
		t.Errorf("unexpected defaults %+v", q.cfg)
	}
	if q.cfg.BaseDelay != 2*time.Second || q.cfg.PollInterval != time.Second {
		t.Errorf("unexpected delay defaults %v %v", q.cfg.BaseDelay, q.cfg.PollInterval)
	}
}

type staticLocation struct{ loc *models.Location }

func (s staticLocation) Location(context.Context) *models.Location { return s.loc }

type fakeRecorder struct {
	mu        sync.Mutex
	outcomes  map[string]int
	exhausted int
	skipped   int
}

func (f *fakeRecorder) ObserveAttempt(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = map[string]int{}
	}
	f.outcomes[outcome]++
}

func (f *fakeRecorder) IncExhausted() {
	f.mu.Lock()
	f.exhausted++
	f.mu.Unlock()
}

func (f *fakeRecorder) IncSkipped(string) {
	f.mu.Lock()
	f.skipped++
	f.mu.Unlock()
}

func (f *fakeRecorder) SetQueue(int, int) {}
