package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/services"
	"github.com/desertthunder/voxup/internal/shared"
)

const (
	DefaultConcurrency  = 10
	DefaultMaxAttempts  = 3
	DefaultBaseDelay    = 2 * time.Second
	DefaultPollInterval = time.Second
)

// ItemResolver looks up the item behind a locator key at dispatch time.
type ItemResolver interface {
	Item(key string) (models.Item, bool)
}

// Recorder receives queue metrics. A nil Recorder disables metrics.
type Recorder interface {
	ObserveAttempt(outcome string, d time.Duration)
	IncExhausted()
	IncSkipped(reason string)
	SetQueue(pending, inFlight int)
}

// Attempt outcomes passed to [Recorder.ObserveAttempt].
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// QueueConfig contains the scheduling budget and optional hooks of an [UploadQueue].
type QueueConfig struct {
	OwnerID      string
	Concurrency  int           // Max simultaneous transport calls (default: 10)
	MaxAttempts  int           // Attempts before a key is dropped (default: 3)
	BaseDelay    time.Duration // Backoff base, doubled per failed attempt (default: 2s)
	PollInterval time.Duration // Sleep when every pending key is gated (default: 1s)

	Context  context.Context           // Shared by every transport call (default: Background)
	Progress chan<- ProgressUpdate     // Optional, sent without blocking
	Recorder Recorder                  // Optional
	Location services.LocationProvider // Optional, consulted at upload time
	Logger   *log.Logger
}

func (c *QueueConfig) setDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.Logger == nil {
		c.Logger = shared.NewLogger(nil)
	}
}

// QueueStats is a point-in-time summary of queue activity. Counters are cumulative.
type QueueStats struct {
	Enqueued   int `json:"enqueued"`
	Dispatched int `json:"dispatched"`
	Uploaded   int `json:"uploaded"`
	Failed     int `json:"failed"`
	Exhausted  int `json:"exhausted"`
	Skipped    int `json:"skipped"`
	Pending    int `json:"pending"`
	InFlight   int `json:"in_flight"`
}

type attemptResult struct {
	key     string
	ok      bool
	err     error
	elapsed time.Duration
}

// UploadQueue schedules uploads with bounded concurrency, retrying failures with exponential backoff.
//
// A single scheduler goroutine owns the pending queue, the in-flight set and retry state.
// [UploadQueue.Enqueue] only appends to an inbox, so it is safe from any goroutine and never blocks on I/O.
// The scheduler starts on demand and exits once the inbox, the pending queue and the in-flight set are all empty.
type UploadQueue struct {
	cfg       QueueConfig
	items     ItemResolver
	transport services.Transport
	ledger    models.Ledger

	// guarded by mu
	mu        sync.Mutex
	inbox     []string
	running   bool
	done      chan struct{}
	uploading []string
	stats     QueueStats

	wake    chan struct{}
	results chan attemptResult

	// owned by the scheduler goroutine
	pending    []string
	pendingSet map[string]struct{}
	inFlight   map[string]struct{}
	retries    map[string]*models.RetryState
}

// NewUploadQueue creates an idle queue.
func NewUploadQueue(items ItemResolver, transport services.Transport, ledger models.Ledger, cfg QueueConfig) *UploadQueue {
	cfg.setDefaults()
	return &UploadQueue{
		cfg:        cfg,
		items:      items,
		transport:  transport,
		ledger:     ledger,
		wake:       make(chan struct{}, 1),
		results:    make(chan attemptResult, cfg.Concurrency),
		pendingSet: make(map[string]struct{}),
		inFlight:   make(map[string]struct{}),
		retries:    make(map[string]*models.RetryState),
	}
}

// Enqueue requests uploads for keys and starts the scheduler if it is idle.
//
// Keys already pending, in flight or completed are ignored when the scheduler picks them up.
func (q *UploadQueue) Enqueue(keys ...string) {
	if len(keys) == 0 {
		return
	}

	q.mu.Lock()
	q.inbox = append(q.inbox, keys...)
	if !q.running {
		q.running = true
		q.done = make(chan struct{})
		go q.run()
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until the queue drains or ctx ends.
func (q *UploadQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Idle reports whether the scheduler is stopped.
func (q *UploadQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.running
}

// Uploading returns the keys currently in flight, sorted.
func (q *UploadQueue) Uploading() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.uploading...)
}

// Pending returns the number of keys awaiting dispatch, including unprocessed enqueues.
func (q *UploadQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats.Pending + len(q.inbox)
}

// Stats returns a snapshot of the queue counters.
func (q *UploadQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending += len(q.inbox)
	return s
}

func (q *UploadQueue) run() {
	for {
		q.drainInbox()
		q.fill()
		q.publish()

		if len(q.inFlight) == 0 && len(q.pending) == 0 {
			q.mu.Lock()
			if len(q.inbox) > 0 {
				q.mu.Unlock()
				continue
			}
			q.running = false
			stats := q.stats
			sendProgress(q.cfg.Progress, idleUpdate(stats))
			close(q.done)
			q.mu.Unlock()

			q.cfg.Logger.Debug("upload queue idle", "uploaded", stats.Uploaded, "exhausted", stats.Exhausted)
			return
		}

		if len(q.inFlight) > 0 {
			select {
			case r := <-q.results:
				q.complete(r)
			case <-q.wake:
			}
			continue
		}

		// every pending key is still inside its backoff window
		timer := time.NewTimer(q.cfg.PollInterval)
		select {
		case <-timer.C:
		case <-q.wake:
		}
		timer.Stop()
	}
}

// drainInbox moves enqueued keys into the pending queue, dropping duplicates and completed keys.
func (q *UploadQueue) drainInbox() {
	q.mu.Lock()
	inbox := q.inbox
	q.inbox = nil
	q.mu.Unlock()

	var added, skipped int
	for _, key := range inbox {
		if _, ok := q.pendingSet[key]; ok {
			continue
		}
		if _, ok := q.inFlight[key]; ok {
			continue
		}
		if q.ledger.Has(key) {
			skipped++
			continue
		}
		q.pending = append(q.pending, key)
		q.pendingSet[key] = struct{}{}
		added++
	}

	if added > 0 || skipped > 0 {
		q.mu.Lock()
		q.stats.Enqueued += added
		q.mu.Unlock()
		q.cfg.Logger.Debug("enqueued", "added", added, "already_complete", skipped, "pending", len(q.pending))
	}
}

// fill dispatches ready keys until the concurrency limit is reached.
// Each pending key is examined at most once per call; gated keys rotate to the tail.
func (q *UploadQueue) fill() {
	now := time.Now()
	n := len(q.pending)

	for i := 0; i < n && len(q.inFlight) < q.cfg.Concurrency && len(q.pending) > 0; i++ {
		key := q.pending[0]
		q.pending = q.pending[1:]

		rs := q.retries[key]
		if rs != nil && !rs.Ready(now, q.cfg.BaseDelay) {
			q.pending = append(q.pending, key)
			continue
		}
		delete(q.pendingSet, key)

		item, ok := q.items.Item(key)
		if !ok {
			q.skip(key, "item not found")
			continue
		}
		if !item.Hashed() {
			q.skip(key, "content hash unavailable")
			continue
		}

		if rs == nil {
			rs = &models.RetryState{}
			q.retries[key] = rs
		}
		q.inFlight[key] = struct{}{}
		q.dispatch(item, rs.Attempts+1)
	}
}

func (q *UploadQueue) skip(key, reason string) {
	delete(q.retries, key)
	q.cfg.Logger.Warn("skipping upload", "key", key, "reason", reason)

	q.mu.Lock()
	q.stats.Skipped++
	q.mu.Unlock()

	if q.cfg.Recorder != nil {
		q.cfg.Recorder.IncSkipped(reason)
	}
	sendProgress(q.cfg.Progress, skippedUpdate(key, reason))
}

// dispatch runs one transport attempt in its own goroutine and reports on q.results.
// A successful attempt is written to the ledger before it is reported.
func (q *UploadQueue) dispatch(item models.Item, attempt int) {
	q.mu.Lock()
	q.stats.Dispatched++
	q.mu.Unlock()

	sendProgress(q.cfg.Progress, dispatchUpdate(item.Key, attempt, q.cfg.MaxAttempts))

	go func() {
		start := time.Now()
		ok, err := q.upload(item)
		if ok && err == nil {
			if err = q.ledger.Record(item.Key, item.Hash, models.SourceUpload); err != nil {
				ok = false
			}
		}
		q.results <- attemptResult{key: item.Key, ok: ok && err == nil, err: err, elapsed: time.Since(start)}
	}()
}

// upload calls the transport, converting a panic into an error.
func (q *UploadQueue) upload(item models.Item) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("transport panic: %v", r)
		}
	}()

	var loc *models.Location
	if q.cfg.Location != nil {
		loc = q.cfg.Location.Location(q.cfg.Context)
	}
	return q.transport.Upload(q.cfg.Context, models.NewUploadRequest(q.cfg.OwnerID, item, loc))
}

// complete applies one attempt result: success clears retry state, failure backs off or exhausts.
func (q *UploadQueue) complete(r attemptResult) {
	delete(q.inFlight, r.key)

	if r.ok {
		delete(q.retries, r.key)
		q.mu.Lock()
		q.stats.Uploaded++
		q.mu.Unlock()

		q.observe(OutcomeSuccess, r.elapsed)
		q.cfg.Logger.Info("uploaded", "key", r.key, "took", r.elapsed)
		sendProgress(q.cfg.Progress, uploadedUpdate(r.key))
		return
	}

	outcome := OutcomeFailure
	if r.err != nil {
		outcome = OutcomeError
	}
	q.observe(outcome, r.elapsed)

	rs := q.retries[r.key]
	if rs == nil {
		rs = &models.RetryState{}
		q.retries[r.key] = rs
	}
	rs.Fail(time.Now())

	q.mu.Lock()
	q.stats.Failed++
	q.mu.Unlock()

	if rs.Attempts < q.cfg.MaxAttempts {
		q.pending = append(q.pending, r.key)
		q.pendingSet[r.key] = struct{}{}
		q.cfg.Logger.Warn("upload failed, will retry", "key", r.key, "attempt", rs.Attempts, "backoff", rs.Delay(q.cfg.BaseDelay), "error", r.err)
		sendProgress(q.cfg.Progress, retryUpdate(r.key, rs.Attempts, q.cfg.MaxAttempts, r.err))
		return
	}

	delete(q.retries, r.key)
	q.mu.Lock()
	q.stats.Exhausted++
	q.mu.Unlock()

	if q.cfg.Recorder != nil {
		q.cfg.Recorder.IncExhausted()
	}
	q.cfg.Logger.Error("upload failed, giving up", "key", r.key, "attempts", rs.Attempts, "error", r.err)
	sendProgress(q.cfg.Progress, exhaustedUpdate(r.key, q.cfg.MaxAttempts))
}

func (q *UploadQueue) observe(outcome string, d time.Duration) {
	if q.cfg.Recorder != nil {
		q.cfg.Recorder.ObserveAttempt(outcome, d)
	}
}

// publish mirrors scheduler-owned state into the snapshot read by query methods.
func (q *UploadQueue) publish() {
	uploading := make([]string, 0, len(q.inFlight))
	for k := range q.inFlight {
		uploading = append(uploading, k)
	}
	sort.Strings(uploading)

	q.mu.Lock()
	q.uploading = uploading
	q.stats.Pending = len(q.pending)
	q.stats.InFlight = len(q.inFlight)
	q.mu.Unlock()

	if q.cfg.Recorder != nil {
		q.cfg.Recorder.SetQueue(len(q.pending), len(q.inFlight))
	}
}
