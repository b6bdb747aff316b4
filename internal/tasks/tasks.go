// package tasks implements the voice note upload pipeline.
//
// The core abstraction is UploadQueue, which turns enqueued locator keys into bounded-concurrency
// transport calls. UploadEngine wires discovery, hashing and the dedup check in front of it.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/voxup/internal/media"
	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/services"
	"github.com/desertthunder/voxup/internal/shared"
)

// Item statuses reported by [UploadEngine.Discover].
const (
	StatusUploaded   = "uploaded"   // recorded in the ledger by a previous upload
	StatusRemote     = "remote"     // found on the server by the dedup check
	StatusPending    = "pending"    // eligible for upload
	StatusUnhashable = "unhashable" // bytes could not be read
)

// CompletionLedger is the ledger surface the engine needs.
type CompletionLedger interface {
	models.Ledger
	RecordMany(items []models.Item, source models.CompletionSource) error
}

// ItemStatus pairs a discovered item with its classification.
type ItemStatus struct {
	Item   models.Item `json:"item"`
	Status string      `json:"status"`
}

// DiscoverResult contains the outcome of one discovery cycle.
type DiscoverResult struct {
	Root       string       `json:"root"`
	Items      []ItemStatus `json:"items"`
	Uploaded   int          `json:"uploaded"`
	Remote     int          `json:"remote"`
	Pending    int          `json:"pending"`
	Unhashable int          `json:"unhashable"`
}

// PendingKeys returns the locator keys still eligible for upload, in discovery order.
func (r *DiscoverResult) PendingKeys() []string {
	var keys []string
	for _, s := range r.Items {
		if s.Status == StatusPending {
			keys = append(keys, s.Item.Key)
		}
	}
	return keys
}

// RunResult summarizes a discover-and-upload run.
type RunResult struct {
	Discovery *DiscoverResult `json:"discovery"`
	Enqueued  int             `json:"enqueued"`
	Uploaded  int             `json:"uploaded"`
	Exhausted int             `json:"exhausted"`
	Skipped   int             `json:"skipped"`
	Duration  time.Duration   `json:"duration"`
}

// EngineOpts contains library settings for an [UploadEngine].
type EngineOpts struct {
	OwnerID    string
	Root       string
	Extensions []string
	HashJobs   int
}

// UploadEngine discovers local items, classifies them against the ledger and the remote store,
// and drives the [UploadQueue] for whatever is left.
type UploadEngine struct {
	opts    EngineOpts
	hasher  *media.Hasher
	catalog *media.Catalog
	oracle  services.Oracle
	ledger  CompletionLedger
	queue   *UploadQueue
	logger  *log.Logger
}

// NewUploadEngine creates an engine. The catalog must be the resolver the queue was built with.
func NewUploadEngine(opts EngineOpts, catalog *media.Catalog, oracle services.Oracle, ledger CompletionLedger, queue *UploadQueue, logger *log.Logger) *UploadEngine {
	if opts.HashJobs <= 0 {
		opts.HashJobs = 4
	}
	return &UploadEngine{
		opts:    opts,
		hasher:  media.NewHasher(logger),
		catalog: catalog,
		oracle:  oracle,
		ledger:  ledger,
		queue:   queue,
		logger:  logger,
	}
}

// Discover scans the library, hashes new items, asks the oracle about hashes not yet in the ledger
// and records every item whose hash the server already holds.
func (e *UploadEngine) Discover(ctx context.Context, progress chan<- ProgressUpdate) (*DiscoverResult, error) {
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	items, err := media.Scan(e.opts.Root, e.opts.Extensions)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, discoverUpdate(e.opts.Root, len(items)))

	for i := range items {
		if known, ok := e.catalog.Item(items[i].Key); ok && known.Hashed() {
			items[i].Hash = known.Hash
		}
	}
	if err := e.hasher.HashItems(ctx, items, e.opts.HashJobs); err != nil {
		return nil, fmt.Errorf("failed to hash items: %w", err)
	}
	e.catalog.Add(items...)
	sendProgress(progress, hashUpdate(len(items)))

	var (
		unknown []string
		seen    = make(map[string]struct{})
	)
	for _, item := range items {
		if !item.Hashed() || e.ledger.Has(item.Key) {
			continue
		}
		if _, ok := seen[item.Hash]; !ok {
			seen[item.Hash] = struct{}{}
			unknown = append(unknown, item.Hash)
		}
	}

	stored := e.oracle.CheckRemoteStatus(ctx, e.opts.OwnerID, unknown)
	sendProgress(progress, checkRemoteUpdate(len(unknown), len(stored)))

	result := &DiscoverResult{Root: e.opts.Root, Items: make([]ItemStatus, 0, len(items))}
	var remote []models.Item

	for _, item := range items {
		status := StatusPending
		switch {
		case !item.Hashed():
			status = StatusUnhashable
			result.Unhashable++
		case e.ledger.Has(item.Key):
			status = StatusUploaded
			result.Uploaded++
		default:
			if _, ok := stored[item.Hash]; ok {
				status = StatusRemote
				result.Remote++
				remote = append(remote, item)
			} else {
				result.Pending++
			}
		}
		result.Items = append(result.Items, ItemStatus{Item: item, Status: status})
	}

	if len(remote) > 0 {
		if err := e.ledger.RecordMany(remote, models.SourceRemote); err != nil {
			return nil, err
		}
		e.logger.Info("marked items already on server", "count", len(remote))
	}

	return result, nil
}

// Run discovers items, then uploads every pending one (or only those named in only).
func (e *UploadEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, only []string) (*RunResult, error) {
	start := time.Now()

	discovery, err := e.Discover(ctx, progress)
	if err != nil {
		return nil, err
	}

	result, err := e.Upload(ctx, progress, discovery, only)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Upload enqueues the pending items of a previous discovery and waits for the queue to drain.
func (e *UploadEngine) Upload(ctx context.Context, progress chan<- ProgressUpdate, discovery *DiscoverResult, only []string) (*RunResult, error) {
	start := time.Now()

	keys := discovery.PendingKeys()
	if len(only) > 0 {
		keys = e.filter(keys, only)
	}

	before := e.queue.Stats()
	result := &RunResult{Discovery: discovery, Enqueued: len(keys)}

	if len(keys) > 0 {
		sendProgress(progress, enqueueUpdate(len(keys)))
		e.queue.Enqueue(keys...)
		if err := e.queue.Wait(ctx); err != nil {
			return nil, fmt.Errorf("upload interrupted: %w", err)
		}
	}

	after := e.queue.Stats()
	result.Uploaded = after.Uploaded - before.Uploaded
	result.Exhausted = after.Exhausted - before.Exhausted
	result.Skipped = after.Skipped - before.Skipped
	result.Duration = time.Since(start)
	return result, nil
}

// filter keeps keys whose item name or key is listed in names.
func (e *UploadEngine) filter(keys, names []string) []string {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	var out []string
	for _, k := range keys {
		item, ok := e.catalog.Item(k)
		if !ok {
			continue
		}
		_, byName := wanted[item.Name]
		_, byKey := wanted[k]
		if byName || byKey {
			out = append(out, k)
		}
	}

	if len(out) < len(names) {
		e.logger.Warn("some requested files are not pending", "requested", len(names), "matched", len(out))
	}
	return out
}

// Validate reports a configuration error before any work starts.
func (o EngineOpts) Validate() error {
	if o.OwnerID == "" {
		return fmt.Errorf("%w: owner id", shared.ErrMissingArgument)
	}
	if o.Root == "" {
		return fmt.Errorf("%w: library root", shared.ErrMissingArgument)
	}
	return nil
}
