package tasks

import (
	"fmt"
	"path/filepath"
)

// ProgressUpdate represents a progress event during discovery or upload.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Key     string // Locator key the update concerns, if any
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Discover Phase = iota
	Hash
	CheckRemote
	Enqueue
	Dispatch
	Uploaded
	Retry
	Exhausted
	Skipped
	Idle
)

func (p Phase) String() string {
	switch p {
	case Discover:
		return "discover"
	case Hash:
		return "hash"
	case CheckRemote:
		return "check_remote"
	case Enqueue:
		return "enqueue"
	case Dispatch:
		return "dispatch"
	case Uploaded:
		return "uploaded"
	case Retry:
		return "retry"
	case Exhausted:
		return "exhausted"
	case Skipped:
		return "skipped"
	case Idle:
		return "idle"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func discoverUpdate(root string, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Discover,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d voice notes in %s", found, root),
	}
}

func hashUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Hash,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Hashed %d files", total),
	}
}

func checkRemoteUpdate(checked, stored int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckRemote,
		Step:    stored,
		Total:   checked,
		Message: fmt.Sprintf("%d of %d already on server", stored, checked),
	}
}

func enqueueUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Enqueue,
		Total:   count,
		Message: fmt.Sprintf("Queued %d files for upload", count),
	}
}

func dispatchUpdate(key string, attempt, max int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Dispatch,
		Step:    attempt,
		Total:   max,
		Key:     key,
		Message: fmt.Sprintf("[%d/%d] Uploading %s...", attempt, max, filepath.Base(key)),
	}
}

func uploadedUpdate(key string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Uploaded,
		Key:     key,
		Message: fmt.Sprintf("✓ %s", filepath.Base(key)),
	}
}

func retryUpdate(key string, attempt, max int, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✗ %s, will retry", attempt, max, filepath.Base(key))
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v, will retry", attempt, max, filepath.Base(key), err)
	}
	return ProgressUpdate{Phase: Retry, Step: attempt, Total: max, Key: key, Message: msg}
}

func exhaustedUpdate(key string, max int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Exhausted,
		Step:    max,
		Total:   max,
		Key:     key,
		Message: fmt.Sprintf("✗ %s failed after %d attempts", filepath.Base(key), max),
	}
}

func skippedUpdate(key, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Skipped,
		Key:     key,
		Message: fmt.Sprintf("Skipped %s: %s", filepath.Base(key), reason),
	}
}

func idleUpdate(stats QueueStats) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Idle,
		Step:    stats.Uploaded,
		Total:   stats.Uploaded + stats.Exhausted,
		Message: fmt.Sprintf("Queue drained: %d uploaded, %d failed", stats.Uploaded, stats.Exhausted),
		Data:    stats,
	}
}
