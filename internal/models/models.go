// package models defines the data model for the voice note uploader
package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Item identifies one uploadable unit.
//
// Key is the opaque locator the media source uses to fetch bytes; for the filesystem source it is a cleaned absolute path.
// Hash is empty until computed and never changes for a given Key within a session.
type Item struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Hash    string    `json:"hash,omitempty"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Hashed reports whether the content identifier has been computed.
func (i Item) Hashed() bool {
	return i.Hash != ""
}

// Ext returns the lowercased file extension without the leading dot.
func (i Item) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(i.Name)), ".")
}

// Location is origin metadata attached to an upload.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// RetryState tracks attempts for one locator key.
//
// Attempts never exceeds the configured maximum; while Attempts > 0 the key is not ready until
// [RetryState.Delay] has elapsed since LastAttempt. LastAttempt carries a monotonic reading.
type RetryState struct {
	Attempts    int
	LastAttempt time.Time
}

// Delay returns base × 2^(Attempts-1), or zero before the first failure.
func (r RetryState) Delay(base time.Duration) time.Duration {
	if r.Attempts <= 0 {
		return 0
	}
	return base << (r.Attempts - 1)
}

// Ready reports whether the backoff window has elapsed at now.
func (r RetryState) Ready(now time.Time, base time.Duration) bool {
	if r.Attempts == 0 {
		return true
	}
	return now.Sub(r.LastAttempt) >= r.Delay(base)
}

// Fail records a failed attempt at now.
func (r *RetryState) Fail(now time.Time) {
	r.Attempts++
	r.LastAttempt = now
}

// CompletionSource records how a key was confirmed.
type CompletionSource string

const (
	SourceUpload CompletionSource = "upload" // transport reported success
	SourceRemote CompletionSource = "remote" // dedup check found the hash already stored
)

// Completion is one ledger row.
type Completion struct {
	OwnerID     string           `json:"owner_id"`
	Key         string           `json:"key"`
	Hash        string           `json:"hash"`
	Source      CompletionSource `json:"source"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Validate checks required fields before the completion is persisted.
func (c Completion) Validate() error {
	switch {
	case c.OwnerID == "":
		return fmt.Errorf("completion owner id is required")
	case c.Key == "":
		return fmt.Errorf("completion key is required")
	case c.Hash == "":
		return fmt.Errorf("completion hash is required")
	case c.Source != SourceUpload && c.Source != SourceRemote:
		return fmt.Errorf("unknown completion source %q", c.Source)
	}
	return nil
}

// UploadRequest carries everything one transport attempt needs.
type UploadRequest struct {
	OwnerID  string
	Key      string
	Name     string
	Hash     string
	Size     int64
	ModTime  time.Time
	Location *Location
}

// NewUploadRequest builds a request for item on behalf of owner.
func NewUploadRequest(owner string, item Item, loc *Location) UploadRequest {
	return UploadRequest{
		OwnerID:  owner,
		Key:      item.Key,
		Name:     item.Name,
		Hash:     item.Hash,
		Size:     item.Size,
		ModTime:  item.ModTime,
		Location: loc,
	}
}

// Ledger is the durable record of confirmed uploads for one owner.
// Has and Keys are synchronous reads; Record persists before returning.
type Ledger interface {
	Has(key string) bool
	Keys() []string
	Record(key, hash string, source CompletionSource) error
}
