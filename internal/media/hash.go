package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/voxup/internal/models"
)

// Hasher computes content identifiers for locator keys on the local filesystem.
type Hasher struct {
	logger *log.Logger
	open   func(string) (io.ReadCloser, error)
}

// NewHasher creates a [Hasher] that reads files from disk.
func NewHasher(logger *log.Logger) *Hasher {
	return &Hasher{
		logger: logger,
		open: func(key string) (io.ReadCloser, error) {
			return os.Open(key)
		},
	}
}

// ComputeHash returns the lowercase hex SHA-256 digest of the bytes addressed by key.
//
// Read failures are logged and yield "", which callers treat as not uploadable.
func (h *Hasher) ComputeHash(key string) string {
	f, err := h.open(key)
	if err != nil {
		h.logger.Warn("unable to read item for hashing", "key", key, "error", err)
		return ""
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		h.logger.Warn("unable to hash item", "key", key, "error", err)
		return ""
	}
	return hex.EncodeToString(sum.Sum(nil))
}

// HashItems fills in Hash for every item that lacks one, running up to jobs hashes at once.
// Items already hashed this session are left untouched. The slice is modified in place.
func (h *Hasher) HashItems(ctx context.Context, items []models.Item, jobs int) error {
	if jobs < 1 {
		jobs = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i := range items {
		if items[i].Hashed() {
			continue
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			items[i].Hash = h.ComputeHash(items[i].Key)
			return nil
		})
	}
	return g.Wait()
}
