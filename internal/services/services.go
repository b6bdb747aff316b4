// package services defines the remote store collaborators of the upload queue
//
// Dedup oracle and item transport, over HTTP or AWS
package services

import (
	"context"
	"encoding/json"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/voxup/internal/models"
)

// Oracle reports which content hashes the remote store already holds for an owner.
type Oracle interface {
	// CheckRemoteStatus returns the subset of hashes already stored.
	// Implementations never fail: errors are logged and degrade to an empty set.
	CheckRemoteStatus(ctx context.Context, ownerID string, hashes []string) map[string]struct{}
}

// Transport moves one item's bytes and metadata to the remote store.
type Transport interface {
	// Upload performs one attempt. Callers only distinguish success from failure.
	Upload(ctx context.Context, req models.UploadRequest) (bool, error)
}

// LocationProvider supplies optional origin metadata at upload time.
type LocationProvider interface {
	Location(ctx context.Context) *models.Location
}

// Metadata is the descriptive record sent alongside each upload.
type Metadata struct {
	OriginalFilename string `json:"originalFilename"`
	FileSize         string `json:"fileSize"`
	FileHash         string `json:"fileHash"`
	CreatedAt        string `json:"createdAt"`
	UploadedAt       string `json:"uploadedAt"`
	Location         string `json:"location,omitempty"`
}

// NewMetadata builds upload metadata for req at now. Location is embedded as a JSON string.
func NewMetadata(req models.UploadRequest, now time.Time) Metadata {
	md := Metadata{
		OriginalFilename: req.Name,
		FileSize:         strconv.FormatInt(req.Size, 10),
		FileHash:         req.Hash,
		CreatedAt:        req.ModTime.UTC().Format(time.RFC3339Nano),
		UploadedAt:       now.UTC().Format(time.RFC3339Nano),
	}
	if req.Location != nil {
		if data, err := json.Marshal(req.Location); err == nil {
			md.Location = string(data)
		}
	}
	return md
}

var audioTypes = map[string]string{
	"opus": "audio/opus",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
}

// ContentType returns the audio MIME type for name, defaulting to audio/opus.
func ContentType(name string) string {
	ext := strings.ToLower(name)
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		ext = ext[i+1:]
	} else {
		ext = ""
	}
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); strings.HasPrefix(ct, "audio/") {
		return ct
	}
	return "audio/opus"
}
