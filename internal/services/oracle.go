package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/voxup/internal/shared"
)

type checkRequest struct {
	UserID     string   `json:"userId"`
	FileHashes []string `json:"fileHashes"`
}

type checkResponse struct {
	UploadedHashes []string `json:"uploadedHashes"`
	UploadedCount  int      `json:"uploadedCount"`
	CheckedCount   int      `json:"checkedCount"`
}

// HTTPOracle queries the remote store's check endpoint with a single batched request.
type HTTPOracle struct {
	api    *APIService
	url    string
	logger *log.Logger
}

// NewHTTPOracle creates an oracle posting to url.
func NewHTTPOracle(api *APIService, url string, logger *log.Logger) *HTTPOracle {
	return &HTTPOracle{api: api, url: url, logger: logger}
}

// CheckRemoteStatus implements [Oracle].
func (o *HTTPOracle) CheckRemoteStatus(ctx context.Context, ownerID string, hashes []string) map[string]struct{} {
	stored := make(map[string]struct{})
	if len(hashes) == 0 {
		return stored
	}

	uploaded, err := o.check(ctx, ownerID, hashes)
	if err != nil {
		o.logger.Warn("dedup check failed, treating nothing as stored", "hashes", len(hashes), "error", err)
		return stored
	}

	for _, h := range uploaded {
		stored[h] = struct{}{}
	}
	o.logger.Debug("dedup check complete", "checked", len(hashes), "stored", len(stored))
	return stored
}

func (o *HTTPOracle) check(ctx context.Context, ownerID string, hashes []string) ([]string, error) {
	resp, err := o.api.PostJSON(ctx, o.url, checkRequest{UserID: ownerID, FileHashes: hashes})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: server check failed: %d", shared.ErrUnexpectedStatus, resp.StatusCode)
	}

	var body checkResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return body.UploadedHashes, nil
}
