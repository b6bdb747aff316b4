package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/shared"
)

type targetFile struct {
	FileName string   `json:"fileName"`
	AudioID  string   `json:"audioId"`
	Metadata Metadata `json:"metadata"`
}

type targetRequest struct {
	UserID string       `json:"userId"`
	Files  []targetFile `json:"files"`
}

type uploadTarget struct {
	UploadURL       string `json:"uploadUrl"`
	FileName        string `json:"fileName"`
	AudioID         string `json:"audioId"`
	AlreadyUploaded bool   `json:"alreadyUploaded"`
}

type targetResponse struct {
	UploadData []uploadTarget `json:"uploadData"`
}

// HTTPTransport uploads through the presigned-URL flow: request a target, then PUT the bytes.
type HTTPTransport struct {
	api     *APIService
	url     string
	limiter *rate.Limiter
	logger  *log.Logger
	now     func() time.Time
}

// NewHTTPTransport creates a transport that requests targets from url.
// A positive rps throttles target requests with a token bucket.
func NewHTTPTransport(api *APIService, url string, rps float64, logger *log.Logger) *HTTPTransport {
	t := &HTTPTransport{api: api, url: url, logger: logger, now: time.Now}
	if rps > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return t
}

// Upload implements [Transport]. Success means the store confirmed a duplicate or the PUT returned 200.
func (t *HTTPTransport) Upload(ctx context.Context, req models.UploadRequest) (bool, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	now := t.now()
	audioID := shared.GenerateAttemptID(now)
	target, err := t.requestTarget(ctx, req, audioID, now)
	if err != nil {
		return false, err
	}

	if target.AlreadyUploaded {
		t.logger.Info("file already uploaded on server", "key", req.Key)
		return true, nil
	}
	if target.UploadURL == "" {
		return false, fmt.Errorf("%w: upload target has no url", shared.ErrMalformedResponse)
	}

	f, err := os.Open(req.Key)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", req.Key, err)
	}
	defer f.Close()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	resp, err := t.api.Put(ctx, target.UploadURL, ContentType(req.Name), f, size)
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("upload rejected", "key", req.Key, "status", resp.StatusCode)
		return false, nil
	}
	return true, nil
}

func (t *HTTPTransport) requestTarget(ctx context.Context, req models.UploadRequest, audioID string, now time.Time) (*uploadTarget, error) {
	payload := targetRequest{
		UserID: req.OwnerID,
		Files: []targetFile{{
			FileName: req.Name,
			AudioID:  audioID,
			Metadata: NewMetadata(req, now),
		}},
	}

	resp, err := t.api.PostJSON(ctx, t.url, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: failed to get upload url: %d", shared.ErrUnexpectedStatus, resp.StatusCode)
	}

	var body targetResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if len(body.UploadData) == 0 {
		return nil, fmt.Errorf("%w: empty uploadData", shared.ErrMalformedResponse)
	}
	return &body.UploadData[0], nil
}
