package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	http_utils "github.com/benmeehan/collar-sync/pkg/httpUtils"
	"github.com/rs/zerolog"
)

// HTTPSource polls an HTTP endpoint that returns a JSON array of observations.
type HTTPSource struct {
	url     string
	timeout time.Duration
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPSource creates a source for url. A nil client uses a default one.
func NewHTTPSource(url string, timeout time.Duration, client *http.Client, logger zerolog.Logger) *HTTPSource {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSource{
		url:     url,
		timeout: timeout,
		client:  client,
		logger:  logger,
	}
}

// Fetch performs one GET. Non-200 responses, timeouts and bodies that are not
// a JSON array fail the whole batch.
func (s *HTTPSource) Fetch(ctx context.Context) ([]models.Observation, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := http_utils.DoJSON(ctx, s.client, http.MethodGet, s.url, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, s.url, http_utils.Snippet(resp.Body))
	}

	observations, err := models.ParseObservationBatch(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid response from %s: %w", s.url, err)
	}

	s.logger.Debug().Str("url", s.url).Int("count", len(observations)).Msg("Fetched external observations")
	return observations, nil
}
