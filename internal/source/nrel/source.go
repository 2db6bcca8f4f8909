package nrel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"station_watch/internal/domain"
)

const SourceName = "NREL Alternative Fuel Stations"

// Config holds NREL source configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Country        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches electric-vehicle stations from the NREL feed.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	country        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new NREL source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		country:        cfg.Country,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", "nrel"),
	}
}

// Name returns the human-readable source name.
func (s *Source) Name() string {
	return SourceName
}

// FetchStations downloads the full electric-station snapshot and
// normalizes every record. Transient fetch failures are retried with
// exponential backoff up to the configured attempt count; a record that
// fails normalization fails the batch without retry.
func (s *Source) FetchStations(ctx context.Context) ([]domain.StationFields, error) {
	resp, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fetched stations", "count", len(resp.FuelStations))

	batch := make([]domain.StationFields, 0, len(resp.FuelStations))
	for i := range resp.FuelStations {
		fields, err := Normalize(&resp.FuelStations[i])
		if err != nil {
			return nil, err
		}
		batch = append(batch, fields)
	}
	return batch, nil
}

func (s *Source) fetch(ctx context.Context) (*APIResponse, error) {
	var resp *APIResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx)
		if err == nil {
			return resp, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context) (*APIResponse, error) {
	params := url.Values{}
	params.Set("fuel_type", "ELEC")
	params.Set("api_key", s.apiKey)
	if s.country != "" {
		params.Set("country", s.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "StationWatch/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &apiResp, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}
