// Package inventory keeps the blocs and rooms of a foyer in step with the
// housing registry.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"foyer-backend/config"
	"foyer-backend/internal/store"
)

// Upserter persists the fetched inventory.
type Upserter interface {
	UpsertBlocsAndRooms(ctx context.Context, foyerID int64, items []store.InventoryItem) error
}

// Service pulls the registry feed on an interval.
type Service struct {
	cfg    *config.InventoryConfig
	store  Upserter
	client *http.Client
	log    *zap.Logger

	onChange func()
}

// NewService creates a sync service for the configured foyer.
func NewService(cfg *config.InventoryConfig, s Upserter, log *zap.Logger) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid proxy URL, inventory sync will not use a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		log: log,
	}
}

// OnChange registers fn to run after every upsert that reached the store,
// so cached listings of blocs and rooms can be dropped.
func (s *Service) OnChange(fn func()) {
	s.onChange = fn
}

// Run syncs once, then again every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("inventory sync is disabled")
		return
	}
	s.log.Info("starting inventory sync", zap.Duration("interval", s.cfg.Interval), zap.Int64("foyer_id", s.cfg.FoyerID))

	s.logResult(s.SyncOnce(ctx))

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("inventory sync shutting down")
			return
		case <-timer.C:
			s.logResult(s.SyncOnce(ctx))
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) logResult(err error) {
	if err != nil {
		s.log.Error("inventory sync failed", zap.Error(err))
	}
}

// SyncOnce fetches every page of the feed and upserts the result. A failed
// fetch aborts the cycle only when no items were retrieved.
func (s *Service) SyncOnce(ctx context.Context) error {
	var allItems []store.InventoryItem
	total := 1
	pageSize := s.cfg.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			s.log.Warn("failed to fetch inventory page", zap.Int("page", page), zap.Error(err))
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
		s.log.Debug("fetched inventory page", zap.Int("page", page), zap.Int("total", total), zap.Int("items", len(allItems)))
	}

	if fetchErr != nil && len(allItems) == 0 {
		return fmt.Errorf("inventory sync aborted: %w", fetchErr)
	}
	if len(allItems) == 0 {
		s.log.Info("inventory sync finished: registry returned no rooms")
		return nil
	}

	if err := s.store.UpsertBlocsAndRooms(ctx, s.cfg.FoyerID, allItems); err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	if s.onChange != nil {
		s.onChange()
	}
	s.log.Info("inventory sync finished", zap.Int("rooms", len(allItems)))
	return nil
}

func (s *Service) fetchPage(ctx context.Context, page int) (*registryResponse, error) {
	payload := make(map[string]any, len(s.cfg.Request.Payload)+2)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = s.cfg.Request.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var regResp registryResponse
	if err := json.Unmarshal(body, &regResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry response: %w", err)
	}
	if regResp.Code != 0 {
		return nil, fmt.Errorf("registry returned non-zero application code: %d", regResp.Code)
	}
	return &regResp, nil
}
