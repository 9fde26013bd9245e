package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"momentum/internal/domain"
	"momentum/internal/logger"
)

// RestrictionRepository supplies the exchange surveillance lists that
// knock symbols out of the tradable universe for a date.
type RestrictionRepository interface {
	GetRestrictions(ctx context.Context, date time.Time) ([]domain.Restriction, error)
}

// NewStaticRestrictionRepository returns the same restriction list for
// every date. Useful for tests and for manually curated exclusions.
func NewStaticRestrictionRepository(restrictions []domain.Restriction) RestrictionRepository {
	return &staticRestrictionRepositoryHandler{restrictions: restrictions}
}

type staticRestrictionRepositoryHandler struct {
	restrictions []domain.Restriction
}

func (h staticRestrictionRepositoryHandler) GetRestrictions(_ context.Context, _ time.Time) ([]domain.Restriction, error) {
	return h.restrictions, nil
}

// surveillanceResponse mirrors the exchange surveillance endpoint
// payload: one entry per flagged symbol, stage 0 for long-term
// measures.
type surveillanceResponse struct {
	Data []struct {
		Symbol   string `json:"symbol"`
		Stage    string `json:"stage"`
		LongTerm bool   `json:"longTerm"`
	} `json:"data"`
}

type SurveillanceConfig struct {
	BaseURL  string
	CacheDir string
	Timeout  time.Duration
}

// NewSurveillanceRestrictionRepository fetches restriction lists over
// HTTP with a per-day JSON cache on disk, so a backtest replaying the
// same dates never refetches.
func NewSurveillanceRestrictionRepository(cfg SurveillanceConfig) (RestrictionRepository, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("surveillance base url is required")
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create restriction cache dir %s: %w", cfg.CacheDir, err)
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &surveillanceRestrictionRepositoryHandler{
		baseURL:  cfg.BaseURL,
		cacheDir: cfg.CacheDir,
		client:   &http.Client{Timeout: timeout},
		memo:     map[string][]domain.Restriction{},
	}, nil
}

type surveillanceRestrictionRepositoryHandler struct {
	baseURL  string
	cacheDir string
	client   *http.Client

	mu   sync.Mutex
	memo map[string][]domain.Restriction
}

func (h *surveillanceRestrictionRepositoryHandler) GetRestrictions(ctx context.Context, date time.Time) ([]domain.Restriction, error) {
	log := logger.FromContext(ctx)
	dateStr := date.Format(time.DateOnly)

	h.mu.Lock()
	if cached, ok := h.memo[dateStr]; ok {
		h.mu.Unlock()
		return cached, nil
	}
	h.mu.Unlock()

	if restrictions, ok := h.readCache(dateStr); ok {
		h.remember(dateStr, restrictions)
		return restrictions, nil
	}

	restrictions, err := h.fetch(ctx, dateStr)
	if err != nil {
		return nil, err
	}

	if err := h.writeCache(dateStr, restrictions); err != nil {
		log.Warnf("failed to cache restrictions for %s: %v", dateStr, err)
	}
	h.remember(dateStr, restrictions)
	return restrictions, nil
}

func (h *surveillanceRestrictionRepositoryHandler) fetch(ctx context.Context, dateStr string) ([]domain.Restriction, error) {
	url := fmt.Sprintf("%s/surveillance?date=%s", h.baseURL, dateStr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch restrictions for %s: %w", dateStr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("restriction fetch for %s returned status %d", dateStr, resp.StatusCode)
	}

	var payload surveillanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode restriction response for %s: %w", dateStr, err)
	}

	restrictions := []domain.Restriction{}
	for _, entry := range payload.Data {
		stage, err := strconv.Atoi(entry.Stage)
		if err != nil {
			stage = 0
		}
		restrictions = append(restrictions, domain.Restriction{
			Symbol:   entry.Symbol,
			LongTerm: entry.LongTerm,
			Stage:    stage,
		})
	}
	return restrictions, nil
}

func (h *surveillanceRestrictionRepositoryHandler) remember(dateStr string, restrictions []domain.Restriction) {
	h.mu.Lock()
	h.memo[dateStr] = restrictions
	h.mu.Unlock()
}

func (h *surveillanceRestrictionRepositoryHandler) readCache(dateStr string) ([]domain.Restriction, bool) {
	if h.cacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(h.cachePath(dateStr))
	if err != nil {
		return nil, false
	}
	restrictions := []domain.Restriction{}
	if err := json.Unmarshal(data, &restrictions); err != nil {
		return nil, false
	}
	return restrictions, true
}

func (h *surveillanceRestrictionRepositoryHandler) writeCache(dateStr string, restrictions []domain.Restriction) error {
	if h.cacheDir == "" {
		return nil
	}
	data, err := json.Marshal(restrictions)
	if err != nil {
		return err
	}
	return os.WriteFile(h.cachePath(dateStr), data, 0o644)
}

func (h *surveillanceRestrictionRepositoryHandler) cachePath(dateStr string) string {
	return filepath.Join(h.cacheDir, dateStr+".json")
}
