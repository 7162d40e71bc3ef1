package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"excursion-booking/internal/models"
)

const maxPriceDocumentSize = 1 << 20

// PriceDocument is the raw price data of an excursion as published by the content API
type PriceDocument struct {
	BasePrices        []models.CategoryPrice `json:"basePrices"`
	PromotionalPrices []PriceOverride        `json:"promotionalPrices"`
	PriceCorrections  []PriceOverride        `json:"priceCorrections"`
}

// PriceOverride replaces base prices within a date range and on selected weekdays
type PriceOverride struct {
	Title    string                 `json:"title"`
	Dates    DateRange              `json:"dates"`
	Weekdays []string               `json:"weekdays"`
	Prices   []models.CategoryPrice `json:"prices"`
}

// DateRange is an inclusive range of calendar dates (YYYY-MM-DD)
type DateRange struct {
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
}

// Contains reports whether date falls within the range, both ends inclusive
func (r DateRange) Contains(date time.Time) bool {
	day := date.Format(models.DateLayout)
	if r.DateFrom != "" && day < r.DateFrom[:min(len(r.DateFrom), len(models.DateLayout))] {
		return false
	}
	if r.DateTo != "" && day > r.DateTo[:min(len(r.DateTo), len(models.DateLayout))] {
		return false
	}
	return true
}

// Validate rejects documents whose prices are negative or finer than a cent
func (d *PriceDocument) Validate() error {
	check := func(prices []models.CategoryPrice) error {
		for _, price := range prices {
			if price.Price.IsNegative() || !models.IsCentPrecise(price.Price) {
				return fmt.Errorf("invalid price %s for category %s", price.Price, price.CategoryID)
			}
		}
		return nil
	}

	if err := check(d.BasePrices); err != nil {
		return err
	}
	for _, overrides := range [][]PriceOverride{d.PromotionalPrices, d.PriceCorrections} {
		for _, override := range overrides {
			if err := check(override.Prices); err != nil {
				return err
			}
		}
	}
	return nil
}

// AppliesTo reports whether the override is active on date. An empty
// weekday list matches every day.
func (o PriceOverride) AppliesTo(date time.Time) bool {
	if !o.Dates.Contains(date) {
		return false
	}
	if len(o.Weekdays) == 0 {
		return true
	}
	weekday := strings.ToLower(date.Weekday().String())
	for _, day := range o.Weekdays {
		day = strings.ToLower(strings.TrimSpace(day))
		if day == weekday || (len(day) == 3 && strings.HasPrefix(weekday, day)) {
			return true
		}
	}
	return false
}

// Resolve computes base and current prices for a booking date. A matching
// promotion wins over a price correction, which wins over the base price.
func (d *PriceDocument) Resolve(date time.Time) *models.ExcursionPrices {
	prices := &models.ExcursionPrices{
		BasePrices:    make([]models.CategoryPrice, 0, len(d.BasePrices)),
		CurrentPrices: make([]models.CategoryPrice, 0, len(d.BasePrices)),
	}

	for _, base := range d.BasePrices {
		prices.BasePrices = append(prices.BasePrices, base)

		current := base
		if override, ok := overridePrice(d.PromotionalPrices, base.CategoryID, date); ok {
			current = override
		} else if override, ok := overridePrice(d.PriceCorrections, base.CategoryID, date); ok {
			current = override
		}
		prices.CurrentPrices = append(prices.CurrentPrices, current)
	}

	return prices
}

func overridePrice(overrides []PriceOverride, categoryID string, date time.Time) (models.CategoryPrice, bool) {
	for _, override := range overrides {
		if !override.AppliesTo(date) {
			continue
		}
		for _, price := range override.Prices {
			if price.CategoryID == categoryID {
				return price, true
			}
		}
	}
	return models.CategoryPrice{}, false
}

// PriceCache stores raw price documents
type PriceCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisPriceCache is a PriceCache backed by Redis
type RedisPriceCache struct {
	client *redis.Client
}

// NewRedisPriceCache creates a new Redis backed price cache
func NewRedisPriceCache(client *redis.Client) *RedisPriceCache {
	return &RedisPriceCache{client: client}
}

// Get returns the cached value, reporting a miss as false
func (c *RedisPriceCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key for ttl
func (c *RedisPriceCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// ContentPriceConfig represents content API configuration
type ContentPriceConfig struct {
	APIURL   string
	APIToken string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ContentPriceService resolves excursion prices from the content API
type ContentPriceService struct {
	config ContentPriceConfig
	client *http.Client
	cache  PriceCache
	logger zerolog.Logger
}

// NewContentPriceService creates a new content price service. cache may be nil.
func NewContentPriceService(config ContentPriceConfig, cache PriceCache, logger zerolog.Logger) *ContentPriceService {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &ContentPriceService{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		cache:  cache,
		logger: logger.With().Str("component", "pricing").Logger(),
	}
}

func priceCacheKey(itemID string) string {
	return fmt.Sprintf("excursion:%s:prices", itemID)
}

// GetExcursionPrices returns base and current prices of an excursion on date
func (s *ContentPriceService) GetExcursionPrices(ctx context.Context, itemID string, date time.Time) (*models.ExcursionPrices, error) {
	doc, err := s.priceDocument(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return doc.Resolve(date), nil
}

func (s *ContentPriceService) priceDocument(ctx context.Context, itemID string) (*PriceDocument, error) {
	key := priceCacheKey(itemID)

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("item_id", itemID).Msg("Price cache read failed")
		case ok:
			var doc PriceDocument
			if err := json.Unmarshal(raw, &doc); err == nil && doc.Validate() == nil {
				return &doc, nil
			}
			s.logger.Warn().Str("item_id", itemID).Msg("Discarding malformed cached price document")
		}
	}

	raw, err := s.fetch(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var doc PriceDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed price document for %s: %v", models.ErrExternalDependency, itemID, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: price document for %s: %v", models.ErrExternalDependency, itemID, err)
	}

	if s.cache != nil && s.config.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, raw, s.config.CacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("item_id", itemID).Msg("Price cache write failed")
		}
	}

	return &doc, nil
}

func (s *ContentPriceService) fetch(ctx context.Context, itemID string) ([]byte, error) {
	endpoint := strings.TrimRight(s.config.APIURL, "/") + "/excursions/" + url.PathEscape(itemID) + "/prices"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: price request for %s: %v", models.ErrExternalDependency, itemID, err)
	}
	defer resp.Body.Close()

	s.logger.Debug().
		Str("item_id", itemID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Fetched excursion prices")

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", models.ErrExcursionNotFound, itemID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: content API returned %d for %s", models.ErrExternalDependency, resp.StatusCode, itemID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPriceDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read price response: %v", models.ErrExternalDependency, err)
	}
	if len(body) > maxPriceDocumentSize {
		return nil, fmt.Errorf("%w: price document for %s exceeds %d bytes", models.ErrExternalDependency, itemID, maxPriceDocumentSize)
	}

	return body, nil
}
