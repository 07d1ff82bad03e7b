package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ewaste-backend/internal/models"

	"googlemaps.github.io/maps"
)

const (
	geocodeCacheTTL        = 24 * time.Hour
	geocodeCacheMaxEntries = 1000
)

// GeocodingService resolves report addresses with the Google Maps Geocoding API.
// Results are cached since the same pickup addresses come back repeatedly.
type GeocodingService struct {
	client *maps.Client
	cache  *geocodeCache
}

func NewGeocodingService(apiKey string) (*GeocodingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is required")
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodingService{client: client, cache: newGeocodeCache(geocodeCacheMaxEntries, geocodeCacheTTL)}, nil
}

// Geocode converts an address to coordinates using the first result.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	if key == "" {
		return nil, fmt.Errorf("empty address")
	}
	if c, ok := s.cache.get(key); ok {
		return &c, nil
	}

	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results found for address: %s", address)
	}

	loc := results[0].Geometry.Location
	c := models.Coordinates{Lat: loc.Lat, Lng: loc.Lng}
	s.cache.put(key, c)
	return &c, nil
}

type geocodeEntry struct {
	coords    models.Coordinates
	createdAt time.Time
}

// geocodeCache is a bounded TTL cache. When full, the oldest entry is evicted.
type geocodeCache struct {
	mu         sync.RWMutex
	entries    map[string]geocodeEntry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

func newGeocodeCache(maxEntries int, ttl time.Duration) *geocodeCache {
	return &geocodeCache{
		entries:    make(map[string]geocodeEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (c *geocodeCache) get(key string) (models.Coordinates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return models.Coordinates{}, false
	}
	return e.coords, true
}

func (c *geocodeCache) put(key string, coords models.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = geocodeEntry{coords: coords, createdAt: c.now()}
}

func (c *geocodeCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}
	delete(c.entries, oldestKey)
}
