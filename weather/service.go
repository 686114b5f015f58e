// Package weather proxies OpenWeatherMap for the supported cities and caches
// normalised results in the weather_cache table, mirrored to redis when configured.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

// DefaultTTL is how long a cached payload is served before refetching.
const DefaultTTL = 10 * time.Minute

// Result is a report plus where it came from.
type Result struct {
	City   string `json:"city"`
	Cached bool   `json:"cached"`
	Report
}

// Forecast is the uncached 5-day forecast for a city.
type Forecast struct {
	City     string         `json:"city"`
	Forecast []ForecastItem `json:"forecast"`
}

// Service resolves weather lookups. A nil client means no API key is configured.
type Service struct {
	db     *gorm.DB
	client *Client
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewService builds the lookup service; client may be nil.
func NewService(db *gorm.DB, client *Client, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, client: client, ttl: ttl, log: log, now: time.Now}
}

// Enabled reports whether an upstream client is configured.
func (s *Service) Enabled() bool { return s.client != nil }

// ForCity returns current weather for a supported city.
func (s *Service) ForCity(ctx context.Context, name string) (*Result, error) {
	city, ok := FindCity(name)
	if !ok {
		return nil, utils.NotFoundError("city not found")
	}
	return s.lookup(ctx, city.Name, city.Lat, city.Lon)
}

// ForCoordinates returns current weather keyed by coordinates rounded to two decimals.
func (s *Service) ForCoordinates(ctx context.Context, lat, lon float64) (*Result, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, utils.ValidationError("invalid coordinates")
	}
	lat, lon = math.Round(lat*100)/100, math.Round(lon*100)/100
	return s.lookup(ctx, fmt.Sprintf("%.2f,%.2f", lat, lon), lat, lon)
}

// ForecastFor returns the uncached forecast for a supported city.
func (s *Service) ForecastFor(ctx context.Context, name string) (*Forecast, error) {
	city, ok := FindCity(name)
	if !ok {
		return nil, utils.NotFoundError("city not found")
	}
	if s.client == nil {
		return nil, utils.UnavailableError("weather service unavailable", nil)
	}
	items, err := s.client.Forecast(ctx, city.Lat, city.Lon)
	if err != nil {
		return nil, err
	}
	return &Forecast{City: city.Name, Forecast: items}, nil
}

func (s *Service) lookup(ctx context.Context, location string, lat, lon float64) (*Result, error) {
	if report, ok := s.cached(ctx, location); ok {
		return &Result{City: location, Cached: true, Report: report}, nil
	}
	if s.client == nil {
		return nil, utils.UnavailableError("weather service unavailable", nil)
	}

	report, err := s.client.Current(ctx, lat, lon, s.now())
	if err != nil {
		s.log.Warn("weather upstream failed", zap.String("location", location), zap.Error(err))
		return nil, err
	}
	if err := s.store(ctx, location, report); err != nil {
		// serve the fresh result even when caching fails
		s.log.Warn("weather cache write failed", zap.String("location", location), zap.Error(err))
	}
	return &Result{City: location, Cached: false, Report: report}, nil
}

type mirrorEntry struct {
	CachedAt time.Time `json:"cached_at"`
	Report   Report    `json:"report"`
}

func (s *Service) cached(ctx context.Context, location string) (Report, bool) {
	cutoff := s.now().Add(-s.ttl)

	var mirror mirrorEntry
	if utils.CacheGetJSON(utils.CacheKeyWeather+location, &mirror) && mirror.CachedAt.After(cutoff) {
		return mirror.Report, true
	}

	var row models.WeatherCache
	err := s.db.WithContext(ctx).
		Where("location = ? AND cached_at > ?", location, cutoff).
		First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("weather cache read failed", zap.String("location", location), zap.Error(err))
		}
		return Report{}, false
	}
	var report Report
	if err := json.Unmarshal(row.Payload, &report); err != nil {
		return Report{}, false
	}
	return report, true
}

func (s *Service) store(ctx context.Context, location string, report Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	now := s.now()
	row := models.WeatherCache{Location: location, Payload: datatypes.JSON(payload), CachedAt: now}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "location"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "cached_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}
	utils.CacheSetJSON(utils.CacheKeyWeather+location, mirrorEntry{CachedAt: now, Report: report}, s.ttl)
	return nil
}
