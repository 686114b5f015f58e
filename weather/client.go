package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agroph/portal/utils"
)

// Report is the normalised current-weather payload.
type Report struct {
	Temperature   int       `json:"temperature"`
	FeelsLike     int       `json:"feels_like"`
	Humidity      int       `json:"humidity"`
	Pressure      int       `json:"pressure"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection int       `json:"wind_direction"`
	Visibility    *int      `json:"visibility"` // km
	Sunrise       time.Time `json:"sunrise"`
	Sunset        time.Time `json:"sunset"`
	Timestamp     time.Time `json:"timestamp"`
}

// ForecastItem is one 3-hour slot of the 5-day forecast.
type ForecastItem struct {
	Date        time.Time `json:"date"`
	Temperature int       `json:"temperature"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
}

// Client calls the OpenWeatherMap 2.5 API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client with a bounded request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 8 * time.Second},
	}
}

type owmCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  int     `json:"humidity"`
	Pressure  int     `json:"pressure"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
	Deg   int     `json:"deg"`
}

type owmCurrent struct {
	Main       owmMain        `json:"main"`
	Weather    []owmCondition `json:"weather"`
	Wind       owmWind        `json:"wind"`
	Visibility *int           `json:"visibility"`
	Sys        struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

type owmForecast struct {
	List []struct {
		Dt      int64          `json:"dt"`
		Main    owmMain        `json:"main"`
		Weather []owmCondition `json:"weather"`
		Wind    owmWind        `json:"wind"`
	} `json:"list"`
}

// Current fetches and normalises current conditions.
func (c *Client) Current(ctx context.Context, lat, lon float64, now time.Time) (Report, error) {
	var raw owmCurrent
	if err := c.get(ctx, "/weather", lat, lon, &raw); err != nil {
		return Report{}, err
	}
	r := Report{
		Temperature:   round(raw.Main.Temp),
		FeelsLike:     round(raw.Main.FeelsLike),
		Humidity:      raw.Main.Humidity,
		Pressure:      raw.Main.Pressure,
		WindSpeed:     raw.Wind.Speed,
		WindDirection: raw.Wind.Deg,
		Sunrise:       time.Unix(raw.Sys.Sunrise, 0).UTC(),
		Sunset:        time.Unix(raw.Sys.Sunset, 0).UTC(),
		Timestamp:     now.UTC(),
	}
	if len(raw.Weather) > 0 {
		r.Description = raw.Weather[0].Description
		r.Icon = raw.Weather[0].Icon
	}
	if raw.Visibility != nil {
		km := round(float64(*raw.Visibility) / 1000)
		r.Visibility = &km
	}
	return r, nil
}

// Forecast fetches the 5-day forecast.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]ForecastItem, error) {
	var raw owmForecast
	if err := c.get(ctx, "/forecast", lat, lon, &raw); err != nil {
		return nil, err
	}
	items := make([]ForecastItem, 0, len(raw.List))
	for _, it := range raw.List {
		item := ForecastItem{
			Date:        time.Unix(it.Dt, 0).UTC(),
			Temperature: round(it.Main.Temp),
			Humidity:    it.Main.Humidity,
			WindSpeed:   it.Wind.Speed,
		}
		if len(it.Weather) > 0 {
			item.Description = it.Weather[0].Description
			item.Icon = it.Weather[0].Icon
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, lat, lon float64, out interface{}) error {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return utils.InternalError(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return utils.UpstreamError("weather provider unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return utils.UpstreamError("weather provider rejected the API key", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return utils.UpstreamError("failed to get weather data", fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return utils.UpstreamError("invalid weather provider response", err)
	}
	return nil
}

func round(v float64) int {
	return int(math.Round(v))
}
