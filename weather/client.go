// Package weather resolves a location to a short weather phrase for the
// stylist, using the Open-Meteo forecast API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kasuganosora/magicwardrobe/cache"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

var errNoData = errors.New("weather: no current weather in response")

// Report is the current weather at a location.
type Report struct {
	Temperature float64 `json:"temperature"` // °F
	WeatherCode int     `json:"weather_code"`
	IsDay       bool    `json:"is_day"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
}

// String renders the report as "<description>, <temp>°F".
func (r Report) String() string {
	return r.Description + ", " + strconv.FormatFloat(r.Temperature, 'f', -1, 64) + "°F"
}

// Client fetches current weather. Reports are cached per rounded
// coordinate when a cache is configured.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewClient creates a Client. c may be nil to disable caching.
func NewClient(baseURL string, timeout time.Duration, c cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.2f,%.2f", lat, lon)
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
		IsDay       int     `json:"is_day"`
	} `json:"current_weather"`
}

// Current returns the weather at lat/lon.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Report, error) {
	key := cacheKey(lat, lon)
	if c.cache != nil && c.cacheTTL > 0 {
		if raw, err := c.cache.Get(ctx, key); err == nil {
			var r Report
			if json.Unmarshal([]byte(raw), &r) == nil {
				return r, nil
			}
		} else if !cache.IsNotFound(err) {
			c.logger.Warn("weather cache get failed", zap.Error(err))
		}
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current_weather", "true")
	q.Set("temperature_unit", "fahrenheit")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Report{}, fmt.Errorf("weather: status %d: %s", resp.StatusCode, body)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return Report{}, fmt.Errorf("weather: decode: %w", err)
	}
	if fr.CurrentWeather == nil {
		return Report{}, errNoData
	}
	code := fr.CurrentWeather.WeatherCode
	r := Report{
		Temperature: fr.CurrentWeather.Temperature,
		WeatherCode: code,
		IsDay:       fr.CurrentWeather.IsDay != 0,
		Condition:   Condition(code),
		Description: Description(code),
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if b, err := json.Marshal(r); err == nil {
			if err := c.cache.Set(ctx, key, string(b), c.cacheTTL); err != nil {
				c.logger.Warn("weather cache set failed", zap.Error(err))
			}
		}
	}
	return r, nil
}
