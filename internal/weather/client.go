package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"chime/internal/store"
)

// Conditions is the slice of the weather API response the dashboard
// shows.
type Conditions struct {
	Location  string  `json:"location"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	LocalTime string  `json:"localtime"`
	TempC     float64 `json:"temp_c"`
	TempF     float64 `json:"temp_f"`
	Condition string  `json:"condition"`
	WindKPH   float64 `json:"wind_kph"`
	Humidity  float64 `json:"humidity"`
}

type apiResponse struct {
	Location struct {
		Name      string `json:"name"`
		Region    string `json:"region"`
		Country   string `json:"country"`
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		TempF     float64 `json:"temp_f"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
		WindKPH  float64 `json:"wind_kph"`
		Humidity float64 `json:"humidity"`
	} `json:"current"`
}

// Client is a stateless wrapper over the weather API's current.json
// endpoint, with a short KV cache in front so the dashboard does not
// hammer the upstream.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	query      string
	kv         store.KV // nil disables caching
	cacheTTL   time.Duration
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey, query string, kv store.KV, cacheTTL time.Duration, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		query:      query,
		kv:         kv,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Current returns the current conditions for the configured location,
// from cache when fresh.
func (c *Client) Current(ctx context.Context) (*Conditions, error) {
	key := store.WeatherKey(c.query)

	if c.kv != nil {
		if cached, err := c.kv.Get(ctx, key); err == nil {
			var cond Conditions
			if err := json.Unmarshal([]byte(cached), &cond); err == nil {
				return &cond, nil
			}
			// A corrupt entry just falls through to the API.
		}
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": c.apiKey,
			"q":   c.query,
			"aqi": "no",
		}).
		Get("/current.json")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode())
	}

	var parsed apiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	cond := &Conditions{
		Location:  parsed.Location.Name,
		Region:    parsed.Location.Region,
		Country:   parsed.Location.Country,
		LocalTime: parsed.Location.LocalTime,
		TempC:     parsed.Current.TempC,
		TempF:     parsed.Current.TempF,
		Condition: parsed.Current.Condition.Text,
		WindKPH:   parsed.Current.WindKPH,
		Humidity:  parsed.Current.Humidity,
	}

	if c.kv != nil {
		if data, err := json.Marshal(cond); err == nil {
			if err := c.kv.Set(ctx, key, string(data), c.cacheTTL); err != nil {
				c.logger.Warn("Failed to cache weather", zap.Error(err))
			}
		}
	}

	return cond, nil
}
