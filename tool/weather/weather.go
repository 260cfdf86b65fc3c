// Package weather provides a current weather tool backed by the Open-Meteo
// geocoding and forecast APIs (no API key required).
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// Name is the tool name exposed to models.
const Name = "weather"

const (
	// DefaultGeocodingURL resolves place names to coordinates.
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	// DefaultForecastURL serves current conditions.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
)

// Options configure the weather tool.
type Options struct {
	GeocodingURL string
	ForecastURL  string
	HTTPClient   *http.Client
}

// Args are the arguments accepted by the tool.
type Args struct {
	Location string `json:"location" description:"City or place name, e.g. Berlin"`
	Unit     string `json:"unit,omitempty" enum:"celsius,fahrenheit" description:"Temperature unit"`
}

// Report is the current weather at a resolved location.
type Report struct {
	Location      string  `json:"location"`
	Country       string  `json:"country,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature"`
	Unit          string  `json:"unit"`
	Humidity      float64 `json:"relative_humidity"`
	WindSpeed     float64 `json:"wind_speed_kmh"`
	Conditions    string  `json:"conditions"`
	ConditionCode int     `json:"weather_code"`
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Client queries Open-Meteo.
type Client struct {
	opts Options
}

// NewClient creates a Client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		GeocodingURL: DefaultGeocodingURL,
		ForecastURL:  DefaultForecastURL,
		HTTPClient:   http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{opts: opts}
}

// New returns the weather tool.
func New(optFns ...func(o *Options)) tool.Tool {
	c := NewClient(optFns...)
	return tool.NewTypedTool(Name,
		"Get the current weather (temperature, humidity, wind, conditions) for a location.",
		func(tc *core.ToolContext, args Args) (any, error) {
			return c.Current(tc.Context(), args.Location, args.Unit)
		})
}

// Current resolves location and returns its current conditions.
func (c *Client) Current(ctx context.Context, location, unit string) (*Report, error) {
	if unit == "" {
		unit = "celsius"
	}

	var geo geocodingResponse
	q := url.Values{}
	q.Set("name", location)
	q.Set("count", "1")
	q.Set("format", "json")
	if err := c.getJSON(ctx, c.opts.GeocodingURL, q, &geo); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", location, err)
	}
	if len(geo.Results) == 0 {
		return nil, tool.NewToolError(Name, fmt.Sprintf("location %q not found", location), tool.CodeNotFound)
	}
	place := geo.Results[0]

	var fc forecastResponse
	q = url.Values{}
	q.Set("latitude", strconv.FormatFloat(place.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(place.Longitude, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")
	q.Set("temperature_unit", unit)
	if err := c.getJSON(ctx, c.opts.ForecastURL, q, &fc); err != nil {
		return nil, fmt.Errorf("forecast for %q: %w", location, err)
	}

	return &Report{
		Location:      place.Name,
		Country:       place.Country,
		Latitude:      place.Latitude,
		Longitude:     place.Longitude,
		Time:          fc.Current.Time,
		Temperature:   fc.Current.Temperature,
		Unit:          unit,
		Humidity:      fc.Current.Humidity,
		WindSpeed:     fc.Current.WindSpeed,
		ConditionCode: fc.Current.WeatherCode,
		Conditions:    describe(fc.Current.WeatherCode),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// describe maps WMO weather interpretation codes to text.
func describe(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
