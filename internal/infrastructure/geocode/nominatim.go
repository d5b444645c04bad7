// Package geocode resolves GPS coordinates to country and place names
// through a Nominatim-compatible reverse geocoding endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkorchagin/photostock/internal/core/domain"
)

// Client implements ports.Geocoder against the Nominatim /reverse API.
// Requests are throttled to the endpoint's published one-per-second
// usage policy.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(baseURL, userAgent string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type reverseResponse struct {
	Address struct {
		Country string `json:"country"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
	} `json:"address"`
}

// Reverse resolves a coordinate pair. The place name is "city, region"
// when both are known, otherwise whichever part is present.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "geocode.Reverse",
			fmt.Errorf("coordinates out of range: %f, %f", lat, lon))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", fmt.Errorf("geocode rate wait: %w", err)
	}

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	query.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", "", fmt.Errorf("create reverse request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("geocode reverse request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", "", fmt.Errorf("geocode reverse status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("decode reverse response: %w", err)
	}

	return parsed.Address.Country, placeName(parsed), nil
}

func placeName(r reverseResponse) string {
	city := r.Address.City
	if city == "" {
		city = r.Address.Town
	}
	if city == "" {
		city = r.Address.Village
	}
	region := r.Address.State

	switch {
	case city != "" && region != "":
		return city + ", " + region
	case city != "":
		return city
	default:
		return region
	}
}
