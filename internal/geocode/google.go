package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/askaround/internal/geo"
)

// Google endpoint defaults.
const (
	DefaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"
	DefaultPlacesURL  = "https://maps.googleapis.com/maps/api/place"
	DefaultTimeout    = 10 * time.Second

	// DefaultAutocompleteRadiusMeters biases autocomplete toward the
	// current map center.
	DefaultAutocompleteRadiusMeters = 50000

	maxGoogleResponseBytes = 1 << 20
)

// Google response statuses.
const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// detailsFields limits place details to what Place carries.
const detailsFields = "place_id,name,formatted_address,geometry,address_components"

// RateLimitConfig bounds outgoing autocomplete calls. Calls beyond the limit
// wait for a token rather than fail.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Validate checks that both fields are positive.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultAutocompleteLimit allows 5 autocomplete calls per second, roughly
// one per keystroke at typing speed.
func DefaultAutocompleteLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Second}
}

// GoogleConfig configures a GoogleClient.
type GoogleConfig struct {
	APIKey     string
	GeocodeURL string
	PlacesURL  string
	// Language is passed as the language parameter when set.
	Language          string
	Timeout           time.Duration
	Transport         http.RoundTripper
	AutocompleteLimit RateLimitConfig
}

// GoogleClient implements Geocoder with the Google Geocoding and Places web
// services.
type GoogleClient struct {
	key        string
	geocodeURL string
	placesURL  string
	language   string
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewGoogleClient creates a client. An empty API key is rejected.
func NewGoogleClient(cfg GoogleConfig, logger *slog.Logger) (*GoogleClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = DefaultGeocodeURL
	}
	if cfg.PlacesURL == "" {
		cfg.PlacesURL = DefaultPlacesURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.AutocompleteLimit.Validate() != nil {
		cfg.AutocompleteLimit = DefaultAutocompleteLimit()
	}
	if logger == nil {
		logger = slog.Default()
	}

	lim := cfg.AutocompleteLimit
	every := lim.WindowDuration / time.Duration(lim.RequestsPerWindow)

	return &GoogleClient{
		key:        cfg.APIKey,
		geocodeURL: cfg.GeocodeURL,
		placesURL:  strings.TrimRight(cfg.PlacesURL, "/"),
		language:   cfg.Language,
		http:       &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		limiter:    rate.NewLimiter(rate.Every(every), lim.RequestsPerWindow),
		logger:     logger,
	}, nil
}

type googleLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type googleResult struct {
	PlaceID          string            `json:"place_id"`
	Name             string            `json:"name"`
	FormattedAddress string            `json:"formatted_address"`
	Components       []googleComponent `json:"address_components"`
	Geometry         struct {
		Location googleLatLng `json:"location"`
	} `json:"geometry"`
}

func (r googleResult) address() Address {
	a := Address{Formatted: r.FormattedAddress}
	for _, c := range r.Components {
		for _, t := range c.Types {
			switch t {
			case "locality":
				a.Locality = c.LongName
			case "administrative_area_level_1":
				a.Region = c.ShortName
			case "postal_code":
				a.PostalCode = c.LongName
			case "country":
				a.Country = c.ShortName
			}
		}
	}
	return a
}

func (r googleResult) place() Place {
	return Place{
		ID:       r.PlaceID,
		Name:     r.Name,
		Address:  r.address(),
		Location: geo.Coordinates{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng},
	}
}

type geocodeResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []googleResult `json:"results"`
}

type autocompleteResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Predictions  []struct {
		PlaceID     string `json:"place_id"`
		Description string `json:"description"`
		Structured  struct {
			MainText      string `json:"main_text"`
			SecondaryText string `json:"secondary_text"`
		} `json:"structured_formatting"`
	} `json:"predictions"`
}

type detailsResponse struct {
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message"`
	Result       googleResult `json:"result"`
}

func latLng(c geo.Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}

// Reverse returns the first address for c.
func (g *GoogleClient) Reverse(ctx context.Context, c geo.Coordinates) (Address, error) {
	q := url.Values{"latlng": {latLng(c)}}
	var resp geocodeResponse
	if err := g.get(ctx, "reverse_geocode", g.geocodeURL, q, &resp); err != nil {
		return Address{}, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return Address{}, err
	}
	if len(resp.Results) == 0 {
		return Address{}, ErrNoResults
	}
	return resp.Results[0].address(), nil
}

// Forward geocodes a free text query. No match is an empty slice.
func (g *GoogleClient) Forward(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	var resp geocodeResponse
	if err := g.get(ctx, "geocode", g.geocodeURL, url.Values{"address": {query}}, &resp); err != nil {
		return nil, err
	}
	if resp.Status == statusZeroResults {
		return []Place{}, nil
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	places := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		places = append(places, r.place())
	}
	return places, nil
}

// Autocomplete returns place predictions for input, biased toward near when
// it is set. Calls are throttled by the autocomplete limiter.
func (g *GoogleClient) Autocomplete(ctx context.Context, input string, near geo.Coordinates) ([]Prediction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyQuery
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("autocomplete throttle: %w", err)
	}

	q := url.Values{"input": {input}}
	if !near.IsZero() && near.Valid() {
		q.Set("location", latLng(near))
		q.Set("radius", strconv.Itoa(DefaultAutocompleteRadiusMeters))
	}
	var resp autocompleteResponse
	if err := g.get(ctx, "autocomplete", g.placesURL+"/autocomplete/json", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status == statusZeroResults {
		return []Prediction{}, nil
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	out := make([]Prediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, Prediction{
			PlaceID:       p.PlaceID,
			Description:   p.Description,
			MainText:      p.Structured.MainText,
			SecondaryText: p.Structured.SecondaryText,
		})
	}
	return out, nil
}

// PlaceDetails resolves a place id from an autocomplete prediction.
func (g *GoogleClient) PlaceDetails(ctx context.Context, placeID string) (Place, error) {
	if placeID == "" {
		return Place{}, ErrMissingPlaceID
	}
	q := url.Values{"place_id": {placeID}, "fields": {detailsFields}}
	var resp detailsResponse
	if err := g.get(ctx, "place_details", g.placesURL+"/details/json", q, &resp); err != nil {
		return Place{}, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return Place{}, err
	}
	p := resp.Result.place()
	if p.ID == "" {
		p.ID = placeID
	}
	return p, nil
}

func checkStatus(status, message string) error {
	switch status {
	case statusOK:
		return nil
	case statusZeroResults:
		return ErrNoResults
	default:
		return &StatusError{Status: status, Message: message}
	}
}

// get issues a GET against endpoint and decodes the JSON body into out. The
// key is appended here so it never reaches the logs.
func (g *GoogleClient) get(ctx context.Context, op, endpoint string, q url.Values, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%s: parse endpoint: %w", op, err)
	}
	if g.language != "" {
		q.Set("language", g.language)
	}
	q.Set("key", g.key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, redactKey(err, g.key))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGoogleResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("maps request failed",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("%s: http status %d", op, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// redactKey strips the API key from a transport error, which embeds the
// request URL.
func redactKey(err error, key string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: strings.ReplaceAll(uerr.URL, key, "REDACTED"), Err: uerr.Err}
	}
	return err
}
