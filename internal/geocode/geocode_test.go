package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/askaround/internal/geo"
)

const madisonGeocode = `{
  "status": "OK",
  "results": [{
    "place_id": "ChIJ_xkgOm1TBogRmEFIurX8DE4",
    "formatted_address": "Madison, WI, USA",
    "address_components": [
      {"long_name": "Madison", "short_name": "Madison", "types": ["locality", "political"]},
      {"long_name": "Wisconsin", "short_name": "WI", "types": ["administrative_area_level_1", "political"]},
      {"long_name": "United States", "short_name": "US", "types": ["country", "political"]}
    ],
    "geometry": {"location": {"lat": 43.0731, "lng": -89.4012}}
  }]
}`

func newGoogle(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGoogleClient(GoogleConfig{
		APIKey:     "test-key",
		GeocodeURL: srv.URL + "/geocode/json",
		PlacesURL:  srv.URL + "/place",
	}, nil)
	if err != nil {
		t.Fatalf("NewGoogleClient() error = %v", err)
	}
	return g
}

func TestNewGoogleClient_RequiresKey(t *testing.T) {
	if _, err := NewGoogleClient(GoogleConfig{}, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestGoogleClient_Reverse(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geocode/json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("latlng") != "43.073100,-89.401200" {
			t.Errorf("latlng = %q", q.Get("latlng"))
		}
		if q.Get("key") != "test-key" {
			t.Errorf("key = %q", q.Get("key"))
		}
		_, _ = w.Write([]byte(madisonGeocode))
	})

	addr, err := g.Reverse(context.Background(), geo.DefaultCenter)
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	want := Address{Formatted: "Madison, WI, USA", Locality: "Madison", Region: "WI", Country: "US"}
	if addr != want {
		t.Errorf("Reverse() = %+v, want %+v", addr, want)
	}
	if addr.Label() != "Madison, WI" {
		t.Errorf("Label() = %q", addr.Label())
	}
}

func TestGoogleClient_Statuses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    int
		wantErr func(error) bool
	}{
		{
			name:    "zero results",
			body:    `{"status":"ZERO_RESULTS","results":[]}`,
			code:    http.StatusOK,
			wantErr: func(err error) bool { return errors.Is(err, ErrNoResults) },
		},
		{
			name: "request denied",
			body: `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`,
			code: http.StatusOK,
			wantErr: func(err error) bool {
				var se *StatusError
				return errors.As(err, &se) && se.Status == "REQUEST_DENIED"
			},
		},
		{
			name:    "http failure",
			body:    `oops`,
			code:    http.StatusBadGateway,
			wantErr: func(err error) bool { return err != nil && strings.Contains(err.Error(), "502") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := g.Reverse(context.Background(), geo.DefaultCenter)
			if !tt.wantErr(err) {
				t.Errorf("Reverse() error = %v", err)
			}
		})
	}
}

func TestGoogleClient_Forward(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "nowhere" {
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS"}`))
			return
		}
		_, _ = w.Write([]byte(madisonGeocode))
	})
	ctx := context.Background()

	places, err := g.Forward(ctx, "  Madison  ")
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if len(places) != 1 || places[0].Location != geo.DefaultCenter || places[0].ID == "" {
		t.Errorf("Forward() = %+v", places)
	}

	places, err = g.Forward(ctx, "nowhere")
	if err != nil || len(places) != 0 {
		t.Errorf("Forward(nowhere) = %v, %v; want empty", places, err)
	}

	if _, err := g.Forward(ctx, " "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Forward(blank) error = %v", err)
	}
}

func TestGoogleClient_Autocomplete(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/place/autocomplete/json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("input") != "state st" || q.Get("location") != "43.073100,-89.401200" || q.Get("radius") != "50000" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"OK","predictions":[{"place_id":"p1","description":"State St, Madison, WI","structured_formatting":{"main_text":"State St","secondary_text":"Madison, WI"}}]}`))
	})

	preds, err := g.Autocomplete(context.Background(), "state st", geo.DefaultCenter)
	if err != nil {
		t.Fatalf("Autocomplete() error = %v", err)
	}
	want := Prediction{PlaceID: "p1", Description: "State St, Madison, WI", MainText: "State St", SecondaryText: "Madison, WI"}
	if len(preds) != 1 || preds[0] != want {
		t.Errorf("Autocomplete() = %+v", preds)
	}
}

func TestGoogleClient_AutocompleteThrottled(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS"}`))
	})
	ctx := context.Background()
	for i := 0; i < DefaultAutocompleteLimit().RequestsPerWindow; i++ {
		if _, err := g.Autocomplete(ctx, "a", geo.Coordinates{}); err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()
	if _, err := g.Autocomplete(ctx, "a", geo.Coordinates{}); err == nil {
		t.Error("call beyond the burst should wait and hit the deadline")
	}
}

func TestGoogleClient_PlaceDetails(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/place/details/json" || q.Get("place_id") != "p1" || q.Get("fields") == "" {
			t.Errorf("request = %s %v", r.URL.Path, q)
		}
		_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"Memorial Union","formatted_address":"800 Langdon St, Madison, WI","geometry":{"location":{"lat":43.0763,"lng":-89.3998}}}}`))
	})

	p, err := g.PlaceDetails(context.Background(), "p1")
	if err != nil {
		t.Fatalf("PlaceDetails() error = %v", err)
	}
	if p.ID != "p1" || p.Name != "Memorial Union" || p.Location.Latitude != 43.0763 {
		t.Errorf("PlaceDetails() = %+v", p)
	}
	if _, err := g.PlaceDetails(context.Background(), ""); !errors.Is(err, ErrMissingPlaceID) {
		t.Errorf("empty id error = %v", err)
	}
}

func TestCenterOrDefault(t *testing.T) {
	point := geo.Coordinates{Latitude: 40.7, Longitude: -74}
	tests := []struct {
		name string
		c    geo.Coordinates
		err  error
		want geo.Coordinates
	}{
		{"usable", point, nil, point},
		{"denied", point, errors.New("permission denied"), geo.DefaultCenter},
		{"zero", geo.Coordinates{}, nil, geo.DefaultCenter},
		{"invalid", geo.Coordinates{Latitude: 120}, nil, geo.DefaultCenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CenterOrDefault(tt.c, tt.err); got != tt.want {
				t.Errorf("CenterOrDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

// fakeGeocoder blocks each lookup until its point or place id is released.
type fakeGeocoder struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	results map[string]Address
	failing map[string]error
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{
		gates:   make(map[string]chan struct{}),
		results: make(map[string]Address),
		failing: make(map[string]error),
	}
}

func (f *fakeGeocoder) gate(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[key]
	if !ok {
		ch = make(chan struct{})
		f.gates[key] = ch
	}
	return ch
}

func (f *fakeGeocoder) release(key string) { close(f.gate(key)) }

func (f *fakeGeocoder) lookup(key string) (Address, error) {
	<-f.gate(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[key]; err != nil {
		return Address{}, err
	}
	return f.results[key], nil
}

func (f *fakeGeocoder) Reverse(_ context.Context, c geo.Coordinates) (Address, error) {
	return f.lookup(c.String())
}

func (f *fakeGeocoder) Forward(context.Context, string) ([]Place, error) { return nil, nil }

func (f *fakeGeocoder) Autocomplete(context.Context, string, geo.Coordinates) ([]Prediction, error) {
	return nil, nil
}

func (f *fakeGeocoder) PlaceDetails(_ context.Context, id string) (Place, error) {
	addr, err := f.lookup(id)
	if err != nil {
		return Place{}, err
	}
	return Place{ID: id, Address: addr, Location: geo.Coordinates{Latitude: 1, Longitude: 2}}, nil
}

var (
	pointA = geo.Coordinates{Latitude: 43.0731, Longitude: -89.4012}
	pointB = geo.Coordinates{Latitude: 43.0389, Longitude: -87.9065}
)

func TestPicker_LatestSelectionWins(t *testing.T) {
	f := newFakeGeocoder()
	f.results[pointA.String()] = Address{Formatted: "Madison, WI"}
	f.results[pointB.String()] = Address{Formatted: "Milwaukee, WI"}

	p := NewPicker(f, geo.Coordinates{})
	ctx := context.Background()

	p.Select(ctx, pointA)
	p.Select(ctx, pointB)
	if got := p.Selection(); got.Point != pointB || !got.Resolving {
		t.Fatalf("Selection() = %+v, want point B resolving", got)
	}

	f.release(pointB.String())
	f.release(pointA.String())
	p.Wait()

	got := p.Selection()
	if got.Address.Formatted != "Milwaukee, WI" || got.Point != pointB || got.Resolving {
		t.Errorf("Selection() = %+v, want B's address", got)
	}
}

func TestPicker_InitialAndFailure(t *testing.T) {
	f := newFakeGeocoder()
	f.failing[pointA.String()] = errors.New("geocoder unavailable")

	var changes []Selection
	var mu sync.Mutex
	p := NewPicker(f, geo.Coordinates{}, WithOnChange(func(s Selection) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	}))
	if p.Selection().Point != geo.DefaultCenter {
		t.Errorf("initial point = %v, want default center", p.Selection().Point)
	}

	p.Select(context.Background(), pointA)
	f.release(pointA.String())
	p.Wait()

	got := p.Selection()
	if got.Point != pointA || !got.Address.IsZero() || got.Err == nil || got.Resolving {
		t.Errorf("Selection() = %+v, want point kept with empty address and error", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Errorf("changes = %d, want 2", len(changes))
	}
}

func TestPicker_SelectPlace(t *testing.T) {
	f := newFakeGeocoder()
	f.results["p1"] = Address{Formatted: "Memorial Union"}
	p := NewPicker(f, pointA)

	if seq := p.SelectPlace(context.Background(), "p1"); seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if p.Selection().Point != pointA {
		t.Error("point should be kept until details return")
	}
	f.release("p1")
	p.Wait()

	got := p.Selection()
	if got.PlaceID != "p1" || got.Address.Formatted != "Memorial Union" || got.Point.Latitude != 1 {
		t.Errorf("Selection() = %+v", got)
	}
}

func TestPicker_CloseDiscardsResults(t *testing.T) {
	f := newFakeGeocoder()
	f.results[pointA.String()] = Address{Formatted: "Madison, WI"}
	p := NewPicker(f, pointB)

	p.Select(context.Background(), pointA)
	p.Close()
	f.release(pointA.String())
	p.Wait()

	if got := p.Selection(); !got.Address.IsZero() {
		t.Errorf("result applied after Close: %+v", got)
	}
	if seq := p.Select(context.Background(), pointB); seq != 0 {
		t.Errorf("Select after Close returned seq %d", seq)
	}
}

func TestReverseOrEmpty(t *testing.T) {
	f := newFakeGeocoder()
	f.failing[pointA.String()] = errors.New("boom")
	f.results[pointB.String()] = Address{Formatted: "Milwaukee, WI"}
	f.release(pointA.String())
	f.release(pointB.String())

	ctx := context.Background()
	if got := ReverseOrEmpty(ctx, f, pointA, nil); !got.IsZero() {
		t.Errorf("failure = %+v, want empty", got)
	}
	if got := ReverseOrEmpty(ctx, f, pointB, nil); got.Formatted != "Milwaukee, WI" {
		t.Errorf("success = %+v", got)
	}
	if got := ReverseOrEmpty(ctx, nil, pointB, nil); !got.IsZero() {
		t.Errorf("nil geocoder = %+v", got)
	}
}
