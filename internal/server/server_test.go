package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiesman99/geoslice/internal/api"
	"github.com/kiesman99/geoslice/internal/metrics"
	"github.com/kiesman99/geoslice/pkg/geo"
	"github.com/kiesman99/geoslice/pkg/raster"
)

var testGT = [6]float64{0.5, 0, 500000, 0, -0.5, 3500000}

type testEnv struct {
	server *httptest.Server
	store  *raster.Memory
	cache  *raster.WindowCache
	tr     *geo.Transform
}

// Test server setup
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	meta := raster.Metadata{
		DType:     raster.Uint8,
		Count:     3,
		Height:    100,
		Width:     200,
		Transform: testGT,
		CRS:       "EPSG:32636",
	}
	buf := make([]byte, meta.TotalBytes())
	for i := range buf {
		buf[i] = byte(i % 253)
	}
	store, err := raster.NewMemory(meta, buf)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}

	cache := raster.NewWindowCache(1 << 20)
	apiServer := NewServer(Config{
		Version: "0.1.0-test",
		Store:   store,
		Backend: "memory",
		Cache:   cache,
		Metrics: m,
	})

	srv := httptest.NewServer(NewRouter(apiServer, RouterOptions{Timeout: 30 * time.Second, Metrics: m}))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, cache: cache, tr: geo.New(testGT, 36)}
}

func (e *testEnv) get(t *testing.T, path string, query url.Values) *http.Response {
	t.Helper()
	u := e.server.URL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) simulate(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/api/v1/simulate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func window(x, y, w, h int) url.Values {
	return url.Values{
		"x":      {strconv.Itoa(x)},
		"y":      {strconv.Itoa(y)},
		"width":  {strconv.Itoa(w)},
		"height": {strconv.Itoa(h)},
	}
}

// pixelCenter returns the lat/lon of the middle of pixel (px, py)
func pixelCenter(px, py int) (float64, float64) {
	x := testGT[2] + (float64(px)+0.5)*testGT[0]
	y := testGT[5] + (float64(py)+0.5)*testGT[4]
	return geo.Inverse(x, y, geo.CentralMeridian(36))
}

func decodeValidation(t *testing.T, resp *http.Response) api.ValidationErrorResponse {
	t.Helper()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
	var errResp api.ValidationErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode validation error: %v", err)
	}
	if errResp.Error != api.VALIDATIONERROR {
		t.Errorf("Expected VALIDATION_ERROR, got %s", errResp.Error)
	}
	if len(errResp.ValidationErrors) == 0 {
		t.Error("Expected validation errors")
	}
	return errResp
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/api/v1/health", nil)

	// Check status code
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	// Check content type
	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var healthResp api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if healthResp.Status != api.Healthy {
		t.Errorf("Expected status 'healthy', got %s", healthResp.Status)
	}
	if healthResp.Version == nil || *healthResp.Version != "0.1.0-test" {
		t.Errorf("Expected version '0.1.0-test', got %v", healthResp.Version)
	}
	if healthResp.Uptime == nil || *healthResp.Uptime < 0 {
		t.Errorf("Expected valid uptime, got %v", healthResp.Uptime)
	}
	if time.Since(healthResp.Timestamp) > time.Minute {
		t.Errorf("Timestamp seems too old: %v", healthResp.Timestamp)
	}
}

func TestLegacyHealthRedirect(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/health", nil)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected redirect to end in 200, got %d", resp.StatusCode)
	}
	if resp.Request.URL.Path != "/api/v1/health" {
		t.Errorf("Expected redirect to /api/v1/health, got %s", resp.Request.URL.Path)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/api/v1/metadata", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var meta api.MetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if meta.Dtype != "uint8" || meta.Count != 3 || meta.Height != 100 || meta.Width != 200 {
		t.Errorf("Unexpected shape: %+v", meta)
	}
	if meta.Zone != 36 || meta.CentralMeridian != 33 {
		t.Errorf("Expected zone 36 / meridian 33, got %d / %v", meta.Zone, meta.CentralMeridian)
	}
	if meta.Crs == nil || *meta.Crs != "EPSG:32636" {
		t.Errorf("Expected crs EPSG:32636, got %v", meta.Crs)
	}
	if meta.Transform != testGT || meta.Backend != "memory" || meta.Bytes != 60000 {
		t.Errorf("Unexpected metadata: %+v", meta)
	}
}

func TestWindowEndpoint_Raw(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/api/v1/window", window(10, 20, 5, 4))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Expected application/octet-stream, got %s", ct)
	}
	if resp.Header.Get("X-Raster-Bands") != "3" || resp.Header.Get("X-Raster-Height") != "4" ||
		resp.Header.Get("X-Raster-Width") != "5" || resp.Header.Get("X-Raster-Dtype") != "uint8" {
		t.Errorf("Unexpected raster headers: %v", resp.Header)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	want := env.store.WindowCopy(10, 20, 5, 4)
	if !bytes.Equal(body, want.Data) {
		t.Error("Body does not match the window")
	}
}

func TestWindowEndpoint_Clamped(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/api/v1/window", window(195, 95, 20, 20))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Raster-Height") != "5" || resp.Header.Get("X-Raster-Width") != "5" {
		t.Errorf("Expected clamped 5x5 window, got %sx%s",
			resp.Header.Get("X-Raster-Width"), resp.Header.Get("X-Raster-Height"))
	}

	body, _ := io.ReadAll(resp.Body)
	if len(body) != 3*5*5 {
		t.Errorf("Expected %d bytes, got %d", 3*5*5, len(body))
	}
}

func TestWindowEndpoint_Empty(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/api/v1/window", window(300, 10, 5, 5))

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Raster-Bands") != "3" || resp.Header.Get("X-Raster-Width") != "0" {
		t.Errorf("Expected empty window with 3 bands, got %v", resp.Header)
	}
}

func TestWindowEndpoint_PNG(t *testing.T) {
	env := setupTestServer(t)
	q := window(0, 0, 8, 6)
	q.Set("format", "png")
	resp := env.get(t, "/api/v1/window", q)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Errorf("Expected 8x6 image, got %v", img.Bounds())
	}
}

func TestWindowEndpoint_Cached(t *testing.T) {
	env := setupTestServer(t)
	q := window(1, 2, 3, 4)
	q.Set("cached", "true")

	first, _ := io.ReadAll(env.get(t, "/api/v1/window", q).Body)
	second, _ := io.ReadAll(env.get(t, "/api/v1/window", q).Body)

	if !bytes.Equal(first, second) {
		t.Error("Cached response differs from the first response")
	}
	if env.cache.Hits() != 1 || env.cache.Misses() != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", env.cache.Hits(), env.cache.Misses())
	}

	// Uncached requests bypass the cache
	env.get(t, "/api/v1/window", window(1, 2, 3, 4))
	if env.cache.Hits()+env.cache.Misses() != 2 {
		t.Error("Uncached request touched the cache")
	}
}

func TestWindowEndpoint_ValidationErrors(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name  string
		query url.Values
		field string
	}{
		{
			name:  "missing x",
			query: url.Values{"y": {"0"}, "width": {"1"}, "height": {"1"}},
			field: "x",
		},
		{
			name:  "non-numeric width",
			query: url.Values{"x": {"0"}, "y": {"0"}, "width": {"abc"}, "height": {"1"}},
			field: "width",
		},
		{
			name:  "zero width",
			query: window(0, 0, 0, 5),
			field: "size",
		},
		{
			name: "bad format",
			query: func() url.Values {
				q := window(0, 0, 1, 1)
				q.Set("format", "tiff")
				return q
			}(),
			field: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errResp := decodeValidation(t, env.get(t, "/api/v1/window", tt.query))
			if errResp.ValidationErrors[0].Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, errResp.ValidationErrors[0].Field)
			}
			if errResp.RequestId == nil || *errResp.RequestId == "" {
				t.Error("Expected request id")
			}
		})
	}
}

func TestPixelEndpoint(t *testing.T) {
	env := setupTestServer(t)
	lat, lon := pixelCenter(100, 50)

	q := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	resp := env.get(t, "/api/v1/pixel", q)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var px api.PixelResponse
	if err := json.NewDecoder(resp.Body).Decode(&px); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if px.Px != 100 || px.Py != 50 || !px.Valid {
		t.Errorf("Expected (100,50) valid, got %+v", px)
	}

	q.Set("lat", strconv.FormatFloat(lat+1, 'f', -1, 64))
	resp = env.get(t, "/api/v1/pixel", q)
	if err := json.NewDecoder(resp.Body).Decode(&px); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if px.Valid {
		t.Errorf("Expected pixel outside the raster, got %+v", px)
	}

	q.Set("lat", "91")
	decodeValidation(t, env.get(t, "/api/v1/pixel", q))
}

func TestLatLonEndpoint(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/api/v1/latlon", url.Values{"px": {"10"}, "py": {"20"}})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var ll api.LatLonResponse
	if err := json.NewDecoder(resp.Body).Decode(&ll); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	lat, lon := env.tr.PixelToLatLon(10, 20)
	if ll.Lat != lat || ll.Lon != lon {
		t.Errorf("Expected (%v,%v), got (%v,%v)", lat, lon, ll.Lat, ll.Lon)
	}
}

func TestFootprintEndpoint(t *testing.T) {
	env := setupTestServer(t)
	resp := env.get(t, "/api/v1/footprint", url.Values{"altitude": {"5"}})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var fp api.FootprintResponse
	if err := json.NewDecoder(resp.Body).Decode(&fp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if fp.Width != 11 || fp.Height != 11 {
		t.Errorf("Expected 11x11, got %dx%d", fp.Width, fp.Height)
	}

	decodeValidation(t, env.get(t, "/api/v1/footprint", url.Values{"altitude": {"5"}, "fov": {"180"}}))
	decodeValidation(t, env.get(t, "/api/v1/footprint", url.Values{"altitude": {"-1"}}))
	decodeValidation(t, env.get(t, "/api/v1/footprint", nil))
}

func TestSimulateEndpoint_Spiral(t *testing.T) {
	env := setupTestServer(t)
	lat, lon := pixelCenter(100, 50)

	req := api.SimulateRequest{
		Pattern:    api.Spiral,
		Center:     &api.LatLon{Lat: lat, Lon: lon},
		Waypoints:  intPtr(5),
		Altitudes:  &[]float64{5, 10},
		RadiusStep: floatPtr(0.000001),
	}
	body, _ := json.Marshal(req)
	resp := env.simulate(t, string(body))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var sim api.SimulateResponse
	if err := json.NewDecoder(resp.Body).Decode(&sim); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if _, err := uuid.Parse(sim.RunId); err != nil {
		t.Errorf("Expected a UUID run id, got %q", sim.RunId)
	}
	if len(sim.Frames) != 5 || sim.Valid != 5 || sim.Nodata != 0 {
		t.Fatalf("Expected 5 valid frames, got %d frames (%d valid, %d no-data)", len(sim.Frames), sim.Valid, sim.Nodata)
	}
	for i, f := range sim.Frames {
		if f.Index != i || f.Timestamp != float64(i) {
			t.Errorf("frame %d: unexpected index/timestamp %d/%v", i, f.Index, f.Timestamp)
		}
		if f.Bytes != 3*f.Window.Width*f.Window.Height {
			t.Errorf("frame %d: expected %d bytes, got %d", i, 3*f.Window.Width*f.Window.Height, f.Bytes)
		}
	}
	if sim.Frames[0].Altitude != 5 || sim.Frames[1].Altitude != 10 {
		t.Errorf("Expected altitudes to cycle, got %v and %v", sim.Frames[0].Altitude, sim.Frames[1].Altitude)
	}
}

func TestSimulateEndpoint_GridOutsideRaster(t *testing.T) {
	env := setupTestServer(t)

	resp := env.simulate(t, `{"pattern":"grid","bounds":{"min_lat":10,"min_lon":10,"max_lat":11,"max_lon":11},"rows":3,"cols":3,"altitude":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var sim api.SimulateResponse
	if err := json.NewDecoder(resp.Body).Decode(&sim); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(sim.Frames) != 9 || sim.Nodata != 9 || sim.Valid != 0 {
		t.Errorf("Expected 9 no-data frames, got %d frames (%d valid)", len(sim.Frames), sim.Valid)
	}
	if sim.Frames[3].Heading != 270 {
		t.Errorf("Expected second row heading 270, got %v", sim.Frames[3].Heading)
	}
}

func TestSimulateEndpoint_Linear(t *testing.T) {
	env := setupTestServer(t)
	lat0, lon0 := pixelCenter(40, 50)
	lat1, lon1 := pixelCenter(160, 50)

	req := api.SimulateRequest{
		Pattern:   api.Linear,
		Start:     &api.LatLon{Lat: lat0, Lon: lon0},
		End:       &api.LatLon{Lat: lat1, Lon: lon1},
		Waypoints: intPtr(4),
		Altitude:  floatPtr(5),
	}
	body, _ := json.Marshal(req)
	resp := env.simulate(t, string(body))

	var sim api.SimulateResponse
	if err := json.NewDecoder(resp.Body).Decode(&sim); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(sim.Frames) != 4 || sim.Valid != 4 {
		t.Errorf("Expected 4 valid frames, got %d (%d valid)", len(sim.Frames), sim.Valid)
	}
	if sim.Frames[0].Lat != lat0 || sim.Frames[3].Lon != lon1 {
		t.Error("Expected path to start and end exactly at the requested points")
	}
}

func TestSimulateEndpoint_ValidationErrors(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad pattern", `{"pattern":"zigzag"}`, "pattern"},
		{"spiral without center", `{"pattern":"spiral","waypoints":3}`, "center"},
		{"spiral without waypoints", `{"pattern":"spiral","center":{"lat":31,"lon":33}}`, "waypoints"},
		{"zero waypoints", `{"pattern":"linear","start":{"lat":31,"lon":33},"end":{"lat":32,"lon":33},"waypoints":0}`, "waypoints"},
		{"too many waypoints", `{"pattern":"spiral","center":{"lat":31,"lon":33},"waypoints":1000000}`, "waypoints"},
		{"inverted bounds", `{"pattern":"grid","bounds":{"min_lat":2,"min_lon":0,"max_lat":1,"max_lon":1},"rows":2,"cols":2}`, "bounds"},
		{"grid without cols", `{"pattern":"grid","bounds":{"min_lat":0,"min_lon":0,"max_lat":1,"max_lon":1},"rows":2}`, "cols"},
		{"fov out of range", `{"pattern":"spiral","center":{"lat":31,"lon":33},"waypoints":3,"fov":200}`, "fov"},
		{"negative altitude", `{"pattern":"linear","start":{"lat":31,"lon":33},"end":{"lat":32,"lon":33},"waypoints":2,"altitude":-5}`, "altitude"},
		{"negative spiral altitude", `{"pattern":"spiral","center":{"lat":31,"lon":33},"waypoints":3,"altitudes":[10,-1]}`, "altitudes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errResp := decodeValidation(t, env.simulate(t, tt.body))
			if errResp.ValidationErrors[0].Field != tt.field {
				t.Errorf("Expected field %q, got %q (%s)", tt.field, errResp.ValidationErrors[0].Field, errResp.Message)
			}
		})
	}
}

func TestSimulateEndpoint_InvalidJSON(t *testing.T) {
	env := setupTestServer(t)
	resp := env.simulate(t, `{"pattern":`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Error != "INVALID_JSON" {
		t.Errorf("Expected INVALID_JSON, got %s", errResp.Error)
	}
}

func TestCORSHeaders(t *testing.T) {
	env := setupTestServer(t)

	req, err := http.NewRequest("OPTIONS", env.server.URL+"/api/v1/window", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for OPTIONS, got %d", resp.StatusCode)
	}

	expectedHeaders := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, X-API-Key",
	}
	for header, expectedValue := range expectedHeaders {
		if actualValue := resp.Header.Get(header); actualValue != expectedValue {
			t.Errorf("Expected %s: %s, got %s", header, expectedValue, actualValue)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.get(t, "/api/v1/health", nil)
	env.get(t, "/api/v1/window", window(0, 0, 2, 2))

	resp := env.get(t, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`geoslice_http_requests_total{code="200",method="GET",route="/api/v1/health"} 1`,
		`geoslice_http_requests_total{code="200",method="GET",route="/api/v1/window"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
