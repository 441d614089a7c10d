package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/4000degrees/airmq-wind-server/internal/metrics"
	"github.com/4000degrees/airmq-wind-server/internal/store"
	"github.com/4000degrees/airmq-wind-server/internal/wind"
)

func newTestApp(t *testing.T) (*fiber.App, *store.DiskStore) {
	t.Helper()

	app := fiber.New()
	diskStore := store.NewDiskStore(filepath.Join(t.TempDir(), "json"))
	svc := wind.NewService(diskStore, nil, nil, filepath.Join(t.TempDir(), "work"),
		3*time.Hour+40*time.Minute, metrics.NewCollector())
	RegisterRoutes(app, svc)
	return app, diskStore
}

func writeCycle(t *testing.T, s *store.DiskStore, stamp string, artifact []byte) {
	t.Helper()
	c, err := wind.ParseStamp(stamp)
	if err != nil {
		t.Fatalf("bad stamp %q: %v", stamp, err)
	}
	if err := s.Write(c, artifact); err != nil {
		t.Fatalf("write cycle: %v", err)
	}
}

// TestDataValidation verifies that the data endpoint enforces the
// isoTimestamp query parameter.
func TestDataValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// Missing isoTimestamp should return 400.
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Values that are not RFC3339 instants should also return 400.
	for _, v := range []string{"2024-13-45T00:00:00Z", "1704067200", "yesterday"} {
		req = httptest.NewRequest(http.MethodGet, "/data?isoTimestamp="+v, nil)
		resp, err = app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("value %q: expected status %d, got %d", v, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

// TestDataNotCached verifies that a valid instant with no cached cycle
// returns 404 rather than triggering a fetch.
func TestDataNotCached(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/data?isoTimestamp=2024-01-01T05:00:00Z", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

// TestDataReturnsArtifact verifies the happy path: the resolved cycle's
// artifact is embedded verbatim together with its timestamp.
func TestDataReturnsArtifact(t *testing.T) {
	app, diskStore := newTestApp(t)

	artifact := []byte(`[{"header":{"parameterNumber":2},"data":[4.2,-1.1]}]`)
	writeCycle(t, diskStore, "2024010100", artifact)

	req := httptest.NewRequest(http.MethodGet, "/data?isoTimestamp=2024-01-01T05:00:00Z", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var payload struct {
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Timestamp != "2024010100" {
		t.Fatalf("expected timestamp 2024010100, got %q", payload.Timestamp)
	}
	if string(payload.Data) != string(artifact) {
		t.Fatalf("artifact altered in transit:\nwant %s\ngot  %s", artifact, payload.Data)
	}
}

// TestTimestampEndpoint verifies the timestamp-only endpoint in both the
// cached and uncached cases.
func TestTimestampEndpoint(t *testing.T) {
	app, diskStore := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/timestamp?isoTimestamp=2024-01-01T02:00:00Z", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	// 02:00 falls before the 00Z publish instant, so the previous day's
	// 18Z cycle serves it.
	writeCycle(t, diskStore, "2023123118", []byte("{}"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/timestamp?isoTimestamp=2024-01-01T02:00:00Z", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var payload struct {
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Timestamp != "2023123118" {
		t.Fatalf("expected timestamp 2023123118, got %q", payload.Timestamp)
	}
	if payload.Data != nil {
		t.Fatalf("timestamp endpoint must not carry artifact data, got %s", payload.Data)
	}
}

// TestLatestEndpoint verifies the newest cached cycle is served.
func TestLatestEndpoint(t *testing.T) {
	app, diskStore := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/latest", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	writeCycle(t, diskStore, "2024010100", []byte(`{"old":true}`))
	writeCycle(t, diskStore, "2024010106", []byte(`{"new":true}`))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/latest", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var payload struct {
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Timestamp != "2024010106" {
		t.Fatalf("expected timestamp 2024010106, got %q", payload.Timestamp)
	}
	if string(payload.Data) != `{"new":true}` {
		t.Fatalf("expected newest artifact, got %s", payload.Data)
	}
}
