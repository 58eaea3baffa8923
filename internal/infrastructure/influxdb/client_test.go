package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/infrastructure/config"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/influxdb"
)

// fakeInflux answers pings and records line protocol bodies.
type fakeInflux struct {
	mu     sync.Mutex
	bodies []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/api/v2/write") {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeInflux) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.bodies, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "appliances",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client, fake
}

func waitForBody(t *testing.T, fake *fakeInflux, substr string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		body := fake.written()
		if strings.Contains(body, substr) {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatalf("written lines %q do not contain %q", body, substr)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnect(t *testing.T) {
	client, _ := connect(t)
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := influxdb.Connect(testConfig(url)); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{})
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Error("IsConnected() = false with default batch settings")
	}
}

func TestWriteApplianceProperty(t *testing.T) {
	client, fake := connect(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if !client.WriteApplianceProperty("SIEMENS-HB678GBS6-000000000001", "Oven",
		"Cooking.Oven.Status.CurrentCavityTemperature", 180.5, at) {
		t.Fatal("numeric value not written")
	}
	if client.WriteApplianceProperty("SIEMENS-HB678GBS6-000000000001", "Oven",
		"BSH.Common.Status.DoorState", "BSH.Common.EnumType.DoorState.Open", at) {
		t.Error("string value written")
	}
	client.Flush()

	body := waitForBody(t, fake, influxdb.MeasurementApplianceProperty)
	want := "appliance_property,ha_id=SIEMENS-HB678GBS6-000000000001," +
		"key=Cooking.Oven.Status.CurrentCavityTemperature,type=Oven value=180.5"
	if !strings.Contains(body, want) {
		t.Errorf("line protocol = %q, want it to contain %q", body, want)
	}
	if strings.Contains(body, "DoorState") {
		t.Error("enum string reached InfluxDB")
	}
}

func TestWriteApplianceProperty_SingleFieldType(t *testing.T) {
	client, fake := connect(t)
	now := time.Now()

	client.WriteApplianceProperty("ha-1", "Washer", "BSH.Common.Option.ProgramProgress", int64(42), now)
	client.WriteApplianceProperty("ha-1", "Washer", "BSH.Common.Status.RemoteControlStartAllowed", true, now)
	client.WriteApplianceProperty("ha-1", "Washer", "LaundryCare.Washer.Option.Temperature", 40.5, now)
	client.Flush()

	waitForBody(t, fake, "value=42")
	waitForBody(t, fake, "RemoteControlStartAllowed,type=Washer value=1")
	body := waitForBody(t, fake, "value=40.5")

	if strings.Contains(body, "value=42i") || strings.Contains(body, "value=true") {
		t.Errorf("line protocol = %q, want float fields only", body)
	}
}

func TestWriteAfterClose(t *testing.T) {
	client, fake := connect(t)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if client.WriteApplianceProperty("ha-1", "Washer", "k", 1.0, time.Now()) {
		t.Error("write accepted after Close()")
	}
	client.Flush()
	if !errors.Is(client.HealthCheck(context.Background()), influxdb.ErrNotConnected) {
		t.Error("HealthCheck() after Close() should report not connected")
	}
	if fake.written() != "" {
		t.Errorf("points written after Close(): %q", fake.written())
	}
}

func TestFieldValue(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{int64(5), 5, true},
		{5, 5, true},
		{1.5, 1.5, true},
		{float32(2), 2, true},
		{true, 1, true},
		{false, 0, true},
		{"x", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := influxdb.FieldValue(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("FieldValue(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWriteFailure_ReportsErrWriteFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/api/v2/write") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":"invalid","message":"field type conflict"}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	got := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case got <- err:
		default:
		}
	})

	client.WriteApplianceProperty("ha-1", "Washer", "BSH.Common.Option.ProgramProgress", int64(10), time.Now())
	client.Flush()

	select {
	case err := <-got:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
		if !strings.Contains(err.Error(), "appliances") {
			t.Errorf("callback error = %v, want bucket name", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("write failure was not reported")
	}
	if client.FailedWrites() < 1 {
		t.Errorf("FailedWrites() = %d, want >= 1", client.FailedWrites())
	}
}
