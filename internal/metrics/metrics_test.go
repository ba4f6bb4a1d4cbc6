package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler(t *testing.T) {
	m := New()
	m.Command("provision", "create_disk", ResultSuccess)
	m.Command("operate", "boot", ResultFailure)
	m.GuestEvent("running")
	m.EventDropped()
	m.DirtyScene(true)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Read body failed: %v", err)
	}

	for _, want := range []string{
		`jimvn_commands_total{action="create_disk",engine="provision",result="success"} 1`,
		`jimvn_commands_total{action="boot",engine="operate",result="failure"} 1`,
		`jimvn_guest_events_total{type="running"} 1`,
		`jimvn_events_dropped_total 1`,
		`jimvn_dirty_scene 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// None of these may panic
	m.Command("provision", "create_disk", ResultSuccess)
	m.GuestEvent("running")
	m.EventDropped()
	m.DirtyScene(false)
}
