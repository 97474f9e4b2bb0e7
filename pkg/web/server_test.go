package web

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/walklab/go-quadwalk/pkg/motion"
	"github.com/walklab/go-quadwalk/pkg/transport"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sup, err := motion.NewSupervisor(motion.DefaultConfig(), transport.NewLoopback())
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	return NewServer("0", sup)
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status code: got %d", resp.StatusCode)
	}

	var status motion.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.State != "idle" {
		t.Errorf("state: got %q, want idle", status.State)
	}
	if status.Walking {
		t.Error("expected not walking")
	}
}

func TestIntentEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := `{"travel_mode":"lateral","speed_policy":"pause_slow","gaze_enabled":true}`
	req := httptest.NewRequest("POST", "/api/intent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status code: got %d", resp.StatusCode)
	}

	var status motion.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.TravelMode != "lateral" {
		t.Errorf("travel mode: got %q", status.TravelMode)
	}
	if status.SpeedPolicy != "pause_slow" {
		t.Errorf("speed policy: got %q", status.SpeedPolicy)
	}
	if !status.GazeEnabled {
		t.Error("expected gaze enabled")
	}
}

func TestIntentRejectsUnknownPolicy(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/intent", strings.NewReader(`{"speed_policy":"warp"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status code: got %d, want 400", resp.StatusCode)
	}
}

func TestShutdownStopsBroadcastAndHub(t *testing.T) {
	s := newTestServer(t)

	hubDone := make(chan struct{})
	go func() {
		s.statusHub.Run()
		close(hubDone)
	}()
	go s.broadcastLoop()

	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-hubDone:
	case <-time.After(time.Second):
		t.Fatal("hub still running after Shutdown")
	}
}

func TestStartWithoutFeedbackConflicts(t *testing.T) {
	s := newTestServer(t)

	// The loopback transport is not connected, so the supervisor has no
	// fresh feedback to anchor a start pose.
	resp, err := s.app.Test(httptest.NewRequest("POST", "/api/start", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Errorf("status code: got %d, want 409", resp.StatusCode)
	}
}
