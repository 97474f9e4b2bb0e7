package study

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/walklab/go-quadwalk/pkg/motion"
	"github.com/walklab/go-quadwalk/pkg/transport"
)

func newTestProtocol(t *testing.T) *Protocol {
	t.Helper()
	p, err := NewProtocol("unit", t.TempDir())
	if err != nil {
		t.Fatalf("NewProtocol: %v", err)
	}
	return p
}

func TestSequenceCoversMarkersByConditions(t *testing.T) {
	p := newTestProtocol(t)

	trials, err := p.Sequence("P001", true)
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}

	want := len(p.Markers()) * len(defaultConditions())
	if len(trials) != want {
		t.Fatalf("trial count: got %d, want %d", len(trials), want)
	}

	// Every trial id appears exactly once regardless of shuffle order.
	seen := make(map[int]bool, len(trials))
	for _, trial := range trials {
		if seen[trial.TrialID] {
			t.Fatalf("duplicate trial id %d", trial.TrialID)
		}
		seen[trial.TrialID] = true
		if trial.MarkerID == "" {
			t.Fatalf("trial %d has no marker", trial.TrialID)
		}
	}
}

func TestSequenceIsPersisted(t *testing.T) {
	p := newTestProtocol(t)

	if _, err := p.Sequence("P002", false); err != nil {
		t.Fatalf("Sequence: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(p.Dir, "trial_sequence_P002.json"))
	if err != nil {
		t.Fatalf("read sequence file: %v", err)
	}
	var trials []Condition
	if err := json.Unmarshal(data, &trials); err != nil {
		t.Fatalf("decode sequence file: %v", err)
	}
	if len(trials) == 0 {
		t.Fatal("persisted sequence is empty")
	}
	// Unshuffled sequence starts with the first condition at M1.
	if trials[0].MarkerID != "M1" || trials[0].TrialID != 1 {
		t.Errorf("first trial: got %+v", trials[0])
	}
}

func TestRecordResultWritesCSV(t *testing.T) {
	p := newTestProtocol(t)

	trials, err := p.Sequence("P003", false)
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}

	now := time.Now()
	result := Result{
		ID:            "r-1",
		ParticipantID: "P003",
		Condition:     trials[0],
		StartTime:     now,
		EndTime:       now.Add(12 * time.Second),
		Duration:      12.0,
		Distance:      15.0,
		Outcome:       "completed",
	}
	if err := p.RecordResult(result); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}

	f, err := os.Open(filepath.Join(p.Dir, "trial_results.csv"))
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count: got %d, want header + 1", len(rows))
	}
	if rows[1][1] != "P003" {
		t.Errorf("participant column: got %q", rows[1][1])
	}
	if rows[1][12] != "completed" {
		t.Errorf("outcome column: got %q", rows[1][12])
	}
}

func TestSaveConfig(t *testing.T) {
	p := newTestProtocol(t)
	p.AddParticipant(Participant{ID: "P004", Age: 35, ExperienceYears: 10, PriorRobotExposure: "minimal"})

	if err := p.SaveConfig(); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(p.Dir, "study_config.json"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var config struct {
		StudyName    string        `json:"study_name"`
		SessionID    string        `json:"session_id"`
		Markers      []Marker      `json:"markers"`
		Participants []Participant `json:"participants"`
	}
	if err := json.Unmarshal(data, &config); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if config.StudyName != "unit" {
		t.Errorf("study name: got %q", config.StudyName)
	}
	if config.SessionID == "" {
		t.Error("expected a session id")
	}
	if len(config.Markers) != 12 {
		t.Errorf("marker count: got %d, want 12", len(config.Markers))
	}
	if len(config.Participants) != 1 {
		t.Errorf("participant count: got %d", len(config.Participants))
	}
}

func TestTrialRunnerCompletesShortPath(t *testing.T) {
	p := newTestProtocol(t)

	cfg := motion.DefaultConfig()
	cfg.TickPeriod = 5 * time.Millisecond
	cfg.PathLength = 0.2
	cfg.StepBreak = 0.1
	cfg.PauseEnd = 0.15

	sup, err := motion.NewSupervisor(cfg, transport.NewLoopback())
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	// Wait for the transport to connect and feedback to flow.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !sup.Status().Connected {
		time.Sleep(5 * time.Millisecond)
	}

	runner := NewTrialRunner(p, sup)
	cond := Condition{
		TrialID:     1,
		MarkerID:    "M1",
		SpeedPolicy: motion.PolicyRampUp,
		TravelMode:  "forward",
		Description: "short path",
	}

	trialCtx, trialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer trialCancel()
	result, err := runner.Run(trialCtx, "P005", cond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != "completed" {
		t.Errorf("outcome: got %q, want completed", result.Outcome)
	}
	if result.Distance < cfg.PathLength {
		t.Errorf("distance: got %v, want >= %v", result.Distance, cfg.PathLength)
	}
	if len(p.Results()) != 1 {
		t.Errorf("recorded results: got %d, want 1", len(p.Results()))
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Fatalf("Run loop: %v", err)
	}
}
