// Package study manages the behavioral-study protocol around the walking
// controller: participants, marker layout, trial conditions, randomized
// per-participant trial sequences, and result recording.
package study

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walklab/go-quadwalk/internal/log"
	"github.com/walklab/go-quadwalk/pkg/motion"
)

// Participant holds the intake record for one study participant.
type Participant struct {
	ID                 string `json:"id"`
	Age                int    `json:"age"`
	ExperienceYears    int    `json:"experience_years"`
	PriorRobotExposure string `json:"prior_robot_exposure"` // none, minimal, moderate, extensive
}

// Marker is a floor marker where the participant stands during a trial.
type Marker struct {
	ID                string  `json:"id"`
	DistanceFromPath  float64 `json:"distance_from_path"`  // meters
	PositionAlongPath float64 `json:"position_along_path"` // meters
}

// Condition is one experimental condition: what the robot does during the
// trial.
type Condition struct {
	TrialID     int           `json:"trial_id"`
	MarkerID    string        `json:"marker_id"`
	SpeedPolicy motion.Policy `json:"speed_policy"`
	TravelMode  string        `json:"travel_mode"` // forward or lateral
	GazeEnabled bool          `json:"gaze_enabled"`
	Description string        `json:"description"`
}

// Result records the outcome of a single trial.
type Result struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Condition     Condition `json:"condition"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Duration      float64   `json:"duration_seconds"`
	Distance      float64   `json:"distance_traveled"`
	Outcome       string    `json:"outcome"` // completed, stopped, watchdog, faulted, aborted
	Notes         string    `json:"notes"`
}

// Protocol owns the study state and its on-disk artifacts. Every session
// gets its own timestamped directory under the base dir.
type Protocol struct {
	Name      string
	SessionID string
	Dir       string

	mu           sync.Mutex
	participants []Participant
	markers      []Marker
	conditions   []Condition
	results      []Result
}

// NewProtocol creates the session directory and seeds the default marker
// layout and condition set.
func NewProtocol(name, baseDir string) (*Protocol, error) {
	dir := filepath.Join(baseDir, fmt.Sprintf("%s_%s", name, time.Now().Format("20060102_150405")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create study dir: %w", err)
	}

	p := &Protocol{
		Name:      name,
		SessionID: uuid.NewString(),
		Dir:       dir,
	}
	p.markers = defaultMarkers()
	p.conditions = defaultConditions()

	log.Info("study session created", "name", name, "session", p.SessionID, "dir", dir)
	return p, nil
}

// defaultMarkers lays out markers on a grid: four offsets from the path,
// three positions along it.
func defaultMarkers() []Marker {
	distances := []float64{1.0, 2.0, 3.0, 5.0}
	positions := []float64{2.5, 5.0, 7.5}

	var markers []Marker
	id := 1
	for _, dist := range distances {
		for _, pos := range positions {
			markers = append(markers, Marker{
				ID:                fmt.Sprintf("M%d", id),
				DistanceFromPath:  dist,
				PositionAlongPath: pos,
			})
			id++
		}
	}
	return markers
}

// defaultConditions is the base condition set. MarkerID is filled in per
// trial when the sequence is built.
func defaultConditions() []Condition {
	configs := []struct {
		policy motion.Policy
		mode   string
		gaze   bool
		desc   string
	}{
		{motion.PolicyRampUp, "forward", false, "Forward accelerating"},
		{motion.PolicyRampDown, "forward", false, "Forward decelerating"},
		{motion.PolicyStepUpAtHalf, "forward", false, "Forward step up at half"},
		{motion.PolicyStepDownAtHalf, "forward", false, "Forward step down at half"},
		{motion.PolicyRampUp, "forward", true, "Forward accelerating with gaze"},
		{motion.PolicyPauseSlow, "forward", true, "Forward slow pause with gaze"},
		{motion.PolicyRampUp, "lateral", false, "Lateral facing participant"},
		{motion.PolicyPauseSlow, "lateral", false, "Lateral slow with pause"},
		{motion.PolicyPauseFast, "lateral", true, "Lateral fast pause with gaze"},
		{motion.PolicyStepUpAtHalf, "lateral", true, "Lateral step up with gaze"},
	}

	conditions := make([]Condition, 0, len(configs))
	for i, c := range configs {
		conditions = append(conditions, Condition{
			TrialID:     i + 1,
			SpeedPolicy: c.policy,
			TravelMode:  c.mode,
			GazeEnabled: c.gaze,
			Description: c.desc,
		})
	}
	return conditions
}

// AddParticipant registers a participant for this session.
func (p *Protocol) AddParticipant(participant Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.participants = append(p.participants, participant)
	log.Info("participant added", "id", participant.ID)
}

// Markers returns the marker layout.
func (p *Protocol) Markers() []Marker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Marker, len(p.markers))
	copy(out, p.markers)
	return out
}

// Marker looks up a marker by id.
func (p *Protocol) Marker(id string) (Marker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.markers {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// Sequence builds the full marker-by-condition trial sequence for a
// participant, shuffles it, and persists it as JSON in the session dir.
func (p *Protocol) Sequence(participantID string, randomize bool) ([]Condition, error) {
	p.mu.Lock()

	trials := make([]Condition, 0, len(p.markers)*len(p.conditions))
	id := 1
	for _, marker := range p.markers {
		for _, cond := range p.conditions {
			trial := cond
			trial.TrialID = id
			trial.MarkerID = marker.ID
			trial.Description = fmt.Sprintf("%s @ %s", cond.Description, marker.ID)
			trials = append(trials, trial)
			id++
		}
	}
	p.mu.Unlock()

	if randomize {
		rand.Shuffle(len(trials), func(i, j int) {
			trials[i], trials[j] = trials[j], trials[i]
		})
	}

	if err := p.saveSequence(participantID, trials); err != nil {
		return nil, err
	}
	return trials, nil
}

func (p *Protocol) saveSequence(participantID string, trials []Condition) error {
	data, err := json.MarshalIndent(trials, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trial sequence: %w", err)
	}
	name := filepath.Join(p.Dir, fmt.Sprintf("trial_sequence_%s.json", participantID))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("save trial sequence: %w", err)
	}
	return nil
}

// RecordResult appends a result and rewrites the session's results CSV.
func (p *Protocol) RecordResult(result Result) error {
	p.mu.Lock()
	p.results = append(p.results, result)
	results := make([]Result, len(p.results))
	copy(results, p.results)
	p.mu.Unlock()

	return p.saveResults(results)
}

// Results returns all recorded results.
func (p *Protocol) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}

func (p *Protocol) saveResults(results []Result) error {
	f, err := os.Create(filepath.Join(p.Dir, "trial_results.csv"))
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"result_id", "participant_id", "trial_id", "marker_id",
		"speed_policy", "travel_mode", "gaze_enabled", "description",
		"start_time", "end_time", "duration_seconds",
		"distance_traveled", "outcome", "notes",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.ID,
			r.ParticipantID,
			strconv.Itoa(r.Condition.TrialID),
			r.Condition.MarkerID,
			string(r.Condition.SpeedPolicy),
			r.Condition.TravelMode,
			strconv.FormatBool(r.Condition.GazeEnabled),
			r.Condition.Description,
			r.StartTime.Format(time.RFC3339),
			r.EndTime.Format(time.RFC3339),
			strconv.FormatFloat(r.Duration, 'f', 3, 64),
			strconv.FormatFloat(r.Distance, 'f', 3, 64),
			r.Outcome,
			r.Notes,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write result row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// SaveConfig writes the session's markers, conditions, and participants to
// study_config.json for later analysis.
func (p *Protocol) SaveConfig() error {
	p.mu.Lock()
	config := map[string]interface{}{
		"study_name":   p.Name,
		"session_id":   p.SessionID,
		"markers":      p.markers,
		"conditions":   p.conditions,
		"participants": p.participants,
	}
	p.mu.Unlock()

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("encode study config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.Dir, "study_config.json"), data, 0o644); err != nil {
		return fmt.Errorf("save study config: %w", err)
	}
	return nil
}
