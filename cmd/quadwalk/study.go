package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/walklab/go-quadwalk/pkg/motion"
	"github.com/walklab/go-quadwalk/pkg/study"
)

// studySession drives the trial protocol from the console. The session
// directory is created lazily on the first "study begin".
type studySession struct {
	name    string
	baseDir string
	sup     *motion.Supervisor

	protocol    *study.Protocol
	runner      *study.TrialRunner
	participant string
	trials      []study.Condition
	index       int
}

func (s *studySession) command(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: study begin <participant> | next | skip | progress")
		return
	}

	switch strings.ToLower(args[0]) {
	case "begin":
		if len(args) < 2 {
			fmt.Println("usage: study begin <participant>")
			return
		}
		s.begin(args[1])

	case "next":
		s.next(ctx)

	case "skip":
		if !s.active() {
			return
		}
		if s.index < len(s.trials) {
			fmt.Printf("skipped trial %d\n", s.trials[s.index].TrialID)
			s.index++
		}

	case "progress":
		s.progress()

	default:
		fmt.Println("unknown study command:", args[0])
	}
}

func (s *studySession) begin(participantID string) {
	if s.protocol == nil {
		protocol, err := study.NewProtocol(s.name, s.baseDir)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		s.protocol = protocol
		s.runner = study.NewTrialRunner(protocol, s.sup)
	}

	s.protocol.AddParticipant(study.Participant{ID: participantID})
	trials, err := s.protocol.Sequence(participantID, true)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if err := s.protocol.SaveConfig(); err != nil {
		fmt.Println("error:", err)
		return
	}

	s.participant = participantID
	s.trials = trials
	s.index = 0
	fmt.Printf("participant %s ready, %d trials, data in %s\n",
		participantID, len(trials), s.protocol.Dir)
}

func (s *studySession) next(ctx context.Context) {
	if !s.active() {
		return
	}
	if s.index >= len(s.trials) {
		fmt.Println("all trials completed")
		return
	}

	trial := s.trials[s.index]
	fmt.Printf("trial %d/%d: %s (policy=%s mode=%s gaze=%v)\n",
		s.index+1, len(s.trials), trial.Description,
		trial.SpeedPolicy, trial.TravelMode, trial.GazeEnabled)
	if marker, ok := s.protocol.Marker(trial.MarkerID); ok {
		fmt.Printf("marker %s: %.1fm from path, %.1fm along it\n",
			marker.ID, marker.DistanceFromPath, marker.PositionAlongPath)
	}

	result, err := s.runner.Run(ctx, s.participant, trial)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	s.index++
	fmt.Printf("trial done: %s, %.2fm in %.1fs\n",
		result.Outcome, result.Distance, result.Duration)
}

func (s *studySession) progress() {
	if !s.active() {
		return
	}
	fmt.Printf("participant %s: %d/%d trials\n", s.participant, s.index, len(s.trials))
	if s.index < len(s.trials) {
		fmt.Println("next:", s.trials[s.index].Description)
	}
}

func (s *studySession) active() bool {
	if s.protocol == nil || s.participant == "" {
		fmt.Println("no active participant, use: study begin <participant>")
		return false
	}
	return true
}
