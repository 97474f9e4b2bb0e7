package motion

import (
	"errors"
	"math"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func testProfile() SpeedProfile {
	return SpeedProfile{
		PathLength: 15.0,
		StepBreak:  8.0,
		PauseEnd:   8.5,
		MaxSpeed:   3.5,
	}
}

func TestSpeedProfile_Bounds(t *testing.T) {
	p := testProfile()
	for _, policy := range Policies {
		for d := -1.0; d <= 16.0; d += 0.05 {
			v := p.Evaluate(policy, d)
			if v < 0 || v > 3.0 {
				t.Fatalf("%s at d=%.2f: speed %v outside [0, 3.0]", policy, d, v)
			}
		}
	}
}

func TestSpeedProfile_Ramps(t *testing.T) {
	p := testProfile()

	cases := []struct {
		policy Policy
		d      float64
		want   float64
	}{
		{PolicyRampUp, 0, 1.0},
		{PolicyRampUp, 7.5, 2.0},
		{PolicyRampUp, 15.0, 3.0},
		{PolicyRampDown, 0, 3.0},
		{PolicyRampDown, 7.5, 2.0},
		{PolicyRampDown, 15.0, 1.0},
	}
	for _, c := range cases {
		if got := p.Evaluate(c.policy, c.d); !floatEquals(got, c.want) {
			t.Errorf("%s at d=%v: got %v, want %v", c.policy, c.d, got, c.want)
		}
	}
}

func TestSpeedProfile_StepUpScenario(t *testing.T) {
	p := testProfile()

	distances := []float64{0, 4, 8.1, 15.0}
	want := []float64{1.0, 1.0, 3.0, 3.0}
	for i, d := range distances {
		if got := p.Evaluate(PolicyStepUpAtHalf, d); !floatEquals(got, want[i]) {
			t.Errorf("step_up_at_half at d=%v: got %v, want %v", d, got, want[i])
		}
	}
}

func TestSpeedProfile_PauseBreakpoints(t *testing.T) {
	p := testProfile()

	cases := []struct {
		policy Policy
		d      float64
		want   float64
	}{
		{PolicyPauseSlow, 7.99, 1.0},
		{PolicyPauseSlow, 8.0, 0.0},
		{PolicyPauseSlow, 8.49, 0.0},
		{PolicyPauseSlow, 8.5, 1.0},
		{PolicyPauseFast, 7.99, 3.0},
		{PolicyPauseFast, 8.0, 0.0},
		{PolicyPauseFast, 8.5, 3.0},
	}
	for _, c := range cases {
		if got := p.Evaluate(c.policy, c.d); !floatEquals(got, c.want) {
			t.Errorf("%s at d=%v: got %v, want %v", c.policy, c.d, got, c.want)
		}
	}
}

func TestSpeedProfile_StepDownUsesBreakpoint(t *testing.T) {
	p := testProfile()

	if got := p.Evaluate(PolicyStepDownAtHalf, 7.9); !floatEquals(got, 3.0) {
		t.Errorf("before breakpoint: got %v, want 3.0", got)
	}
	if got := p.Evaluate(PolicyStepDownAtHalf, 8.0); !floatEquals(got, 1.0) {
		t.Errorf("at breakpoint: got %v, want 1.0", got)
	}

	// Breakpoint is configurable, not a hardcoded ratio of path length.
	p.StepBreak = 5.0
	if got := p.Evaluate(PolicyStepDownAtHalf, 6.0); !floatEquals(got, 1.0) {
		t.Errorf("moved breakpoint: got %v, want 1.0", got)
	}
}

func TestSpeedProfile_ClampsOutputToMaxSpeed(t *testing.T) {
	p := testProfile()
	p.MaxSpeed = 2.0

	if got := p.Evaluate(PolicyStepUpAtHalf, 10.0); !floatEquals(got, 2.0) {
		t.Errorf("got %v, want clamp to 2.0", got)
	}
}

func TestSpeedProfile_ClampsDistance(t *testing.T) {
	p := testProfile()

	if got, want := p.Evaluate(PolicyRampUp, -5.0), p.Evaluate(PolicyRampUp, 0); !floatEquals(got, want) {
		t.Errorf("negative distance: got %v, want %v", got, want)
	}
	if got, want := p.Evaluate(PolicyRampUp, 100.0), p.Evaluate(PolicyRampUp, 15.0); !floatEquals(got, want) {
		t.Errorf("overshoot distance: got %v, want %v", got, want)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		if _, err := ParsePolicy(string(p)); err != nil {
			t.Errorf("ParsePolicy(%q): unexpected error %v", p, err)
		}
	}

	if _, err := ParsePolicy("teleport"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("ParsePolicy(teleport): got %v, want ErrUnknownPolicy", err)
	}
}
