package motion

import (
	"math"
	"testing"
	"time"
)

func TestGazePolicy_DisabledIsZero(t *testing.T) {
	g := GazePolicy{AmplitudeDeg: 15.0, Rate: 0.5}

	for _, sec := range []float64{0, 1, 2, 7.3} {
		if got := g.Angle(false, time.Duration(sec*float64(time.Second))); got != 0 {
			t.Errorf("disabled gaze at t=%vs: got %v, want 0", sec, got)
		}
	}
}

func TestGazePolicy_EnabledMatchesSine(t *testing.T) {
	g := GazePolicy{AmplitudeDeg: 15.0, Rate: 0.5}

	for _, sec := range []float64{0, 1, 2} {
		want := 15.0 * math.Sin(0.5*sec)
		got := g.Angle(true, time.Duration(sec*float64(time.Second)))
		if !floatEquals(got, want) {
			t.Errorf("gaze at t=%vs: got %v, want %v", sec, got, want)
		}
	}
}
