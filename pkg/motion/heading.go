package motion

// HeadingController is a proportional yaw regulator with saturation. The
// error is wrapped to (-pi, pi] so a heading crossing the +-pi boundary is
// corrected the short way around.
type HeadingController struct {
	Gain       float64 // proportional gain
	MaxAngular float64 // correction clamp in rad/s
}

// Correction returns the bounded angular velocity driving current toward
// target, plus the (already attenuated) gaze bias in radians. The bias is
// added after the proportional term and the sum is clamped again so gaze
// can never push the command past the angular speed limit.
func (h HeadingController) Correction(current, target, gazeBias float64) float64 {
	err := WrapAngle(target - current)
	corr := clamp(err*h.Gain, -h.MaxAngular, h.MaxAngular)
	return clamp(corr+gazeBias, -h.MaxAngular, h.MaxAngular)
}
