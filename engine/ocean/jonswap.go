package ocean

import "math"

// JONSWAPAlpha returns the JONSWAP spectral scale factor 0.076·(U²/(F·g))^0.22.
//
// Parameters:
//   - windSpeed: wind speed U in m/s
//   - fetch: fetch length F in meters
//   - g: gravitational acceleration
//
// Returns:
//   - float64: the dimensionless scale factor α
func JONSWAPAlpha(windSpeed, fetch, g float64) float64 {
	return 0.076 * math.Pow(windSpeed*windSpeed/(fetch*g), 0.22)
}

// JONSWAPPeakAngularFrequency returns the spectral peak 22·(g²/(U·F))^(1/3) in rad/s.
//
// Parameters:
//   - windSpeed: wind speed U in m/s
//   - fetch: fetch length F in meters
//   - g: gravitational acceleration
//
// Returns:
//   - float64: the peak angular frequency ωp
func JONSWAPPeakAngularFrequency(windSpeed, fetch, g float64) float64 {
	return 22 * math.Cbrt(g*g/(windSpeed*fetch))
}

// JONSWAP evaluates the JONSWAP frequency spectrum at angular frequency omega.
// Cells far below the peak (ωp/ω > 5) return 0 so that float32 kernels never overflow.
//
// Parameters:
//   - omega: angular frequency ω > 0
//   - alpha: scale factor from JONSWAPAlpha
//   - peak: ωp from JONSWAPPeakAngularFrequency
//   - gamma: peak enhancement factor
//   - g: gravitational acceleration
//
// Returns:
//   - float64: the spectral density S(ω)
func JONSWAP(omega, alpha, peak, gamma, g float64) float64 {
	if omega <= 0 || peak/omega > 5 {
		return 0
	}
	sigma := 0.07
	if omega > peak {
		sigma = 0.09
	}
	d := omega - peak
	r := math.Exp(-d * d / (2 * sigma * sigma * peak * peak))
	ratio := peak / omega
	return alpha * g * g / math.Pow(omega, 5) * math.Exp(-1.25*ratio*ratio*ratio*ratio) * math.Pow(gamma, r)
}

// TMACorrection returns the Kitaigorodskii depth attenuation applied to a deep-water spectrum.
// A depth <= 0 means deep water and yields 1.
//
// Parameters:
//   - omega: angular frequency
//   - depth: water depth in meters
//   - g: gravitational acceleration
//
// Returns:
//   - float64: the attenuation factor in [0, 1]
func TMACorrection(omega, depth, g float64) float64 {
	if depth <= 0 {
		return 1
	}
	wh := omega * math.Sqrt(depth/g)
	switch {
	case wh <= 1:
		return 0.5 * wh * wh
	case wh < 2:
		return 1 - 0.5*(2-wh)*(2-wh)
	default:
		return 1
	}
}

// SpreadNormalization returns Q(s) = Γ(s+1)/(2√π·Γ(s+½)), which normalizes the directional
// spreading Q(s)·|cos(θ/2)|^{2s} to integrate to 1 over (-π, π].
func SpreadNormalization(s float64) float64 {
	return math.Gamma(s+1) / (2 * math.Sqrt(math.Pi) * math.Gamma(s+0.5))
}

// DirectionalSpread evaluates Q(s)·|cos(θ/2)|^{2s} for a wave travelling at theta radians
// from the wind direction.
func DirectionalSpread(theta, s float64) float64 {
	return SpreadNormalization(s) * math.Pow(math.Abs(math.Cos(theta/2)), 2*s)
}
