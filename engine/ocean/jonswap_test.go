package ocean

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func closeTo(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}

func TestJONSWAPConstants(t *testing.T) {
	alpha := JONSWAPAlpha(20, 550000, 9.81)
	if !closeTo(alpha, 0.009380366716946217, 1e-12) {
		t.Errorf("JONSWAPAlpha = %v, want 0.0093804", alpha)
	}
	peak := JONSWAPPeakAngularFrequency(20, 550000, 9.81)
	if !closeTo(peak, 0.45331955874140006, 1e-12) {
		t.Errorf("JONSWAPPeakAngularFrequency = %v, want 0.45332", peak)
	}

	p := WaveParameters{WindSpeed: 20, FetchLength: 550000}
	if p.Alpha() != alpha || p.PeakAngularFrequency() != peak {
		t.Errorf("WaveParameters derived constants (%v, %v) differ from the free functions", p.Alpha(), p.PeakAngularFrequency())
	}
}

func TestJONSWAP(t *testing.T) {
	const g = 9.81
	alpha := JONSWAPAlpha(20, 550000, g)
	peak := JONSWAPPeakAngularFrequency(20, 550000, g)

	t.Run("peak value", func(t *testing.T) {
		got := JONSWAP(peak, alpha, peak, DefaultGamma, g)
		if !closeTo(got, 44.584241503713095, 1e-9) {
			t.Errorf("JONSWAP(ωp) = %v, want 44.584", got)
		}
	})

	t.Run("peak is the maximum", func(t *testing.T) {
		atPeak := JONSWAP(peak, alpha, peak, DefaultGamma, g)
		for _, f := range []float64{0.5, 0.8, 0.95, 1.05, 1.5, 3} {
			if v := JONSWAP(peak*f, alpha, peak, DefaultGamma, g); v >= atPeak {
				t.Errorf("JONSWAP(%v·ωp) = %v, not below the peak value %v", f, v, atPeak)
			}
		}
	})

	t.Run("gamma one is Pierson-Moskowitz", func(t *testing.T) {
		omega := 0.7
		want := alpha * g * g / math.Pow(omega, 5) * math.Exp(-1.25*math.Pow(peak/omega, 4))
		if got := JONSWAP(omega, alpha, peak, 1, g); !closeTo(got, want, 1e-12) {
			t.Errorf("JONSWAP with γ=1 = %v, want %v", got, want)
		}
	})

	t.Run("far below the peak is zero", func(t *testing.T) {
		for _, omega := range []float64{peak / 5.01, peak / 100, 0, -1} {
			if got := JONSWAP(omega, alpha, peak, DefaultGamma, g); got != 0 {
				t.Errorf("JONSWAP(%v) = %v, want 0", omega, got)
			}
		}
	})
}

func TestTMACorrection(t *testing.T) {
	const g = 9.81
	tests := []struct {
		name  string
		omega float64
		depth float64
		want  float64
	}{
		{name: "deep water", omega: 1, depth: 0, want: 1},
		{name: "negative depth treated as deep", omega: 1, depth: -3, want: 1},
		{name: "shallow branch", omega: 0.5, depth: g, want: 0.125},
		{name: "boundary at one", omega: 1, depth: g, want: 0.5},
		{name: "middle branch", omega: 1.5, depth: g, want: 0.875},
		{name: "saturated", omega: 3, depth: g, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TMACorrection(tt.omega, tt.depth, g); !closeTo(got, tt.want, 1e-12) {
				t.Errorf("TMACorrection(%v, %v) = %v, want %v", tt.omega, tt.depth, got, tt.want)
			}
		})
	}
}

func TestSpreadNormalization(t *testing.T) {
	if got := SpreadNormalization(1); !closeTo(got, 1/math.Pi, 1e-12) {
		t.Errorf("SpreadNormalization(1) = %v, want 1/π", got)
	}

	// Q(s)·|cos(θ/2)|^{2s} integrates to one over a full turn.
	for _, s := range []float64{1, 2.5, DefaultSpread, 20} {
		const steps = 20000
		h := 2 * math.Pi / steps
		sum := 0.0
		for i := range steps {
			theta := -math.Pi + (float64(i)+0.5)*h
			sum += DirectionalSpread(theta, s) * h
		}
		if !closeTo(sum, 1, 1e-6) {
			t.Errorf("spread s=%v integrates to %v, want 1", s, sum)
		}
	}

	if got := DirectionalSpread(math.Pi, DefaultSpread); got > 1e-12 {
		t.Errorf("DirectionalSpread against the wind = %v, want 0", got)
	}
}

func TestWaveParametersValidate(t *testing.T) {
	base := WaveParameters{WindSpeed: 20, FetchLength: 550000, TileLength: 50, GridSize: 16}

	tests := []struct {
		name    string
		mutate  func(p *WaveParameters)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *WaveParameters) {}},
		{name: "smallest grid", mutate: func(p *WaveParameters) { p.GridSize = 2 }},
		{name: "grid size one", mutate: func(p *WaveParameters) { p.GridSize = 1 }, wantErr: true},
		{name: "grid size zero", mutate: func(p *WaveParameters) { p.GridSize = 0 }, wantErr: true},
		{name: "grid not a power of two", mutate: func(p *WaveParameters) { p.GridSize = 24 }, wantErr: true},
		{name: "no wind", mutate: func(p *WaveParameters) { p.WindSpeed = 0 }, wantErr: true},
		{name: "negative fetch", mutate: func(p *WaveParameters) { p.FetchLength = -1 }, wantErr: true},
		{name: "zero tile", mutate: func(p *WaveParameters) { p.TileLength = 0 }, wantErr: true},
		{name: "negative gravity", mutate: func(p *WaveParameters) { p.Gravity = -9.81 }, wantErr: true},
		{name: "negative depth", mutate: func(p *WaveParameters) { p.Depth = -1 }, wantErr: true},
		{name: "gamma below one", mutate: func(p *WaveParameters) { p.Gamma = 0.5 }, wantErr: true},
		{name: "negative spread", mutate: func(p *WaveParameters) { p.Spread = -2 }, wantErr: true},
		{name: "NaN wind direction", mutate: func(p *WaveParameters) { p.WindDirection = math.NaN() }, wantErr: true},
		{name: "infinite tile", mutate: func(p *WaveParameters) { p.TileLength = math.Inf(1) }, wantErr: true},
		{name: "finite depth", mutate: func(p *WaveParameters) { p.Depth = 30 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Errorf("Validate() = %v, want ErrInvalidConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestWaveParametersExplicitChoppiness(t *testing.T) {
	p := DefaultWaveParameters()
	p.Choppiness = 0
	if got := p.WithDefaults().Choppiness; got != 0 {
		t.Errorf("WithDefaults() choppiness = %v, want 0", got)
	}
	if got := p.GPU().Choppiness; got != 0 {
		t.Errorf("GPU() choppiness = %v, want 0", got)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() with zero choppiness = %v", err)
	}
}

func TestWaveParametersFirstNonFinite(t *testing.T) {
	p := DefaultWaveParameters()
	p.WindDirection = math.NaN()
	p.Choppiness = math.Inf(1)
	p.Gamma = math.NaN()
	for range 20 {
		err := p.Validate()
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("Validate() = %v, want ErrInvalidConfiguration", err)
		}
		if !strings.Contains(err.Error(), "wind direction") {
			t.Fatalf("Validate() = %v, want the wind direction reported first", err)
		}
	}
}

func TestWaveParametersGPU(t *testing.T) {
	p := WaveParameters{WindSpeed: 20, FetchLength: 550000, TileLength: 50, GridSize: 64, Seed: [2]int32{-7, 9}}
	g := p.GPU()
	if g.GridSize != 64 || g.LogSize != 6 {
		t.Errorf("GPU() size = (%d, %d), want (64, 6)", g.GridSize, g.LogSize)
	}
	if g.Gravity != DefaultGravity || g.Gamma != DefaultGamma || g.Spread != DefaultSpread {
		t.Errorf("GPU() did not apply defaults: gravity %v gamma %v spread %v", g.Gravity, g.Gamma, g.Spread)
	}
	if g.Amplitude != 1 || g.HeightScale != 1 {
		t.Errorf("GPU() scales = (%v, %v), want ones", g.Amplitude, g.HeightScale)
	}
	if g.Choppiness != 0 {
		t.Errorf("GPU() choppiness = %v, want the explicit zero", g.Choppiness)
	}
	if d := DefaultWaveParameters().GPU(); d.Choppiness != 1 {
		t.Errorf("DefaultWaveParameters() choppiness = %v, want 1", d.Choppiness)
	}
	if g.Seed != p.Seed {
		t.Errorf("GPU() seed = %v, want %v", g.Seed, p.Seed)
	}
	if !closeTo(float64(g.SpreadNorm), SpreadNormalization(DefaultSpread), 1e-6) {
		t.Errorf("GPU() spread norm = %v", g.SpreadNorm)
	}

	if size := len(g.Marshal()); size != 80 {
		t.Errorf("OceanParams marshals to %d bytes, want 80", size)
	}
}
