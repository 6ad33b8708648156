// Package degradation simulates harsh capture conditions on video frames:
// low light, fog, motion blur, dust on the lens and sensor noise.
package degradation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gocv.io/x/gocv"

	"harshcond-go/internal/config"
	"harshcond-go/internal/models"
)

// Params holds the filter intensities applied by the Pipeline.
type Params struct {
	BrightnessAlpha float64
	BrightnessBeta  float64
	FogIntensity    float64
	BlurKernel      int
	DustSpots       int
	DustRadius      int
	NoiseSigma      float64
}

// DefaultParams simulates a harsh industrial visual environment.
func DefaultParams() Params {
	return Params{
		BrightnessAlpha: 0.7,
		BrightnessBeta:  -30,
		FogIntensity:    0.35,
		BlurKernel:      13,
		DustSpots:       60,
		DustRadius:      7,
		NoiseSigma:      15,
	}
}

// ParamsFromConfig reads the filter intensities from cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		BrightnessAlpha: cfg.BrightnessAlpha,
		BrightnessBeta:  cfg.BrightnessBeta,
		FogIntensity:    cfg.FogIntensity,
		BlurKernel:      cfg.BlurKernel,
		DustSpots:       cfg.DustSpots,
		DustRadius:      cfg.DustRadius,
		NoiseSigma:      cfg.NoiseSigma,
	}
}

func (p Params) Validate() error {
	var errs []error
	if p.BrightnessAlpha < 0 {
		errs = append(errs, fmt.Errorf("brightness alpha must be >= 0, got %v", p.BrightnessAlpha))
	}
	if p.FogIntensity < 0 || p.FogIntensity > 1 {
		errs = append(errs, fmt.Errorf("fog intensity must be in [0,1], got %v", p.FogIntensity))
	}
	if p.BlurKernel < 0 {
		errs = append(errs, fmt.Errorf("blur kernel must be >= 0, got %d", p.BlurKernel))
	}
	if p.DustSpots < 0 {
		errs = append(errs, fmt.Errorf("dust spots must be >= 0, got %d", p.DustSpots))
	}
	if p.NoiseSigma < 0 {
		errs = append(errs, fmt.Errorf("noise sigma must be >= 0, got %v", p.NoiseSigma))
	}
	return errors.Join(errs...)
}

// NewRand returns a seeded random source. A zero seed seeds from the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Pipeline applies the fixed filter sequence to frames. It keeps scratch
// buffers between frames and is not safe for concurrent use.
type Pipeline struct {
	params Params
	rng    *rand.Rand

	a gocv.Mat
	b gocv.Mat
}

func NewPipeline(params Params, rng *rand.Rand) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid degradation params: %w", err)
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &Pipeline{
		params: params,
		rng:    rng,
		a:      gocv.NewMat(),
		b:      gocv.NewMat(),
	}, nil
}

// Apply degrades src into dst. dst has the same size and type as src.
func (p *Pipeline) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return fmt.Errorf("degradation: %w", models.ErrEmptyFrame)
	}

	// 1) Reduce brightness / contrast
	ReduceBrightness(src, &p.a, p.params.BrightnessAlpha, p.params.BrightnessBeta)

	// 2) Add fog/haze
	AddFog(p.a, &p.b, p.params.FogIntensity)

	// 3) Add motion blur
	AddMotionBlur(p.b, &p.a, p.params.BlurKernel)

	// 4) Add dust spots
	AddDustSpots(p.a, &p.b, p.params.DustSpots, p.params.DustRadius, p.rng)

	// 5) Add sensor noise
	return AddGaussianNoise(p.b, dst, p.params.NoiseSigma, p.rng)
}

func (p *Pipeline) Close() error {
	p.a.Close()
	p.b.Close()
	return nil
}
