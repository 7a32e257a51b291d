package acquire

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/raman-lab/autoraman/internal/spectrum"
)

// SimBand is one synthetic Gaussian emission band.
type SimBand struct {
	CentrePixel float64
	WidthPixels float64
	Height      float64
}

// SimCamera synthesizes spectrometer frames for runs without hardware: a
// fixed set of Gaussian bands on a flat baseline, plus per-frame noise so
// averaging visibly converges.
type SimCamera struct {
	// Pixels is the frame width. Defaults to 2048.
	Pixels int
	// Bands defaults to a small set spread across the frame.
	Bands []SimBand
	// Baseline is added to every pixel.
	Baseline float64
	// Noise is the amplitude of the uniform per-pixel noise.
	Noise float64
	// Exposure delays each capture, approximating integration time.
	Exposure time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimCamera returns a camera with default bands and reproducible noise.
func NewSimCamera(seed int64) *SimCamera {
	return &SimCamera{
		Pixels: 2048,
		Bands: []SimBand{
			{CentrePixel: 400, WidthPixels: 6, Height: 1.0},
			{CentrePixel: 900, WidthPixels: 8, Height: 0.6},
			{CentrePixel: 1500, WidthPixels: 5, Height: 0.8},
		},
		Baseline: 0.05,
		Noise:    0.01,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// CaptureOneFrame synthesizes one frame. It honors context cancellation
// during the simulated exposure.
func (c *SimCamera) CaptureOneFrame(ctx context.Context) (spectrum.Spectrum, error) {
	if c.Exposure > 0 {
		select {
		case <-time.After(c.Exposure):
		case <-ctx.Done():
			return spectrum.Spectrum{}, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return spectrum.Spectrum{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(1))
	}
	pixels := c.Pixels
	if pixels <= 0 {
		pixels = 2048
	}

	intens := make([]float64, pixels)
	for i := range intens {
		v := c.Baseline
		for _, b := range c.Bands {
			d := (float64(i) - b.CentrePixel) / b.WidthPixels
			v += b.Height * math.Exp(-0.5*d*d)
		}
		if c.Noise > 0 {
			v += (c.rng.Float64() - 0.5) * 2 * c.Noise
		}
		intens[i] = v
	}
	return spectrum.Spectrum{Intensities: intens}, nil
}
