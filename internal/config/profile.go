// Package config loads the per-deployment acquisition profile: device names,
// serial line settings and processing defaults. Profiles select between
// testing and deployment hardware; the selected values are passed into
// constructors explicitly, never held as process-wide state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raman-lab/autoraman/internal/shutterlink"
)

// Profile is the root configuration. Fields are pointers so a partial JSON
// file only overrides what it mentions; the Get* accessors supply defaults
// for the rest.
type Profile struct {
	// Hardware selection
	SpectrometerName     *string `json:"spectrometer_name,omitempty"`
	ShutterPortPath      *string `json:"shutter_port_path,omitempty"`
	SimulateSpectrometer *bool   `json:"simulate_spectrometer,omitempty"`
	SimulateShutter      *bool   `json:"simulate_shutter,omitempty"`

	// Serial line settings for the shutter controller
	ShutterPort *shutterlink.PortOptions `json:"shutter_port,omitempty"`

	// Command handling
	ShutterTimeout *string `json:"shutter_timeout,omitempty"` // duration string like "5s"
	CommandRetries *int    `json:"command_retries,omitempty"`
	CaptureRetries *int    `json:"capture_retries,omitempty"`

	// Processing defaults. The median filter is off unless apply_median_filter
	// is set; kernel_size then selects its width.
	ApplyMedianFilter    *bool    `json:"apply_median_filter,omitempty"`
	KernelSize           *int     `json:"kernel_size,omitempty"`
	ReverseX             *bool    `json:"reverse_x,omitempty"`
	FitOrder             *int     `json:"fit_order,omitempty"`
	ExcitationWavelength *float64 `json:"excitation_wavelength_nm,omitempty"`
}

// Defaults.
const (
	DefaultSpectrometerName = "OpenRAMAN"
	DefaultShutterPortPath  = "/dev/ttyACM0"
	DefaultShutterTimeout   = 5 * time.Second
	DefaultCommandRetries   = 3
	DefaultCaptureRetries   = 3
	DefaultKernelSize       = 5
	DefaultFitOrder         = 1
	DefaultExcitationNm     = 532.0
)

// DefaultProfile returns a Profile with every field unset, so all accessors
// fall back to the documented defaults.
func DefaultProfile() *Profile {
	return &Profile{}
}

// Load reads a profile from a JSON file. Fields omitted from the file retain
// their defaults, so partial profiles are safe.
func Load(path string) (*Profile, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("profile file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat profile: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("profile too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p := DefaultProfile()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// Validate rejects values that cannot possibly be right.
func (p *Profile) Validate() error {
	if p.ShutterTimeout != nil {
		d, err := time.ParseDuration(*p.ShutterTimeout)
		if err != nil {
			return fmt.Errorf("bad shutter_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("shutter_timeout must be positive, got %s", d)
		}
	}
	if p.CommandRetries != nil && *p.CommandRetries < 0 {
		return fmt.Errorf("command_retries must be non-negative, got %d", *p.CommandRetries)
	}
	if p.CaptureRetries != nil && *p.CaptureRetries < 0 {
		return fmt.Errorf("capture_retries must be non-negative, got %d", *p.CaptureRetries)
	}
	if p.KernelSize != nil && (*p.KernelSize < 0 || *p.KernelSize%2 == 0 && *p.KernelSize != 0) {
		return fmt.Errorf("kernel_size must be odd and non-negative, got %d", *p.KernelSize)
	}
	if p.FitOrder != nil && *p.FitOrder < 1 {
		return fmt.Errorf("fit_order must be at least 1, got %d", *p.FitOrder)
	}
	if p.ExcitationWavelength != nil && *p.ExcitationWavelength <= 0 {
		return fmt.Errorf("excitation_wavelength_nm must be positive, got %g", *p.ExcitationWavelength)
	}
	if p.ShutterPort != nil {
		if _, err := p.ShutterPort.Normalize(); err != nil {
			return fmt.Errorf("bad shutter_port: %w", err)
		}
	}
	return nil
}

func (p *Profile) GetSpectrometerName() string {
	if p.SpectrometerName != nil {
		return *p.SpectrometerName
	}
	return DefaultSpectrometerName
}

func (p *Profile) GetShutterPortPath() string {
	if p.ShutterPortPath != nil {
		return *p.ShutterPortPath
	}
	return DefaultShutterPortPath
}

func (p *Profile) GetSimulateSpectrometer() bool {
	return p.SimulateSpectrometer != nil && *p.SimulateSpectrometer
}

func (p *Profile) GetSimulateShutter() bool {
	return p.SimulateShutter != nil && *p.SimulateShutter
}

func (p *Profile) GetShutterPort() shutterlink.PortOptions {
	if p.ShutterPort != nil {
		return *p.ShutterPort
	}
	return shutterlink.PortOptions{}
}

func (p *Profile) GetShutterTimeout() time.Duration {
	if p.ShutterTimeout != nil {
		if d, err := time.ParseDuration(*p.ShutterTimeout); err == nil {
			return d
		}
	}
	return DefaultShutterTimeout
}

func (p *Profile) GetCommandRetries() int {
	if p.CommandRetries != nil {
		return *p.CommandRetries
	}
	return DefaultCommandRetries
}

func (p *Profile) GetCaptureRetries() int {
	if p.CaptureRetries != nil {
		return *p.CaptureRetries
	}
	return DefaultCaptureRetries
}

func (p *Profile) GetApplyMedianFilter() bool {
	return p.ApplyMedianFilter != nil && *p.ApplyMedianFilter
}

// GetKernelSize returns the median filter width used when the filter is
// enabled; GetApplyMedianFilter gates whether it runs at all.
func (p *Profile) GetKernelSize() int {
	if p.KernelSize != nil {
		return *p.KernelSize
	}
	return DefaultKernelSize
}

func (p *Profile) GetReverseX() bool {
	return p.ReverseX != nil && *p.ReverseX
}

func (p *Profile) GetFitOrder() int {
	if p.FitOrder != nil {
		return *p.FitOrder
	}
	return DefaultFitOrder
}

func (p *Profile) GetExcitationWavelength() float64 {
	if p.ExcitationWavelength != nil {
		return *p.ExcitationWavelength
	}
	return DefaultExcitationNm
}
