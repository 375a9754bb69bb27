package renderer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GuidePolicy selects how the path guide participates in a frame.
type GuidePolicy string

const (
	// No guiding; every pass samples materials only.
	GuidePolicyOff GuidePolicy = "off"

	// Train the guide on the early samples and mix it into bounce
	// sampling as soon as the first refinement lands.
	GuidePolicyOn GuidePolicy = "on"

	// Train the guide on the early samples but defer sampling it until
	// training has frozen, so the measured portion of the frame runs on
	// a single fixed model.
	GuidePolicyFrozen GuidePolicy = "frozen"
)

// Duration wraps time.Duration so preset files can spell budgets as "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type Options struct {
	// Frame dims.
	FrameW uint32 `yaml:"width"`
	FrameH uint32 `yaml:"height"`

	// Number of indirect bounces.
	NumBounces uint32 `yaml:"bounces"`

	// Number of samples accumulated into the frame. Zero keeps sampling
	// until the wall clock budget expires.
	SamplesPerPixel uint32 `yaml:"spp"`

	// Exposure for tonemapping. Zero selects the default of 1.
	Exposure float32 `yaml:"exposure"`

	// Path guide policy for the frame.
	Guide GuidePolicy `yaml:"guide"`

	// Portion of the sample and wall clock budgets spent training the
	// guide. Zero selects the default of 0.15.
	TrainPortion float32 `yaml:"train_portion"`

	// Hard wall clock budget for the frame. Zero disables the budget.
	WallClockBudget Duration `yaml:"time_budget"`
}

// Overlay a yaml preset file on the receiver. Fields absent from the
// preset keep their current values.
func (o *Options) LoadPreset(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return fmt.Errorf("renderer: parsing preset %s: %v", path, err)
	}
	return nil
}

// Check the options for inconsistencies.
func (o *Options) Validate() error {
	if o.FrameW == 0 || o.FrameH == 0 {
		return fmt.Errorf("%w: frame dimensions must be positive", ErrInvalidOptions)
	}
	if o.SamplesPerPixel == 0 && o.WallClockBudget == 0 {
		return fmt.Errorf("%w: need a sample count or a wall clock budget", ErrInvalidOptions)
	}
	if o.TrainPortion < 0 || o.TrainPortion >= 1 {
		return fmt.Errorf("%w: train portion must lie in [0, 1)", ErrInvalidOptions)
	}
	switch o.Guide {
	case "", GuidePolicyOff, GuidePolicyOn, GuidePolicyFrozen:
	default:
		return fmt.Errorf("%w: unknown guide policy %q", ErrInvalidOptions, o.Guide)
	}
	return nil
}
