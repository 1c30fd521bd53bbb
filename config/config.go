// Public domain.

// Package config defines run configuration with fail-fast validation.
package config

import (
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/soniakeys/unit"
	"github.com/spf13/viper"
)

// ErrConfiguration marks an invalid configuration.  Fatal: the run
// aborts before any processing.
var ErrConfiguration = errors.New("invalid configuration")

// Config holds the recognized run options.  Zero values are not usable;
// start from Default.
type Config struct {
	// Scan session bounds.
	NominalRadiusArcmin float64 `mapstructure:"nominal_radius_arcmin"`
	GrowthFactor        float64 `mapstructure:"growth_factor"`
	MaxRadiusArcmin     float64 `mapstructure:"max_radius_arcmin"`
	MaxExpansions       int     `mapstructure:"max_expansions"`
	MinRefStars         int     `mapstructure:"min_ref_stars"`

	// Filtering and scoring.
	NoiseSensitivity    float64 `mapstructure:"noise_sensitivity"`
	MinEpochs           int     `mapstructure:"min_epochs"`
	CatalogMarginArcmin float64 `mapstructure:"catalog_margin_arcmin"`
	BackgroundSigmaPx   float64 `mapstructure:"background_sigma_px"`
	PromoteFactor       float64 `mapstructure:"promote_factor"`
	MinDisplacementPx   float64 `mapstructure:"min_displacement_px"`

	// Run shape.
	Workers     int    `mapstructure:"workers"`
	Attribution string `mapstructure:"attribution"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		NominalRadiusArcmin: 4,
		GrowthFactor:        2,
		MaxRadiusArcmin:     32,
		MaxExpansions:       8,
		MinRefStars:         3,
		NoiseSensitivity:    5,
		MinEpochs:           2,
		CatalogMarginArcmin: 1,
		BackgroundSigmaPx:   15,
		PromoteFactor:       3,
		MinDisplacementPx:   1.5,
		Workers:             runtime.GOMAXPROCS(0),
	}
}

// Load reads a YAML configuration file over the defaults.  Environment
// variables prefixed VACUUMSCAN_ override both.  An empty path returns
// the validated defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("vacuumscan")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// every option must be registered for env overrides to reach
	// Unmarshal
	d := Default()
	v.SetDefault("nominal_radius_arcmin", d.NominalRadiusArcmin)
	v.SetDefault("growth_factor", d.GrowthFactor)
	v.SetDefault("max_radius_arcmin", d.MaxRadiusArcmin)
	v.SetDefault("max_expansions", d.MaxExpansions)
	v.SetDefault("min_ref_stars", d.MinRefStars)
	v.SetDefault("noise_sensitivity", d.NoiseSensitivity)
	v.SetDefault("min_epochs", d.MinEpochs)
	v.SetDefault("catalog_margin_arcmin", d.CatalogMarginArcmin)
	v.SetDefault("background_sigma_px", d.BackgroundSigmaPx)
	v.SetDefault("promote_factor", d.PromoteFactor)
	v.SetDefault("min_displacement_px", d.MinDisplacementPx)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("attribution", d.Attribution)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "config"), ErrConfiguration)
		}
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "config"), ErrConfiguration)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects option combinations that could cause non-termination
// or meaningless output.
func (c *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
	}
	switch {
	case c.NominalRadiusArcmin <= 0:
		return fail("nominal radius must be positive, got %g", c.NominalRadiusArcmin)
	case c.GrowthFactor <= 1:
		return fail("growth factor must exceed 1, got %g", c.GrowthFactor)
	case c.MaxRadiusArcmin < c.NominalRadiusArcmin:
		return fail("max radius %g below nominal radius %g",
			c.MaxRadiusArcmin, c.NominalRadiusArcmin)
	case c.MaxExpansions < 1:
		return fail("max expansions must be at least 1, got %d", c.MaxExpansions)
	case c.MinRefStars < 1:
		return fail("min ref stars must be at least 1, got %d", c.MinRefStars)
	case c.NoiseSensitivity <= 0:
		return fail("noise sensitivity must be positive, got %g", c.NoiseSensitivity)
	case c.MinEpochs < 2:
		return fail("min epochs must be at least 2, got %d", c.MinEpochs)
	case c.CatalogMarginArcmin < 0:
		return fail("catalog margin must not be negative, got %g", c.CatalogMarginArcmin)
	case c.BackgroundSigmaPx < 0:
		return fail("background sigma must not be negative, got %g", c.BackgroundSigmaPx)
	case c.PromoteFactor < 1:
		return fail("promote factor must be at least 1, got %g", c.PromoteFactor)
	case c.MinDisplacementPx <= 0:
		return fail("min displacement must be positive, got %g", c.MinDisplacementPx)
	case c.Workers < 1:
		return fail("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// NominalRadius returns the nominal scan radius as an angle.
func (c *Config) NominalRadius() unit.Angle {
	return unit.AngleFromMin(c.NominalRadiusArcmin)
}

// MaxRadius returns the maximum scan radius as an angle.
func (c *Config) MaxRadius() unit.Angle {
	return unit.AngleFromMin(c.MaxRadiusArcmin)
}

// CatalogMargin returns the catalog query margin as an angle.
func (c *Config) CatalogMargin() unit.Angle {
	return unit.AngleFromMin(c.CatalogMarginArcmin)
}
