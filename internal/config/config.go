// Package config loads the tool configuration: output placement, style
// defaults, and layout selection. Values the operator does not set fall
// back to the defaults and then to flag overrides in cmd.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"qrdrive/internal/layout"
)

type Config struct {
	OutputDir string `toml:"output_dir"`
	Preset    string `toml:"preset"`
	Strength  string `toml:"error_correction"`

	ChunkBytes     int  `toml:"chunk_bytes"`
	OverrideSafety bool `toml:"override_safety"`
	Compress       bool `toml:"compress"`

	FillColor    string `toml:"fill_color"`
	BackColor    string `toml:"back_color"`
	PixelDensity int    `toml:"pixel_density"`

	Layout LayoutOverrides `toml:"layout"`
}

// LayoutOverrides replace individual fields of the expanded preset. Zero
// values leave the preset value in place.
type LayoutOverrides struct {
	PageWidth      float64 `toml:"page_width"`
	PageHeight     float64 `toml:"page_height"`
	MarginTop      float64 `toml:"margin_top"`
	MarginBottom   float64 `toml:"margin_bottom"`
	MarginLeft     float64 `toml:"margin_left"`
	MarginRight    float64 `toml:"margin_right"`
	MarginInterior float64 `toml:"margin_interior"`
	Columns        int     `toml:"columns"`
	Rows           int     `toml:"rows"`
	BorderModules  int     `toml:"border_modules"`
	TextSide       string  `toml:"text_side"`
	TextShare      float64 `toml:"text_share"`
}

func Default() Config {
	return Config{
		Preset:       layout.PresetPNG,
		Strength:     "L",
		FillColor:    "black",
		BackColor:    "white",
		PixelDensity: 10,
	}
}

// Load reads a TOML config over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := layout.ParseStrength(c.Strength); err != nil {
		return err
	}
	if c.ChunkBytes < 0 {
		return fmt.Errorf("config: chunk_bytes must be non-negative, got %d", c.ChunkBytes)
	}
	if c.PixelDensity < 0 {
		return fmt.Errorf("config: pixel_density must be non-negative, got %d", c.PixelDensity)
	}
	switch c.Layout.TextSide {
	case "", "none", "right", "bottom":
	default:
		return fmt.Errorf("config: text_side must be none, right or bottom, got %q", c.Layout.TextSide)
	}
	return nil
}

// Plan expands the configured preset and applies the layout overrides.
func (c Config) Plan() (layout.Plan, error) {
	strength, err := layout.ParseStrength(c.Strength)
	if err != nil {
		return layout.Plan{}, err
	}
	plan, err := layout.Expand(c.Preset, strength)
	if err != nil {
		return layout.Plan{}, err
	}

	o := c.Layout
	if o.PageWidth > 0 {
		plan.PageWidth = o.PageWidth
	}
	if o.PageHeight > 0 {
		plan.PageHeight = o.PageHeight
	}
	if o.MarginTop > 0 {
		plan.MarginTop = o.MarginTop
	}
	if o.MarginBottom > 0 {
		plan.MarginBottom = o.MarginBottom
	}
	if o.MarginLeft > 0 {
		plan.MarginLeft = o.MarginLeft
	}
	if o.MarginRight > 0 {
		plan.MarginRight = o.MarginRight
	}
	if o.MarginInterior > 0 {
		plan.MarginInterior = o.MarginInterior
	}
	if o.Columns > 0 {
		plan.Columns = o.Columns
	}
	if o.Rows > 0 {
		plan.Rows = o.Rows
	}
	if o.BorderModules > 0 {
		plan.BorderModules = o.BorderModules
	}
	if c.PixelDensity > 0 {
		plan.PixelDensity = c.PixelDensity
	}
	switch o.TextSide {
	case "right":
		plan.TextSide = layout.TextRight
	case "bottom":
		plan.TextSide = layout.TextBottom
	}
	if o.TextShare > 0 {
		plan.TextShare = o.TextShare
	}
	return plan, nil
}
