// Package layout models the physical geometry of a printed code sheet and
// computes how many payload bytes a single code can carry while staying
// legible to a scanner.
//
// Ownership boundary:
// - page geometry and named presets
// - error-correction strength and the capacity table
// - the safe chunk-size ceiling
//
// Layout does not render anything.
package layout

import (
	"errors"
	"fmt"
	"strings"
)

// Strength selects the error-correction level of a code.
type Strength int

const (
	StrengthL Strength = iota
	StrengthM
	StrengthQ
	StrengthH
)

var ErrUnknownStrength = errors.New("layout: unknown error-correction strength")

func (s Strength) String() string {
	switch s {
	case StrengthL:
		return "L"
	case StrengthM:
		return "M"
	case StrengthQ:
		return "Q"
	case StrengthH:
		return "H"
	default:
		return fmt.Sprintf("Strength(%d)", int(s))
	}
}

func ParseStrength(raw string) (Strength, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "L", "LOW":
		return StrengthL, nil
	case "M", "MEDIUM":
		return StrengthM, nil
	case "Q", "QUARTILE":
		return StrengthQ, nil
	case "H", "HIGH":
		return StrengthH, nil
	default:
		return StrengthL, fmt.Errorf("%w: %q", ErrUnknownStrength, raw)
	}
}

// TextSide places an inline text rendering of the frame beside its code
// within the cell. The reserved share of the cell is unavailable to the code.
type TextSide int

const (
	TextNone TextSide = iota
	TextRight
	TextBottom
)

// Plan describes the physical constraints of one output request.
// All lengths are in inches. A Plan with zero Columns or Rows (or no page
// geometry) is unconstrained: standalone image output with no page to fit.
type Plan struct {
	PageWidth  float64
	PageHeight float64

	MarginTop      float64
	MarginBottom   float64
	MarginLeft     float64
	MarginRight    float64
	MarginInterior float64

	Columns int
	Rows    int

	// BorderModules is the quiet-zone width around the code, in modules.
	BorderModules int
	// PixelDensity is the rendered width of one module, in pixels. It is
	// carried through to the rendering collaborator untouched.
	PixelDensity int

	Strength Strength

	TextSide  TextSide
	TextShare float64
}

// Unconstrained reports whether the plan carries no page geometry to fit
// codes into, in which case only the format capacity bounds the chunk size.
func (p Plan) Unconstrained() bool {
	return p.Columns <= 0 || p.Rows <= 0 || p.PageWidth <= 0 || p.PageHeight <= 0
}

var (
	ErrBadGeometry   = errors.New("layout: invalid page geometry")
	ErrBadTextShare  = errors.New("layout: text share must be in [0, 1)")
	ErrUnknownPreset = errors.New("layout: unknown preset")
)

func (p Plan) Validate() error {
	if p.BorderModules < 0 {
		return fmt.Errorf("%w: negative border", ErrBadGeometry)
	}
	if p.TextShare < 0 || p.TextShare >= 1 {
		return ErrBadTextShare
	}
	if p.Unconstrained() {
		return nil
	}
	for _, m := range []float64{p.MarginTop, p.MarginBottom, p.MarginLeft, p.MarginRight, p.MarginInterior} {
		if m < 0 {
			return fmt.Errorf("%w: negative margin", ErrBadGeometry)
		}
	}
	if p.drawableWidth() <= 0 || p.drawableHeight() <= 0 {
		return fmt.Errorf("%w: margins exceed page %gx%g", ErrBadGeometry, p.PageWidth, p.PageHeight)
	}
	return nil
}

func (p Plan) drawableWidth() float64 {
	return p.PageWidth - p.MarginLeft - p.MarginRight - float64(p.Columns-1)*p.MarginInterior
}

func (p Plan) drawableHeight() float64 {
	return p.PageHeight - p.MarginTop - p.MarginBottom - float64(p.Rows-1)*p.MarginInterior
}

// Preset names accepted by Expand.
const (
	PresetPNG         = "png"
	PresetLetter      = "letter"
	PresetIndexCard   = "index_card"
	PresetPlayingCard = "playing_card"
)

// Expand resolves a preset name into concrete geometry. The planner never
// sees the name; presets are sugar expanded here and nowhere else.
func Expand(name string, strength Strength) (Plan, error) {
	base := Plan{
		BorderModules: 4,
		PixelDensity:  10,
		Strength:      strength,
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetPNG, "":
		return base, nil
	case PresetLetter:
		base.PageWidth, base.PageHeight = 8.5, 11
		base.MarginTop, base.MarginBottom = 0.5, 0.5
		base.MarginLeft, base.MarginRight = 0.5, 0.5
		base.MarginInterior = 0.5
		base.Columns, base.Rows = 2, 2
		return base, nil
	case PresetIndexCard, "index":
		base.PageWidth, base.PageHeight = 3, 5
		base.MarginTop, base.MarginBottom = 0.25, 0.25
		base.MarginLeft, base.MarginRight = 0.25, 0.25
		base.Columns, base.Rows = 1, 1
		return base, nil
	case PresetPlayingCard:
		base.PageWidth, base.PageHeight = 2.5, 3.5
		base.MarginTop, base.MarginBottom = 0.25, 0.25
		base.MarginLeft, base.MarginRight = 0.25, 0.25
		base.Columns, base.Rows = 1, 1
		return base, nil
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}
