package layout

import (
	"errors"
	"fmt"
	"math"
)

// MinModuleEdge is the legibility floor: the smallest physical module edge,
// in inches, a scanner is assumed to resolve reliably.
const MinModuleEdge = 0.02

// tier is one row of the fixed capacity table: a code version, its module
// edge count, and its binary byte capacity per error-correction strength.
type tier struct {
	version  int
	modules  int
	capacity [4]int // indexed by Strength: L, M, Q, H
}

// Capacity table, largest first. Versions step by 5; modules = 17 + 4*version.
var tiers = []tier{
	{40, 177, [4]int{2953, 2331, 1663, 1273}},
	{35, 157, [4]int{2303, 1809, 1283, 985}},
	{30, 137, [4]int{1732, 1370, 982, 742}},
	{25, 117, [4]int{1273, 997, 715, 535}},
	{20, 97, [4]int{858, 666, 482, 382}},
	{15, 77, [4]int{520, 412, 292, 220}},
	{10, 57, [4]int{271, 213, 151, 119}},
	{5, 37, [4]int{106, 84, 60, 46}},
}

// WarningKind classifies capacity-planning advisories.
type WarningKind int

const (
	WarnLegibilityRisk WarningKind = iota
	WarnByteSizeClamped
)

func (k WarningKind) String() string {
	switch k {
	case WarnLegibilityRisk:
		return "legibility_risk"
	case WarnByteSizeClamped:
		return "byte_size_clamped"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(k))
	}
}

// Warning is a non-fatal capacity advisory. It never aborts planning.
type Warning struct {
	Kind      WarningKind
	Requested int
	Ceiling   int
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnLegibilityRisk:
		return fmt.Sprintf("requested %d bytes exceeds the legible ceiling %d; codes may not scan", w.Requested, w.Ceiling)
	case WarnByteSizeClamped:
		return fmt.Sprintf("requested %d bytes clamped to ceiling %d", w.Requested, w.Ceiling)
	default:
		return w.Kind.String()
	}
}

// Capacity is the planner result for one layout.
type Capacity struct {
	// ChunkBytes is the size the slicer should use.
	ChunkBytes int
	// Ceiling is the computed safe maximum for the layout.
	Ceiling int
	// Version is the code version backing the ceiling tier.
	Version  int
	Warnings []Warning
}

var (
	ErrNoLegibleCapacity = errors.New("layout: no tier fits the usable code area at the legibility floor")
	ErrBadExplicitSize   = errors.New("layout: explicit byte size must be positive")
)

// PlanCapacity computes the largest chunk size that keeps codes legible for
// the given plan, then validates an optional operator-supplied size against
// it. explicit <= 0 means no explicit size. override suppresses clamping of
// an oversized explicit request, trading legibility for density.
func PlanCapacity(p Plan, explicit int, override bool) (Capacity, error) {
	if err := p.Validate(); err != nil {
		return Capacity{}, err
	}

	t, ok := ceilingTier(p)
	if !ok {
		return Capacity{}, fmt.Errorf("%w: usable edge %.3fin", ErrNoLegibleCapacity, p.usableEdge())
	}

	res := Capacity{
		Ceiling: t.capacity[p.Strength],
		Version: t.version,
	}
	formatMax := tiers[0].capacity[p.Strength]

	switch {
	case explicit == 0:
		res.ChunkBytes = res.Ceiling
	case explicit < 0:
		return Capacity{}, ErrBadExplicitSize
	case explicit <= res.Ceiling:
		res.ChunkBytes = explicit
	case explicit > formatMax:
		// No code version holds this many bytes; override cannot help.
		res.ChunkBytes = res.Ceiling
		res.Warnings = append(res.Warnings, Warning{Kind: WarnByteSizeClamped, Requested: explicit, Ceiling: res.Ceiling})
	case override:
		res.ChunkBytes = explicit
		res.Warnings = append(res.Warnings, Warning{Kind: WarnLegibilityRisk, Requested: explicit, Ceiling: res.Ceiling})
	default:
		res.ChunkBytes = res.Ceiling
		res.Warnings = append(res.Warnings, Warning{Kind: WarnByteSizeClamped, Requested: explicit, Ceiling: res.Ceiling})
	}
	return res, nil
}

// usableEdge is the square edge length available to code modules in one
// cell, after margins, grid division, text reservation, and the quiet zone.
// Border modules are accounted at the legibility floor, the same physical
// size the data modules are held to.
func (p Plan) usableEdge() float64 {
	if p.Unconstrained() {
		return math.Inf(1)
	}
	cellW := p.drawableWidth() / float64(p.Columns)
	cellH := p.drawableHeight() / float64(p.Rows)
	switch p.TextSide {
	case TextRight:
		cellW *= 1 - p.TextShare
	case TextBottom:
		cellH *= 1 - p.TextShare
	}
	return math.Min(cellW, cellH) - 2*float64(p.BorderModules)*MinModuleEdge
}

func ceilingTier(p Plan) (tier, bool) {
	edge := p.usableEdge()
	for _, t := range tiers {
		if float64(t.modules)*MinModuleEdge <= edge {
			return t, true
		}
	}
	return tier{}, false
}

// FormatMax is the absolute capacity of the largest code version at the
// given strength, independent of any page geometry.
func FormatMax(s Strength) int {
	return tiers[0].capacity[s]
}
