package ranking

import (
	"math"

	"github.com/CMCFame/parseteamsapifb/internal/config"
)

const (
	OrientationStrict = "strict"
	OrientationEither = "either"
)

// Policy holds the weights and thresholds used to score candidates.
type Policy struct {
	WindowMinutes   int
	HomeWeight      float64
	AwayWeight      float64
	TimePenalty     float64 // per minute of kick-off difference
	BothHighMin     float64
	BothHighBonus   float64
	CuratedBonus    float64
	TieEpsilon      float64
	Orientation     string
	SwapFactor      float64
	ReviewThreshold float64
	MinScore        float64 // -Inf disables the floor
	TieBreak        bool
}

// DefaultPolicy mirrors the embedded tables.
func DefaultPolicy() Policy {
	return Policy{
		WindowMinutes:   90,
		HomeWeight:      0.7,
		AwayWeight:      0.7,
		TimePenalty:     0.01,
		BothHighMin:     0.85,
		BothHighBonus:   0.2,
		CuratedBonus:    0.05,
		TieEpsilon:      0.05,
		Orientation:     OrientationStrict,
		SwapFactor:      0.9,
		ReviewThreshold: 0.5,
		MinScore:        math.Inf(-1),
	}
}

func PolicyFrom(c config.PolicyConfig) Policy {
	p := Policy{
		WindowMinutes:   c.WindowMinutes,
		HomeWeight:      c.HomeWeight,
		AwayWeight:      c.AwayWeight,
		TimePenalty:     c.TimePenalty,
		BothHighMin:     c.BothHighMin,
		BothHighBonus:   c.BothHighBonus,
		CuratedBonus:    c.CuratedBonus,
		TieEpsilon:      c.TieEpsilon,
		Orientation:     c.Orientation,
		SwapFactor:      c.SwapFactor,
		ReviewThreshold: c.ReviewThreshold,
		MinScore:        math.Inf(-1),
	}
	if p.Orientation == "" {
		p.Orientation = OrientationStrict
	}
	if c.MinScore != nil {
		p.MinScore = *c.MinScore
	}
	return p
}
