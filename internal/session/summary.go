package session

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a session's statistics.
type Summary struct {
	SessionID     string             `json:"session_id"`
	StartedAt     time.Time          `json:"started_at"`
	Duration      time.Duration      `json:"duration"`
	Reps          int                `json:"reps"`
	Frames        int                `json:"frames"`
	Evaluated     int                `json:"evaluated"`
	Skipped       map[SkipReason]int `json:"skipped"`
	GoodFormRatio float64            `json:"good_form_ratio"`
	MeanDepth     float64            `json:"mean_depth"`
	DeepestRep    float64            `json:"deepest_rep"`
	DepthStdDev   float64            `json:"depth_stddev"`
	RepsPerMinute float64            `json:"reps_per_minute"`
}

// Summary computes the statistics up to the last processed frame.
func (s *Session) Summary() Summary {
	sum := Summary{
		SessionID: s.id,
		StartedAt: s.started,
		Duration:  s.last.Time.Sub(s.started),
		Reps:      s.machine.State().Count,
		Frames:    s.frames,
		Evaluated: s.evaluated,
		Skipped:   make(map[SkipReason]int, len(s.skipped)),
	}
	if sum.Duration < 0 {
		sum.Duration = 0
	}

	for reason, n := range s.skipped {
		sum.Skipped[reason] = n
	}

	if s.evaluated > 0 {
		sum.GoodFormRatio = float64(s.goodFormCount) / float64(s.evaluated)
	}

	if len(s.reps) > 0 {
		depths := make([]float64, len(s.reps))
		for i, r := range s.reps {
			depths[i] = r.Depth
		}
		sum.MeanDepth, sum.DepthStdDev = stat.MeanStdDev(depths, nil)
		sum.DeepestRep = floats.Min(depths)
		if len(depths) == 1 {
			sum.DepthStdDev = 0
		}
	}

	if minutes := sum.Duration.Minutes(); minutes > 0 {
		sum.RepsPerMinute = float64(sum.Reps) / minutes
	}

	return sum
}
