// Package analytics summarises training histories into learning curves.
package analytics

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/groverq/internal/agent"
)

// DefaultWindow is the moving-average period used for run summaries.
const DefaultWindow = 10

// Summary describes how a training run went.
type Summary struct {
	Episodes         int       `json:"episodes"`
	Goals            int       `json:"goals"`
	SuccessRate      float64   `json:"success_rate"`
	MeanSteps        float64   `json:"mean_steps"`
	MeanReturn       float64   `json:"mean_return"`
	FirstGoalEpisode int       `json:"first_goal_episode"` // -1 when never reached
	StepsSMA         *float64  `json:"steps_sma,omitempty"`
	StepsEMA         *float64  `json:"steps_ema,omitempty"`
	ReturnsSMA       *float64  `json:"returns_sma,omitempty"`
	SuccessCurve     []float64 `json:"success_curve"`
	Converged        bool      `json:"converged"`
	FinalMaxQDelta   float64   `json:"final_max_q_delta"`
	TotalIterations  int       `json:"total_iterations"`
}

// Summarize computes the summary of h. window is the moving-average period;
// eps is the convergence tolerance passed to History.Converged.
func Summarize(h *agent.History, window int, eps float64) Summary {
	s := Summary{FirstGoalEpisode: -1, SuccessCurve: []float64{}}
	if h == nil || h.Len() == 0 {
		return s
	}

	s.Episodes = h.Len()
	s.Goals = h.Goals()
	s.SuccessRate = float64(s.Goals) / float64(s.Episodes)
	s.Converged = h.Converged(eps)
	s.FinalMaxQDelta = h.MaxQDeltas[len(h.MaxQDeltas)-1]

	for i, g := range h.GoalReached {
		if g {
			s.FirstGoalEpisode = i
			break
		}
	}
	for _, it := range h.Iterations {
		s.TotalIterations += it
	}

	steps := toFloats(h.Steps)
	successes := make([]float64, len(h.GoalReached))
	for i, g := range h.GoalReached {
		if g {
			successes[i] = 1
		}
	}

	s.MeanSteps = stat.Mean(steps, nil)
	s.MeanReturn = stat.Mean(h.Returns, nil)
	s.StepsSMA = LatestSMA(steps, window)
	s.StepsEMA = LatestEMA(steps, window)
	s.ReturnsSMA = LatestSMA(h.Returns, window)
	s.SuccessCurve = MovingAverage(successes, window)
	return s
}

// MovingAverage returns the simple moving average of values over period,
// starting at the first fully covered index. It returns an empty slice when
// there are fewer values than the period.
func MovingAverage(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return []float64{}
	}
	sma := talib.Sma(values, period)
	return sma[period-1:]
}

// LatestSMA returns the last simple moving average value, or nil when there
// are fewer values than the period.
func LatestSMA(values []float64, period int) *float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	sma := talib.Sma(values, period)
	return finite(sma[len(sma)-1])
}

// LatestEMA returns the last exponential moving average. With fewer values
// than the period it falls back to the plain mean.
func LatestEMA(values []float64, period int) *float64 {
	if len(values) == 0 || period < 1 {
		return nil
	}
	if len(values) < period {
		return finite(stat.Mean(values, nil))
	}
	ema := talib.Ema(values, period)
	return finite(ema[len(ema)-1])
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func toFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
