package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// rangeSpec describes one supported query range: how many points the
// series carries and how many seconds each point covers.
type rangeSpec struct {
	Points int
	StepS  int64
}

// rangeConfig maps range keys to their series shape. The 60s range is
// rendered per-second with carry-forward; the longer ranges return the
// true samples inside the window, downsampled to at most Points.
var rangeConfig = map[string]rangeSpec{
	"60s": {Points: 60, StepS: 1},
	"24h": {Points: 96, StepS: 900},
	"7d":  {Points: 168, StepS: 3600},
	"30d": {Points: 120, StepS: 21600},
}

// Ranges lists the supported range keys.
func Ranges() []string {
	return []string{"60s", "24h", "7d", "30d"}
}

// Aggregator builds power series over stored samples.
type Aggregator struct {
	repo Repository

	// now is injectable for tests.
	now func() time.Time
}

// NewAggregator creates an Aggregator over repo.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo, now: time.Now}
}

// SetClock overrides the wall clock. Tests only.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Series returns the power series for deviceID over the named range.
// Unknown range keys fail with ErrUnsupportedRange.
func (a *Aggregator) Series(ctx context.Context, deviceID, rangeKey string) ([]Point, error) {
	spec, ok := rangeConfig[rangeKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRange, rangeKey)
	}

	now := a.now().Unix()
	if rangeKey == "60s" {
		return a.secondSeries(ctx, deviceID, now, spec)
	}
	return a.sampledSeries(ctx, deviceID, now, spec)
}

// secondSeries renders one point per second over [now-59, now]. Seconds
// with a sample report that sample's power; seconds without one carry
// the previous value forward. The carry is seeded from the last sample
// strictly before the window, or zero when the device has no history.
func (a *Aggregator) secondSeries(ctx context.Context, deviceID string, now int64, spec rangeSpec) ([]Point, error) {
	from := now - int64(spec.Points-1)*spec.StepS

	samples, err := a.repo.QueryRange(ctx, deviceID, from, now)
	if err != nil {
		return nil, err
	}

	carry := 0.0
	prev, err := a.repo.LastBefore(ctx, deviceID, from)
	if err == nil {
		carry = prev.PowerW
	} else if !errors.Is(err, ErrSampleNotFound) {
		return nil, err
	}

	// Latest sample per second wins.
	bySecond := make(map[int64]float64, len(samples))
	for _, s := range samples {
		bySecond[s.TS] = s.PowerW
	}

	points := make([]Point, 0, spec.Points)
	for ts := from; ts <= now; ts += spec.StepS {
		if w, ok := bySecond[ts]; ok {
			carry = w
		}
		points = append(points, Point{TS: ts, PowerW: round3(carry)})
	}
	return points, nil
}

// sampledSeries returns the true samples inside the window, reduced by
// even-stride selection when they exceed the range's point budget. No
// padding: fewer samples than the budget come back as-is, and an empty
// window comes back empty.
func (a *Aggregator) sampledSeries(ctx context.Context, deviceID string, now int64, spec rangeSpec) ([]Point, error) {
	from := now - int64(spec.Points)*spec.StepS

	samples, err := a.repo.QueryRange(ctx, deviceID, from, now)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return []Point{}, nil
	}

	if len(samples) > spec.Points {
		samples = downsample(samples, spec.Points)
	}

	points := make([]Point, len(samples))
	for i, s := range samples {
		points[i] = Point{TS: s.TS, PowerW: round3(s.PowerW)}
	}
	return points, nil
}

// downsample selects n samples at an even stride, always keeping the
// first sample. Input order is preserved.
func downsample(samples []Sample, n int) []Sample {
	stride := float64(len(samples)) / float64(n)
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, samples[int(float64(i)*stride)])
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
