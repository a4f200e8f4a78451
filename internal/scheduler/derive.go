package scheduler

import (
	"math"
	"time"

	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

func parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	return tz.Parse(s)
}

// actualOrEstimated prefers the actual time and falls back to the estimate
func actualOrEstimated(l *types.Leg) (time.Time, bool) {
	if t, ok := parse(l.Actual); ok {
		return t, true
	}
	return parse(l.Estimated)
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

// ComputeDelay derives the delay state from canonical timestamps.
// The arrival pair wins when complete, else the departure pair is used.
func ComputeDelay(f *types.Flight, graceMinutes int) (types.DelayStatus, *int) {
	switch f.StatusState {
	case types.StateCancelled:
		return types.DelayCancelled, nil
	case types.StateArrived:
		return types.DelayArrived, nil
	}

	sched, schedOK := parse(f.Arr.Scheduled)
	est, estOK := actualOrEstimated(&f.Arr)
	if !schedOK || !estOK {
		sched, schedOK = parse(f.Dep.Scheduled)
		est, estOK = actualOrEstimated(&f.Dep)
	}
	if !schedOK || !estOK {
		return types.DelayUnknown, nil
	}

	minutes := roundMinutes(est.Sub(sched))
	if minutes > graceMinutes {
		return types.DelayDelayed, &minutes
	}
	return types.DelayOnTime, &minutes
}

func duration(dep, arr time.Time, depOK, arrOK bool) *int {
	if !depOK || !arrOK {
		return nil
	}
	d := arr.Sub(dep)
	if d < 0 {
		return nil
	}
	m := roundMinutes(d)
	return &m
}

// ComputeDurations derives scheduled, estimated and actual leg durations.
// Minutes resolves to actual, then estimated, then scheduled.
func ComputeDurations(f *types.Flight) types.Durations {
	depSched, depSchedOK := parse(f.Dep.Scheduled)
	arrSched, arrSchedOK := parse(f.Arr.Scheduled)
	depEst, depEstOK := actualOrEstimated(&f.Dep)
	arrEst, arrEstOK := actualOrEstimated(&f.Arr)
	depAct, depActOK := parse(f.Dep.Actual)
	arrAct, arrActOK := parse(f.Arr.Actual)

	d := types.Durations{
		Scheduled: duration(depSched, arrSched, depSchedOK, arrSchedOK),
		Estimated: duration(depEst, arrEst, depEstOK, arrEstOK),
		Actual:    duration(depAct, arrAct, depActOK, arrActOK),
	}

	switch {
	case d.Actual != nil:
		d.Minutes = d.Actual
	case d.Estimated != nil:
		d.Minutes = d.Estimated
	default:
		d.Minutes = d.Scheduled
	}
	return d
}
