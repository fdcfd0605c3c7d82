package model

// Exit codes reported for tasks that never produced a real one and for the
// run as a whole.
const (
	ExitSpawnFailed  = 127 // command could not be started
	ExitStreamFailed = 125 // reading the child's output failed
	ExitKilled       = 137 // forcibly reclaimed after the grace period
	ExitCancelled    = 130 // the run was interrupted by the operator
)

type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the final fate of one task.
type Outcome struct {
	Task TaskSpec
	Exit Exit
}

// AggregateResult is the combined outcome of a run. Outcomes are ordered by
// task index.
type AggregateResult struct {
	Status   Status
	Code     int
	Outcomes []Outcome
}

// Aggregate computes the run result. The code of a failed run is the code of
// the failed task with the lowest index, regardless of completion order.
func Aggregate(outcomes []Outcome, cancelled bool) AggregateResult {
	res := AggregateResult{Status: StatusSucceeded, Outcomes: outcomes}
	if cancelled {
		res.Status = StatusCancelled
		res.Code = ExitCancelled
		return res
	}
	for _, o := range outcomes {
		if o.Exit.Success() {
			continue
		}
		res.Status = StatusFailed
		res.Code = o.Exit.Code
		if res.Code == 0 {
			res.Code = 1
		}
		break
	}
	return res
}
