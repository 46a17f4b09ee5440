package symbolstate

// State is the trading-eligibility classification of one symbol. It is
// recomputed on every slow tick from trained-set membership, history metrics
// and the policy thresholds, never mutated incrementally.
type State int

const (
	StateUnknown State = iota
	StateTrained
	StateUntrainedTrainable
	StateUntrainedShortHistory
)

func (s State) String() string {
	switch s {
	case StateTrained:
		return "TRAINED"
	case StateUntrainedTrainable:
		return "UNTRAINED_TRAINABLE"
	case StateUntrainedShortHistory:
		return "UNTRAINED_SHORT_HISTORY"
	default:
		return "UNKNOWN"
	}
}

// Thresholds are the immutable policy limits for one process run.
type Thresholds struct {
	TargetHistoryDays     int
	MinHistoryDaysToTrain int
	MinHistoryCoveragePct float64
}
