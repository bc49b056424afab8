package gbdt

import "math"

// earlyStopping tracks the validation score and stops training after
// Rounds iterations without improvement. Scores are minimized.
type earlyStopping struct {
	rounds          int
	bestScore       float64
	bestIteration   int
	roundsNoImprove int
	enabled         bool
}

// newEarlyStopping creates a new early stopping handler
func newEarlyStopping(rounds int) *earlyStopping {
	return &earlyStopping{
		rounds:        rounds,
		bestScore:     math.Inf(1),
		bestIteration: -1,
		enabled:       rounds > 0,
	}
}

// update records the score of an iteration and reports whether to stop
func (es *earlyStopping) update(iteration int, score float64) bool {
	if score < es.bestScore {
		es.bestScore = score
		es.bestIteration = iteration
		es.roundsNoImprove = 0
	} else {
		es.roundsNoImprove++
	}
	return es.enabled && es.roundsNoImprove >= es.rounds
}
