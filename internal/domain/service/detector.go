package service

import (
	"QuietSpike/internal/domain/models"
)

// Detector evaluates one series and produces a signal. Implementations are
// pure: the same series and configuration always give the same signal.
type Detector interface {
	Strategy() models.Strategy
	Evaluate(series *models.Series) (models.Signal, error)
	// MinBars is the shortest series on which a match is possible; shorter
	// series are skipped as insufficient history.
	MinBars() int
}
