package classify

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/ml"
)

// LearnedClassifier serves predictions from the currently active trained
// model. The model is held behind an atomic pointer: readers always see a
// complete model, and a promotion replaces it wholesale with a single
// publish. No other component mutates it.
type LearnedClassifier struct {
	model  atomic.Pointer[ml.Model]
	logger *zap.Logger
}

// NewLearnedClassifier creates a classifier with no model loaded. It reports
// unavailable until Swap publishes one.
func NewLearnedClassifier(logger *zap.Logger) *LearnedClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearnedClassifier{logger: logger}
}

// Swap atomically publishes a new active model. In-flight predictions keep
// using the model they already dereferenced.
func (c *LearnedClassifier) Swap(m *ml.Model) {
	c.model.Store(m)
	if m != nil {
		c.logger.Info("learned model activated",
			zap.String("version", m.Version),
			zap.Float64("confidence_threshold", m.ConfidenceThreshold),
		)
	}
}

// Available reports whether a model is loaded.
func (c *LearnedClassifier) Available() bool {
	return c.model.Load() != nil
}

// ActiveVersion returns the version of the loaded model, or "" when none.
func (c *LearnedClassifier) ActiveVersion() string {
	if m := c.model.Load(); m != nil {
		return m.Version
	}
	return ""
}

// Threshold returns the active model's confidence threshold, or the given
// default when no model is loaded.
func (c *LearnedClassifier) Threshold(fallback float64) float64 {
	if m := c.model.Load(); m != nil && m.ConfidenceThreshold > 0 {
		return m.ConfidenceThreshold
	}
	return fallback
}

// Predict runs the learned model on the query. The third return value is
// false when no model is available; that is not an error, the gate degrades
// to rule-only decisioning.
func (c *LearnedClassifier) Predict(f FeatureVector, query string) (Tier, float64, bool) {
	m := c.model.Load()
	if m == nil {
		return "", 0, false
	}

	pred := m.Predict(f.Dense(), query)
	tier, ok := ParseTier(pred.Label)
	if !ok {
		c.logger.Warn("learned model produced an unknown label",
			zap.String("version", m.Version),
			zap.String("label", pred.Label),
		)
		return "", 0, false
	}
	return tier, pred.Confidence, true
}
