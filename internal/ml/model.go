package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Model is a trained multinomial logistic regression classifier together
// with everything inference needs to reproduce the training feature
// pipeline. A model is immutable after training and safe for concurrent use.
type Model struct {
	Version             string      `json:"version"`
	Classes             []string    `json:"classes"`
	Weights             [][]float64 `json:"weights"` // [class][feature]
	Bias                []float64   `json:"bias"`    // [class]
	FeatureMeans        []float64   `json:"feature_means"`
	FeatureStds         []float64   `json:"feature_stds"`
	FeatureOrder        []string    `json:"feature_order"`
	Vectorizer          *Vectorizer `json:"vectorizer"`
	ConfidenceThreshold float64     `json:"confidence_threshold"`
	TrainedAt           time.Time   `json:"trained_at"`
}

// Prediction is the learned model's output for a single query.
type Prediction struct {
	Label      string
	Confidence float64
}

// Predict classifies a query given its dense lexical features. The returned
// confidence is the softmax probability of the winning class.
func (m *Model) Predict(dense []float64, query string) Prediction {
	features := m.buildFeatures(dense, query)
	probs := m.probabilities(features)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return Prediction{Label: m.Classes[best], Confidence: probs[best]}
}

// buildFeatures assembles the full standardized feature vector: dense
// lexical features followed by the TF-IDF block.
func (m *Model) buildFeatures(dense []float64, query string) []float64 {
	features := make([]float64, 0, len(dense)+m.Vectorizer.NumFeatures())
	features = append(features, dense...)
	features = append(features, m.Vectorizer.Transform(query)...)

	for i := range features {
		if i < len(m.FeatureStds) && m.FeatureStds[i] > 0 {
			features[i] = (features[i] - m.FeatureMeans[i]) / m.FeatureStds[i]
		}
	}
	return features
}

// probabilities computes the softmax class distribution.
func (m *Model) probabilities(features []float64) []float64 {
	logits := make([]float64, len(m.Classes))
	for c := range m.Classes {
		z := m.Bias[c]
		w := m.Weights[c]
		for i := 0; i < len(features) && i < len(w); i++ {
			z += w[i] * features[i]
		}
		logits[c] = z
	}
	return softmax(logits)
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, z := range logits[1:] {
		if z > maxLogit {
			maxLogit = z
		}
	}
	var sum float64
	out := make([]float64, len(logits))
	for i, z := range logits {
		out[i] = math.Exp(z - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Marshal serializes the model artifact to JSON.
func (m *Model) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal model artifact: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a model artifact and validates its shape.
func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal model artifact: %w", err)
	}
	if len(m.Classes) == 0 || len(m.Weights) != len(m.Classes) || len(m.Bias) != len(m.Classes) {
		return nil, fmt.Errorf("model artifact %q has inconsistent shape", m.Version)
	}
	if m.Vectorizer == nil {
		return nil, fmt.Errorf("model artifact %q is missing its vectorizer", m.Version)
	}
	return &m, nil
}
