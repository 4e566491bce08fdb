package ml

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Sample is one labeled training example: raw query text and its
// human-asserted difficulty label.
type Sample struct {
	Text      string
	Label     string
	CreatedAt time.Time
}

// TrainerConfig holds the gradient descent hyperparameters.
type TrainerConfig struct {
	LearningRate float64
	Epochs       int
	L2Penalty    float64
	Seed         int64
}

// DefaultTrainerConfig returns the hyperparameters used by the scheduled
// training job.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		LearningRate: 0.1,
		Epochs:       300,
		L2Penalty:    0.001,
		Seed:         42,
	}
}

// DenseFeatures is the function producing the dense lexical feature block
// for a query. It is injected so this package does not depend on the
// classification package (which consumes trained models).
type DenseFeatures func(query string) []float64

// Trainer fits multinomial logistic regression models on labeled samples.
type Trainer struct {
	cfg      TrainerConfig
	features DenseFeatures
	order    []string
}

// NewTrainer creates a trainer. featureOrder names the dense features in the
// order the extractor emits them; it is recorded in the artifact.
func NewTrainer(cfg TrainerConfig, features DenseFeatures, featureOrder []string) *Trainer {
	return &Trainer{cfg: cfg, features: features, order: featureOrder}
}

// Train fits a model on the samples via full-batch gradient descent on the
// softmax cross-entropy loss with L2 regularization.
func (t *Trainer) Train(samples []Sample, version string, confidenceThreshold float64) (*Model, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no training samples")
	}

	vectorizer := NewVectorizer()
	docs := make([]string, len(samples))
	for i, s := range samples {
		docs[i] = s.Text
	}
	vectorizer.Fit(docs)

	classes := classList(samples)
	if len(classes) < 2 {
		return nil, fmt.Errorf("training data covers %d class(es), need at least 2", len(classes))
	}
	classIdx := make(map[string]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}

	// Assemble the raw feature matrix, then standardize column-wise. The
	// standardization parameters ship in the artifact so inference applies
	// the identical transform.
	matrix := make([][]float64, len(samples))
	for i, s := range samples {
		row := append(t.features(s.Text), vectorizer.Transform(s.Text)...)
		matrix[i] = row
	}
	means, stds := standardize(matrix)

	numFeatures := len(matrix[0])
	weights := make([][]float64, len(classes))
	bias := make([]float64, len(classes))
	for c := range weights {
		weights[c] = make([]float64, numFeatures)
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	order := rng.Perm(len(samples))

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		gradW := make([][]float64, len(classes))
		gradB := make([]float64, len(classes))
		for c := range gradW {
			gradW[c] = make([]float64, numFeatures)
		}

		for _, i := range order {
			row := matrix[i]
			target := classIdx[samples[i].Label]

			logits := make([]float64, len(classes))
			for c := range classes {
				z := bias[c]
				for j, x := range row {
					z += weights[c][j] * x
				}
				logits[c] = z
			}
			probs := softmax(logits)

			for c := range classes {
				delta := probs[c]
				if c == target {
					delta -= 1
				}
				gradB[c] += delta
				for j, x := range row {
					if x != 0 {
						gradW[c][j] += delta * x
					}
				}
			}
		}

		scale := t.cfg.LearningRate / float64(len(samples))
		for c := range classes {
			bias[c] -= scale * gradB[c]
			for j := range weights[c] {
				weights[c][j] -= scale * (gradW[c][j] + t.cfg.L2Penalty*weights[c][j])
			}
		}
	}

	return &Model{
		Version:             version,
		Classes:             classes,
		Weights:             weights,
		Bias:                bias,
		FeatureMeans:        means,
		FeatureStds:         stds,
		FeatureOrder:        t.order,
		Vectorizer:          vectorizer,
		ConfidenceThreshold: confidenceThreshold,
		TrainedAt:           time.Now().UTC(),
	}, nil
}

// standardize centers and scales the matrix in place, returning the
// per-column means and standard deviations.
func standardize(matrix [][]float64) (means, stds []float64) {
	if len(matrix) == 0 {
		return nil, nil
	}
	cols := len(matrix[0])
	means = make([]float64, cols)
	stds = make([]float64, cols)
	n := float64(len(matrix))

	for _, row := range matrix {
		for j, x := range row {
			means[j] += x
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, row := range matrix {
		for j, x := range row {
			d := x - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
	}
	for _, row := range matrix {
		for j := range row {
			if stds[j] > 0 {
				row[j] = (row[j] - means[j]) / stds[j]
			}
		}
	}
	return means, stds
}

// classList returns the sorted distinct labels present in the samples.
func classList(samples []Sample) []string {
	seen := make(map[string]struct{})
	var classes []string
	for _, s := range samples {
		if _, ok := seen[s.Label]; !ok {
			seen[s.Label] = struct{}{}
			classes = append(classes, s.Label)
		}
	}
	// Deterministic class order regardless of sample order.
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			if classes[j] < classes[i] {
				classes[i], classes[j] = classes[j], classes[i]
			}
		}
	}
	return classes
}
