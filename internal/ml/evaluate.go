package ml

import (
	"fmt"
	"math/rand"
)

// Metrics summarizes model quality on one evaluation dataset.
type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	F1Score  float64 `json:"f1_score"`
	Samples  int     `json:"samples"`
	Dataset  string  `json:"dataset"`
}

// Evaluate computes accuracy and class-frequency-weighted F1 of the model
// on the given samples.
func Evaluate(m *Model, samples []Sample, features DenseFeatures, dataset string) Metrics {
	if len(samples) == 0 {
		return Metrics{Dataset: dataset}
	}

	correct := 0
	// Per-class confusion counts.
	tp := make(map[string]int)
	fp := make(map[string]int)
	fn := make(map[string]int)
	support := make(map[string]int)

	for _, s := range samples {
		pred := m.Predict(features(s.Text), s.Text)
		support[s.Label]++
		if pred.Label == s.Label {
			correct++
			tp[s.Label]++
		} else {
			fp[pred.Label]++
			fn[s.Label]++
		}
	}

	var weightedF1 float64
	for label, count := range support {
		precisionDenom := tp[label] + fp[label]
		recallDenom := tp[label] + fn[label]
		var precision, recall float64
		if precisionDenom > 0 {
			precision = float64(tp[label]) / float64(precisionDenom)
		}
		if recallDenom > 0 {
			recall = float64(tp[label]) / float64(recallDenom)
		}
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		weightedF1 += f1 * float64(count) / float64(len(samples))
	}

	return Metrics{
		Accuracy: float64(correct) / float64(len(samples)),
		F1Score:  weightedF1,
		Samples:  len(samples),
		Dataset:  dataset,
	}
}

// StratifiedSplit partitions samples into train and test sets, preserving
// the per-class ratio. The split is seeded for reproducible cycles.
func StratifiedSplit(samples []Sample, testRatio float64, seed int64) (train, test []Sample, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0, 1), got %v", testRatio)
	}

	byClass := make(map[string][]Sample)
	for _, s := range samples {
		byClass[s.Label] = append(byClass[s.Label], s)
	}

	rng := rand.New(rand.NewSource(seed))
	for _, label := range classList(samples) {
		group := byClass[label]
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		cut := int(float64(len(group)) * testRatio)
		if cut == 0 && len(group) > 1 {
			cut = 1
		}
		test = append(test, group[:cut]...)
		train = append(train, group[cut:]...)
	}

	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("split produced an empty partition (%d train, %d test)", len(train), len(test))
	}
	return train, test, nil
}
