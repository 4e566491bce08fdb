package ml

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDenseFeatures(query string) []float64 {
	return []float64{
		float64(len(query)),
		float64(len(strings.Fields(query))),
	}
}

var testFeatureOrder = []string{"query_length", "word_count"}

// separableCorpus builds a corpus where the label is recoverable from both
// the vocabulary and the length features.
func separableCorpus(perClass int) []Sample {
	now := time.Now().UTC()
	var samples []Sample
	for i := 0; i < perClass; i++ {
		samples = append(samples, Sample{
			Text:      fmt.Sprintf("what is the capital of country number %d", i),
			Label:     "EASY",
			CreatedAt: now,
		})
		samples = append(samples, Sample{
			Text: fmt.Sprintf("design a distributed scalable architecture for workload %d "+
				"and explain the consistency tradeoffs across replicated partitions", i),
			Label:     "HARD",
			CreatedAt: now,
		})
	}
	return samples
}

func TestTrainer_LearnsSeparableCorpus(t *testing.T) {
	trainer := NewTrainer(DefaultTrainerConfig(), testDenseFeatures, testFeatureOrder)
	samples := separableCorpus(20)

	model, err := trainer.Train(samples, "v1", 0.6)
	require.NoError(t, err)
	require.NotNil(t, model)

	assert.Equal(t, "v1", model.Version)
	assert.Equal(t, []string{"EASY", "HARD"}, model.Classes)
	require.NotNil(t, model.Vectorizer)

	easy := "what is the capital of country number 99"
	hard := "design a distributed scalable architecture for workload 99 and explain the " +
		"consistency tradeoffs across replicated partitions"

	predEasy := model.Predict(testDenseFeatures(easy), easy)
	assert.Equal(t, "EASY", predEasy.Label)
	assert.Greater(t, predEasy.Confidence, 0.5)

	predHard := model.Predict(testDenseFeatures(hard), hard)
	assert.Equal(t, "HARD", predHard.Label)
	assert.Greater(t, predHard.Confidence, 0.5)
}

func TestTrainer_DeterministicWithSeed(t *testing.T) {
	samples := separableCorpus(10)

	a, err := NewTrainer(DefaultTrainerConfig(), testDenseFeatures, testFeatureOrder).Train(samples, "va", 0.6)
	require.NoError(t, err)
	b, err := NewTrainer(DefaultTrainerConfig(), testDenseFeatures, testFeatureOrder).Train(samples, "vb", 0.6)
	require.NoError(t, err)

	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
	assert.Equal(t, a.FeatureMeans, b.FeatureMeans)
}

func TestTrainer_RejectsEmptyCorpus(t *testing.T) {
	trainer := NewTrainer(DefaultTrainerConfig(), testDenseFeatures, testFeatureOrder)
	_, err := trainer.Train(nil, "v1", 0.6)
	assert.Error(t, err)
}

func TestTrainer_RejectsSingleClass(t *testing.T) {
	trainer := NewTrainer(DefaultTrainerConfig(), testDenseFeatures, testFeatureOrder)
	samples := []Sample{
		{Text: "one", Label: "EASY"},
		{Text: "two", Label: "EASY"},
	}
	_, err := trainer.Train(samples, "v1", 0.6)
	assert.Error(t, err)
}

func TestModel_ArtifactRoundTrip(t *testing.T) {
	trainer := NewTrainer(DefaultTrainerConfig(), testDenseFeatures, testFeatureOrder)
	model, err := trainer.Train(separableCorpus(10), "v1", 0.6)
	require.NoError(t, err)

	data, err := model.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	query := "design a distributed scalable architecture for workload 5 and explain the " +
		"consistency tradeoffs across replicated partitions"
	orig := model.Predict(testDenseFeatures(query), query)
	loaded := restored.Predict(testDenseFeatures(query), query)

	assert.Equal(t, orig.Label, loaded.Label)
	assert.InDelta(t, orig.Confidence, loaded.Confidence, 1e-12)
}

func TestUnmarshal_RejectsMalformedArtifacts(t *testing.T) {
	cases := map[string]string{
		"not json":           "{",
		"no classes":         `{"classes":[],"weights":[],"bias":[]}`,
		"shape mismatch":     `{"classes":["EASY","HARD"],"weights":[[0.1]],"bias":[0,0],"vectorizer":{}}`,
		"missing vectorizer": `{"classes":["EASY","HARD"],"weights":[[],[]],"bias":[0,0]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(raw))
			assert.Error(t, err)
		})
	}
}
