package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizer_FitBuildsVocabulary(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{
		"sort a list quickly",
		"sort a slice of structs",
		"reverse a list in place",
	})

	// "sort" and "list" appear in two documents each and survive min_df.
	assert.Contains(t, v.Vocabulary, "sort")
	assert.Contains(t, v.Vocabulary, "list")
	// "quickly" appears once and is dropped.
	assert.NotContains(t, v.Vocabulary, "quickly")
	// Stopwords never enter the vocabulary.
	assert.NotContains(t, v.Vocabulary, "a")
	assert.NotContains(t, v.Vocabulary, "of")

	require.Equal(t, len(v.Vocabulary), len(v.IDF))
	for _, idf := range v.IDF {
		assert.Greater(t, idf, 0.0)
	}
}

func TestVectorizer_TransformIsL2Normalized(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{
		"design a scalable system",
		"design a distributed system",
		"scalable distributed cache design",
	})

	vec := v.Transform("design a scalable distributed system")
	require.Equal(t, v.NumFeatures(), len(vec))

	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestVectorizer_TransformUnknownTerms(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{"alpha beta", "alpha gamma", "delta epsilon"})
	require.NotZero(t, v.NumFeatures())

	vec := v.Transform("completely unrelated words")
	for i, x := range vec {
		assert.Zero(t, x, "column %d should be zero", i)
	}
}

func TestVectorizer_Bigrams(t *testing.T) {
	v := NewVectorizer()
	v.Fit([]string{
		"system design interview",
		"system design question",
		"database tuning advice",
	})
	assert.Contains(t, v.Vocabulary, "system design")
}

func TestVectorizer_MaxFeaturesCap(t *testing.T) {
	v := NewVectorizer()
	v.MaxFeatures = 3
	v.Fit([]string{
		"alpha beta gamma",
		"alpha beta gamma",
		"delta epsilon zeta",
	})
	assert.LessOrEqual(t, v.NumFeatures(), 3)
	assert.Equal(t, 3, v.NumFeatures())
}

func TestVectorizer_DeterministicVocabulary(t *testing.T) {
	docs := []string{
		"sort a list quickly",
		"sort a slice of structs",
		"reverse a list in place",
	}
	a := NewVectorizer()
	a.Fit(docs)
	b := NewVectorizer()
	b.Fit(docs)
	assert.Equal(t, a.Vocabulary, b.Vocabulary)
	assert.Equal(t, a.IDF, b.IDF)
}
