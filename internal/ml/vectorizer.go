// Package ml implements the learned difficulty model: TF-IDF text
// vectorization, multinomial logistic regression training and inference,
// and the evaluation metrics used by the promotion decision.
//
// Purpose:
//   This package owns the model artifact format. Training (cmd/trainer) and
//   inference (the learned classifier) share the same feature pipeline so a
//   promoted artifact is always interpretable by the serving path.
//
package ml

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var vectorizerTokenRe = regexp.MustCompile(`[a-z0-9']+`)

// English stopwords excluded from TF-IDF terms. Deliberately small; the
// difficulty signal lives in content words.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Vectorizer converts query text into sparse TF-IDF features over a fitted
// vocabulary. A fitted vectorizer is immutable and safe for concurrent use;
// it is serialized into the model artifact so inference transforms text
// exactly the way training did.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"` // term -> column index
	IDF        []float64      `json:"idf"`        // indexed by column

	NgramMin    int     `json:"ngram_min"`
	NgramMax    int     `json:"ngram_max"`
	MaxFeatures int     `json:"max_features"`
	MinDocFreq  int     `json:"min_doc_freq"`
	MaxDocRatio float64 `json:"max_doc_ratio"`
}

// NewVectorizer creates a vectorizer with the standard settings: word
// unigrams and bigrams, at most 5000 terms, terms must appear in at least 2
// documents and at most 95% of them.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{
		NgramMin:    1,
		NgramMax:    2,
		MaxFeatures: 5000,
		MinDocFreq:  2,
		MaxDocRatio: 0.95,
	}
}

// Fit builds the vocabulary and IDF table from the training corpus.
func (v *Vectorizer) Fit(docs []string) {
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range v.terms(doc) {
			seen[term] = struct{}{}
		}
		for term := range seen {
			docFreq[term]++
		}
	}

	maxDocs := int(v.MaxDocRatio * float64(len(docs)))
	type termFreq struct {
		term string
		df   int
	}
	kept := make([]termFreq, 0, len(docFreq))
	for term, df := range docFreq {
		if df < v.MinDocFreq {
			continue
		}
		if len(docs) > 1 && df > maxDocs {
			continue
		}
		kept = append(kept, termFreq{term, df})
	}

	// Keep the most frequent terms, ties broken alphabetically for
	// reproducible vocabularies.
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].df != kept[j].df {
			return kept[i].df > kept[j].df
		}
		return kept[i].term < kept[j].term
	})
	if v.MaxFeatures > 0 && len(kept) > v.MaxFeatures {
		kept = kept[:v.MaxFeatures]
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].term < kept[j].term })

	v.Vocabulary = make(map[string]int, len(kept))
	v.IDF = make([]float64, len(kept))
	n := float64(len(docs))
	for i, tf := range kept {
		v.Vocabulary[tf.term] = i
		// Smoothed IDF, matching the convention the original training
		// pipeline used.
		v.IDF[i] = math.Log((1+n)/(1+float64(tf.df))) + 1
	}
}

// Transform converts a document into its L2-normalized TF-IDF vector.
func (v *Vectorizer) Transform(doc string) []float64 {
	out := make([]float64, len(v.IDF))
	if len(v.IDF) == 0 {
		return out
	}

	counts := make(map[int]int)
	for _, term := range v.terms(doc) {
		if idx, ok := v.Vocabulary[term]; ok {
			counts[idx]++
		}
	}

	var norm float64
	for idx, count := range counts {
		val := float64(count) * v.IDF[idx]
		out[idx] = val
		norm += val * val
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range counts {
			out[idx] /= norm
		}
	}
	return out
}

// NumFeatures returns the width of the TF-IDF vector.
func (v *Vectorizer) NumFeatures() int {
	return len(v.IDF)
}

// terms produces the ngram terms of a document.
func (v *Vectorizer) terms(doc string) []string {
	raw := vectorizerTokenRe.FindAllString(strings.ToLower(doc), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, ok := stopwords[tok]; !ok {
			tokens = append(tokens, tok)
		}
	}

	var terms []string
	for n := v.NgramMin; n <= v.NgramMax; n++ {
		if n <= 0 {
			continue
		}
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}
