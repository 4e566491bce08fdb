package mlops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/intelrouter/query-router-service/internal/ml"
)

type fakeSampleSource struct {
	samples []ml.Sample
}

func (f *fakeSampleSource) LoadSamples(context.Context) ([]ml.Sample, error) {
	return f.samples, nil
}

func (f *fakeSampleSource) CountSamples(context.Context) (int64, error) {
	return int64(len(f.samples)), nil
}

type fakeRegistry struct {
	active     *ml.ModelMetadata
	promoted   []*ml.ModelMetadata
	promoteErr error
}

func (f *fakeRegistry) GetActiveModel(context.Context) (*ml.ModelMetadata, error) {
	return f.active, nil
}

func (f *fakeRegistry) PromoteModel(_ context.Context, meta *ml.ModelMetadata) error {
	if f.promoteErr != nil {
		return f.promoteErr
	}
	f.promoted = append(f.promoted, meta)
	f.active = meta
	return nil
}

type fakeArtifacts struct {
	uploaded map[string][]byte
	deleted  []string
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{uploaded: make(map[string][]byte)}
}

func (f *fakeArtifacts) Upload(_ context.Context, version string, artifact []byte) (string, error) {
	f.uploaded[version] = artifact
	return "checksum", nil
}

func (f *fakeArtifacts) Download(_ context.Context, version string) ([]byte, error) {
	data, ok := f.uploaded[version]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f *fakeArtifacts) Delete(_ context.Context, version string) error {
	f.deleted = append(f.deleted, version)
	delete(f.uploaded, version)
	return nil
}

func pipelineDense(query string) []float64 {
	return []float64{
		float64(len(query)),
		float64(len(strings.Fields(query))),
	}
}

var pipelineOrder = []string{"query_length", "word_count"}

func separableSamples(perClass int) []ml.Sample {
	now := time.Now().UTC()
	var samples []ml.Sample
	for i := 0; i < perClass; i++ {
		samples = append(samples, ml.Sample{
			Text:      fmt.Sprintf("what is item number %d", i),
			Label:     "EASY",
			CreatedAt: now,
		})
		samples = append(samples, ml.Sample{
			Text: fmt.Sprintf("design a distributed scalable architecture for workload %d "+
				"and explain the consistency tradeoffs across replicated partitions", i),
			Label:     "HARD",
			CreatedAt: now,
		})
	}
	return samples
}

// noisySamples assigns labels independent of text so no candidate can do
// better than chance.
func noisySamples(perClass int) []ml.Sample {
	now := time.Now().UTC()
	var samples []ml.Sample
	for i := 0; i < perClass; i++ {
		text := fmt.Sprintf("the same ambiguous query text repeated %d", i%3)
		samples = append(samples, ml.Sample{Text: text, Label: "EASY", CreatedAt: now})
		samples = append(samples, ml.Sample{Text: text, Label: "HARD", CreatedAt: now})
	}
	return samples
}

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MinSamples:          50,
		HoldoutRatio:        0.2,
		RecentWindow:        30 * 24 * time.Hour,
		ConfidenceThreshold: 0.6,
		RegressionTolerance: 0.95,
		Trainer:             ml.DefaultTrainerConfig(),
	}
}

func newTestPipeline(samples []ml.Sample, registry *fakeRegistry, artifacts *fakeArtifacts) *Pipeline {
	return NewPipeline(&fakeSampleSource{samples: samples}, registry, artifacts,
		pipelineDense, pipelineOrder, testPipelineConfig(), nil)
}

func TestPipeline_SkipsBelowMinimumSamples(t *testing.T) {
	registry := &fakeRegistry{}
	artifacts := newFakeArtifacts()
	p := newTestPipeline(separableSamples(10), registry, artifacts) // 20 samples, need 50

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Promoted {
		t.Error("expected no promotion below minimum samples")
	}
	if !strings.Contains(result.Reason, "insufficient samples") {
		t.Errorf("unexpected reason %q", result.Reason)
	}
	if len(artifacts.uploaded) != 0 {
		t.Error("no artifact should be uploaded for a skipped run")
	}
	if p.State() != StateIdle {
		t.Errorf("pipeline should return to idle, got %s", p.State())
	}
}

func TestPipeline_FirstRunPromotes(t *testing.T) {
	registry := &fakeRegistry{}
	artifacts := newFakeArtifacts()
	p := newTestPipeline(separableSamples(40), registry, artifacts)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Promoted {
		t.Fatalf("expected promotion, reason: %s", result.Reason)
	}
	if len(registry.promoted) != 1 {
		t.Fatalf("expected one registry flip, got %d", len(registry.promoted))
	}
	meta := registry.promoted[0]
	if meta.Version != result.Version {
		t.Errorf("registry version %s != result version %s", meta.Version, result.Version)
	}
	if !meta.IsActive {
		t.Error("promoted metadata must be active")
	}
	if _, ok := artifacts.uploaded[meta.Version]; !ok {
		t.Error("artifact missing for promoted version")
	}
	if result.Full.Accuracy < 0.9 {
		t.Errorf("separable corpus should evaluate well, accuracy %v", result.Full.Accuracy)
	}

	// The artifact round-trips into a servable model.
	data, err := artifacts.Download(context.Background(), meta.Version)
	if err != nil {
		t.Fatalf("download artifact: %v", err)
	}
	if _, err := ml.Unmarshal(data); err != nil {
		t.Fatalf("promoted artifact does not deserialize: %v", err)
	}
}

func TestPipeline_RejectsRegressingCandidate(t *testing.T) {
	registry := &fakeRegistry{
		active: &ml.ModelMetadata{
			Version: "v-active",
			Metrics: ml.ModelMetrics{
				Recent: ml.Metrics{F1Score: 1.0, Dataset: "recent"},
			},
		},
	}
	artifacts := newFakeArtifacts()
	p := newTestPipeline(noisySamples(40), registry, artifacts)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Promoted {
		t.Fatal("noisy candidate must not displace a perfect active model")
	}
	if !strings.Contains(result.Reason, "regression") {
		t.Errorf("unexpected reason %q", result.Reason)
	}
	if len(artifacts.uploaded) != 0 {
		t.Error("rejected candidate must leave no artifact")
	}
	if registry.active.Version != "v-active" {
		t.Error("active model must be untouched by a rejected run")
	}
}

func TestPipeline_FailedRegistryFlipRemovesArtifact(t *testing.T) {
	registry := &fakeRegistry{promoteErr: errors.New("tx failed")}
	artifacts := newFakeArtifacts()
	p := newTestPipeline(separableSamples(40), registry, artifacts)

	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failed registry flip")
	}
	if len(artifacts.uploaded) != 0 {
		t.Error("artifact should be deleted after failed promotion")
	}
	if len(artifacts.deleted) != 1 {
		t.Errorf("expected one delete, got %d", len(artifacts.deleted))
	}
	if p.State() != StateIdle {
		t.Errorf("pipeline should return to idle after failure, got %s", p.State())
	}
}

func TestPipeline_SecondRunOnUnchangedDataIsRejected(t *testing.T) {
	registry := &fakeRegistry{}
	artifacts := newFakeArtifacts()
	samples := separableSamples(40)
	p := newTestPipeline(samples, registry, artifacts)

	first, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.Promoted {
		t.Fatalf("first run should promote, reason: %s", first.Reason)
	}

	// Unchanged corpus, deterministic trainer: the second candidate scores
	// exactly the baseline and must not displace the active model.
	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Promoted {
		t.Fatalf("second run on unchanged data must be rejected, reason: %s", second.Reason)
	}
	if !strings.Contains(second.Reason, "no improvement") {
		t.Errorf("unexpected reason %q", second.Reason)
	}
	if registry.active.Version != first.Version {
		t.Errorf("active version churned: %s != %s", registry.active.Version, first.Version)
	}
	if len(registry.promoted) != 1 {
		t.Errorf("expected exactly one registry flip, got %d", len(registry.promoted))
	}
	if len(artifacts.uploaded) != 1 {
		t.Errorf("rejected candidate must not upload an artifact, have %d", len(artifacts.uploaded))
	}
}

func TestPipeline_StrictlyBetterCandidateStillPromotes(t *testing.T) {
	registry := &fakeRegistry{
		active: &ml.ModelMetadata{
			Version: "v-active",
			Metrics: ml.ModelMetrics{
				Recent: ml.Metrics{F1Score: 0.5, Dataset: "recent"},
			},
		},
	}
	artifacts := newFakeArtifacts()
	p := newTestPipeline(separableSamples(40), registry, artifacts)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Promoted {
		t.Fatalf("candidate beating the baseline must promote, reason: %s", result.Reason)
	}
	if registry.active.Version != result.Version {
		t.Errorf("active version %s != promoted %s", registry.active.Version, result.Version)
	}
}
