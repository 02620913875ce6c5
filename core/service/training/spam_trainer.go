package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"spamguard_server/core/service/pipeline"
	"spamguard_server/core/service/registry"
	"spamguard_server/core/service/textnorm"
)

const (
	holdoutFraction = 0.2
	augmentProb     = 0.4
)

// Options select the dataset, the classifier and the feature toggles of one
// training run.
type Options struct {
	DatasetPath   string
	Classifier    string
	Augment       bool
	UseHashing    bool
	UseReduction  bool
	UseEmbeddings bool
	Overwrite     bool

	// Seed drives augmentation sampling and the holdout shuffle; zero means
	// a time-based seed.
	Seed int64
}

// Trainer runs training jobs and saves the resulting artifacts. It never
// activates what it trains.
type Trainer struct {
	registry *registry.ModelRegistry
	log      zerolog.Logger
	now      func() time.Time
}

func NewTrainer(reg *registry.ModelRegistry, log zerolog.Logger) *Trainer {
	return &Trainer{
		registry: reg,
		log:      log.With().Str("component", "trainer").Logger(),
		now:      time.Now,
	}
}

// TrainAndSave runs the full training flow and returns the saved version and
// its metadata.
func (t *Trainer) TrainAndSave(ctx context.Context, opts Options) (string, registry.Metadata, error) {
	kind, err := pipeline.ParseClassifierKind(opts.Classifier)
	if err != nil {
		return "", registry.Metadata{}, err
	}

	texts, labels, err := LoadDataset(opts.DatasetPath)
	if err != nil {
		return "", registry.Metadata{}, err
	}
	t.log.Info().Int("rows", len(texts)).Str("classifier", kind.String()).Msg("dataset loaded")

	seed := opts.Seed
	if seed == 0 {
		seed = t.now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	if opts.Augment {
		texts, labels = augmentPositives(texts, labels, rnd)
	}

	if err := ctx.Err(); err != nil {
		return "", registry.Metadata{}, err
	}

	trainTexts, trainLabels, testTexts, testLabels := stratifiedSplit(texts, labels, rnd)

	cfg := pipeline.DefaultConfig()
	cfg.Classifier = kind
	cfg.UseHashing = opts.UseHashing
	cfg.UseReduction = opts.UseReduction
	cfg.UseEmbeddings = opts.UseEmbeddings

	p, err := pipeline.Build(cfg)
	if err != nil {
		return "", registry.Metadata{}, err
	}
	if err := p.Fit(trainTexts, trainLabels); err != nil {
		return "", registry.Metadata{}, fmt.Errorf("fit: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", registry.Metadata{}, err
	}

	metrics, err := t.evaluate(p, testTexts, testLabels)
	if err != nil {
		return "", registry.Metadata{}, err
	}
	metrics["train_size"] = float64(len(trainTexts))
	metrics["test_size"] = float64(len(testTexts))

	version := "v" + t.now().UTC().Format("20060102150405")
	meta := registry.Metadata{
		Version:    version,
		CreatedAt:  t.now().UTC(),
		Classifier: kind.String(),
		Metrics:    metrics,
		Threshold:  0.5,
	}
	if _, err := t.registry.SaveArtifact(p, meta, opts.Overwrite); err != nil {
		return "", registry.Metadata{}, err
	}

	t.log.Info().
		Str("version", version).
		Float64("accuracy", metrics["accuracy"]).
		Msg("training run complete")
	return version, meta, nil
}

// evaluate scores the holdout. Rank metrics are included only when the
// classifier produces probabilities and the holdout has both classes.
func (t *Trainer) evaluate(p *pipeline.ScoringPipeline, texts []string, labels []int) (map[string]float64, error) {
	if len(texts) == 0 {
		return map[string]float64{}, nil
	}

	preds, err := p.Predict(texts)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	metrics := classificationMetrics(labels, preds)

	probs, err := p.PredictProba(texts)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoProba) {
			return metrics, nil
		}
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if auc, ok := rocAUC(labels, probs); ok {
		metrics["roc_auc"] = auc
	}
	if auc, ok := prAUC(labels, probs); ok {
		metrics["auprc"] = auc
	}
	return metrics, nil
}

// augmentPositives appends a noised copy of a sampled subset of the positive
// class. Negatives are never augmented.
func augmentPositives(texts []string, labels []int, rnd *rand.Rand) ([]string, []int) {
	aug := textnorm.NewAugmenterWithSource(rand.NewSource(rnd.Int63()))
	outTexts := append([]string(nil), texts...)
	outLabels := append([]int(nil), labels...)
	for i, label := range labels {
		if label == 1 && rnd.Float64() < augmentProb {
			outTexts = append(outTexts, aug.AddNoise(texts[i]))
			outLabels = append(outLabels, 1)
		}
	}
	return outTexts, outLabels
}

// stratifiedSplit holds out holdoutFraction of each class. Classes with fewer
// than two members stay entirely in the training split.
func stratifiedSplit(texts []string, labels []int, rnd *rand.Rand) (trainTexts []string, trainLabels []int, testTexts []string, testLabels []int) {
	var byClass [2][]int
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	test := make(map[int]bool)
	for _, members := range byClass {
		if len(members) < 2 {
			continue
		}
		shuffled := append([]int(nil), members...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		n := int(float64(len(shuffled)) * holdoutFraction)
		if n < 1 {
			n = 1
		}
		for _, idx := range shuffled[:n] {
			test[idx] = true
		}
	}

	for i := range texts {
		if test[i] {
			testTexts = append(testTexts, texts[i])
			testLabels = append(testLabels, labels[i])
		} else {
			trainTexts = append(trainTexts, texts[i])
			trainLabels = append(trainLabels, labels[i])
		}
	}
	return trainTexts, trainLabels, testTexts, testLabels
}
