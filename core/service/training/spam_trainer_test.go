package training

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spamguard_server/core/service/registry"
)

func TestClassificationMetrics(t *testing.T) {
	yTrue := []int{1, 1, 1, 0, 0, 0}
	yPred := []int{1, 1, 0, 0, 0, 1}

	m := classificationMetrics(yTrue, yPred)
	if got := m["accuracy"]; math.Abs(got-4.0/6.0) > 1e-9 {
		t.Errorf("accuracy = %v", got)
	}
	if got := m["precision"]; math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("precision = %v", got)
	}
	if got := m["recall"]; math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("recall = %v", got)
	}
	if got := m["f1"]; math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("f1 = %v", got)
	}
}

func TestRocAUC(t *testing.T) {
	t.Run("perfect ranking", func(t *testing.T) {
		auc, ok := rocAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9})
		if !ok || math.Abs(auc-1) > 1e-9 {
			t.Fatalf("auc = %v ok = %v, want 1", auc, ok)
		}
	})
	t.Run("inverted ranking", func(t *testing.T) {
		auc, ok := rocAUC([]int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9})
		if !ok || math.Abs(auc) > 1e-9 {
			t.Fatalf("auc = %v ok = %v, want 0", auc, ok)
		}
	})
	t.Run("single class undefined", func(t *testing.T) {
		if _, ok := rocAUC([]int{1, 1}, []float64{0.1, 0.9}); ok {
			t.Fatal("single-class AUC should be undefined")
		}
	})
}

func TestPrAUC(t *testing.T) {
	auc, ok := prAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9})
	if !ok || math.Abs(auc-1) > 1e-9 {
		t.Fatalf("auc = %v ok = %v, want 1 for perfect ranking", auc, ok)
	}
	if _, ok := prAUC([]int{0, 0}, []float64{0.1, 0.9}); ok {
		t.Fatal("no-positive AUPRC should be undefined")
	}
}

func TestStratifiedSplit(t *testing.T) {
	texts := make([]string, 20)
	labels := make([]int, 20)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
		if i < 10 {
			labels[i] = 1
		}
	}

	rnd := rand.New(rand.NewSource(7))
	trainT, trainL, testT, testL := stratifiedSplit(texts, labels, rnd)

	if len(trainT)+len(testT) != 20 {
		t.Fatalf("split lost rows: %d + %d", len(trainT), len(testT))
	}
	var testPos int
	for _, l := range testL {
		testPos += l
	}
	if testPos != 2 || len(testL) != 4 {
		t.Errorf("holdout = %d rows with %d positives, want 4 rows with 2", len(testL), testPos)
	}
	var trainPos int
	for _, l := range trainL {
		trainPos += l
	}
	if trainPos != 8 {
		t.Errorf("train positives = %d, want 8", trainPos)
	}
}

func TestAugmentPositives_OnlyPositivesGrow(t *testing.T) {
	texts := []string{"free cash prize", "see you soon", "win a prize now", "lunch tomorrow"}
	labels := []int{1, 0, 1, 0}

	rnd := rand.New(rand.NewSource(1))
	outTexts, outLabels := augmentPositives(texts, labels, rnd)

	if len(outTexts) < len(texts) {
		t.Fatal("augmentation must never shrink the dataset")
	}
	for i := len(texts); i < len(outTexts); i++ {
		if outLabels[i] != 1 {
			t.Errorf("augmented row %d has label %d, want 1", i, outLabels[i])
		}
	}
}

func trainerDataset(t *testing.T) string {
	var b strings.Builder
	b.WriteString("label,text\n")
	spam := []string{
		"Free entry to win a cash prize now",
		"WINNER claim your free cash prize",
		"Urgent free prize claim cash today",
		"Win cash now free entry winner",
		"Guaranteed cash prize claim now free",
		"Free ringtone claim your prize now",
		"You won a free cash award call now",
		"Urgent prize alert win free cash",
		"Claim your guaranteed free prize now",
		"Cash prize waiting free entry winner",
	}
	ham := []string{
		"See you at the cafe at six",
		"Running late be there in ten",
		"Can you pick up milk today",
		"Meeting moved to tomorrow morning",
		"Thanks for dinner last night",
		"Are we still on for lunch",
		"I left my keys at your place",
		"The film starts at eight tonight",
		"Call her when you get a chance",
		"Let me know when you leave work",
	}
	for _, s := range spam {
		b.WriteString("spam," + s + "\n")
	}
	for _, s := range ham {
		b.WriteString("ham," + s + "\n")
	}
	return writeDataset(t, "train.csv", b.String())
}

func TestTrainAndSave_EndToEnd(t *testing.T) {
	reg, err := registry.New(t.TempDir(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	trainer := NewTrainer(reg, zerolog.Nop())

	version, meta, err := trainer.TrainAndSave(context.Background(), Options{
		DatasetPath: trainerDataset(t),
		Classifier:  "logreg",
		Seed:        42,
	})
	if err != nil {
		t.Fatalf("TrainAndSave: %v", err)
	}

	if !strings.HasPrefix(version, "v") || len(version) != len("vYYYYMMDDHHMMSS") {
		t.Errorf("version = %q, want vYYYYMMDDHHMMSS shape", version)
	}
	if meta.Threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", meta.Threshold)
	}
	if meta.Classifier != "logreg" {
		t.Errorf("classifier = %q", meta.Classifier)
	}
	if _, ok := meta.Metrics["accuracy"]; !ok {
		t.Error("metrics should include accuracy")
	}
	if meta.Metrics["train_size"]+meta.Metrics["test_size"] != 20 {
		t.Errorf("split sizes = %v + %v, want 20 total", meta.Metrics["train_size"], meta.Metrics["test_size"])
	}

	// Saved but never activated.
	if m, source := reg.GetActive(); source == registry.ActiveFound {
		t.Fatalf("training must not activate, got active %v", m.Version)
	}

	// The artifact on disk is loadable and scores.
	p, _, err := reg.Load(version)
	if err != nil {
		t.Fatalf("Load(%s): %v", version, err)
	}
	probs, err := p.PredictProba([]string{"free cash prize claim now", "see you at lunch"})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if probs[0] <= probs[1] {
		t.Errorf("spam prob %.4f should exceed ham prob %.4f", probs[0], probs[1])
	}
}

func TestTrainAndSave_BadClassifier(t *testing.T) {
	reg, err := registry.New(t.TempDir(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	trainer := NewTrainer(reg, zerolog.Nop())

	if _, _, err := trainer.TrainAndSave(context.Background(), Options{
		DatasetPath: trainerDataset(t),
		Classifier:  "svm",
	}); err == nil {
		t.Fatal("expected error for unknown classifier")
	}
}

func TestTrainAndSave_CancelledContext(t *testing.T) {
	reg, err := registry.New(t.TempDir(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	trainer := NewTrainer(reg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if _, _, err := trainer.TrainAndSave(ctx, Options{
		DatasetPath: trainerDataset(t),
		Classifier:  "stacking",
		Seed:        42,
	}); err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > 30*time.Second {
		t.Fatal("cancellation took too long")
	}
}
