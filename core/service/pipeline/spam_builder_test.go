package pipeline

import (
	"strings"
	"testing"
)

var trainSpam = []string{
	"Free entry to win a cash prize now!!!",
	"WINNER! You have won a free cash prize, claim now!",
	"Urgent! Claim your free prize before midnight, call 0800123456",
	"Win cash now! Free entry for every winner, txt WIN to 80082",
	"Congratulations you won a guaranteed cash prize, claim today!",
	"FREE ringtone! Txt WIN to claim your free prize now!",
	"You have been selected for a free cash award, call now!",
	"Urgent prize alert! Win free cash, claim before it expires!",
	"Claim your guaranteed free prize now, txt CLAIM to 80082!",
	"Cash prize waiting! Free entry, winner announced today, call now!",
	"Win a free holiday and cash prize, claim now at http://spam.example",
	"URGENT! Your free cash prize expires today, call 0800999888 now!",
	"Free free free! Win cash instantly, txt PRIZE now!",
	"Winner winner! Guaranteed cash prize, claim your free entry!",
	"Your mobile number won a free prize draw, claim cash now!",
	"Last chance to win free cash! Urgent, claim your prize today!",
	"Free entry into our cash prize draw, txt WIN now to claim!",
	"Guaranteed winner! Free cash prize waiting, call 0800777666!",
	"Claim free cash now! Your prize entry expires at midnight!",
	"Win big cash prizes for free, urgent claim required, txt now!",
}

var trainHam = []string{
	"See you at the cafe at six",
	"Running late, be there in ten minutes",
	"Can you pick up milk on the way home",
	"Meeting moved to tomorrow morning",
	"Thanks for dinner last night, it was lovely",
	"Are we still on for lunch today",
	"I left my keys at your place, see you later",
	"The film starts at eight, meet outside",
	"Mum says hi, call her when you get a chance",
	"Project deadline is friday, let us sync tomorrow",
	"Happy birthday! Hope you have a lovely day",
	"Train is delayed again, see you around seven",
	"Do you want anything from the shop",
	"Just landed, will call you from the taxi",
	"Dinner at ours on saturday, bring the kids",
	"Forgot my umbrella, it is pouring here",
	"Good luck with the interview tomorrow",
	"The doctor moved my appointment to monday",
	"Let me know when you leave work",
	"Sending over the notes from the meeting now",
}

func trainingSet() ([]string, []int) {
	texts := make([]string, 0, len(trainSpam)+len(trainHam))
	labels := make([]int, 0, len(trainSpam)+len(trainHam))
	for _, t := range trainSpam {
		texts = append(texts, t)
		labels = append(labels, 1)
	}
	for _, t := range trainHam {
		texts = append(texts, t)
		labels = append(labels, 0)
	}
	return texts, labels
}

func TestParseClassifierKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ClassifierKind
		wantErr bool
	}{
		{"logreg", ClassifierLogReg, false},
		{"", ClassifierLogReg, false},
		{"sgd", ClassifierSGD, false},
		{"nb", ClassifierNaiveBayes, false},
		{"naive_bayes", ClassifierNaiveBayes, false},
		{"rf", ClassifierRandomForest, false},
		{"random_forest", ClassifierRandomForest, false},
		{"stacking", ClassifierStacking, false},
		{"svm", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClassifierKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClassifierKind(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClassifierKind(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClassifierKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuild_ConfigValidation(t *testing.T) {
	t.Run("no feature branch", func(t *testing.T) {
		if _, err := Build(Config{Classifier: ClassifierLogReg}); err == nil {
			t.Fatal("expected error for config with no branches")
		}
	})

	t.Run("invalid classifier", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Classifier = ClassifierKind(99)
		if _, err := Build(cfg); err == nil {
			t.Fatal("expected error for out-of-range classifier")
		}
	})

	t.Run("reduction without components", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.UseReduction = true
		cfg.ReductionComponents = 0
		if _, err := Build(cfg); err == nil {
			t.Fatal("expected error for reduction with zero components")
		}
	})

	t.Run("default config builds", func(t *testing.T) {
		p, err := Build(DefaultConfig())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if p.Word == nil || p.Char == nil || p.Numeric == nil {
			t.Fatal("default config should enable word, char and numeric branches")
		}
		if _, ok := p.Model.(*LogisticRegression); !ok {
			t.Fatalf("default classifier = %T, want *LogisticRegression", p.Model)
		}
	})

	t.Run("hashing swaps vectorizers", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.UseHashing = true
		p, err := Build(cfg)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if p.Word != nil || p.Char != nil {
			t.Fatal("hashing config should not build tf-idf vectorizers")
		}
		if p.WordHash == nil || p.CharHash == nil {
			t.Fatal("hashing config should build hashing vectorizers")
		}
	})
}

func TestFit_InputValidation(t *testing.T) {
	p, err := Build(DefaultConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := p.Fit(nil, nil); err == nil {
		t.Error("expected error for empty training set")
	}
	if err := p.Fit([]string{"a", "b"}, []int{1}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestFit_EmbeddingsRequireProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseEmbeddings = true
	p, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !p.NeedsEmbedder() {
		t.Fatal("NeedsEmbedder should be true before binding")
	}
	texts, labels := trainingSet()
	if err := p.Fit(texts, labels); err == nil {
		t.Fatal("Fit should fail without a bound embedding provider")
	}
}

func TestFit_WithFakeEmbedder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseEmbeddings = true
	p, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Toy embedder: one dimension counting spammy trigger words.
	p.BindEmbedder(func(texts []string) ([][]float64, error) {
		out := make([][]float64, len(texts))
		for i, txt := range texts {
			var score float64
			for _, w := range []string{"free", "win", "cash", "prize", "claim"} {
				score += float64(strings.Count(txt, w))
			}
			out[i] = []float64{score, 1}
		}
		return out, nil
	})

	texts, labels := trainingSet()
	if err := p.Fit(texts, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if p.EmbedDim != 2 {
		t.Fatalf("EmbedDim = %d, want 2", p.EmbedDim)
	}

	probs, err := p.PredictProba([]string{"free cash prize, claim now", "see you tonight"})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if probs[0] <= probs[1] {
		t.Errorf("spam prob %.4f should exceed ham prob %.4f", probs[0], probs[1])
	}
}

func TestTrainAndScore_Logreg(t *testing.T) {
	p, err := Build(DefaultConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	texts, labels := trainingSet()
	if err := p.Fit(texts, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	probs, err := p.PredictProba([]string{
		"Free entry to win cash now!!!",
		"See you at 6pm",
	})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if probs[0] <= 0.5 {
		t.Errorf("spam text scored %.4f, want > 0.5", probs[0])
	}
	if probs[1] >= 0.5 {
		t.Errorf("ham text scored %.4f, want < 0.5", probs[1])
	}

	preds, err := p.Predict([]string{"Free entry to win cash now!!!", "See you at 6pm"})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if preds[0] != 1 || preds[1] != 0 {
		t.Errorf("Predict = %v, want [1 0]", preds)
	}
}

func TestTrainAndScore_AllClassifiers(t *testing.T) {
	texts, labels := trainingSet()
	kinds := []ClassifierKind{
		ClassifierLogReg, ClassifierSGD, ClassifierNaiveBayes,
		ClassifierRandomForest, ClassifierStacking,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Classifier = kind
			p, err := Build(cfg)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if err := p.Fit(texts, labels); err != nil {
				t.Fatalf("Fit: %v", err)
			}
			if !p.SupportsProba() {
				t.Fatal("classifier should support probabilities")
			}
			probs, err := p.PredictProba([]string{
				"WINNER! Claim your free cash prize now!",
				"Running late, see you at the cafe",
			})
			if err != nil {
				t.Fatalf("PredictProba: %v", err)
			}
			if probs[0] <= probs[1] {
				t.Errorf("spam prob %.4f should exceed ham prob %.4f", probs[0], probs[1])
			}
		})
	}
}

func TestReduction_OnlyWithNgramBranches(t *testing.T) {
	texts, labels := trainingSet()

	t.Run("applied with ngrams", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.UseReduction = true
		cfg.ReductionComponents = 64
		p, err := Build(cfg)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := p.Fit(texts, labels); err != nil {
			t.Fatalf("Fit: %v", err)
		}
		if p.Reducer == nil {
			t.Fatal("reducer should be active with n-gram branches")
		}
		probs, err := p.PredictProba([]string{"free cash prize claim now", "see you at lunch"})
		if err != nil {
			t.Fatalf("PredictProba: %v", err)
		}
		if probs[0] <= probs[1] {
			t.Errorf("spam prob %.4f should exceed ham prob %.4f after reduction", probs[0], probs[1])
		}
	})

	t.Run("skipped without ngrams", func(t *testing.T) {
		cfg := Config{
			IncludeNumeric:      true,
			UseReduction:        true,
			ReductionComponents: 64,
			Classifier:          ClassifierLogReg,
		}
		p, err := Build(cfg)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := p.Fit(texts, labels); err != nil {
			t.Fatalf("Fit: %v", err)
		}
		if p.Reducer != nil {
			t.Fatal("reducer must stay inactive when no n-gram branch is enabled")
		}
	})
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	p, err := Build(DefaultConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	texts, labels := trainingSet()
	if err := p.Fit(texts, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	inputs := []string{"Free entry to win cash now!!!", "See you at 6pm"}
	want, err := p.PredictProba(inputs)
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}

	blob, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	restored, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, err := restored.PredictProba(inputs)
	if err != nil {
		t.Fatalf("PredictProba after decode: %v", err)
	}
	for i := range want {
		if diff := got[i] - want[i]; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("prob[%d] drifted after round trip: %v vs %v", i, got[i], want[i])
		}
	}
}

func TestDecode_EmbeddingPipelineNeedsRebind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseEmbeddings = true
	p, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	embed := func(texts []string) ([][]float64, error) {
		out := make([][]float64, len(texts))
		for i := range texts {
			out[i] = []float64{float64(len(texts[i])), 1}
		}
		return out, nil
	}
	p.BindEmbedder(embed)
	texts, labels := trainingSet()
	if err := p.Fit(texts, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	blob, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	restored, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !restored.NeedsEmbedder() {
		t.Fatal("decoded pipeline should require an embedder rebind")
	}
	if _, err := restored.PredictProba([]string{"hello"}); err == nil {
		t.Fatal("scoring without rebinding should fail")
	}

	restored.BindEmbedder(embed)
	if _, err := restored.PredictProba([]string{"hello"}); err != nil {
		t.Fatalf("PredictProba after rebind: %v", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("not a gob artifact")); err == nil {
		t.Fatal("expected decode error for garbage input")
	}
}
