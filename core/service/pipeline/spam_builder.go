package pipeline

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"spamguard_server/core/service/textnorm"
)

// ErrNoProba is returned by PredictProba when the selected classifier cannot
// produce probabilities.
var ErrNoProba = errors.New("classifier does not support probabilities")

// ClassifierKind is the closed enumeration of supported classifiers.
type ClassifierKind int

const (
	ClassifierLogReg ClassifierKind = iota
	ClassifierSGD
	ClassifierNaiveBayes
	ClassifierRandomForest
	ClassifierStacking
)

func (k ClassifierKind) String() string {
	switch k {
	case ClassifierLogReg:
		return "logreg"
	case ClassifierSGD:
		return "sgd"
	case ClassifierNaiveBayes:
		return "naive_bayes"
	case ClassifierRandomForest:
		return "random_forest"
	case ClassifierStacking:
		return "stacking"
	default:
		return "unknown"
	}
}

// ParseClassifierKind maps external spellings onto the enumeration.
func ParseClassifierKind(s string) (ClassifierKind, error) {
	switch s {
	case "logreg", "logistic", "":
		return ClassifierLogReg, nil
	case "sgd":
		return ClassifierSGD, nil
	case "naive_bayes", "nb":
		return ClassifierNaiveBayes, nil
	case "random_forest", "rf":
		return ClassifierRandomForest, nil
	case "stacking":
		return ClassifierStacking, nil
	default:
		return 0, fmt.Errorf("unknown classifier %q", s)
	}
}

// EmbedFunc is the injected embedding capability: the builder never computes
// embeddings itself, it only concatenates what the provider returns.
type EmbedFunc func(texts []string) ([][]float64, error)

// Config enumerates the feature branches and the classifier of a pipeline.
// Validated at construction time; no string dispatch afterwards.
type Config struct {
	UseHashing          bool
	IncludeWordNgrams   bool
	IncludeCharNgrams   bool
	IncludeNumeric      bool
	UseReduction        bool
	ReductionComponents int
	Classifier          ClassifierKind
	UseEmbeddings       bool
}

// DefaultConfig mirrors the production training configuration.
func DefaultConfig() Config {
	return Config{
		IncludeWordNgrams:   true,
		IncludeCharNgrams:   true,
		IncludeNumeric:      true,
		ReductionComponents: 150,
		Classifier:          ClassifierLogReg,
	}
}

func (c Config) validate() error {
	if c.Classifier < ClassifierLogReg || c.Classifier > ClassifierStacking {
		return fmt.Errorf("invalid classifier kind %d", c.Classifier)
	}
	if !c.IncludeWordNgrams && !c.IncludeCharNgrams && !c.IncludeNumeric && !c.UseEmbeddings {
		return errors.New("config enables no feature branch")
	}
	if c.UseReduction && c.ReductionComponents <= 0 {
		return fmt.Errorf("reduction enabled with %d components", c.ReductionComponents)
	}
	return nil
}

// hasNgrams reports whether any n-gram branch is enabled; reduction only
// applies when one is.
func (c Config) hasNgrams() bool {
	return c.IncludeWordNgrams || c.IncludeCharNgrams
}

// ScoringPipeline is a trained (or trainable) end-to-end scorer. All exported
// fields serialize with gob; the normalizer and the embedding function are
// process-local and rebuilt/rebound after decode.
type ScoringPipeline struct {
	Cfg      Config
	NormOpts textnorm.Options

	Word     *TfidfVectorizer
	WordHash *HashingVectorizer
	Char     *TfidfVectorizer
	CharHash *HashingVectorizer
	Numeric  *NumericExtractor
	EmbedDim int

	Reducer *RandomProjection
	Model   Classifier

	norm  *textnorm.Normalizer
	embed EmbedFunc
}

func init() {
	gob.Register(&LogisticRegression{})
	gob.Register(&SGDLogistic{})
	gob.Register(&MultinomialNB{})
	gob.Register(&RandomForest{})
	gob.Register(&StackingEnsemble{})
}

// Build assembles an untrained pipeline from a validated config.
func Build(cfg Config) (*ScoringPipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &ScoringPipeline{
		Cfg:      cfg,
		NormOpts: textnorm.DefaultOptions(),
	}
	p.norm = textnorm.New(p.NormOpts)

	if cfg.IncludeWordNgrams {
		if cfg.UseHashing {
			p.WordHash = NewHashingVectorizer(AnalyzerWord)
		} else {
			p.Word = NewTfidfVectorizer(AnalyzerWord)
		}
	}
	if cfg.IncludeCharNgrams {
		if cfg.UseHashing {
			p.CharHash = NewHashingVectorizer(AnalyzerChar)
		} else {
			p.Char = NewTfidfVectorizer(AnalyzerChar)
		}
	}
	if cfg.IncludeNumeric {
		p.Numeric = NewNumericExtractor(p.NormOpts)
	}

	switch cfg.Classifier {
	case ClassifierLogReg:
		p.Model = NewLogisticRegression()
	case ClassifierSGD:
		p.Model = NewSGDLogistic()
	case ClassifierNaiveBayes:
		p.Model = NewMultinomialNB()
	case ClassifierRandomForest:
		p.Model = NewRandomForest(200)
	case ClassifierStacking:
		p.Model = NewStackingEnsemble()
	}

	return p, nil
}

// BindEmbedder attaches the process's embedding provider. Required before Fit
// or scoring when the config enables embeddings, and again after Decode.
func (p *ScoringPipeline) BindEmbedder(fn EmbedFunc) {
	p.embed = fn
}

// NeedsEmbedder reports whether scoring requires an embedding provider bound.
func (p *ScoringPipeline) NeedsEmbedder() bool {
	return p.Cfg.UseEmbeddings && p.embed == nil
}

// branch offsets into the concatenated feature space.
func (p *ScoringPipeline) layout() (wordOff, charOff, numOff, embOff, dim int) {
	off := 0
	wordOff = off
	if p.Word != nil {
		off += p.Word.Dim()
	} else if p.WordHash != nil {
		off += p.WordHash.Dim()
	}
	charOff = off
	if p.Char != nil {
		off += p.Char.Dim()
	} else if p.CharHash != nil {
		off += p.CharHash.Dim()
	}
	numOff = off
	if p.Numeric != nil {
		off += NumericDim
	}
	embOff = off
	if p.Cfg.UseEmbeddings {
		off += p.EmbedDim
	}
	return wordOff, charOff, numOff, embOff, off
}

func merge(dst Vector, src Vector, offset int) {
	for i, v := range src {
		if v != 0 {
			dst[offset+i] = v
		}
	}
}

// vectorize assembles the concatenated feature vector for one message.
func (p *ScoringPipeline) vectorize(raw, normalized string, embedding []float64) Vector {
	wordOff, charOff, numOff, embOff, _ := p.layout()
	v := make(Vector)

	if p.Word != nil {
		merge(v, p.Word.Transform(normalized), wordOff)
	} else if p.WordHash != nil {
		merge(v, p.WordHash.Transform(normalized), wordOff)
	}
	if p.Char != nil {
		merge(v, p.Char.Transform(normalized), charOff)
	} else if p.CharHash != nil {
		merge(v, p.CharHash.Transform(normalized), charOff)
	}
	if p.Numeric != nil {
		for i, val := range p.Numeric.Transform(raw) {
			if val != 0 {
				v[numOff+i] = val
			}
		}
	}
	for i, val := range embedding {
		if val != 0 {
			v[embOff+i] = val
		}
	}
	return v
}

// transform runs normalization, all branches and optional reduction for a
// batch of raw texts.
func (p *ScoringPipeline) transform(texts []string) ([]Vector, int, error) {
	normalized := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = p.norm.Normalize(t)
	}

	var embeddings [][]float64
	if p.Cfg.UseEmbeddings {
		if p.embed == nil {
			return nil, 0, errors.New("embedding branch enabled but no provider bound")
		}
		var err error
		embeddings, err = p.embed(normalized)
		if err != nil {
			return nil, 0, fmt.Errorf("embedding provider: %w", err)
		}
		if len(embeddings) != len(texts) {
			return nil, 0, fmt.Errorf("embedding provider returned %d rows for %d texts", len(embeddings), len(texts))
		}
	}

	_, _, _, _, dim := p.layout()
	vectors := make([]Vector, len(texts))
	for i := range texts {
		var emb []float64
		if embeddings != nil {
			emb = embeddings[i]
		}
		vectors[i] = p.vectorize(texts[i], normalized[i], emb)
	}

	if p.Reducer != nil {
		for i, v := range vectors {
			vectors[i] = p.Reducer.Project(v)
		}
		dim = p.Reducer.Components
	}
	return vectors, dim, nil
}

// Fit trains all stateful branches and the classifier on raw texts with
// binary labels (1 = spam).
func (p *ScoringPipeline) Fit(texts []string, labels []int) error {
	if len(texts) == 0 {
		return errors.New("empty training set")
	}
	if len(texts) != len(labels) {
		return fmt.Errorf("texts/labels length mismatch: %d vs %d", len(texts), len(labels))
	}

	normalized := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = p.norm.Normalize(t)
	}

	if p.Word != nil {
		p.Word.Fit(normalized)
	}
	if p.Char != nil {
		p.Char.Fit(normalized)
	}
	if p.Numeric != nil {
		p.Numeric.Fit(texts)
	}
	if p.Cfg.UseEmbeddings {
		if p.embed == nil {
			return errors.New("embedding branch enabled but no provider bound")
		}
		probe, err := p.embed(normalized[:1])
		if err != nil {
			return fmt.Errorf("embedding provider: %w", err)
		}
		if len(probe) == 0 || len(probe[0]) == 0 {
			return errors.New("embedding provider returned empty vector")
		}
		p.EmbedDim = len(probe[0])
	}
	if p.Cfg.UseReduction && p.Cfg.hasNgrams() {
		p.Reducer = NewRandomProjection(p.Cfg.ReductionComponents)
	}

	vectors, dim, err := p.transform(texts)
	if err != nil {
		return err
	}
	return p.Model.Fit(vectors, labels, dim)
}

// Predict returns hard binary labels (1 = spam).
func (p *ScoringPipeline) Predict(texts []string) ([]int, error) {
	vectors, _, err := p.transform(texts)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(vectors))
	for i, v := range vectors {
		labels[i] = p.Model.Predict(v)
	}
	return labels, nil
}

// PredictProba returns spam probabilities in [0,1], or ErrNoProba when the
// classifier cannot produce them.
func (p *ScoringPipeline) PredictProba(texts []string) ([]float64, error) {
	vectors, _, err := p.transform(texts)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(vectors))
	for i, v := range vectors {
		prob, ok := p.Model.Proba(v)
		if !ok {
			return nil, ErrNoProba
		}
		probs[i] = prob
	}
	return probs, nil
}

// SupportsProba reports whether the trained classifier produces probabilities.
func (p *ScoringPipeline) SupportsProba() bool {
	_, ok := p.Model.Proba(Vector{})
	return ok
}

// Encode serializes the trained pipeline into an opaque artifact.
func (p *ScoringPipeline) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes an artifact. Pipelines with an embedding branch must be
// re-bound with BindEmbedder before scoring.
func Decode(data []byte) (*ScoringPipeline, error) {
	var p ScoringPipeline
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}
	p.norm = textnorm.New(p.NormOpts)
	return &p, nil
}
