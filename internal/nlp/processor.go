package nlp

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en" // registers stop_en
	_ "github.com/blevesearch/bleve/v2/analysis/lang/fr" // registers stop_fr
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsearch/internal/fold"
)

// Defaults mirror the ingestion pipeline settings.
const (
	DefaultBatchSize      = 100000
	DefaultMinTokenLength = 3
)

var (
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|ftp://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`[\p{L}0-9._%+\-]+@[\p{L}0-9.\-]+\.\p{L}{2,}`)
)

// Config configures a Processor.
type Config struct {
	// BatchSize is the chunk size in runes.
	BatchSize int
	// Workers bounds concurrent chunk processing. Zero uses NumCPU.
	Workers int
	// MinTokenLength drops shorter tokens.
	MinTokenLength int
	// StopLists names bleve token maps merged into the stop word set.
	StopLists []string
	// Lemmatizer defaults to FrenchStemmer.
	Lemmatizer Lemmatizer
}

// DefaultConfig returns the French + English configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:      DefaultBatchSize,
		Workers:        runtime.NumCPU(),
		MinTokenLength: DefaultMinTokenLength,
		StopLists:      []string{"stop_fr", "stop_en"},
		Lemmatizer:     FrenchStemmer{},
	}
}

// Processor cleans, lemmatizes and tokenizes text. It is safe for
// concurrent use.
type Processor struct {
	cfg       Config
	stopWords map[string]struct{}
	tokenizer analysis.Tokenizer
}

// New creates a Processor. Zero fields in cfg take their defaults.
func New(cfg Config) (*Processor, error) {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = def.MinTokenLength
	}
	if cfg.StopLists == nil {
		cfg.StopLists = def.StopLists
	}
	if cfg.Lemmatizer == nil {
		cfg.Lemmatizer = def.Lemmatizer
	}

	stop, err := loadStopWords(cfg.StopLists)
	if err != nil {
		return nil, err
	}

	return &Processor{
		cfg:       cfg,
		stopWords: stop,
		tokenizer: bleveunicode.NewUnicodeTokenizer(),
	}, nil
}

func loadStopWords(names []string) (map[string]struct{}, error) {
	cache := registry.NewCache()
	stop := make(map[string]struct{})
	for _, name := range names {
		tm, err := cache.TokenMapNamed(name)
		if err != nil {
			return nil, fmt.Errorf("load stop list %s: %w", name, err)
		}
		for w := range tm {
			stop[fold.Fold(w)] = struct{}{}
		}
	}
	return stop, nil
}

// IsStopWord reports whether the folded form of w is a stop word.
func (p *Processor) IsStopWord(w string) bool {
	_, ok := p.stopWords[fold.Fold(w)]
	return ok
}

// Clean returns the folded tokens of text that survive filtering, in
// reading order. Duplicates are kept.
func (p *Processor) Clean(text string) []string {
	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")

	var out []string
	for _, tok := range p.tokenizer.Tokenize([]byte(text)) {
		if tok.Type == analysis.Numeric {
			continue
		}
		for _, part := range SplitCamelCase(string(tok.Term)) {
			if hasCurrency(part) {
				continue
			}
			w := fold.Fold(part)
			if len(w) < p.cfg.MinTokenLength || !hasLetter(w) {
				continue
			}
			if _, stop := p.stopWords[w]; stop {
				continue
			}
			out = append(out, w)
		}
	}
	return out
}

// Lemmatize replaces every word of text by its lemma. Chunks are processed
// concurrently and joined with a space in their original order.
func (p *Processor) Lemmatize(ctx context.Context, text string) (string, error) {
	chunks := Chunks(text, p.cfg.BatchSize)
	results := make([]string, len(chunks))

	err := p.each(ctx, chunks, func(i int, chunk string) {
		results[i] = lemmatizeChunk(chunk, p.cfg.Lemmatizer)
	})
	if err != nil {
		return "", err
	}

	return joinNonEmpty(results), nil
}

// Tokenize lemmatizes text, cleans it chunk by chunk and returns distinct
// tokens by descending frequency. Ties keep first-seen order.
func (p *Processor) Tokenize(ctx context.Context, text string) ([]string, error) {
	lemmas, err := p.Lemmatize(ctx, text)
	if err != nil {
		return nil, err
	}

	chunks := Chunks(lemmas, p.cfg.BatchSize)
	cleaned := make([][]string, len(chunks))
	err = p.each(ctx, chunks, func(i int, chunk string) {
		cleaned[i] = p.Clean(chunk)
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var order []string
	for _, toks := range cleaned {
		for _, t := range toks {
			if _, seen := counts[t]; !seen {
				order = append(order, t)
			}
			counts[t]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order, nil
}

// each runs fn for every chunk on the bounded pool.
func (p *Processor) each(ctx context.Context, chunks []string, fn func(int, string)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i, chunk)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func joinNonEmpty(parts []string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	buf := make([]byte, 0, n)
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(buf) > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, p...)
	}
	return string(buf)
}

func hasCurrency(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Sc, r) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
