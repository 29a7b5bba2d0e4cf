// Package query compiles free-text search input into FTS5 query strings
// and applies recency-decay re-ranking on top of the storage layer's raw
// results.
package query

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ganot/larder/internal/repository"
)

// Glossary resolves a free-text mention to a canonical entity, so the
// query compiler can expand a known term into a disjunction over its
// canonical name and aliases. Glossary management itself (loading,
// editing, entity resolution UI) is out of scope; this module only
// consumes the interface.
type Glossary interface {
	Resolve(mention string) (key string, ok bool)
	Get(key string) (Entity, bool)
}

// Entity is one glossary entry.
type Entity struct {
	Name    string
	Aliases []string
	Parent  string
}

// MapGlossary is an in-memory Glossary usable by callers and tests.
type MapGlossary struct {
	entities      map[string]Entity
	autoMappings  map[string]string // alias (lowercased) -> key
}

// NewMapGlossary builds an empty MapGlossary.
func NewMapGlossary() *MapGlossary {
	return &MapGlossary{
		entities:     make(map[string]Entity),
		autoMappings: make(map[string]string),
	}
}

// Put registers an entity under key and indexes its name and aliases for
// Resolve.
func (g *MapGlossary) Put(key string, e Entity) {
	g.entities[key] = e
	g.autoMappings[strings.ToLower(e.Name)] = key
	for _, a := range e.Aliases {
		g.autoMappings[strings.ToLower(a)] = key
	}
}

// Resolve implements Glossary.
func (g *MapGlossary) Resolve(mention string) (string, bool) {
	key, ok := g.autoMappings[strings.ToLower(mention)]
	return key, ok
}

// Get implements Glossary.
func (g *MapGlossary) Get(key string) (Entity, bool) {
	e, ok := g.entities[key]
	return e, ok
}

var (
	hyphenatedToken = regexp.MustCompile(`^[\p{L}\p{N}]+-[\p{L}\p{N}-]*$`)
	columnPrefix    = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*:`)
)

var ftsOperators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
}

// Compile applies the documented transformation order: if the whole raw
// query maps to a known glossary entity, expand it and stop there;
// otherwise auto-quote hyphenated tokens and suffix-wildcard term by term.
func Compile(raw string, glossary Glossary) string {
	if glossary != nil {
		if key, ok := glossary.Resolve(raw); ok {
			if entity, ok := glossary.Get(key); ok {
				return expandEntity(entity)
			}
		}
	}

	tokens := tokenize(raw)

	var out []string
	for _, t := range tokens {
		if t.quoted {
			out = append(out, `"`+t.text+`"`)
			continue
		}

		word := autoQuoteHyphenated(t.text)
		out = append(out, maybeWildcard(word))
	}

	return strings.Join(out, " ")
}

type token struct {
	text   string
	quoted bool
}

// tokenize splits raw on whitespace, tracking whether each token appeared
// inside a quoted span so quoting and wildcarding are skipped for it.
func tokenize(raw string) []token {
	var tokens []token
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, token{text: cur.String(), quoted: inQuote})
			cur.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			flush()
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func autoQuoteHyphenated(word string) string {
	if hyphenatedToken.MatchString(word) {
		return `"` + word + `"`
	}
	return word
}

func expandEntity(e Entity) string {
	names := append([]string{e.Name}, e.Aliases...)
	if len(names) > 4 {
		names = names[:4] // canonical name + up to three aliases
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

func maybeWildcard(word string) string {
	if strings.HasPrefix(word, `"`) {
		return word // already quoted by autoQuoteHyphenated
	}
	if strings.HasSuffix(word, "*") {
		return word
	}
	if ftsOperators[strings.ToUpper(word)] {
		return word
	}
	if columnPrefix.MatchString(word) {
		return word
	}
	if word == "" {
		return word
	}
	return word + "*"
}

// CompileFilePath prepares a file-path search term: if it contains a dot
// and is not already quoted, wrap it so the extension is matched
// literally rather than parsed as FTS syntax.
func CompileFilePath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		return trimmed
	}
	if strings.Contains(trimmed, ".") {
		return `"` + trimmed + `"`
	}
	return trimmed
}

// Engine wraps a repository.SearchRepository with query compilation and
// recency-decay re-ranking.
type Engine struct {
	search   repository.SearchRepository
	glossary Glossary
}

// NewEngine builds a query Engine. glossary may be nil to disable
// expansion.
func NewEngine(search repository.SearchRepository, glossary Glossary) *Engine {
	return &Engine{search: search, glossary: glossary}
}

// overfetchFactor is how far above the caller's limit the engine
// over-fetches before re-ranking by decayed score.
const overfetchFactor = 20

// Search compiles raw, runs it, and, when halfLifeDays > 0, re-ranks
// by recency decay: decayed = score * 0.5^(age_days / halfLifeDays).
func (e *Engine) Search(ctx context.Context, raw string, opts repository.SearchOptions, halfLifeDays float64) ([]repository.SearchResult, error) {
	compiled := Compile(raw, e.glossary)

	limit := opts.Limit
	fetchOpts := opts
	if halfLifeDays > 0 && limit > 0 {
		fetchOpts.Limit = limit * overfetchFactor
	}

	results, err := e.search.Search(ctx, compiled, fetchOpts)
	if err != nil {
		return nil, fmt.Errorf("query search: %w", err)
	}

	if halfLifeDays <= 0 {
		return results, nil
	}

	now := time.Now()
	type scored struct {
		result  repository.SearchResult
		decayed float64
	}
	ranked := make([]scored, len(results))
	for i, r := range results {
		decayed := r.Rank
		if !r.CreatedAt.IsZero() {
			ageDays := now.Sub(r.CreatedAt).Hours() / 24
			decayed = r.Rank * math.Pow(0.5, ageDays/halfLifeDays)
		}
		ranked[i] = scored{result: r, decayed: decayed}
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].decayed < ranked[j].decayed })

	out := make([]repository.SearchResult, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.result)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SearchFiles delegates to the storage layer after compiling the
// file-path quoting rule.
func (e *Engine) SearchFiles(ctx context.Context, raw string, limit int) ([]repository.FileSearchResult, error) {
	results, err := e.search.SearchFiles(ctx, CompileFilePath(raw), limit)
	if err != nil {
		return nil, fmt.Errorf("query search files: %w", err)
	}
	return results, nil
}
