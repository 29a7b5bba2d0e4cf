package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/query"
	"github.com/ganot/larder/internal/repository"
)

func TestCompileHyphenSafeAutoQuote(t *testing.T) {
	got := query.Compile(`draw-down strategy`, nil)
	assert.Equal(t, `"draw-down" strategy*`, got)
}

func TestCompileQuotedPhrasePassesThrough(t *testing.T) {
	got := query.Compile(`"exact phrase" trailing`, nil)
	assert.Equal(t, `"exact phrase" trailing*`, got)
}

func TestCompileGlossaryExpansion(t *testing.T) {
	g := query.NewMapGlossary()
	g.Put("pg", query.Entity{Name: "Postgres", Aliases: []string{"postgresql", "psql", "pg-db", "pgsql"}})

	got := query.Compile("pg-db", g)
	assert.Equal(t, `("Postgres" OR "postgresql" OR "psql" OR "pg-db")`, got)
}

func TestCompileGlossaryOnlyExpandsWholeQueryMatch(t *testing.T) {
	g := query.NewMapGlossary()
	g.Put("pg", query.Entity{Name: "Postgres", Aliases: []string{"postgresql", "psql", "pg-db", "pgsql"}})

	// "pg-db" alone matches the glossary, but as one word inside a longer
	// query it must not expand: the whole raw string is what gets resolved.
	got := query.Compile("pg-db setup", g)
	assert.Equal(t, `"pg-db" setup*`, got)
}

func TestCompileOperatorsLeftAlone(t *testing.T) {
	got := query.Compile("foo AND bar", nil)
	assert.Equal(t, "foo* AND bar*", got)
}

func TestCompileFilePathQuotesOnDot(t *testing.T) {
	assert.Equal(t, `"main.go"`, query.CompileFilePath("main.go"))
	assert.Equal(t, "README", query.CompileFilePath("README"))
	assert.Equal(t, `"already.quoted"`, query.CompileFilePath(`"already.quoted"`))
}

type fakeSearchRepo struct {
	results []repository.SearchResult
}

func (f *fakeSearchRepo) Search(ctx context.Context, q string, opts repository.SearchOptions) ([]repository.SearchResult, error) {
	return f.results, nil
}

func (f *fakeSearchRepo) SearchFiles(ctx context.Context, q string, limit int) ([]repository.FileSearchResult, error) {
	return nil, nil
}

func TestEngineSearchAppliesRecencyDecay(t *testing.T) {
	now := time.Now()
	repo := &fakeSearchRepo{results: []repository.SearchResult{
		{SourceID: "old-but-strong", Rank: -10, CreatedAt: now.AddDate(0, 0, -365)},
		{SourceID: "new-but-weak", Rank: -1, CreatedAt: now},
	}}
	eng := query.NewEngine(repo, nil)

	out, err := eng.Search(context.Background(), "test", repository.SearchOptions{Limit: 2}, 30)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// bm25 ranks are negative and lower decayed score sorts first; at a
	// 30-day half-life the year-old strong hit decays from -10 to about
	// -0.002, so the fresh weak hit (-1) now ranks ahead of it.
	assert.Equal(t, "new-but-weak", out[0].SourceID)
	assert.Equal(t, "old-but-strong", out[1].SourceID)
}

func TestEngineSearchNoDecayWhenHalfLifeZero(t *testing.T) {
	repo := &fakeSearchRepo{results: []repository.SearchResult{
		{SourceID: "a", Rank: 1},
		{SourceID: "b", Rank: 2},
	}}
	eng := query.NewEngine(repo, nil)

	out, err := eng.Search(context.Background(), "test", repository.SearchOptions{}, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].SourceID)
	assert.Equal(t, "b", out[1].SourceID)
}
