package index

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/query"
)

// Favorites resolves the documents an actor has marked as favorite.
type Favorites interface {
	FavoriteIDs(ctx context.Context, actorID string) (map[string]struct{}, error)
}

// SearchOptions scopes and decorates a search.
type SearchOptions struct {
	// Path restricts results to one folder. Empty searches everything.
	Path string
	// Actor is used to flag favorites. Empty flags nothing.
	Actor string
}

// Result is a matching document decorated for display.
type Result struct {
	Document
	// Extension is the lowercased title suffix after the last ".".
	Extension string `json:"extension"`
	// Favorite reports whether the actor marked the document.
	Favorite bool `json:"favori"`
	// Score is the relevance score.
	Score float64 `json:"-"`
}

// Search runs q and returns every match ordered by score, then id.
func (s *Store) Search(ctx context.Context, q string, opts SearchOptions) ([]Result, error) {
	parsed := query.Parse(q)
	compiled := parsed.Compile(opts.Path)

	var results []Result
	err := s.read(ctx, func(idx bleve.Index) error {
		size := s.cfg.MaxResults
		if size <= 0 {
			n, err := idx.DocCount()
			if err != nil {
				return errors.IndexError("failed to count documents", err)
			}
			size = int(n)
		}

		req := bleve.NewSearchRequestOptions(compiled, size, 0, false)
		req.Fields = []string{"*"}
		req.SortBy([]string{"-_score", "_id"})

		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return errors.New(errors.ErrCodeSearchFailed, "search failed", err).WithDetail("query", q)
		}

		results = make([]Result, 0, len(res.Hits))
		for _, hit := range res.Hits {
			doc := documentFromHit(hit)
			results = append(results, Result{
				Document:  doc,
				Extension: Extension(doc.Title),
				Score:     hit.Score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.markFavorites(ctx, results, opts.Actor)

	s.logger.Debug("search_completed",
		slog.String("query", parsed.String()),
		slog.String("path", opts.Path),
		slog.Int("results", len(results)))
	return results, nil
}

// markFavorites flags results the actor favorited. A failing lookup leaves
// every flag false.
func (s *Store) markFavorites(ctx context.Context, results []Result, actor string) {
	if s.favorites == nil || actor == "" || len(results) == 0 {
		return
	}

	favs, err := s.favorites.FavoriteIDs(ctx, actor)
	if err != nil {
		s.logger.Warn("favorites_lookup_failed",
			slog.String("actor", actor),
			slog.String("error", err.Error()))
		return
	}
	for i := range results {
		_, results[i].Favorite = favs[results[i].ID]
	}
}

// Extension returns the lowercased suffix of title after its last ".", or
// "" when there is none.
func Extension(title string) string {
	ext := path.Ext(title)
	if ext == "" || ext == title {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
