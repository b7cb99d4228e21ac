package index

import (
	"context"
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/Aman-CERP/docsearch/internal/errors"
	"github.com/Aman-CERP/docsearch/internal/query"
)

// Document is one indexed file.
type Document struct {
	// ID is the relational file identifier in string form.
	ID string `json:"id"`
	// Title is the original filename, extension included.
	Title string `json:"title"`
	// Content is the extracted text, possibly empty.
	Content string `json:"content"`
	// Path is the owning folder identifier.
	Path string `json:"path"`
	// Tags is a comma-joined tag list.
	Tags string `json:"tags"`
}

// TagList splits Tags into trimmed, non-empty entries.
func (d Document) TagList() []string {
	return splitTags(d.Tags, ",")
}

func (d Document) fields() map[string]interface{} {
	return map[string]interface{}{
		query.FieldID:      d.ID,
		query.FieldTitle:   d.Title,
		query.FieldContent: d.Content,
		query.FieldPath:    d.Path,
		query.FieldTags:    d.Tags,
	}
}

func documentFromHit(hit *search.DocumentMatch) Document {
	str := func(name string) string {
		if v, ok := hit.Fields[name].(string); ok {
			return v
		}
		return ""
	}
	return Document{
		ID:      hit.ID,
		Title:   str(query.FieldTitle),
		Content: str(query.FieldContent),
		Path:    str(query.FieldPath),
		Tags:    str(query.FieldTags),
	}
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.ValidationError("document id is required", nil)
	}
	return nil
}

// Add indexes doc, replacing any document with the same id.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if err := validateID(doc.ID); err != nil {
		return err
	}

	err := s.write(ctx, func(idx bleve.Index) error {
		batch := idx.NewBatch()
		if err := batch.Index(doc.ID, doc.fields()); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to index document", err).WithDetail("id", doc.ID)
		}
		return commit(idx, batch)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("document_indexed",
		slog.String("id", doc.ID),
		slog.String("path", doc.Path),
		slog.Int("content_bytes", len(doc.Content)))
	return nil
}

// Update replaces every field of an existing document.
func (s *Store) Update(ctx context.Context, doc Document) error {
	if err := validateID(doc.ID); err != nil {
		return err
	}

	return s.write(ctx, func(idx bleve.Index) error {
		found, err := fetch(idx, doc.ID)
		if err != nil {
			return err
		}
		if _, ok := found[doc.ID]; !ok {
			return errors.NotFound(doc.ID)
		}

		batch := idx.NewBatch()
		if err := batch.Index(doc.ID, doc.fields()); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to update document", err).WithDetail("id", doc.ID)
		}
		return commit(idx, batch)
	})
}

// AddTag merges the ";"-separated tags in tag into the document's tags.
// Existing tags keep their order; new ones are appended once each.
func (s *Store) AddTag(ctx context.Context, id, tag string) error {
	if err := validateID(id); err != nil {
		return err
	}

	return s.write(ctx, func(idx bleve.Index) error {
		found, err := fetch(idx, id)
		if err != nil {
			return err
		}
		doc, ok := found[id]
		if !ok {
			return errors.NotFound(id)
		}

		doc.Tags = MergeTags(doc.Tags, tag)

		batch := idx.NewBatch()
		if err := batch.Index(doc.ID, doc.fields()); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to tag document", err).WithDetail("id", id)
		}
		if err := commit(idx, batch); err != nil {
			return err
		}

		s.logger.Debug("document_tagged", slog.String("id", id), slog.String("tags", doc.Tags))
		return nil
	})
}

// MergeTags unions the ";"-separated additions into the comma-joined
// existing list. Matching is exact and case-sensitive.
func MergeTags(existing, additions string) string {
	tags := splitTags(existing, ",")
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		seen[t] = struct{}{}
	}
	for _, t := range splitTags(additions, ";") {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return strings.Join(tags, ",")
}

func splitTags(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TransferDocuments moves every listed document to newPath in one batch.
// If any id is unknown nothing is changed.
func (s *Store) TransferDocuments(ctx context.Context, ids []string, newPath string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := validateID(id); err != nil {
			return err
		}
	}

	err := s.write(ctx, func(idx bleve.Index) error {
		found, err := fetch(idx, ids...)
		if err != nil {
			return err
		}

		var missing []string
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return errors.NotFound(missing...)
		}

		batch := idx.NewBatch()
		for _, doc := range found {
			doc.Path = newPath
			if err := batch.Index(doc.ID, doc.fields()); err != nil {
				return errors.New(errors.ErrCodeIndexFailed, "failed to move document", err).WithDetail("id", doc.ID)
			}
		}
		return commit(idx, batch)
	})
	if err != nil {
		return err
	}

	s.logger.Info("documents_transferred",
		slog.Int("count", len(ids)),
		slog.String("path", newPath))
	return nil
}

// Delete removes the document with id. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.DeleteMany(ctx, []string{id})
}

// DeleteMany removes every listed document in one batch. Unknown ids are
// ignored.
func (s *Store) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := validateID(id); err != nil {
			return err
		}
	}

	err := s.write(ctx, func(idx bleve.Index) error {
		batch := idx.NewBatch()
		for _, id := range ids {
			batch.Delete(id)
		}
		return commit(idx, batch)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("documents_deleted", slog.Int("count", len(ids)))
	return nil
}

// Get returns the stored document with id.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	if err := validateID(id); err != nil {
		return Document{}, err
	}

	var doc Document
	err := s.read(ctx, func(idx bleve.Index) error {
		found, err := fetch(idx, id)
		if err != nil {
			return err
		}
		d, ok := found[id]
		if !ok {
			return errors.NotFound(id)
		}
		doc = d
		return nil
	})
	return doc, err
}

// Exists reports whether a document with id is indexed.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.GetCode(err) == errors.ErrCodeDocumentNotFound {
		return false, nil
	}
	return false, err
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.read(ctx, func(idx bleve.Index) error {
		c, err := idx.DocCount()
		if err != nil {
			return errors.IndexError("failed to count documents", err)
		}
		n = c
		return nil
	})
	return n, err
}

// AllIDs returns every indexed document id, sorted.
func (s *Store) AllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.read(ctx, func(idx bleve.Index) error {
		n, err := idx.DocCount()
		if err != nil {
			return errors.IndexError("failed to count documents", err)
		}

		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = int(n)
		req.Fields = []string{}
		req.SortBy([]string{"_id"})

		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return errors.New(errors.ErrCodeSearchFailed, "failed to list documents", err)
		}
		ids = make([]string, len(res.Hits))
		for i, hit := range res.Hits {
			ids[i] = hit.ID
		}
		return nil
	})
	return ids, err
}

// fetch loads the stored documents among ids.
func fetch(idx bleve.Index, ids ...string) (map[string]Document, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery(ids))
	req.Size = len(ids)
	req.Fields = []string{"*"}

	res, err := idx.Search(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "failed to load documents", err)
	}

	found := make(map[string]Document, len(res.Hits))
	for _, hit := range res.Hits {
		found[hit.ID] = documentFromHit(hit)
	}
	return found, nil
}

func commit(idx bleve.Index, batch *bleve.Batch) error {
	if err := idx.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeIndexIO, "failed to commit batch", err)
	}
	return nil
}
