// Package catalog reads the relational file catalog that owns documents,
// folders and favorites. The database belongs to the web application, so
// it is only ever opened read-only.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/docsearch/internal/errors"
)

// Config names the catalog database and the tables read from it.
type Config struct {
	// Path is the SQLite database file.
	Path string

	FavoritesTable     string
	FavoriteFileColumn string
	FavoriteUserColumn string

	FilesTable   string
	FileIDColumn string

	// CacheSize and CacheTTL bound the per-actor favorites cache.
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultConfig matches the web application's schema.
func DefaultConfig() Config {
	return Config{
		FavoritesTable:     "FAVORIS",
		FavoriteFileColumn: "id_Fichier",
		FavoriteUserColumn: "id_Utilisateur",
		FilesTable:         "FICHIER",
		FileIDColumn:       "id_Fichier",
		CacheSize:          256,
		CacheTTL:           30 * time.Second,
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", errors.ConfigError(fmt.Sprintf("invalid SQL identifier %q", name), nil)
	}
	return `"` + name + `"`, nil
}

// Catalog is a read-only view of the catalog database.
type Catalog struct {
	db           *sql.DB
	path         string
	favoritesSQL string
	filesSQL     string
}

// Open connects to the catalog database read-only and checks it responds.
func Open(ctx context.Context, cfg Config) (*Catalog, error) {
	if cfg.Path == "" {
		return nil, errors.ConfigError("catalog database path is required", nil)
	}

	idents := make(map[string]string)
	for _, name := range []string{cfg.FavoritesTable, cfg.FavoriteFileColumn, cfg.FavoriteUserColumn, cfg.FilesTable, cfg.FileIDColumn} {
		q, err := quoteIdent(name)
		if err != nil {
			return nil, err
		}
		idents[name] = q
	}

	db, err := sql.Open("sqlite", "file:"+cfg.Path+"?mode=ro")
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "failed to open catalog database", err).
			WithDetail("path", cfg.Path)
	}
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeFileNotFound, "catalog database is unreachable", err).
			WithDetail("path", cfg.Path)
	}

	return &Catalog{
		db:   db,
		path: cfg.Path,
		favoritesSQL: fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			idents[cfg.FavoriteFileColumn], idents[cfg.FavoritesTable], idents[cfg.FavoriteUserColumn]),
		filesSQL: fmt.Sprintf("SELECT %s FROM %s",
			idents[cfg.FileIDColumn], idents[cfg.FilesTable]),
	}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// FavoriteIDs returns the file ids actorID marked as favorite.
func (c *Catalog) FavoriteIDs(ctx context.Context, actorID string) (map[string]struct{}, error) {
	ids, err := c.queryIDs(ctx, c.favoritesSQL, actorID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// FileIDs returns every file id known to the catalog.
func (c *Catalog) FileIDs(ctx context.Context) ([]string, error) {
	return c.queryIDs(ctx, c.filesSQL)
}

func (c *Catalog) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "catalog query failed", err).WithDetail("path", c.path)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, errors.New(errors.ErrCodeInternal, "catalog scan failed", err)
		}
		if id.Valid {
			ids = append(ids, id.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "catalog query failed", err)
	}
	return ids, nil
}
