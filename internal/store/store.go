package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newshive/internal/core"
)

// Store is the SQLite-backed persistence layer: processed-article cache,
// user profiles, interest weights and interaction history.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newshive.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS cached_articles (
		url TEXT PRIMARY KEY,
		title TEXT,
		brief TEXT,
		detailed TEXT,
		points TEXT,
		tags TEXT,
		category TEXT,
		rendered_text TEXT,
		processed_at DATETIME
	);`

	articleTagsTable := `
	CREATE TABLE IF NOT EXISTS article_tags (
		url TEXT,
		tag TEXT,
		PRIMARY KEY (url, tag)
	);`

	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		preferred_tags TEXT,
		blocked_tags TEXT,
		style TEXT,
		created_at DATETIME
	);`

	weightsTable := `
	CREATE TABLE IF NOT EXISTS interest_weights (
		user_id INTEGER,
		tag TEXT,
		weight REAL,
		updated_at DATETIME,
		PRIMARY KEY (user_id, tag)
	);`

	interactionsTable := `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		url TEXT,
		tags TEXT,
		action TEXT,
		timestamp DATETIME
	);`

	tables := []string{articlesTable, articleTagsTable, usersTable, weightsTable, interactionsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CacheArticle stores a processed article, replacing any previous row for
// the same URL whole. Per-tag search rows are rewritten in the same
// transaction.
func (s *Store) CacheArticle(article core.CachedArticle) error {
	points, _ := json.Marshal(article.Points)
	tags, _ := json.Marshal(article.Tags)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT OR REPLACE INTO cached_articles
	(url, title, brief, detailed, points, tags, category, rendered_text, processed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := tx.Exec(query,
		article.URL,
		article.Title,
		article.Brief,
		article.Detailed,
		string(points),
		string(tags),
		article.Category,
		article.RenderedText,
		article.ProcessedAt,
	); err != nil {
		return fmt.Errorf("failed to cache article: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM article_tags WHERE url = ?", article.URL); err != nil {
		return fmt.Errorf("failed to clear article tags: %w", err)
	}
	for _, tag := range article.Tags {
		if _, err := tx.Exec("INSERT OR REPLACE INTO article_tags (url, tag) VALUES (?, ?)", article.URL, tag); err != nil {
			return fmt.Errorf("failed to store article tag: %w", err)
		}
	}

	return tx.Commit()
}

// CachedArticleByURL returns the cached article for url, or nil on a miss.
// maxAge of zero disables the freshness check.
func (s *Store) CachedArticleByURL(url string, maxAge time.Duration) (*core.CachedArticle, error) {
	query := `
	SELECT url, title, brief, detailed, points, tags, category, rendered_text, processed_at
	FROM cached_articles
	WHERE url = ?`
	args := []interface{}{url}

	if maxAge > 0 {
		query += " AND processed_at > ?"
		args = append(args, time.Now().UTC().Add(-maxAge))
	}

	row := s.db.QueryRow(query, args...)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cached article: %w", err)
	}
	return article, nil
}

// SearchByTag returns up to limit cached articles carrying tag, newest
// first.
func (s *Store) SearchByTag(tag string, limit int) ([]core.CachedArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
	SELECT a.url, a.title, a.brief, a.detailed, a.points, a.tags, a.category, a.rendered_text, a.processed_at
	FROM cached_articles a
	JOIN article_tags t ON t.url = a.url
	WHERE t.tag = ?
	ORDER BY a.processed_at DESC
	LIMIT ?`

	rows, err := s.db.Query(query, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search by tag: %w", err)
	}
	defer rows.Close()

	var articles []core.CachedArticle
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row scanner) (*core.CachedArticle, error) {
	var article core.CachedArticle
	var points, tags string

	err := row.Scan(
		&article.URL,
		&article.Title,
		&article.Brief,
		&article.Detailed,
		&points,
		&tags,
		&article.Category,
		&article.RenderedText,
		&article.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(points), &article.Points); err != nil {
		return nil, fmt.Errorf("failed to decode cached points for %s: %w", article.URL, err)
	}
	if err := json.Unmarshal([]byte(tags), &article.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode cached tags for %s: %w", article.URL, err)
	}
	return &article, nil
}

// GetOrCreateUser returns the profile for userID, creating it with the
// catch-all preferred tag on first contact.
func (s *Store) GetOrCreateUser(userID int64) (*core.UserProfile, error) {
	profile, err := s.userByID(userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	profile = &core.UserProfile{
		UserID:        userID,
		PreferredTags: []string{core.AllTag},
		BlockedTags:   []string{},
		Style:         "brief",
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.SaveUser(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Store) userByID(userID int64) (*core.UserProfile, error) {
	query := `
	SELECT user_id, preferred_tags, blocked_tags, style, created_at
	FROM users
	WHERE user_id = ?`

	var profile core.UserProfile
	var preferred, blocked string

	err := s.db.QueryRow(query, userID).Scan(
		&profile.UserID,
		&preferred,
		&blocked,
		&profile.Style,
		&profile.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if err := json.Unmarshal([]byte(preferred), &profile.PreferredTags); err != nil {
		return nil, fmt.Errorf("failed to decode preferred tags for user %d: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(blocked), &profile.BlockedTags); err != nil {
		return nil, fmt.Errorf("failed to decode blocked tags for user %d: %w", userID, err)
	}
	return &profile, nil
}

// SaveUser persists the profile, enforcing the sentinel rules: an empty
// preferred set becomes the catch-all tag, and the catch-all disappears
// once a specific tag exists.
func (s *Store) SaveUser(profile *core.UserProfile) error {
	profile.PreferredTags = normalizePreferred(profile.PreferredTags)

	preferred, _ := json.Marshal(profile.PreferredTags)
	blocked, _ := json.Marshal(profile.BlockedTags)
	if profile.BlockedTags == nil {
		blocked = []byte("[]")
	}

	query := `
	INSERT OR REPLACE INTO users
	(user_id, preferred_tags, blocked_tags, style, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		profile.UserID,
		string(preferred),
		string(blocked),
		profile.Style,
		profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func normalizePreferred(preferred []string) []string {
	var specific []string
	for _, tag := range preferred {
		if tag != core.AllTag {
			specific = append(specific, tag)
		}
	}
	if len(specific) == 0 {
		return []string{core.AllTag}
	}
	return specific
}

// InterestWeights returns the user's stored interest weights.
func (s *Store) InterestWeights(userID int64) ([]core.InterestWeight, error) {
	query := `
	SELECT tag, weight, updated_at
	FROM interest_weights
	WHERE user_id = ?
	ORDER BY tag`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interest weights: %w", err)
	}
	defer rows.Close()

	var weights []core.InterestWeight
	for rows.Next() {
		var w core.InterestWeight
		if err := rows.Scan(&w.Tag, &w.Weight, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interest weight: %w", err)
		}
		weights = append(weights, w)
	}
	return weights, rows.Err()
}

// SaveInterestWeights replaces the user's interest weights wholesale.
func (s *Store) SaveInterestWeights(userID int64, weights []core.InterestWeight) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM interest_weights WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear interest weights: %w", err)
	}
	for _, w := range weights {
		if _, err := tx.Exec(
			"INSERT INTO interest_weights (user_id, tag, weight, updated_at) VALUES (?, ?, ?, ?)",
			userID, w.Tag, w.Weight, w.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to save interest weight: %w", err)
		}
	}
	return tx.Commit()
}

// AddInteraction appends one interaction to the user's history.
func (s *Store) AddInteraction(interaction core.Interaction) error {
	tags, _ := json.Marshal(interaction.Tags)

	query := `
	INSERT INTO interactions (user_id, url, tags, action, timestamp)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		interaction.UserID,
		interaction.URL,
		string(tags),
		interaction.Action,
		interaction.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to add interaction: %w", err)
	}
	return nil
}

// RecentInteractions returns up to limit interactions, newest first.
func (s *Store) RecentInteractions(userID int64, limit int) ([]core.Interaction, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `
	SELECT user_id, url, tags, action, timestamp
	FROM interactions
	WHERE user_id = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?`

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	defer rows.Close()

	var interactions []core.Interaction
	for rows.Next() {
		var interaction core.Interaction
		var tags string
		if err := rows.Scan(
			&interaction.UserID,
			&interaction.URL,
			&tags,
			&interaction.Action,
			&interaction.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		json.Unmarshal([]byte(tags), &interaction.Tags)
		interactions = append(interactions, interaction)
	}
	return interactions, rows.Err()
}

// Stats summarizes the store contents.
type Stats struct {
	ArticleCount     int
	UserCount        int
	InteractionCount int
	FileSize         int64
	LastUpdated      time.Time
}

// GetStats returns row counts and the database file size.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := map[string]*int{
		"SELECT COUNT(*) FROM cached_articles": &stats.ArticleCount,
		"SELECT COUNT(*) FROM users":           &stats.UserCount,
		"SELECT COUNT(*) FROM interactions":    &stats.InteractionCount,
	}
	for query, target := range queries {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.FileSize = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}
	return stats, nil
}

// ClearCache removes all cached articles and their tag rows, keeping
// user data intact.
func (s *Store) ClearCache() error {
	for _, table := range []string{"cached_articles", "article_tags"} {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s table: %w", table, err)
		}
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// CleanupOldCache removes cached articles older than maxAge.
func (s *Store) CleanupOldCache(maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)

	_, err := s.db.Exec(`
	DELETE FROM article_tags WHERE url IN
	(SELECT url FROM cached_articles WHERE processed_at < ?)`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean old article tags: %w", err)
	}

	if _, err := s.db.Exec("DELETE FROM cached_articles WHERE processed_at < ?", cutoff); err != nil {
		return fmt.Errorf("failed to clean old articles: %w", err)
	}
	return nil
}
