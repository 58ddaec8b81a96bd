package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ArticleRepository handles database operations for archived articles
type ArticleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// UpsertArticle inserts the article or updates the row with the same
// source and link.
func (r *ArticleRepository) UpsertArticle(source string, record ArticleRecord) error {
	existingID, err := r.findArticleID(source, record.Link)
	if err != nil {
		return fmt.Errorf("failed to check existing article: %w", err)
	}

	now := time.Now().UTC()

	if existingID != 0 {
		_, err = r.db.Exec(`
			UPDATE articles
			SET guid = ?, title = ?, summary = ?, published = ?,
			    content = ?, content_status = ?, content_hash = ?, updated_at = ?
			WHERE id = ?
		`, record.GUID, record.Title, record.Summary, record.Published,
			record.Content, record.ContentStatus, record.ContentHash, now, existingID)
	} else {
		_, err = r.db.Exec(`
			INSERT INTO articles (
				source, link, guid, title, summary, published,
				content, content_status, content_hash, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, source, record.Link, record.GUID, record.Title, record.Summary, record.Published,
			record.Content, record.ContentStatus, record.ContentHash, now, now)
	}

	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}

	return nil
}

// CheckDuplicate reports whether an article with the given content hash is
// already archived for the source.
func (r *ArticleRepository) CheckDuplicate(source, contentHash string) (bool, error) {
	var id int64
	err := r.db.QueryRow(`
		SELECT id FROM articles WHERE source = ? AND content_hash = ? LIMIT 1
	`, source, contentHash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return true, nil
}

// GetRecentArticles returns the newest archived articles of a source.
func (r *ArticleRepository) GetRecentArticles(source string, limit int) ([]Article, error) {
	rows, err := r.db.Query(`
		SELECT id, source, guid, link, title, summary, published,
		       content, content_status, content_hash, created_at, updated_at
		FROM articles
		WHERE source = ?
		ORDER BY published DESC, id DESC
		LIMIT ?
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var article Article
		err := rows.Scan(
			&article.ID, &article.Source, &article.GUID, &article.Link, &article.Title,
			&article.Summary, &article.Published, &article.Content, &article.ContentStatus,
			&article.ContentHash, &article.CreatedAt, &article.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *ArticleRepository) GetArticleCount(source string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM articles WHERE source = ?", source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func (r *ArticleRepository) findArticleID(source, link string) (int64, error) {
	var id int64
	err := r.db.QueryRow("SELECT id FROM articles WHERE source = ? AND link = ?", source, link).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
