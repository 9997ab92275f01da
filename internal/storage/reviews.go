package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jugalmahida/prodevscore/internal/api"
)

// ReviewRecord is one completed review in the local history.
type ReviewRecord struct {
	ID            int64              `json:"id"`
	GithubURL     string             `json:"github_url"`
	RepoName      string             `json:"repo_name"`
	Login         string             `json:"login"`
	CommitCount   int                `json:"commit_count"`
	AverageScore  *float64           `json:"average_score"`
	TotalReviewed int                `json:"total_reviewed"`
	ValidScores   int                `json:"valid_scores"`
	CreatedAt     string             `json:"created_at"`
	Commits       []api.CommitResult `json:"commits,omitempty"`
}

// RepoNameFromURL extracts "owner/name" from a GitHub repository URL.
// Unparseable URLs fall back to the raw string.
func RepoNameFromURL(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return url
}

// SaveReview records a completed review and its per-commit results.
func (db *DB) SaveReview(githubURL, login string, commitCount int, res *api.FinalResults) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var avg sql.NullFloat64
	if res.AverageScore != nil {
		avg = sql.NullFloat64{Float64: *res.AverageScore, Valid: true}
	}

	result, err := tx.Exec(`
		INSERT INTO reviews (github_url, repo_name, login, commit_count, average_score, total_reviewed, valid_scores)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		githubURL, RepoNameFromURL(githubURL), login, commitCount, avg, res.TotalReviewed, res.ValidScores)
	if err != nil {
		return 0, fmt.Errorf("insert review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("review id: %w", err)
	}

	for _, c := range res.ReviewResults {
		var score sql.NullFloat64
		if c.Score != nil {
			score = sql.NullFloat64{Float64: *c.Score, Valid: true}
		}
		if _, err := tx.Exec(`
			INSERT INTO review_commits (review_id, sha, review, score)
			VALUES (?, ?, ?, ?)`,
			id, c.SHA, c.Review, score); err != nil {
			return 0, fmt.Errorf("insert commit result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListReviews returns the most recent reviews, newest first.
// limit <= 0 means no limit.
func (db *DB) ListReviews(limit int) ([]ReviewRecord, error) {
	query := `
		SELECT id, github_url, repo_name, login, commit_count, average_score, total_reviewed, valid_scores, created_at
		FROM reviews ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var records []ReviewRecord
	for rows.Next() {
		rec, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetReview returns one review with its per-commit results.
func (db *DB) GetReview(id int64) (*ReviewRecord, error) {
	row := db.QueryRow(`
		SELECT id, github_url, repo_name, login, commit_count, average_score, total_reviewed, valid_scores, created_at
		FROM reviews WHERE id = ?`, id)

	rec, err := scanReview(row)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT sha, review, score FROM review_commits WHERE review_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list commit results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c api.CommitResult
		var score sql.NullFloat64
		if err := rows.Scan(&c.SHA, &c.Review, &score); err != nil {
			return nil, fmt.Errorf("scan commit result: %w", err)
		}
		if score.Valid {
			v := score.Float64
			c.Score = &v
		}
		rec.Commits = append(rec.Commits, c)
	}
	return rec, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*ReviewRecord, error) {
	var rec ReviewRecord
	var avg sql.NullFloat64
	err := row.Scan(&rec.ID, &rec.GithubURL, &rec.RepoName, &rec.Login, &rec.CommitCount,
		&avg, &rec.TotalReviewed, &rec.ValidScores, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan review: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		rec.AverageScore = &v
	}
	return &rec, nil
}
