package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/madigan/contentpipe/internal/content"
)

const jobColumns = `id, status, keyword, category, competitor_analysis, generated_content, final_post, error, created_at, updated_at`

// CreateJob inserts a new job record. The id must be unique; inserting a
// duplicate id is a storage error.
func (s *Store) CreateJob(job content.ContentJob) error {
	analysis, generated, post, err := marshalStageResults(job)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO content_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.Keyword, string(job.Category),
		analysis, generated, post, nullString(job.Error),
		job.CreatedAt.UTC().Format(time.RFC3339), job.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetJob returns the job with the given id, or ErrNotFound.
func (s *Store) GetJob(id string) (content.ContentJob, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM content_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return content.ContentJob{}, ErrNotFound
	}
	return job, err
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs() ([]content.ContentJob, error) {
	rows, err := s.db.Query(`SELECT ` + jobColumns + ` FROM content_jobs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []content.ContentJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob writes the job's mutable fields (status, stage results, error)
// and bumps updated_at. Immutable fields (keyword, category, created_at)
// are left untouched.
func (s *Store) UpdateJob(job content.ContentJob) error {
	analysis, generated, post, err := marshalStageResults(job)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE content_jobs
		SET status = ?, competitor_analysis = ?, generated_content = ?, final_post = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(job.Status), analysis, generated, post, nullString(job.Error),
		time.Now().UTC().Format(time.RFC3339), job.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimJob transitions a job's status from `from` to `to` only if the
// stored status still equals `from`. Returns ErrConflict when another
// writer got there first, so concurrent advances on the same job cannot
// both proceed.
func (s *Store) ClaimJob(id string, from, to content.JobStatus) (content.ContentJob, error) {
	res, err := s.db.Exec(`
		UPDATE content_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC().Format(time.RFC3339), id, string(from),
	)
	if err != nil {
		return content.ContentJob{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return content.ContentJob{}, err
	}
	if n == 0 {
		if _, getErr := s.GetJob(id); getErr != nil {
			return content.ContentJob{}, getErr
		}
		return content.ContentJob{}, fmt.Errorf("claiming job %s (%s -> %s): %w", id, from, to, ErrConflict)
	}
	return s.GetJob(id)
}

// DeleteJob removes the record unconditionally.
func (s *Store) DeleteJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM content_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountJobs returns the total number of jobs and how many are published.
func (s *Store) CountJobs() (total, published int, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM content_jobs`, string(content.StatusPublished),
	).Scan(&total, &published)
	return total, published, err
}

// HasActiveJob reports whether a non-failed job already exists for the
// keyword. Failed jobs don't count: the operator may recreate them.
func (s *Store) HasActiveJob(keyword string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM content_jobs WHERE keyword = ? AND status != ?`,
		keyword, string(content.StatusFailed),
	).Scan(&n)
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (content.ContentJob, error) {
	var (
		job                       content.ContentJob
		status, category          string
		analysis, generated, post sql.NullString
		jobErr                    sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(&job.ID, &status, &job.Keyword, &category, &analysis, &generated, &post, &jobErr, &createdAt, &updatedAt)
	if err != nil {
		return content.ContentJob{}, err
	}
	job.Status = content.JobStatus(status)
	job.Category = content.Category(category)
	job.Error = jobErr.String

	if err := unmarshalInto(analysis, &job.CompetitorAnalysis); err != nil {
		return content.ContentJob{}, fmt.Errorf("decoding competitor analysis for job %s: %w", job.ID, err)
	}
	if err := unmarshalInto(generated, &job.GeneratedContent); err != nil {
		return content.ContentJob{}, fmt.Errorf("decoding generated content for job %s: %w", job.ID, err)
	}
	if err := unmarshalInto(post, &job.FinalPost); err != nil {
		return content.ContentJob{}, fmt.Errorf("decoding final post for job %s: %w", job.ID, err)
	}

	if job.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return content.ContentJob{}, fmt.Errorf("parsing created_at for job %s: %w", job.ID, err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return content.ContentJob{}, fmt.Errorf("parsing updated_at for job %s: %w", job.ID, err)
	}
	return job, nil
}

func marshalStageResults(job content.ContentJob) (analysis, generated, post sql.NullString, err error) {
	if analysis, err = marshalNullable(job.CompetitorAnalysis); err != nil {
		return analysis, generated, post, fmt.Errorf("encoding competitor analysis: %w", err)
	}
	if generated, err = marshalNullable(job.GeneratedContent); err != nil {
		return analysis, generated, post, fmt.Errorf("encoding generated content: %w", err)
	}
	if post, err = marshalNullable(job.FinalPost); err != nil {
		return analysis, generated, post, fmt.Errorf("encoding final post: %w", err)
	}
	return analysis, generated, post, nil
}

func marshalNullable[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalInto[T any](src sql.NullString, dst **T) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(src.String), &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
