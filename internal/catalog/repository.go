package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
	"github.com/topicseg/topicseg-agent/internal/transcript"
)

type Repository interface {
	SaveVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, videoID string) (*Video, error)
	GetVideoDuration(ctx context.Context, videoID string) (float64, error)
	CountVideos(ctx context.Context) (int, error)

	SaveSegmentation(ctx context.Context, videoID string, seg *segmentation.Segmentation, outcome *segmentation.Outcome) (int64, error)
	GetSegmentation(ctx context.Context, videoID string) (*StoredSegmentation, error)
	GetSegmentsByTime(ctx context.Context, videoID string, start, end float64) ([]segmentation.Segment, error)
	SearchSegments(ctx context.Context, videoID, query string) ([]segmentation.Segment, error)
	Stats(ctx context.Context) (*Stats, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	SetJobSegmentation(ctx context.Context, id string, segmentationID int64) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveVideo inserts or replaces the transcript of a video. Duration and
// snippet count are derived from the transcript when it is present.
func (r *SQLiteRepository) SaveVideo(ctx context.Context, v *Video) error {
	if len(v.Transcript) > 0 {
		v.DurationSeconds = transcript.TotalDuration(v.Transcript)
		v.SnippetCount = len(v.Transcript)
	}
	snippets := v.Transcript
	if snippets == nil {
		snippets = []transcript.Snippet{}
	}
	data, err := json.Marshal(snippets)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	ts := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = ts
	}
	v.UpdatedAt = ts

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO videos (video_id, title, duration_seconds, snippet_count, transcript_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			title = excluded.title,
			duration_seconds = excluded.duration_seconds,
			snippet_count = excluded.snippet_count,
			transcript_json = excluded.transcript_json,
			updated_at = excluded.updated_at
	`, v.VideoID, nullString(v.Title), v.DurationSeconds, v.SnippetCount, string(data),
		v.CreatedAt.Format(time.RFC3339), v.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	var v Video
	var title sql.NullString
	var data, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT video_id, title, duration_seconds, snippet_count, transcript_json, created_at, updated_at
		FROM videos WHERE video_id = ?
	`, videoID).Scan(&v.VideoID, &title, &v.DurationSeconds, &v.SnippetCount, &data, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &v.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript for %s: %w", videoID, err)
	}
	v.Title = title.String
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &v, nil
}

// GetVideoDuration returns 0 when the video is unknown.
func (r *SQLiteRepository) GetVideoDuration(ctx context.Context, videoID string) (float64, error) {
	var d float64
	err := r.db.QueryRowContext(ctx, "SELECT duration_seconds FROM videos WHERE video_id = ?", videoID).Scan(&d)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return d, err
}

func (r *SQLiteRepository) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&count)
	return count, err
}

// SaveSegmentation stores a segmentation and its segment rows in one
// transaction and returns the new segmentation id. A nil outcome records a
// complete run with no chunk accounting.
func (r *SQLiteRepository) SaveSegmentation(ctx context.Context, videoID string, seg *segmentation.Segmentation, outcome *segmentation.Outcome) (int64, error) {
	if seg == nil {
		return 0, fmt.Errorf("save segmentation for %s: nil segmentation", videoID)
	}
	data, err := json.Marshal(seg)
	if err != nil {
		return 0, fmt.Errorf("marshal segmentation: %w", err)
	}

	var processed, total sql.NullInt64
	if outcome != nil {
		processed = sql.NullInt64{Int64: int64(outcome.ChunksSucceeded), Valid: true}
		total = sql.NullInt64{Int64: int64(outcome.TotalChunks), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO segmentations (video_id, overall_topic, total_segments, segmentation_json, processing_status, chunks_processed, total_chunks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, videoID, nullString(seg.OverallTopic), len(seg.Segments), string(data), ProcessingStatus(outcome),
		processed, total, now())
	if err != nil {
		return 0, fmt.Errorf("insert segmentation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, s := range seg.Segments {
		topics, err := json.Marshal(nonNilStrings(s.KeyTopics))
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO segments (segmentation_id, video_id, position, title, start_time, end_time, summary, key_topics_json, difficulty)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, videoID, i, s.Title, s.StartTime, s.EndTime, nullString(s.Summary), string(topics), string(s.Difficulty.OrDefault())); err != nil {
			return 0, fmt.Errorf("insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetSegmentation returns the most recent segmentation of a video.
func (r *SQLiteRepository) GetSegmentation(ctx context.Context, videoID string) (*StoredSegmentation, error) {
	var s StoredSegmentation
	var topic sql.NullString
	var processed, total sql.NullInt64
	var data, createdAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, video_id, overall_topic, total_segments, segmentation_json, processing_status, chunks_processed, total_chunks, created_at
		FROM segmentations WHERE video_id = ?
		ORDER BY id DESC LIMIT 1
	`, videoID).Scan(&s.ID, &s.VideoID, &topic, &s.TotalSegments, &data, &s.ProcessingStatus, &processed, &total, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var seg segmentation.Segmentation
	if err := json.Unmarshal([]byte(data), &seg); err != nil {
		return nil, fmt.Errorf("decode segmentation %d: %w", s.ID, err)
	}
	s.Segmentation = &seg
	s.OverallTopic = topic.String
	s.ChunksProcessed = int(processed.Int64)
	s.TotalChunks = int(total.Int64)
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &s, nil
}

// GetSegmentsByTime returns segments of the latest segmentation that overlap
// [start, end].
func (r *SQLiteRepository) GetSegmentsByTime(ctx context.Context, videoID string, start, end float64) ([]segmentation.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, start_time, end_time, summary, key_topics_json, difficulty
		FROM segments
		WHERE segmentation_id = (SELECT MAX(id) FROM segmentations WHERE video_id = ?)
			AND end_time >= ? AND start_time <= ?
		ORDER BY position
	`, videoID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanSegments(rows)
}

// SearchSegments matches query against title, summary and key topics of the
// latest segmentation, case-insensitively.
func (r *SQLiteRepository) SearchSegments(ctx context.Context, videoID, query string) ([]segmentation.Segment, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, start_time, end_time, summary, key_topics_json, difficulty
		FROM segments
		WHERE segmentation_id = (SELECT MAX(id) FROM segmentations WHERE video_id = ?)
			AND (lower(title) LIKE ? ESCAPE '\'
				OR lower(coalesce(summary, '')) LIKE ? ESCAPE '\'
				OR lower(key_topics_json) LIKE ? ESCAPE '\')
		ORDER BY position
	`, videoID, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanSegments(rows)
}

func (r *SQLiteRepository) scanSegments(rows *sql.Rows) ([]segmentation.Segment, error) {
	var segments []segmentation.Segment
	for rows.Next() {
		var s segmentation.Segment
		var summary sql.NullString
		var topics, difficulty string

		if err := rows.Scan(&s.Title, &s.StartTime, &s.EndTime, &summary, &topics, &difficulty); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(topics), &s.KeyTopics); err != nil {
			return nil, fmt.Errorf("decode key topics: %w", err)
		}
		s.Summary = summary.String
		s.Difficulty = segmentation.Difficulty(difficulty)
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

func (r *SQLiteRepository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM videos),
			(SELECT COUNT(*) FROM segmentations),
			(SELECT COUNT(*) FROM segments),
			(SELECT COALESCE(SUM(duration_seconds), 0) FROM videos)
	`).Scan(&s.Videos, &s.Segmentations, &s.Segments, &s.TotalDurationSeconds)
	if err != nil {
		return nil, err
	}
	s.TotalDurationHours = s.TotalDurationSeconds / 3600
	return &s, nil
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, video_id, force, progress, segmentation_id, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.VideoID), boolToInt(j.Force), j.Progress,
		nullInt64(j.SegmentationID), nullString(j.Error),
		j.CreatedAt.UTC().Format(timeLayout), j.UpdatedAt.UTC().Format(timeLayout))
	return err
}

const jobColumns = `id, type, status, video_id, force, progress, segmentation_id, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var videoID, errMsg sql.NullString
	var segID sql.NullInt64
	var force int
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Type, &j.Status, &videoID, &force, &j.Progress, &segID, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.VideoID = videoID.String
	j.Force = force == 1
	j.SegmentationID = segID.Int64
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE status = 'pending' ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), now(), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, now(), id)
	return err
}

func (r *SQLiteRepository) SetJobSegmentation(ctx context.Context, id string, segmentationID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET segmentation_id = ?, updated_at = ? WHERE id = ?
	`, segmentationID, now(), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n int64) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
