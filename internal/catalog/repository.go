package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lore-anchor/protect/internal/apperr"
	"github.com/lore-anchor/protect/internal/database"
)

// Repository is the sqlx-backed Catalog: one struct per aggregate
// wrapping *database.DB, plain SQL with positional ($n) placeholders,
// sentinel nil on sql.ErrNoRows.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// CreateImage inserts a new pending Image row.
func (r *Repository) CreateImage(ctx context.Context, img *Image) error {
	query := `
		INSERT INTO images (image_id, owner_id, original_key, status, download_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)`
	_, err := r.db.ExecContext(ctx, query, img.ImageID, img.OwnerID, img.OriginalKey, StatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

// GetImage returns nil, nil when the row is absent or soft-deleted.
func (r *Repository) GetImage(ctx context.Context, imageID string) (*Image, error) {
	var img Image
	query := `SELECT * FROM images WHERE image_id = $1 AND status != $2`
	err := r.db.GetContext(ctx, &img, query, imageID, StatusDeleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// GetImageIncludingDeleted is GetImage without the soft-delete filter:
// it also returns a row already in `deleted`. The worker and DeleteImage
// do not call it.
func (r *Repository) GetImageIncludingDeleted(ctx context.Context, imageID string) (*Image, error) {
	var img Image
	err := r.db.GetContext(ctx, &img, `SELECT * FROM images WHERE image_id = $1`, imageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// ListImagesByOwner returns a descending-by-created_at page, excluding
// soft-deleted rows, plus the total row count for the owner.
func (r *Repository) ListImagesByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]Image, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT count(*) FROM images WHERE owner_id = $1 AND status != $2`, ownerID, StatusDeleted)
	if err != nil {
		return nil, 0, fmt.Errorf("count images: %w", err)
	}

	offset := (page - 1) * pageSize
	var images []Image
	query := `SELECT * FROM images WHERE owner_id = $1 AND status != $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	if err := r.db.SelectContext(ctx, &images, query, ownerID, StatusDeleted, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("list images: %w", err)
	}
	return images, total, nil
}

// CountSuccessfulSince counts non-deleted Image rows created at or after
// `since`, used to enforce the monthly quota (spec §4.1).
func (r *Repository) CountSuccessfulSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var count int
	query := `SELECT count(*) FROM images WHERE owner_id = $1 AND created_at >= $2 AND status != $3`
	if err := r.db.GetContext(ctx, &count, query, ownerID, since, StatusDeleted); err != nil {
		return 0, fmt.Errorf("count quota window: %w", err)
	}
	return count, nil
}

// UpdateStatus performs the guarded transition described in §4.2: the
// UPDATE only matches rows whose current status is a legal predecessor
// of `next`; zero rows affected maps to apperr.Conflict/InvalidTransition.
func (r *Repository) UpdateStatus(ctx context.Context, imageID string, next Status) error {
	predecessors, ok := legalPredecessors[next]
	if !ok {
		return apperr.New(apperr.Internal, fmt.Sprintf("no legal predecessor set registered for status %q", next))
	}

	query, args := buildGuardedUpdate(imageID, next, predecessors)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "invalid_transition")
	}
	return nil
}

func buildGuardedUpdate(imageID string, next Status, predecessors []Status) (string, []interface{}) {
	args := []interface{}{next, time.Now().UTC(), imageID}
	placeholder := "$4"
	inClause := ""
	for i, p := range predecessors {
		if i > 0 {
			inClause += ", "
		}
		inClause += fmt.Sprintf("$%d", 4+i)
		args = append(args, p)
	}
	_ = placeholder
	query := fmt.Sprintf(
		`UPDATE images SET status = $1, updated_at = $2 WHERE image_id = $3 AND status IN (%s)`,
		inClause,
	)
	return query, args
}

// SetProtected transitions processing → completed and writes the three
// fields only the pipeline's successful run may write (spec §3).
func (r *Repository) SetProtected(ctx context.Context, imageID, protectedKey, watermarkID string, manifest ProvenanceManifest) error {
	query := `
		UPDATE images
		SET status = $1, protected_key = $2, watermark_id = $3, provenance_manifest = $4, updated_at = $5
		WHERE image_id = $6 AND status = $7`
	res, err := r.db.ExecContext(ctx, query,
		StatusCompleted, protectedKey, watermarkID, manifest, time.Now().UTC(), imageID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("set protected: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set protected rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "invalid_transition")
	}
	return nil
}

// SetFailed transitions processing → failed. A race with a concurrent
// SetProtected is resolved by the guard: whichever terminal write lands
// first wins and the other observes zero rows affected (spec §4.2).
func (r *Repository) SetFailed(ctx context.Context, imageID string) error {
	return r.UpdateStatus(ctx, imageID, StatusFailed)
}

// SetPending transitions failed → pending, used by retry.
func (r *Repository) SetPending(ctx context.Context, imageID string) error {
	return r.UpdateStatus(ctx, imageID, StatusPending)
}

// IncrementDownloadCount is only legal when status = completed (spec §4.1).
func (r *Repository) IncrementDownloadCount(ctx context.Context, imageID string) (int64, error) {
	query := `UPDATE images SET download_count = download_count + 1, updated_at = $1
		WHERE image_id = $2 AND status = $3
		RETURNING download_count`
	var count int64
	err := r.db.GetContext(ctx, &count, query, time.Now().UTC(), imageID, StatusCompleted)
	if err == sql.ErrNoRows {
		return 0, apperr.New(apperr.Conflict, "image is not completed")
	}
	if err != nil {
		return 0, fmt.Errorf("increment download count: %w", err)
	}
	return count, nil
}

// DeleteImage soft-deletes the row. Idempotent: calling it twice leaves
// the row in `deleted` and the second call is a no-op success.
func (r *Repository) DeleteImage(ctx context.Context, imageID string) error {
	query := `UPDATE images SET status = $1, updated_at = $2 WHERE image_id = $3 AND status != $1`
	_, err := r.db.ExecContext(ctx, query, StatusDeleted, time.Now().UTC(), imageID)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// InsertTask records a new worker attempt. DB-side timestamps use UTC.
func (r *Repository) InsertTask(ctx context.Context, task *Task) error {
	query := `
		INSERT INTO tasks (task_id, image_id, worker_id, started_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, task.TaskID, task.ImageID, task.WorkerID, task.StartedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// CompleteTask marks a task row terminal with no error.
func (r *Repository) CompleteTask(ctx context.Context, taskID string) error {
	query := `UPDATE tasks SET completed_at = $1 WHERE task_id = $2 AND completed_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// FailTask marks a task row terminal with a bounded error log.
func (r *Repository) FailTask(ctx context.Context, taskID string, errLog string) error {
	truncated := TruncateErrorLog(errLog)
	query := `UPDATE tasks SET completed_at = $1, error_log = $2 WHERE task_id = $3 AND completed_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), truncated, taskID)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}

// LatestTaskForImage returns the most recently started task, or nil if
// none exists yet.
func (r *Repository) LatestTaskForImage(ctx context.Context, imageID string) (*Task, error) {
	var task Task
	query := `SELECT * FROM tasks WHERE image_id = $1 ORDER BY started_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &task, query, imageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest task for image: %w", err)
	}
	return &task, nil
}
