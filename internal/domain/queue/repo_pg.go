package queue

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johnnysally/SmartCare360-sub000/internal/platform/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repoPG struct {
	pool *pgxpool.Pool
	q    db.Queryable
	tx   pgx.Tx
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool, q: pool}
}

const cols = `id, patient_id, patient_name, phone, department, priority, queue_number, queue_date,
	status, arrival_time, call_time, service_start_time, service_end_time, called_by, created_at, updated_at`

func scanEntry(row pgx.Row) (*QueueEntry, error) {
	var e QueueEntry
	var dept, status string
	var prio int16
	err := row.Scan(&e.ID, &e.PatientID, &e.PatientName, &e.Phone, &dept, &prio, &e.QueueNumber, &e.QueueDate,
		&status, &e.ArrivalTime, &e.CallTime, &e.ServiceStartTime, &e.ServiceEndTime, &e.CalledBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Department = Department(dept)
	e.Status = Status(status)
	e.Priority = Priority(prio)
	return &e, nil
}

func collect(rows pgx.Rows) ([]*QueueEntry, error) {
	defer rows.Close()
	var items []*QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) NextQueueNumber(ctx context.Context, dept Department, day time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		INSERT INTO queue_counters (department, queue_date, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (department, queue_date)
		DO UPDATE SET last_value = queue_counters.last_value + 1
		RETURNING last_value`, string(dept), day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next queue number for %s: %w", dept, err)
	}
	return n, nil
}

func (r *repoPG) Create(ctx context.Context, e *QueueEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.q.QueryRow(ctx, `
		INSERT INTO queue_entries (id, patient_id, patient_name, phone, department, priority,
			queue_number, queue_date, status, arrival_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.PatientName, e.Phone, string(e.Department), int16(e.Priority),
		e.QueueNumber, e.QueueDate, string(e.Status), e.ArrivalTime).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+cols+` FROM queue_entries WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

func (r *repoPG) PeekNext(ctx context.Context, dept Department) (*QueueEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, `
		SELECT `+cols+` FROM queue_entries
		WHERE department = $1 AND status = 'WAITING'
		ORDER BY priority, arrival_time, id
		LIMIT 1`, string(dept)))
	if db.IsNoRows(err) {
		return nil, nil
	}
	return e, err
}

// ClaimNext locks the head row with SKIP LOCKED so a concurrent claimant moves
// on to the next candidate (or finds none) instead of taking the same row.
func (r *repoPG) ClaimNext(ctx context.Context, dept Department, staffID string, now time.Time) (*QueueEntry, error) {
	var calledBy *string
	if staffID != "" {
		calledBy = &staffID
	}
	e, err := scanEntry(r.q.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'SERVING', call_time = $2, service_start_time = $2, called_by = $3, updated_at = NOW()
		WHERE id = (
			SELECT id FROM queue_entries
			WHERE department = $1 AND status = 'WAITING'
			ORDER BY priority, arrival_time, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'WAITING'
		RETURNING `+cols, string(dept), now, calledBy))
	if db.IsNoRows(err) {
		return nil, nil
	}
	return e, err
}

func (r *repoPG) Complete(ctx context.Context, id uuid.UUID, now time.Time) (*QueueEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'COMPLETED', service_end_time = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'SERVING'
		RETURNING `+cols, id, now))
	if db.IsNoRows(err) {
		return nil, r.explainMiss(ctx, id, "complete")
	}
	return e, err
}

func (r *repoPG) UpdatePriority(ctx context.Context, id uuid.UUID, p Priority) (*QueueEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, `
		UPDATE queue_entries SET priority = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('WAITING', 'SERVING')
		RETURNING `+cols, id, int16(p)))
	if db.IsNoRows(err) {
		return nil, r.explainMiss(ctx, id, "reprioritise")
	}
	return e, err
}

// explainMiss distinguishes an unknown id from a row in the wrong state after
// a conditional update matched nothing.
func (r *repoPG) explainMiss(ctx context.Context, id uuid.UUID, op string) error {
	var status string
	err := r.q.QueryRow(ctx, `SELECT status FROM queue_entries WHERE id = $1`, id).Scan(&status)
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s entry in status %s", ErrInvalidTransition, op, status)
}

func (r *repoPG) ListActive(ctx context.Context, dept Department, limit int) ([]*QueueEntry, error) {
	query := psql.Select(cols).From("queue_entries").
		Where(sq.Eq{"department": string(dept), "status": []string{string(StatusWaiting), string(StatusServing)}}).
		OrderBy("CASE WHEN status = 'SERVING' THEN 0 ELSE 1 END", "priority", "arrival_time", "id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active queue query: %w", err)
	}
	rows, err := r.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListArrivedBetween(ctx context.Context, dept *Department, from, to time.Time) ([]*QueueEntry, error) {
	query := psql.Select(cols).From("queue_entries").
		Where(sq.GtOrEq{"arrival_time": from}).
		Where(sq.Lt{"arrival_time": to}).
		OrderBy("arrival_time")
	if dept != nil {
		query = query.Where(sq.Eq{"department": string(*dept)})
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build arrivals query: %w", err)
	}
	rows, err := r.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&repoPG{pool: r.pool, q: tx, tx: tx})
	})
}
