package notification

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johnnysally/SmartCare360-sub000/internal/platform/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repoPG struct {
	q db.Queryable
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{q: pool}
}

const cols = `id, patient_id, channel, type, title, message, queue_entry_id, sent_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var channel string
	if err := row.Scan(&n.ID, &n.PatientID, &channel, &n.Type, &n.Title, &n.Message, &n.QueueEntryID, &n.SentAt); err != nil {
		return nil, err
	}
	n.Channel = Channel(channel)
	return &n, nil
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	query, args, err := psql.Insert("notifications").
		Columns("id", "patient_id", "channel", "type", "title", "message", "queue_entry_id", "sent_at").
		Values(n.ID, n.PatientID, string(n.Channel), n.Type, n.Title, n.Message, n.QueueEntryID, n.SentAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, query, args...)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Notification, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := psql.Select(cols).From("notifications").
		Where(sq.Eq{"patient_id": patientID}).
		OrderBy("sent_at DESC", "id").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}
