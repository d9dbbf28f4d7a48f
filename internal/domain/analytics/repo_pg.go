package analytics

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repoPG struct {
	q db.Queryable
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{q: pool}
}

func (r *repoPG) Upsert(ctx context.Context, s *DailyDepartmentStat) error {
	query, args, err := psql.Insert("daily_department_stats").
		Columns("department", "stat_date", "total_patients", "avg_wait_seconds", "max_wait_seconds", "congestion_level", "updated_at").
		Values(string(s.Department), s.StatDate, s.TotalPatients, s.AvgWaitSeconds, s.MaxWaitSeconds, string(s.CongestionLevel), s.UpdatedAt).
		Suffix(`ON CONFLICT (department, stat_date) DO UPDATE SET
			total_patients = EXCLUDED.total_patients,
			avg_wait_seconds = EXCLUDED.avg_wait_seconds,
			max_wait_seconds = EXCLUDED.max_wait_seconds,
			congestion_level = EXCLUDED.congestion_level,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stat upsert: %w", err)
	}
	_, err = r.q.Exec(ctx, query, args...)
	return err
}

func (r *repoPG) ListDaily(ctx context.Context, dept *queue.Department, since time.Time) ([]*DailyDepartmentStat, error) {
	query := psql.Select("department", "stat_date", "total_patients", "avg_wait_seconds", "max_wait_seconds", "congestion_level", "updated_at").
		From("daily_department_stats").
		Where(sq.GtOrEq{"stat_date": since}).
		OrderBy("stat_date DESC", "department")
	if dept != nil {
		query = query.Where(sq.Eq{"department": string(*dept)})
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := r.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*DailyDepartmentStat{}
	for rows.Next() {
		var s DailyDepartmentStat
		var d, level string
		if err := rows.Scan(&d, &s.StatDate, &s.TotalPatients, &s.AvgWaitSeconds, &s.MaxWaitSeconds, &level, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Department = queue.Department(d)
		s.CongestionLevel = Congestion(level)
		items = append(items, &s)
	}
	return items, rows.Err()
}
