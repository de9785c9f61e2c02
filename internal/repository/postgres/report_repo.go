package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func (r *ReportRepo) Create(ctx context.Context, report *domain.MessageReport) error {
	query := `
		INSERT INTO message_reports (id, message_id, reporter_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, report.ID, report.MessageID, report.ReporterID, report.Reason, report.CreatedAt)
	return errors.Wrap(err, "reportRepo.Create.Exec")
}

var _ repository.ReportRepository = (*ReportRepo)(nil)
