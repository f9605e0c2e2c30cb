package repositories

import (
	"context"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/database"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
)

type RequestLogRepository interface {
	// Create stores a request log; replays of the same id are ignored.
	Create(ctx context.Context, log models.RequestLog) error
	// ListRecent returns the newest logs first.
	ListRecent(ctx context.Context, limit int) ([]models.RequestLog, error)
}

type RequestLogRepositoryImpl struct {
	db *database.DB
}

func NewRequestLogRepository(db *database.DB) RequestLogRepository {
	return &RequestLogRepositoryImpl{db: db}
}

func (r RequestLogRepositoryImpl) Create(ctx context.Context, log models.RequestLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO request_logs (id, occurred_at, source_ip, method, url, user_agent, referer,
		                          classification, request_count, protocol, size_bytes, destination)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) ON CONFLICT (id) DO NOTHING`,
		log.ID,
		log.OccurredAt,
		log.SourceIP,
		log.Method,
		log.URL,
		log.UserAgent,
		log.Referer,
		string(log.Classification),
		log.RequestCount,
		log.Protocol,
		log.SizeBytes,
		log.Destination,
	)
	return err
}

func (r RequestLogRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]models.RequestLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, occurred_at, source_ip, method, url, user_agent, referer,
		       classification, request_count, protocol, size_bytes, destination
		FROM request_logs
		ORDER BY occurred_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.RequestLog, 0, limit)
	for rows.Next() {
		var log models.RequestLog
		if err = rows.Scan(
			&log.ID,
			&log.OccurredAt,
			&log.SourceIP,
			&log.Method,
			&log.URL,
			&log.UserAgent,
			&log.Referer,
			&log.Classification,
			&log.RequestCount,
			&log.Protocol,
			&log.SizeBytes,
			&log.Destination,
		); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
