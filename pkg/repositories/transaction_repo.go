package repositories

import (
	"context"
	"encoding/json"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/database"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
)

type TransactionRepository interface {
	// Create stores a scored checkout transaction.
	Create(ctx context.Context, txn models.Transaction) error
	// ListRecent returns the newest transactions first.
	ListRecent(ctx context.Context, limit int) ([]models.Transaction, error)
}

type TransactionRepositoryImpl struct {
	db *database.DB
}

func NewTransactionRepository(db *database.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

func (t TransactionRepositoryImpl) Create(ctx context.Context, txn models.Transaction) error {
	items, err := json.Marshal(txn.Items)
	if err != nil {
		return err
	}
	_, err = t.db.Exec(ctx, `
		INSERT INTO transactions (trans_num, user_id, trans_date_trans_time, unix_time, cc_num_encrypted, cc_num_masked,
		                          merchant, category, amt, first_name, last_name, gender, street, city, state, zip,
		                          lat, long, city_pop, job, dob, user_lat, user_lon, total, items,
		                          label, confidence, reason, last_day_count, last_hour_count, last_minute_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)`,
		txn.TransNum, txn.UserID, txn.TransDateTransTime, txn.UnixTime, txn.CardEncrypted, txn.CardMasked,
		txn.Merchant, txn.Category, txn.Amount, txn.FirstName, txn.LastName, txn.Gender, txn.Street, txn.City, txn.State, txn.Zip,
		txn.Lat, txn.Long, txn.CityPop, txn.Job, txn.DOB, txn.UserLat, txn.UserLon, txn.Total, items,
		string(txn.Decision.Label), string(txn.Decision.Confidence), txn.Decision.Reason,
		txn.Decision.LastDayCount, txn.Decision.LastHourCount, txn.Decision.LastMinuteCount, txn.CreatedAt,
	)
	return err
}

func (t TransactionRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]models.Transaction, error) {
	rows, err := t.db.Query(ctx, `
		SELECT trans_num, user_id, trans_date_trans_time, unix_time, cc_num_masked,
		       merchant, category, amt, first_name, last_name, gender, street, city, state, zip,
		       lat, long, city_pop, job, dob, user_lat, user_lon, total, items,
		       label, confidence, reason, last_day_count, last_hour_count, last_minute_count, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]models.Transaction, 0, limit)
	for rows.Next() {
		var (
			txn        models.Transaction
			items      []byte
			label      string
			confidence string
		)
		if err = rows.Scan(
			&txn.TransNum, &txn.UserID, &txn.TransDateTransTime, &txn.UnixTime, &txn.CardMasked,
			&txn.Merchant, &txn.Category, &txn.Amount, &txn.FirstName, &txn.LastName, &txn.Gender,
			&txn.Street, &txn.City, &txn.State, &txn.Zip,
			&txn.Lat, &txn.Long, &txn.CityPop, &txn.Job, &txn.DOB, &txn.UserLat, &txn.UserLon, &txn.Total, &items,
			&label, &confidence, &txn.Decision.Reason,
			&txn.Decision.LastDayCount, &txn.Decision.LastHourCount, &txn.Decision.LastMinuteCount, &txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err = json.Unmarshal(items, &txn.Items); err != nil {
			return nil, err
		}
		txn.Decision.Label = pkg.RiskLabel(label)
		txn.Decision.Confidence = views.Confidence(confidence)
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
