package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/calculator"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/storage"
)

// AddContribution records a deposit and raises the group balance atomically.
func (s *SQLiteStore) AddContribution(ctx context.Context, contribution *models.Transaction) (decimal.Decimal, error) {
	if contribution.ID == "" {
		contribution.ID = uuid.New().String()
	}
	if contribution.Timestamp.IsZero() {
		contribution.Timestamp = time.Now().UTC()
	}
	contribution.Kind = models.Deposit

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentAmount(ctx, tx, contribution.GroupID)
	if err != nil {
		return decimal.Zero, err
	}
	next, err := calculator.ApplyDeposit(current, contribution.Amount)
	if err != nil {
		return decimal.Zero, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contributions (id, group_id, user_id, amount, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		contribution.ID, contribution.GroupID, contribution.UserID,
		contribution.Amount.String(), contribution.Description, toMillis(contribution.Timestamp),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert contribution: %w", err)
	}
	if err := setCurrentAmount(ctx, tx, contribution.GroupID, next); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return next, nil
}

// CreateWithdrawalRequest records a pending request.
func (s *SQLiteStore) CreateWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	req.Status = models.StatusPending

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO withdrawal_requests (id, group_id, user_id, amount, reason, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.GroupID, req.UserID, req.Amount.String(), req.Reason,
		string(req.Status), toMillis(req.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal request: %w", err)
	}
	return nil
}

// GetWithdrawalRequest retrieves a request by ID.
func (s *SQLiteStore) GetWithdrawalRequest(ctx context.Context, requestID string) (*models.WithdrawalRequest, error) {
	return getWithdrawalRequest(ctx, s.db, requestID)
}

// DecideWithdrawal records an administrator decision. Approval lowers the
// group balance in the same transaction, floored at zero.
func (s *SQLiteStore) DecideWithdrawal(ctx context.Context, requestID string, status models.WithdrawalStatus, by string, at time.Time) (*models.WithdrawalRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := getWithdrawalRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending {
		return nil, storage.ErrNotPending
	}
	decided, err := req.Decide(status, by, at)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE withdrawal_requests SET status = ?, processed_at = ?, processed_by = ? WHERE id = ?",
		string(decided.Status), toMillis(decided.ProcessedAt), decided.ProcessedBy, decided.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update withdrawal request: %w", err)
	}

	if decided.Status == models.StatusApproved {
		current, err := currentAmount(ctx, tx, decided.GroupID)
		if err != nil {
			return nil, err
		}
		next, err := calculator.ApplyWithdrawal(current, decided.Amount)
		if err != nil {
			return nil, err
		}
		if err := setCurrentAmount(ctx, tx, decided.GroupID, next); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &decided, nil
}

const withdrawalQuery = `
	SELECT w.id, w.group_id, w.user_id, u.name, w.amount, w.reason, w.status,
	       w.created_at, w.processed_at, w.processed_by
	FROM withdrawal_requests w JOIN users u ON u.id = w.user_id`

func getWithdrawalRequest(ctx context.Context, q querier, requestID string) (*models.WithdrawalRequest, error) {
	rows, err := q.QueryContext(ctx, withdrawalQuery+" WHERE w.id = ?", requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	requests, err := scanWithdrawalRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	if len(requests) == 0 {
		return nil, storage.ErrNotFound
	}
	return &requests[0], nil
}

func listWithdrawalRequests(ctx context.Context, q querier, groupID string) ([]models.WithdrawalRequest, error) {
	rows, err := q.QueryContext(ctx, withdrawalQuery+" WHERE w.group_id = ? ORDER BY w.created_at, w.rowid", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal requests: %w", err)
	}
	requests, err := scanWithdrawalRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal requests: %w", err)
	}
	return requests, nil
}

func scanWithdrawalRequests(rows *sql.Rows) ([]models.WithdrawalRequest, error) {
	defer rows.Close()
	var out []models.WithdrawalRequest
	for rows.Next() {
		var (
			r           models.WithdrawalRequest
			status      string
			created     int64
			processedAt sql.NullInt64
			processedBy sql.NullString
		)
		err := rows.Scan(&r.ID, &r.GroupID, &r.UserID, &r.UserName, &r.Amount, &r.Reason, &status,
			&created, &processedAt, &processedBy)
		if err != nil {
			return nil, err
		}
		r.Status = models.WithdrawalStatus(status)
		r.Timestamp = fromMillis(created)
		if processedAt.Valid {
			r.ProcessedAt = fromMillis(processedAt.Int64)
		}
		r.ProcessedBy = processedBy.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func listContributions(ctx context.Context, q querier, groupID string) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT c.id, c.group_id, c.user_id, u.name, c.amount, c.description, c.created_at
		 FROM contributions c JOIN users u ON u.id = c.user_id
		 WHERE c.group_id = ?
		 ORDER BY c.created_at, c.rowid`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contributions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			t       models.Transaction
			created int64
		)
		if err := rows.Scan(&t.ID, &t.GroupID, &t.UserID, &t.UserName, &t.Amount, &t.Description, &created); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		t.Kind = models.Deposit
		t.Timestamp = fromMillis(created)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}
	return out, nil
}

func setCurrentAmount(ctx context.Context, tx *sql.Tx, groupID string, amount decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, "UPDATE groups SET current_amount = ? WHERE id = ?", amount.String(), groupID)
	if err != nil {
		return fmt.Errorf("failed to update current amount: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
