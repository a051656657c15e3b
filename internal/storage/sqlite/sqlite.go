// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; balance updates read then write.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGroup persists a group and its creator as the first admin member.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group, creator *models.User) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedDate.IsZero() {
		group.CreatedDate = time.Now().UTC()
	}
	group.CreatedBy = creator.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, description, target_amount, current_amount, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.Description,
		group.TargetAmount.String(), group.CurrentAmount.String(),
		toMillis(group.CreatedDate), group.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_members (group_id, user_id, is_admin, joined_at) VALUES (?, ?, 1, ?)",
		group.ID, creator.ID, toMillis(group.CreatedDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	group.Members = []models.Member{{
		ID:       creator.ID,
		Name:     creator.Name,
		Email:    creator.Email,
		Avatar:   creator.Avatar,
		IsAdmin:  true,
		JoinedAt: group.CreatedDate,
	}}
	group.MemberCount = 1
	return nil
}

// GetGroup retrieves a group with its members and ledger.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := getGroupRow(ctx, s.db, groupID)
	if err != nil {
		return nil, err
	}
	if err := loadDetail(ctx, s.db, group); err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroupsForUser returns every group userID belongs to, oldest first.
func (s *SQLiteStore) ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.created_at, g.rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ListGroupsNotJoined returns groups userID could join, without sub-resources.
func (s *SQLiteStore) ListGroupsNotJoined(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+`,
		        (SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id)
		 FROM groups g
		 WHERE g.id NOT IN (SELECT group_id FROM group_members WHERE user_id = ?)
		 ORDER BY g.created_at, g.rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list discoverable groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		var count int
		group, err := scanGroup(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		group.MemberCount = count
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// AddMember adds userID to the group as a regular member.
func (s *SQLiteStore) AddMember(ctx context.Context, groupID, userID string, joinedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getGroupRow(ctx, tx, groupID); err != nil {
		return err
	}
	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if exists > 0 {
		return storage.ErrAlreadyMember
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_members (group_id, user_id, is_admin, joined_at) VALUES (?, ?, 0, ?)",
		groupID, userID, toMillis(joinedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMember returns the membership of userID in groupID.
func (s *SQLiteStore) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	rows, err := s.db.QueryContext(ctx, memberQuery+" AND m.user_id = ?", groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	members, err := scanMembers(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if len(members) == 0 {
		return nil, storage.ErrNotFound
	}
	return &members[0], nil
}

const groupColumns = `g.id, g.name, g.description, g.target_amount, g.current_amount, g.created_at, g.created_by`

const memberQuery = `
	SELECT u.id, u.name, u.email, u.avatar, m.is_admin, m.joined_at
	FROM group_members m JOIN users u ON u.id = m.user_id
	WHERE m.group_id = ?`

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(row scanner, extra ...any) (*models.Group, error) {
	group := &models.Group{}
	var created int64
	dest := []any{
		&group.ID,
		&group.Name,
		&group.Description,
		&group.TargetAmount,
		&group.CurrentAmount,
		&created,
		&group.CreatedBy,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	group.CreatedDate = fromMillis(created)
	return group, nil
}

func getGroupRow(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	row := q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.id = ?`, groupID)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// loadDetail fills members, contributions and withdrawal requests. Each result
// set is drained before the next query because the pool holds one connection.
func loadDetail(ctx context.Context, q querier, group *models.Group) error {
	rows, err := q.QueryContext(ctx, memberQuery+" ORDER BY m.joined_at, m.rowid", group.ID)
	if err != nil {
		return fmt.Errorf("failed to get members: %w", err)
	}
	if group.Members, err = scanMembers(rows); err != nil {
		return fmt.Errorf("failed to get members: %w", err)
	}
	group.MemberCount = len(group.Members)

	if group.Transactions, err = listContributions(ctx, q, group.ID); err != nil {
		return err
	}
	if group.WithdrawalRequests, err = listWithdrawalRequests(ctx, q, group.ID); err != nil {
		return err
	}
	return nil
}

func scanMembers(rows *sql.Rows) ([]models.Member, error) {
	defer rows.Close()
	var members []models.Member
	for rows.Next() {
		var m models.Member
		var joined int64
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Avatar, &m.IsAdmin, &joined); err != nil {
			return nil, err
		}
		m.JoinedAt = fromMillis(joined)
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func currentAmount(ctx context.Context, tx *sql.Tx, groupID string) (decimal.Decimal, error) {
	var current decimal.Decimal
	err := tx.QueryRowContext(ctx, "SELECT current_amount FROM groups WHERE id = ?", groupID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, storage.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read current amount: %w", err)
	}
	return current, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
