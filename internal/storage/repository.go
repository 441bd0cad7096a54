package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"boosterbucks/internal/core"
	"boosterbucks/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetAchievementCatalog implements store.CatalogReader
func (r *SQLiteRepository) GetAchievementCatalog(ctx context.Context) ([]core.Achievement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, category, reward_points, required_progress
		FROM achievements
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var catalog []core.Achievement
	for rows.Next() {
		var a core.Achievement
		var category string
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &category, &a.RewardPoints, &a.RequiredProgress); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.Category = core.AchievementCategory(category)
		catalog = append(catalog, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}

	return catalog, nil
}

// GetUserProgress implements store.ProgressStore
func (r *SQLiteRepository) GetUserProgress(ctx context.Context, userID string) ([]core.AchievementProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, achievement_id, progress, is_completed, completed_at
		FROM achievement_progress
		WHERE user_id = ?
		ORDER BY achievement_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query progress for user %s: %w", userID, err)
	}
	defer rows.Close()

	var records []core.AchievementProgress
	for rows.Next() {
		var p core.AchievementProgress
		var completed int64
		var completedAt sql.NullString
		if err := rows.Scan(&p.UserID, &p.AchievementID, &p.Progress, &completed, &completedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.IsCompleted = completed != 0
		if completedAt.Valid {
			t, err := parseTime(completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse completed_at: %w", err)
			}
			p.CompletedAt = t
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}

	return records, nil
}

// SaveProgress implements store.ProgressStore. A record that is already
// completed is never reopened or rewritten.
func (r *SQLiteRepository) SaveProgress(ctx context.Context, p core.AchievementProgress) error {
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO achievement_progress (user_id, achievement_id, progress, is_completed, completed_at)
		VALUES (?, ?, ?, 0, NULL)
		ON CONFLICT (user_id, achievement_id) DO UPDATE
		SET progress = excluded.progress
		WHERE achievement_progress.is_completed = 0`,
		p.UserID, p.AchievementID, p.Progress)
	if err != nil {
		return fmt.Errorf("save progress for %s/%s: %w", p.UserID, p.AchievementID, err)
	}

	return nil
}

// CompleteAchievement implements store.ProgressStore. The UPDATE only
// matches a row that is not completed yet, so exactly one caller
// observes RowsAffected == 1 for a given record.
func (r *SQLiteRepository) CompleteAchievement(ctx context.Context, p core.AchievementProgress) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	// Make sure the row exists before the conditional transition. The
	// insert is a no-op when another writer created the record first.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO achievement_progress (user_id, achievement_id, progress, is_completed, completed_at)
		VALUES (?, ?, 0, 0, NULL)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		p.UserID, p.AchievementID)
	if err != nil {
		return false, fmt.Errorf("ensure progress row for %s/%s: %w", p.UserID, p.AchievementID, err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE achievement_progress
		SET progress = ?, is_completed = 1, completed_at = ?
		WHERE user_id = ? AND achievement_id = ? AND is_completed = 0`,
		p.Progress, formatTime(p.CompletedAt), p.UserID, p.AchievementID)
	if err != nil {
		return false, fmt.Errorf("complete achievement %s/%s: %w", p.UserID, p.AchievementID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

// GetLedger implements store.LedgerStore
func (r *SQLiteRepository) GetLedger(ctx context.Context, userID string) (core.RewardLedger, error) {
	var ledger core.RewardLedger
	var lastUpdated string

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, total_earned, total_redeemed, current_balance, last_updated
		FROM reward_ledgers
		WHERE user_id = ?`, userID).
		Scan(&ledger.UserID, &ledger.TotalEarned, &ledger.TotalRedeemed, &ledger.CurrentBalance, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RewardLedger{}, store.ErrNotFound
	}
	if err != nil {
		return core.RewardLedger{}, fmt.Errorf("query ledger for user %s: %w", userID, err)
	}

	ledger.LastUpdated, err = parseTime(lastUpdated)
	if err != nil {
		return core.RewardLedger{}, fmt.Errorf("parse last_updated: %w", err)
	}

	return ledger, nil
}

// SaveLedger implements store.LedgerStore
func (r *SQLiteRepository) SaveLedger(ctx context.Context, ledger core.RewardLedger) error {
	if err := ledger.CheckInvariant(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reward_ledgers (user_id, total_earned, total_redeemed, current_balance, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET total_earned = excluded.total_earned,
		    total_redeemed = excluded.total_redeemed,
		    current_balance = excluded.current_balance,
		    last_updated = excluded.last_updated`,
		ledger.UserID, ledger.TotalEarned, ledger.TotalRedeemed, ledger.CurrentBalance,
		formatTime(ledger.LastUpdated))
	if err != nil {
		return fmt.Errorf("save ledger for user %s: %w", ledger.UserID, err)
	}

	return nil
}

// AppendTransaction implements store.LedgerStore
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.LedgerTransaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, user_id, amount, kind, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount, string(tx.Kind), tx.Description, formatTime(tx.Timestamp))
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", tx.ID, err)
	}

	return nil
}

// ListTransactions implements store.LedgerStore
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.LedgerTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, kind, description, created_at
		FROM ledger_transactions
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []core.LedgerTransaction
	for rows.Next() {
		var tx core.LedgerTransaction
		var kind, createdAt string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &kind, &tx.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.TransactionKind(kind)
		tx.Timestamp, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

// GetSnapshot implements store.SnapshotSource
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, userID string) (core.EvaluationSnapshot, error) {
	snap := core.EvaluationSnapshot{UserID: userID}

	accounts, err := r.listAccounts(ctx, userID)
	if err != nil {
		return core.EvaluationSnapshot{}, err
	}
	snap.Accounts = accounts

	transactions, err := r.listFinancialTransactions(ctx, userID)
	if err != nil {
		return core.EvaluationSnapshot{}, err
	}
	snap.Transactions = transactions

	categories, err := r.listCategories(ctx, userID)
	if err != nil {
		return core.EvaluationSnapshot{}, err
	}
	snap.Categories = categories

	return snap, nil
}

func (r *SQLiteRepository) listAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, balance
		FROM accounts
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts for user %s: %w", userID, err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var accType, balance string
		if err := rows.Scan(&a.ID, &a.Name, &accType, &balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(accType)
		a.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("parse account balance: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

func (r *SQLiteRepository) listFinancialTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, type, amount, category, description, tx_date
		FROM transactions
		WHERE user_id = ?
		ORDER BY tx_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query financial transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var txType, amount, txDate string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &txType, &amount, &tx.Category, &tx.Description, &txDate); err != nil {
			return nil, fmt.Errorf("scan financial transaction: %w", err)
		}
		tx.Type = core.TransactionType(txType)
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount: %w", err)
		}
		tx.Date, err = parseTime(txDate)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate financial transactions: %w", err)
	}

	return txs, nil
}

func (r *SQLiteRepository) listCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, budget
		FROM categories
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories for user %s: %w", userID, err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var budget string
		if err := rows.Scan(&c.ID, &c.Name, &budget); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Budget, err = decimal.NewFromString(budget)
		if err != nil {
			return nil, fmt.Errorf("parse category budget: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// SeedAccount inserts or replaces a financial account used as rule
// evaluator input.
func (r *SQLiteRepository) SeedAccount(ctx context.Context, userID string, a core.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (id, user_id, name, type, balance)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, userID, a.Name, string(a.Type), a.Balance.String())
	if err != nil {
		return fmt.Errorf("seed account %s: %w", a.ID, err)
	}
	return nil
}

// SeedTransaction inserts or replaces a financial transaction used as
// rule evaluator input.
func (r *SQLiteRepository) SeedTransaction(ctx context.Context, userID string, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transactions (id, user_id, account_id, type, amount, category, description, tx_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, userID, tx.AccountID, string(tx.Type), tx.Amount.String(), tx.Category, tx.Description,
		formatTime(tx.Date))
	if err != nil {
		return fmt.Errorf("seed transaction %s: %w", tx.ID, err)
	}
	return nil
}

// SeedCategory inserts or replaces a budget category used as rule
// evaluator input.
func (r *SQLiteRepository) SeedCategory(ctx context.Context, userID string, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO categories (id, user_id, name, budget)
		VALUES (?, ?, ?, ?)`,
		c.ID, userID, c.Name, c.Budget.String())
	if err != nil {
		return fmt.Errorf("seed category %s: %w", c.ID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

var (
	_ store.CatalogReader  = (*SQLiteRepository)(nil)
	_ store.ProgressStore  = (*SQLiteRepository)(nil)
	_ store.LedgerStore    = (*SQLiteRepository)(nil)
	_ store.SnapshotSource = (*SQLiteRepository)(nil)
)
