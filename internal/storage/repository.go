package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetwatch/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

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

func formatDate(d core.Date) string {
	return d.Format(dateLayout)
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// --- Transactions ---

const transactionColumns = "id, user_id, description, amount_cents, type, tx_date, category_id, created_at, updated_at"

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t         core.Transaction
		txDate    string
		category  sql.NullInt64
		createdAt string
		updatedAt sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount.Cents, &t.Type, &txDate, &category, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}

	if t.Date, err = parseDate(txDate); err != nil {
		return core.Transaction{}, err
	}
	if category.Valid {
		id := category.Int64
		t.CategoryID = &id
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	if updatedAt.Valid {
		ts, err := parseTime(updatedAt.String)
		if err != nil {
			return core.Transaction{}, err
		}
		t.UpdatedAt = &ts
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var category any
	if t.CategoryID != nil {
		category = *t.CategoryID
	}
	t.CreatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, description, amount_cents, type, tx_date, category_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Description, t.Amount.Cents, string(t.Type), formatDate(t.Date), category, formatTime(t.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"user_id", t.UserID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)

	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id, userID int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	var category any
	if t.CategoryID != nil {
		category = *t.CategoryID
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET description = ?, amount_cents = ?, type = ?, tx_date = ?, category_id = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.Description, t.Amount.Cents, string(t.Type), formatDate(t.Date), category,
		formatTime(time.Now()), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRowAffected(res, "update transaction")
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRowAffected(res, "delete transaction")
}

// ListTransactions filters and paginates a user's transactions. Results are
// ordered by date descending with id descending as the tie-break, so
// pagination is deterministic for equal dates. The returned page carries the
// pre-pagination total count.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) (core.TransactionPage, error) {
	f = f.Normalize()

	where := []string{"user_id = ?"}
	args := []any{userID}
	if !f.StartDate.IsEmpty() {
		where = append(where, "tx_date >= ?")
		args = append(args, formatDate(f.StartDate))
	}
	if !f.EndDate.IsEmpty() {
		where = append(where, "tx_date <= ?")
		args = append(args, formatDate(f.EndDate))
	}
	if f.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	cond := strings.Join(where, " AND ")

	page := core.TransactionPage{
		Items:    []core.Transaction{},
		Page:     f.Page,
		PageSize: f.PageSize,
	}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE "+cond, args...).Scan(&page.TotalCount)
	if err != nil {
		return page, fmt.Errorf("count transactions: %w", err)
	}

	pageArgs := append(append([]any{}, args...), f.PageSize, f.Offset())
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE "+cond+
			" ORDER BY tx_date DESC, id DESC LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return page, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return page, fmt.Errorf("scan transaction: %w", err)
		}
		page.Items = append(page.Items, t)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("iterate transactions: %w", err)
	}

	return page, nil
}

// TransactionsForBudget materializes the expense transactions a budget
// aggregates over: same user and category, dated inside [start, end]. An
// empty end date means open-ended.
func (r *SQLiteRepository) TransactionsForBudget(ctx context.Context, userID, categoryID int64, start, end core.Date) ([]core.Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
		 WHERE user_id = ? AND category_id = ? AND type = 'expense' AND tx_date >= ?`
	args := []any{userID, categoryID, formatDate(start)}
	if !end.IsEmpty() {
		query += " AND tx_date <= ?"
		args = append(args, formatDate(end))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transactions for budget: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// --- Categories ---

const categoryColumns = "id, user_id, name, icon, color, is_default, created_at, updated_at"

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c         core.Category
		createdAt string
		updatedAt sql.NullString
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &c.IsDefault, &createdAt, &updatedAt)
	if err != nil {
		return core.Category{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Category{}, err
	}
	if updatedAt.Valid {
		ts, err := parseTime(updatedAt.String)
		if err != nil {
			return core.Category{}, err
		}
		c.UpdatedAt = &ts
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.CreatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, icon, color, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Icon, c.Color, c.IsDefault, formatTime(c.CreatedAt))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id, userID int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND user_id = ?", id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, icon = ?, color = ?, is_default = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		c.Name, c.Icon, c.Color, c.IsDefault, formatTime(time.Now()), c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRowAffected(res, "update category")
}

// DeleteCategory removes a category and applies the cascade rules in a single
// SQL transaction: transaction references are detached (nulled), budgets
// referencing the category are deleted with it.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := requireRowAffected(res, "delete category"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE transactions SET category_id = NULL WHERE category_id = ? AND user_id = ?", id, userID); err != nil {
		return fmt.Errorf("detach transactions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM budgets WHERE category_id = ? AND user_id = ?", id, userID); err != nil {
		return fmt.Errorf("cascade budgets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category: %w", err)
	}

	slog.InfoContext(ctx, "Category deleted with cascade",
		"id", id,
		"user_id", userID)
	return nil
}

// --- Budgets ---

const budgetColumns = "id, user_id, name, amount_cents, period, start_date, end_date, category_id, last_alerted_at, created_at, updated_at"

// ActiveBudget pairs a budget with its alert cursor for the sweep.
type ActiveBudget struct {
	Budget        core.Budget
	LastAlertedAt *time.Time
}

func scanBudget(row interface{ Scan(...any) error }) (ActiveBudget, error) {
	var (
		b           core.Budget
		startDate   string
		endDate     sql.NullString
		lastAlerted sql.NullString
		createdAt   string
		updatedAt   sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Amount.Cents, &b.Period, &startDate,
		&endDate, &b.CategoryID, &lastAlerted, &createdAt, &updatedAt)
	if err != nil {
		return ActiveBudget{}, err
	}

	if b.StartDate, err = parseDate(startDate); err != nil {
		return ActiveBudget{}, err
	}
	if endDate.Valid {
		if b.EndDate, err = parseDate(endDate.String); err != nil {
			return ActiveBudget{}, err
		}
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return ActiveBudget{}, err
	}
	if updatedAt.Valid {
		ts, err := parseTime(updatedAt.String)
		if err != nil {
			return ActiveBudget{}, err
		}
		b.UpdatedAt = &ts
	}

	out := ActiveBudget{Budget: b}
	if lastAlerted.Valid {
		ts, err := parseTime(lastAlerted.String)
		if err != nil {
			return ActiveBudget{}, err
		}
		out.LastAlertedAt = &ts
	}
	return out, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	var endDate any
	if !b.EndDate.IsEmpty() {
		endDate = formatDate(b.EndDate)
	}
	b.CreatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, name, amount_cents, period, start_date, end_date, category_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.Name, b.Amount.Cents, string(b.Period), formatDate(b.StartDate),
		endDate, b.CategoryID, formatTime(b.CreatedAt))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget insert id: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"id", b.ID,
		"user_id", b.UserID,
		"name", b.Name,
		"amount_cents", b.Amount.Cents,
		"period", b.Period)

	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id, userID int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b.Budget, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b.Budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	var endDate any
	if !b.EndDate.IsEmpty() {
		endDate = formatDate(b.EndDate)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets
		 SET name = ?, amount_cents = ?, period = ?, start_date = ?, end_date = ?, category_id = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		b.Name, b.Amount.Cents, string(b.Period), formatDate(b.StartDate), endDate,
		b.CategoryID, formatTime(time.Now()), b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireRowAffected(res, "update budget")
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRowAffected(res, "delete budget")
}

// ListActiveBudgets returns every budget across all users whose spend window
// has not closed as of the given date, for the alert sweep.
func (r *SQLiteRepository) ListActiveBudgets(ctx context.Context, asOf core.Date) ([]ActiveBudget, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE end_date IS NULL OR end_date >= ? ORDER BY user_id, id",
		formatDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("list active budgets: %w", err)
	}
	defer rows.Close()

	var out []ActiveBudget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// MarkBudgetAlerted records the alert cursor used for cooldown suppression.
func (r *SQLiteRepository) MarkBudgetAlerted(ctx context.Context, budgetID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE budgets SET last_alerted_at = ? WHERE id = ?", formatTime(at), budgetID)
	if err != nil {
		return fmt.Errorf("mark budget alerted: %w", err)
	}
	return nil
}

// --- Reporting ---

// CategoryTotal is one line of a monthly report: summed cents per category.
type CategoryTotal struct {
	CategoryID   *int64
	CategoryName string
	TotalCents   int64
}

// ListUserIDs returns the distinct owning users known to the store, for the
// monthly report sweep.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM transactions UNION SELECT user_id FROM budgets ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return out, nil
}

// MonthExpenseTotals sums a user's expenses per category for one calendar
// month. Uncategorized spending comes back with a nil category id.
func (r *SQLiteRepository) MonthExpenseTotals(ctx context.Context, userID int64, year, month int) ([]CategoryTotal, error) {
	first, last := monthBounds(year, month)

	rows, err := r.db.QueryContext(ctx,
		`SELECT t.category_id, COALESCE(c.name, ''), SUM(t.amount_cents)
		 FROM transactions t
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND t.type = 'expense' AND t.tx_date >= ? AND t.tx_date <= ?
		 GROUP BY t.category_id, c.name
		 ORDER BY SUM(t.amount_cents) DESC`,
		userID, first, last)
	if err != nil {
		return nil, fmt.Errorf("month expense totals: %w", err)
	}
	defer rows.Close()

	var out []CategoryTotal
	for rows.Next() {
		var (
			ct       CategoryTotal
			category sql.NullInt64
		)
		if err := rows.Scan(&category, &ct.CategoryName, &ct.TotalCents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		if category.Valid {
			id := category.Int64
			ct.CategoryID = &id
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

// MonthIncomeTotal sums a user's income for one calendar month.
func (r *SQLiteRepository) MonthIncomeTotal(ctx context.Context, userID int64, year, month int) (int64, error) {
	first, last := monthBounds(year, month)

	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount_cents) FROM transactions
		 WHERE user_id = ? AND type = 'income' AND tx_date >= ? AND tx_date <= ?`,
		userID, first, last).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("month income total: %w", err)
	}
	return total.Int64, nil
}

func monthBounds(year, month int) (first, last string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format(dateLayout), end.Format(dateLayout)
}

func requireRowAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
