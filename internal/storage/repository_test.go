package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetwatch/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreateCategory(t *testing.T, repo *SQLiteRepository, userID int64, name string) core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), core.Category{UserID: userID, Name: name})
	if err != nil {
		t.Fatalf("CreateCategory(%q) error = %v", name, err)
	}
	return c
}

func mustCreateTransaction(t *testing.T, repo *SQLiteRepository, tx core.Transaction) core.Transaction {
	t.Helper()
	created, err := repo.CreateTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	return created
}

func TestTransactionCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, repo, 1, "Groceries")

	created := mustCreateTransaction(t, repo, core.Transaction{
		UserID:      1,
		Description: "Weekly shop",
		Amount:      core.Money{Cents: 4250},
		Type:        core.Expense,
		Date:        core.NewDate(2026, 8, 10),
		CategoryID:  &cat.ID,
	})
	if created.ID == 0 {
		t.Fatal("CreateTransaction() did not assign an id")
	}

	got, err := repo.GetTransaction(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.Description != "Weekly shop" || got.Amount.Cents != 4250 {
		t.Errorf("GetTransaction() = %+v", got)
	}
	if got.CategoryID == nil || *got.CategoryID != cat.ID {
		t.Errorf("GetTransaction() category = %v, want %d", got.CategoryID, cat.ID)
	}
	if !got.Date.Equal(core.NewDate(2026, 8, 10).Time) {
		t.Errorf("GetTransaction() date = %v", got.Date)
	}

	got.Description = "Weekly shop (updated)"
	got.Amount.Cents = 5000
	if err := repo.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}
	updated, err := repo.GetTransaction(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("GetTransaction() after update error = %v", err)
	}
	if updated.Amount.Cents != 5000 || updated.UpdatedAt == nil {
		t.Errorf("update not persisted: %+v", updated)
	}

	// Another user must not see or touch it
	if _, err := repo.GetTransaction(ctx, created.ID, 2); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction() for other user = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteTransaction(ctx, created.ID, 2); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteTransaction() for other user = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteTransaction(ctx, created.ID, 1); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if _, err := repo.GetTransaction(ctx, created.ID, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction() after delete = %v, want ErrNotFound", err)
	}
}

func TestListTransactions_Pagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// 5 transactions on distinct dates plus 2 sharing a date
	for day := 1; day <= 5; day++ {
		mustCreateTransaction(t, repo, core.Transaction{
			UserID: 1, Description: "spend", Amount: core.Money{Cents: 100},
			Type: core.Expense, Date: core.NewDate(2026, 8, day),
		})
	}
	firstShared := mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "shared a", Amount: core.Money{Cents: 100},
		Type: core.Expense, Date: core.NewDate(2026, 8, 20),
	})
	secondShared := mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "shared b", Amount: core.Money{Cents: 100},
		Type: core.Expense, Date: core.NewDate(2026, 8, 20),
	})
	// Other user's data must not leak into the page or the count
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 2, Description: "other", Amount: core.Money{Cents: 100},
		Type: core.Expense, Date: core.NewDate(2026, 8, 3),
	})

	page, err := repo.ListTransactions(ctx, 1, core.TransactionFilter{Page: 1, PageSize: 3})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if page.TotalCount != 7 {
		t.Errorf("TotalCount = %d, want 7", page.TotalCount)
	}
	if len(page.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(page.Items))
	}
	// Newest date first; equal dates break ties by id descending
	if page.Items[0].ID != secondShared.ID || page.Items[1].ID != firstShared.ID {
		t.Errorf("tie-break order = [%d %d], want [%d %d]",
			page.Items[0].ID, page.Items[1].ID, secondShared.ID, firstShared.ID)
	}

	last, err := repo.ListTransactions(ctx, 1, core.TransactionFilter{Page: 3, PageSize: 3})
	if err != nil {
		t.Fatalf("ListTransactions() page 3 error = %v", err)
	}
	if len(last.Items) != 1 {
		t.Errorf("last page len = %d, want 1", len(last.Items))
	}
	if last.TotalCount != 7 {
		t.Errorf("last page TotalCount = %d, want 7", last.TotalCount)
	}

	empty, err := repo.ListTransactions(ctx, 1, core.TransactionFilter{Page: 10, PageSize: 3})
	if err != nil {
		t.Fatalf("ListTransactions() past end error = %v", err)
	}
	if len(empty.Items) != 0 || empty.TotalCount != 7 {
		t.Errorf("past-end page = %d items, total %d", len(empty.Items), empty.TotalCount)
	}
}

func TestListTransactions_Filters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	food := mustCreateCategory(t, repo, 1, "Food")
	travel := mustCreateCategory(t, repo, 1, "Travel")

	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "lunch", Amount: core.Money{Cents: 1200},
		Type: core.Expense, Date: core.NewDate(2026, 8, 5), CategoryID: &food.ID,
	})
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "train", Amount: core.Money{Cents: 3000},
		Type: core.Expense, Date: core.NewDate(2026, 8, 15), CategoryID: &travel.ID,
	})
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "salary", Amount: core.Money{Cents: 200000},
		Type: core.Income, Date: core.NewDate(2026, 8, 15),
	})

	tests := []struct {
		name   string
		filter core.TransactionFilter
		want   []string
	}{
		{"by category", core.TransactionFilter{CategoryID: &food.ID}, []string{"lunch"}},
		{"by type", core.TransactionFilter{Type: core.Income}, []string{"salary"}},
		{
			"by date range inclusive",
			core.TransactionFilter{StartDate: core.NewDate(2026, 8, 15), EndDate: core.NewDate(2026, 8, 15)},
			[]string{"salary", "train"},
		},
		{
			"combined filters",
			core.TransactionFilter{Type: core.Expense, StartDate: core.NewDate(2026, 8, 10)},
			[]string{"train"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.ListTransactions(ctx, 1, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions() error = %v", err)
			}
			if int(page.TotalCount) != len(tt.want) {
				t.Errorf("TotalCount = %d, want %d", page.TotalCount, len(tt.want))
			}
			var got []string
			for _, item := range page.Items {
				got = append(got, item.Description)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("items = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("items = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestTransactionsForBudget(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	food := mustCreateCategory(t, repo, 1, "Food")
	other := mustCreateCategory(t, repo, 1, "Other")

	in := mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "inside", Amount: core.Money{Cents: 500},
		Type: core.Expense, Date: core.NewDate(2026, 8, 10), CategoryID: &food.ID,
	})
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "before window", Amount: core.Money{Cents: 500},
		Type: core.Expense, Date: core.NewDate(2026, 7, 20), CategoryID: &food.ID,
	})
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "wrong category", Amount: core.Money{Cents: 500},
		Type: core.Expense, Date: core.NewDate(2026, 8, 10), CategoryID: &other.ID,
	})
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "income ignored", Amount: core.Money{Cents: 500},
		Type: core.Income, Date: core.NewDate(2026, 8, 10), CategoryID: &food.ID,
	})

	got, err := repo.TransactionsForBudget(ctx, 1, food.ID, core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if err != nil {
		t.Fatalf("TransactionsForBudget() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != in.ID {
		t.Errorf("TransactionsForBudget() = %+v, want only %d", got, in.ID)
	}

	// Open-ended window picks up everything in the category from start on
	open, err := repo.TransactionsForBudget(ctx, 1, food.ID, core.NewDate(2026, 7, 1), core.Date{})
	if err != nil {
		t.Fatalf("TransactionsForBudget() open-ended error = %v", err)
	}
	if len(open) != 2 {
		t.Errorf("open-ended window returned %d transactions, want 2", len(open))
	}
}

func TestDeleteCategory_Cascade(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	food := mustCreateCategory(t, repo, 1, "Food")

	tx := mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "lunch", Amount: core.Money{Cents: 1000},
		Type: core.Expense, Date: core.NewDate(2026, 8, 1), CategoryID: &food.ID,
	})
	budget, err := repo.CreateBudget(ctx, core.Budget{
		UserID: 1, Name: "Food budget", Amount: core.Money{Cents: 50000},
		Period: core.Monthly, StartDate: core.NewDate(2026, 8, 1), CategoryID: food.ID,
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	if err := repo.DeleteCategory(ctx, food.ID, 1); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	got, err := repo.GetTransaction(ctx, tx.ID, 1)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.CategoryID != nil {
		t.Errorf("transaction category = %v, want detached (nil)", *got.CategoryID)
	}

	if _, err := repo.GetBudget(ctx, budget.ID, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetBudget() after cascade = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetCategory(ctx, food.ID, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetCategory() after delete = %v, want ErrNotFound", err)
	}
}

func TestBudgetCRUDAndActiveList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	food := mustCreateCategory(t, repo, 1, "Food")

	open, err := repo.CreateBudget(ctx, core.Budget{
		UserID: 1, Name: "Open-ended", Amount: core.Money{Cents: 50000},
		Period: core.Monthly, StartDate: core.NewDate(2026, 1, 1), CategoryID: food.ID,
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	_, err = repo.CreateBudget(ctx, core.Budget{
		UserID: 1, Name: "Expired", Amount: core.Money{Cents: 20000},
		Period: core.Monthly, StartDate: core.NewDate(2026, 1, 1),
		EndDate: core.NewDate(2026, 6, 30), CategoryID: food.ID,
	})
	if err != nil {
		t.Fatalf("CreateBudget() expired error = %v", err)
	}
	current, err := repo.CreateBudget(ctx, core.Budget{
		UserID: 2, Name: "Current", Amount: core.Money{Cents: 30000},
		Period: core.Monthly, StartDate: core.NewDate(2026, 8, 1),
		EndDate: core.NewDate(2026, 8, 31), CategoryID: food.ID,
	})
	if err != nil {
		t.Fatalf("CreateBudget() current error = %v", err)
	}

	got, err := repo.GetBudget(ctx, open.ID, 1)
	if err != nil {
		t.Fatalf("GetBudget() error = %v", err)
	}
	if !got.EndDate.IsEmpty() {
		t.Errorf("open-ended budget came back with end date %v", got.EndDate)
	}

	active, err := repo.ListActiveBudgets(ctx, core.NewDate(2026, 8, 15))
	if err != nil {
		t.Fatalf("ListActiveBudgets() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("ListActiveBudgets() returned %d, want 2 (open + current)", len(active))
	}
	for _, ab := range active {
		if ab.Budget.Name == "Expired" {
			t.Error("expired budget included in active list")
		}
		if ab.LastAlertedAt != nil {
			t.Errorf("fresh budget %q has LastAlertedAt set", ab.Budget.Name)
		}
	}

	when := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	if err := repo.MarkBudgetAlerted(ctx, current.ID, when); err != nil {
		t.Fatalf("MarkBudgetAlerted() error = %v", err)
	}
	active, err = repo.ListActiveBudgets(ctx, core.NewDate(2026, 8, 15))
	if err != nil {
		t.Fatalf("ListActiveBudgets() after mark error = %v", err)
	}
	found := false
	for _, ab := range active {
		if ab.Budget.ID == current.ID {
			found = true
			if ab.LastAlertedAt == nil || !ab.LastAlertedAt.Equal(when) {
				t.Errorf("LastAlertedAt = %v, want %v", ab.LastAlertedAt, when)
			}
		}
	}
	if !found {
		t.Error("marked budget missing from active list")
	}

	got.Name = "Renamed"
	if err := repo.UpdateBudget(ctx, got); err != nil {
		t.Fatalf("UpdateBudget() error = %v", err)
	}
	renamed, err := repo.GetBudget(ctx, open.ID, 1)
	if err != nil {
		t.Fatalf("GetBudget() after update error = %v", err)
	}
	if renamed.Name != "Renamed" {
		t.Errorf("budget name = %q, want Renamed", renamed.Name)
	}

	if err := repo.DeleteBudget(ctx, open.ID, 1); err != nil {
		t.Fatalf("DeleteBudget() error = %v", err)
	}
	if _, err := repo.GetBudget(ctx, open.ID, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetBudget() after delete = %v, want ErrNotFound", err)
	}
}

func TestMonthlyReportQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	food := mustCreateCategory(t, repo, 1, "Food")

	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "groceries", Amount: core.Money{Cents: 8000},
		Type: core.Expense, Date: core.NewDate(2026, 7, 10), CategoryID: &food.ID,
	})
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "cash spend", Amount: core.Money{Cents: 2000},
		Type: core.Expense, Date: core.NewDate(2026, 7, 31),
	})
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "salary", Amount: core.Money{Cents: 300000},
		Type: core.Income, Date: core.NewDate(2026, 7, 1),
	})
	// Next month must not bleed into July's report
	mustCreateTransaction(t, repo, core.Transaction{
		UserID: 1, Description: "august spend", Amount: core.Money{Cents: 9999},
		Type: core.Expense, Date: core.NewDate(2026, 8, 1), CategoryID: &food.ID,
	})

	totals, err := repo.MonthExpenseTotals(ctx, 1, 2026, 7)
	if err != nil {
		t.Fatalf("MonthExpenseTotals() error = %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("MonthExpenseTotals() returned %d rows, want 2", len(totals))
	}
	if totals[0].CategoryName != "Food" || totals[0].TotalCents != 8000 {
		t.Errorf("top category = %+v, want Food/8000", totals[0])
	}
	if totals[1].CategoryID != nil || totals[1].TotalCents != 2000 {
		t.Errorf("uncategorized row = %+v, want nil/2000", totals[1])
	}

	income, err := repo.MonthIncomeTotal(ctx, 1, 2026, 7)
	if err != nil {
		t.Fatalf("MonthIncomeTotal() error = %v", err)
	}
	if income != 300000 {
		t.Errorf("MonthIncomeTotal() = %d, want 300000", income)
	}

	// Empty month sums to zero without error
	empty, err := repo.MonthIncomeTotal(ctx, 1, 2026, 1)
	if err != nil {
		t.Fatalf("MonthIncomeTotal() empty month error = %v", err)
	}
	if empty != 0 {
		t.Errorf("MonthIncomeTotal() empty month = %d, want 0", empty)
	}

	users, err := repo.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if len(users) != 1 || users[0] != 1 {
		t.Errorf("ListUserIDs() = %v, want [1]", users)
	}
}
