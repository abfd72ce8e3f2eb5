package core

import (
	"math/rand"
	"testing"
)

func catID(id int64) *int64 { return &id }

func TestComputeUsage_EmptySet(t *testing.T) {
	b := Budget{
		Amount:     Money{Cents: 50000},
		CategoryID: 1,
		StartDate:  NewDate(2024, 1, 1),
	}

	usage := ComputeUsage(b, nil)

	if usage.Spent.Cents != 0 {
		t.Errorf("Spent = %d, want 0", usage.Spent.Cents)
	}
	if usage.Remaining.Cents != 50000 {
		t.Errorf("Remaining = %d, want 50000", usage.Remaining.Cents)
	}
	if usage.PercentageUsed != 0 {
		t.Errorf("PercentageUsed = %v, want 0", usage.PercentageUsed)
	}
}

func TestComputeUsage_WorkedExample(t *testing.T) {
	// Budget $500 monthly, start 2024-01-01, no end date.
	b := Budget{
		Amount:     Money{Cents: 50000},
		Period:     Monthly,
		CategoryID: 7,
		StartDate:  NewDate(2024, 1, 1),
	}

	transactions := []Transaction{
		{Description: "groceries", Amount: Money{Cents: 12000}, Type: Expense, CategoryID: catID(7), Date: NewDate(2024, 1, 10)},
		{Description: "refund", Amount: Money{Cents: 5000}, Type: Income, CategoryID: catID(7), Date: NewDate(2024, 1, 12)},
		{Description: "cinema", Amount: Money{Cents: 3000}, Type: Expense, CategoryID: catID(9), Date: NewDate(2024, 1, 15)},
		{Description: "old groceries", Amount: Money{Cents: 20000}, Type: Expense, CategoryID: catID(7), Date: NewDate(2023, 12, 20)},
	}

	usage := ComputeUsage(b, transactions)

	if usage.Spent.Cents != 12000 {
		t.Errorf("Spent = %d, want 12000", usage.Spent.Cents)
	}
	if usage.Remaining.Cents != 38000 {
		t.Errorf("Remaining = %d, want 38000", usage.Remaining.Cents)
	}
	if usage.PercentageUsed != 24.0 {
		t.Errorf("PercentageUsed = %v, want 24.0", usage.PercentageUsed)
	}
}

func TestComputeUsage_InclusiveWindowBounds(t *testing.T) {
	b := Budget{
		Amount:     Money{Cents: 10000},
		CategoryID: 1,
		StartDate:  NewDate(2024, 1, 1),
		EndDate:    NewDate(2024, 1, 31),
	}

	tests := []struct {
		name string
		date Date
		want int64
	}{
		{"on start date", NewDate(2024, 1, 1), 100},
		{"on end date", NewDate(2024, 1, 31), 100},
		{"day before start", NewDate(2023, 12, 31), 0},
		{"day after end", NewDate(2024, 2, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := []Transaction{
				{Amount: Money{Cents: 100}, Type: Expense, CategoryID: catID(1), Date: tt.date},
			}
			if got := ComputeUsage(b, txs).Spent.Cents; got != tt.want {
				t.Errorf("Spent = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeUsage_OverBudgetRemainingIsNegative(t *testing.T) {
	b := Budget{
		Amount:     Money{Cents: 10000},
		CategoryID: 3,
		StartDate:  NewDate(2024, 1, 1),
	}
	txs := []Transaction{
		{Amount: Money{Cents: 9000}, Type: Expense, CategoryID: catID(3), Date: NewDate(2024, 2, 1)},
		{Amount: Money{Cents: 4000}, Type: Expense, CategoryID: catID(3), Date: NewDate(2024, 2, 2)},
	}

	usage := ComputeUsage(b, txs)

	if usage.Spent.Cents != 13000 {
		t.Errorf("Spent = %d, want 13000", usage.Spent.Cents)
	}
	if usage.Remaining.Cents != -3000 {
		t.Errorf("Remaining = %d, want -3000", usage.Remaining.Cents)
	}
	if usage.PercentageUsed != 130.0 {
		t.Errorf("PercentageUsed = %v, want 130.0", usage.PercentageUsed)
	}
}

func TestComputeUsage_ZeroAmountGuard(t *testing.T) {
	txs := []Transaction{
		{Amount: Money{Cents: 500}, Type: Expense, CategoryID: catID(1), Date: NewDate(2024, 1, 5)},
	}

	for _, cents := range []int64{0, -100} {
		b := Budget{
			Amount:     Money{Cents: cents},
			CategoryID: 1,
			StartDate:  NewDate(2024, 1, 1),
		}
		if pct := ComputeUsage(b, txs).PercentageUsed; pct != 0 {
			t.Errorf("amount %d: PercentageUsed = %v, want 0", cents, pct)
		}
	}
}

func TestComputeUsage_UncategorizedTransactionExcluded(t *testing.T) {
	b := Budget{
		Amount:     Money{Cents: 10000},
		CategoryID: 1,
		StartDate:  NewDate(2024, 1, 1),
	}
	txs := []Transaction{
		{Amount: Money{Cents: 500}, Type: Expense, CategoryID: nil, Date: NewDate(2024, 1, 5)},
	}

	if got := ComputeUsage(b, txs).Spent.Cents; got != 0 {
		t.Errorf("Spent = %d, want 0 for uncategorized transaction", got)
	}
}

func TestComputeUsage_OrderIndependent(t *testing.T) {
	b := Budget{
		Amount:     Money{Cents: 100000},
		CategoryID: 2,
		StartDate:  NewDate(2024, 1, 1),
	}

	txs := make([]Transaction, 0, 20)
	for i := 0; i < 20; i++ {
		txs = append(txs, Transaction{
			Amount:     Money{Cents: int64(100 + i)},
			Type:       Expense,
			CategoryID: catID(2),
			Date:       NewDate(2024, 1, 1+i),
		})
	}

	want := ComputeUsage(b, txs).Spent.Cents

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		rng.Shuffle(len(txs), func(a, b int) { txs[a], txs[b] = txs[b], txs[a] })
		if got := ComputeUsage(b, txs).Spent.Cents; got != want {
			t.Fatalf("shuffle %d: Spent = %d, want %d", i, got, want)
		}
	}
}
