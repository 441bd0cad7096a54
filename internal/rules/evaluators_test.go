package rules

import (
	"testing"

	"github.com/shopspring/decimal"

	"boosterbucks/internal/core"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBigSaver_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		accounts []core.Account
		want     int64
	}{
		{
			name: "no accounts",
			want: 0,
		},
		{
			name: "single savings account",
			accounts: []core.Account{
				{ID: "a1", Type: core.AccountSavings, Balance: dec("1250.00")},
			},
			want: 1250,
		},
		{
			name: "checking accounts ignored",
			accounts: []core.Account{
				{ID: "a1", Type: core.AccountChecking, Balance: dec("9999.99")},
				{ID: "a2", Type: core.AccountSavings, Balance: dec("100.50")},
			},
			want: 100,
		},
		{
			name: "multiple savings accounts summed",
			accounts: []core.Account{
				{ID: "a1", Type: core.AccountSavings, Balance: dec("600.25")},
				{ID: "a2", Type: core.AccountSavings, Balance: dec("400.75")},
			},
			want: 1001,
		},
		{
			name: "negative total clamps to zero",
			accounts: []core.Account{
				{ID: "a1", Type: core.AccountSavings, Balance: dec("-50.00")},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BigSaver{}.Evaluate(core.EvaluationSnapshot{Accounts: tt.accounts})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("BigSaver.Evaluate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFirstExpense_Evaluate(t *testing.T) {
	tests := []struct {
		name string
		txs  []core.Transaction
		want int64
	}{
		{name: "no transactions", want: 0},
		{
			name: "income only",
			txs:  []core.Transaction{{ID: "t1", Type: core.TxIncome, Amount: dec("100")}},
			want: 0,
		},
		{
			name: "one expense",
			txs:  []core.Transaction{{ID: "t1", Type: core.TxExpense, Amount: dec("9.99")}},
			want: 1,
		},
		{
			name: "many expenses still 1",
			txs: []core.Transaction{
				{ID: "t1", Type: core.TxExpense, Amount: dec("1")},
				{ID: "t2", Type: core.TxExpense, Amount: dec("2")},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstExpense{}.Evaluate(core.EvaluationSnapshot{Transactions: tt.txs})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FirstExpense.Evaluate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEmergencyFund_Evaluate(t *testing.T) {
	ev := EmergencyFund{DefaultGoal: 1000}

	tests := []struct {
		name string
		snap core.EvaluationSnapshot
		want int64
	}{
		{
			name: "no emergency transactions",
			snap: core.EvaluationSnapshot{
				Transactions: []core.Transaction{
					{ID: "t1", Type: core.TxExpense, Category: "Food", Amount: dec("50")},
				},
			},
			want: 0,
		},
		{
			name: "sums emergency transactions",
			snap: core.EvaluationSnapshot{
				Transactions: []core.Transaction{
					{ID: "t1", Category: "Emergency", Amount: dec("300.40")},
					{ID: "t2", Category: "Emergency", Amount: dec("150.60")},
				},
			},
			want: 451,
		},
		{
			name: "capped at default goal",
			snap: core.EvaluationSnapshot{
				Transactions: []core.Transaction{
					{ID: "t1", Category: "Emergency", Amount: dec("2500")},
				},
			},
			want: 1000,
		},
		{
			name: "goal from budget category ceiling",
			snap: core.EvaluationSnapshot{
				Categories: []core.Category{
					{ID: "c1", Name: "Emergency", Budget: dec("500")},
				},
				Transactions: []core.Transaction{
					{ID: "t1", Category: "Emergency", Amount: dec("800")},
				},
			},
			want: 500,
		},
		{
			name: "zero-budget category falls back to default",
			snap: core.EvaluationSnapshot{
				Categories: []core.Category{
					{ID: "c1", Name: "Emergency", Budget: dec("0")},
				},
				Transactions: []core.Transaction{
					{ID: "t1", Category: "Emergency", Amount: dec("1200")},
				},
			},
			want: 1000,
		},
		{
			name: "case-insensitive tag match",
			snap: core.EvaluationSnapshot{
				Transactions: []core.Transaction{
					{ID: "t1", Category: "emergency", Amount: dec("42")},
				},
			},
			want: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(tt.snap)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EmergencyFund.Evaluate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("big_saver", BigSaver{}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register("big_saver", BigSaver{}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if err := r.Register("", FirstExpense{}); err == nil {
		t.Fatal("empty id should fail")
	}
	if err := r.Register("no_eval", nil); err == nil {
		t.Fatal("nil evaluator should fail")
	}
	if r.Len() != 1 {
		t.Fatalf("registry length = %d, want 1", r.Len())
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(DefaultConfig())
	if r.Len() != 3 {
		t.Fatalf("default registry has %d rules, want 3", r.Len())
	}

	order := make([]string, 0, r.Len())
	for _, rule := range r.Rules() {
		order = append(order, rule.AchievementID)
	}
	want := []string{core.AchievementBigSaver, core.AchievementFirstExpense, core.AchievementEmergencyFund}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("rule %d = %q, want %q", i, order[i], id)
		}
	}
}
