package core

import "github.com/shopspring/decimal"

// BalanceShare is one account's slice of the user's total balance.
type BalanceShare struct {
	Name    string
	Balance decimal.Decimal
	Width   int // bar width in percent, 0 or 2-100
}

// DashboardSummary aggregates the signed-in user's accounts and recent activity.
type DashboardSummary struct {
	TotalBalance decimal.Decimal
	Income       decimal.Decimal
	Expense      decimal.Decimal
	Distribution []BalanceShare
	Recent       []Transaction
}

// Overview is the income/expense/net triple over the whole ledger.
type Overview struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
	Count   int
}

// Totals sums income and expense over txs, skipping soft-deleted rows.
func Totals(txs []Transaction) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, t := range txs {
		if t.IsDeleted.IsDeleted() {
			continue
		}
		switch t.TransactionType {
		case Income:
			income = income.Add(t.Amount)
		case Expense:
			expense = expense.Add(t.Amount)
		}
	}
	return income, expense
}

// Distribution groups balances by account description and sizes each bar
// against the largest absolute balance.
func Distribution(accounts []BankAccount) []BalanceShare {
	var shares []BalanceShare
	idx := map[string]int{}
	for _, a := range accounts {
		if a.IsDeleted.IsDeleted() {
			continue
		}
		name := a.AccountDescription
		if name == "" {
			name = a.AccountNumber
		}
		if i, ok := idx[name]; ok {
			shares[i].Balance = shares[i].Balance.Add(a.Balance)
			continue
		}
		idx[name] = len(shares)
		shares = append(shares, BalanceShare{Name: name, Balance: a.Balance})
	}

	maxAbs := decimal.Zero
	for _, s := range shares {
		if s.Balance.Abs().GreaterThan(maxAbs) {
			maxAbs = s.Balance.Abs()
		}
	}
	if maxAbs.IsZero() {
		return shares
	}
	hundred := decimal.NewFromInt(100)
	for i := range shares {
		if shares[i].Balance.IsZero() {
			continue
		}
		w := int(shares[i].Balance.Abs().Mul(hundred).Div(maxAbs).Round(0).IntPart())
		if w < 2 {
			w = 2
		}
		if w > 100 {
			w = 100
		}
		shares[i].Width = w
	}
	return shares
}
