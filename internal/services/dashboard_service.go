package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pfm/internal/api"
	"pfm/internal/core"
	"pfm/internal/log"
)

// RecentLimit is how many transactions the dashboard shows and sums.
const RecentLimit = 5

// DashboardClient is what the dashboard reads from the API.
type DashboardClient interface {
	ListBankAccountsByOwner(ctx context.Context, ownerID int64) ([]core.BankAccount, error)
	RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error)
}

var _ DashboardClient = (api.ClientInterface)(nil)

type DashboardService struct {
	api    DashboardClient
	logger *log.Logger
}

func NewDashboardService(client DashboardClient) *DashboardService {
	return &DashboardService{
		api:    client,
		logger: log.Default().WithComponent(log.ComponentDashboard),
	}
}

// Summary loads the user's accounts and recent transactions concurrently.
// Either call failing fails the whole summary. Income and expense are taken
// over the recent transactions only.
func (s *DashboardService) Summary(ctx context.Context, who core.Identity) (core.DashboardSummary, error) {
	if who.UserID == 0 {
		return core.DashboardSummary{}, ErrNoUserID
	}

	var (
		accounts []core.BankAccount
		recent   []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.api.ListBankAccountsByOwner(gctx, who.UserID)
		if err != nil {
			return fmt.Errorf("list owned accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = s.api.RecentTransactions(gctx, who.UserID, RecentLimit)
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.DashboardSummary{}, err
	}

	sum := core.DashboardSummary{
		Distribution: core.Distribution(accounts),
		Recent:       recent,
	}
	for _, a := range accounts {
		if a.IsDeleted.IsDeleted() {
			continue
		}
		sum.TotalBalance = sum.TotalBalance.Add(a.Balance)
	}
	sum.Income, sum.Expense = core.Totals(recent)

	s.logger.DebugContext(ctx, "Dashboard summary built",
		log.FieldUser, who.Email,
		"accounts", len(accounts),
		"recent", len(recent))
	return sum, nil
}
