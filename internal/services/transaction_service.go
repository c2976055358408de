package services

import (
	"context"
	"errors"
	"fmt"

	"pfm/internal/api"
	"pfm/internal/cache"
	"pfm/internal/core"
	"pfm/internal/log"
)

// ErrNoUserID is returned for per-user views when the session token carried
// no user id claim.
var ErrNoUserID = errors.New("session has no user id")

type TransactionService struct {
	api     api.TransactionClient
	list    *listStore[core.Transaction]
	journal Recorder
	logger  *log.Logger
}

func NewTransactionService(client api.TransactionClient, c cache.Cache[[]core.Transaction], journal Recorder) *TransactionService {
	if journal == nil {
		journal = nopRecorder{}
	}
	return &TransactionService{
		api:     client,
		list:    newListStore(c, core.ResourceTransaction, func(t core.Transaction) int64 { return t.ID }),
		journal: journal,
		logger:  log.Default().WithComponent(log.ComponentTx),
	}
}

// List returns the signed-in user's ledger.
func (s *TransactionService) List(ctx context.Context, who core.Identity) ([]core.Transaction, error) {
	if who.UserID == 0 {
		return nil, ErrNoUserID
	}
	txs, err := s.list.load(ctx, who.Email, func(ctx context.Context) ([]core.Transaction, error) {
		return s.api.ListTransactionsByUser(ctx, who.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Find looks id up in the user's ledger; the API has no single-item read.
func (s *TransactionService) Find(ctx context.Context, who core.Identity, id int64) (core.Transaction, bool, error) {
	txs, err := s.List(ctx, who)
	if err != nil {
		return core.Transaction{}, false, err
	}
	for _, t := range txs {
		if t.ID == id {
			return t, true, nil
		}
	}
	return core.Transaction{}, false, nil
}

// Overview totals the user's whole ledger.
func (s *TransactionService) Overview(ctx context.Context, who core.Identity) (core.Overview, error) {
	txs, err := s.List(ctx, who)
	if err != nil {
		return core.Overview{}, err
	}
	income, expense := core.Totals(txs)
	count := 0
	for _, t := range txs {
		if !t.IsDeleted.IsDeleted() {
			count++
		}
	}
	return core.Overview{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
		Count:   count,
	}, nil
}

func (s *TransactionService) Create(ctx context.Context, who core.Identity, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.api.CreateTransaction(ctx, in)
	s.journal.Record(ctx, who, core.ResourceTransaction, core.ActionCreate, t.ID, string(in.TransactionType)+" "+in.Amount.StringFixed(2), err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceTransaction, core.ActionCreate, t.ID, err)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.list.add(who.Email, t)
	s.logger.InfoContext(ctx, "Transaction created", log.FieldResourceID, t.ID, log.FieldUser, who.Email)
	return t, nil
}

func (s *TransactionService) Update(ctx context.Context, who core.Identity, id int64, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.api.UpdateTransaction(ctx, id, in)
	s.journal.Record(ctx, who, core.ResourceTransaction, core.ActionUpdate, id, string(in.TransactionType)+" "+in.Amount.StringFixed(2), err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceTransaction, core.ActionUpdate, id, err)
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	if t.ID == 0 {
		t.ID = id
	}
	s.list.replace(who.Email, t)
	return t, nil
}

// Delete soft-deletes the transaction and drops it from the ledger.
func (s *TransactionService) Delete(ctx context.Context, who core.Identity, id int64) error {
	err := s.api.DeleteTransaction(ctx, id)
	s.journal.Record(ctx, who, core.ResourceTransaction, core.ActionDelete, id, "", err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceTransaction, core.ActionDelete, id, err)
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.list.remove(who.Email, id)
	return nil
}
