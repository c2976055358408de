package services

import (
	"context"
	"fmt"

	"pfm/internal/api"
	"pfm/internal/cache"
	"pfm/internal/core"
	"pfm/internal/log"
)

// AccountClient is the part of the API bank-account pages need.
type AccountClient interface {
	api.BankAccountClient
	api.UserClient
}

type AccountService struct {
	api     AccountClient
	list    *listStore[core.BankAccount]
	journal Recorder
	logger  *log.Logger
}

func NewAccountService(client AccountClient, c cache.Cache[[]core.BankAccount], journal Recorder) *AccountService {
	if journal == nil {
		journal = nopRecorder{}
	}
	return &AccountService{
		api:     client,
		list:    newListStore(c, core.ResourceBankAccount, func(a core.BankAccount) int64 { return a.ID }),
		journal: journal,
		logger:  log.Default().WithComponent(log.ComponentAccount),
	}
}

// List returns every account the API lists, soft-deleted ones included.
func (s *AccountService) List(ctx context.Context, who core.Identity) ([]core.BankAccount, error) {
	accounts, err := s.list.load(ctx, who.Email, s.api.ListBankAccounts)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (core.BankAccount, error) {
	a, err := s.api.GetBankAccount(ctx, id)
	if err != nil {
		return core.BankAccount{}, fmt.Errorf("get bank account %d: %w", id, err)
	}
	return a, nil
}

// Owners lists the users an account can be assigned to.
func (s *AccountService) Owners(ctx context.Context) ([]core.User, error) {
	users, err := s.api.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *AccountService) Create(ctx context.Context, who core.Identity, in core.BankAccountInput) (core.BankAccount, error) {
	if err := in.Validate(); err != nil {
		return core.BankAccount{}, err
	}
	a, err := s.api.CreateBankAccount(ctx, in)
	s.journal.Record(ctx, who, core.ResourceBankAccount, core.ActionCreate, a.ID, in.AccountNumber, err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBankAccount, core.ActionCreate, a.ID, err)
		return core.BankAccount{}, fmt.Errorf("create bank account: %w", err)
	}
	s.list.add(who.Email, a)
	s.logger.InfoContext(ctx, "Bank account created", log.FieldResourceID, a.ID, log.FieldUser, who.Email)
	return a, nil
}

func (s *AccountService) Update(ctx context.Context, who core.Identity, id int64, in core.BankAccountInput) (core.BankAccount, error) {
	if err := in.Validate(); err != nil {
		return core.BankAccount{}, err
	}
	a, err := s.api.UpdateBankAccount(ctx, id, in)
	s.journal.Record(ctx, who, core.ResourceBankAccount, core.ActionUpdate, id, in.AccountNumber, err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBankAccount, core.ActionUpdate, id, err)
		return core.BankAccount{}, fmt.Errorf("update bank account %d: %w", id, err)
	}
	if a.ID == 0 {
		a.ID = id
	}
	s.list.replace(who.Email, a)
	return a, nil
}

// Delete soft-deletes the account and drops it from the user's list.
func (s *AccountService) Delete(ctx context.Context, who core.Identity, id int64) error {
	err := s.api.DeleteBankAccount(ctx, id)
	s.journal.Record(ctx, who, core.ResourceBankAccount, core.ActionDelete, id, "", err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBankAccount, core.ActionDelete, id, err)
		return fmt.Errorf("delete bank account %d: %w", id, err)
	}
	s.list.remove(who.Email, id)
	return nil
}

// Restore undeletes the account. The restored row is not returned by the
// API, so the user's list is refetched on next load.
func (s *AccountService) Restore(ctx context.Context, who core.Identity, id int64) error {
	err := s.api.RestoreBankAccount(ctx, id)
	s.journal.Record(ctx, who, core.ResourceBankAccount, core.ActionRestore, id, "", err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBankAccount, core.ActionRestore, id, err)
		return fmt.Errorf("restore bank account %d: %w", id, err)
	}
	s.list.invalidate(who.Email)
	return nil
}
