package services

import (
	"context"
	"fmt"

	"pfm/internal/api"
	"pfm/internal/cache"
	"pfm/internal/core"
	"pfm/internal/log"
)

type BankService struct {
	api     api.BankClient
	list    *listStore[core.Bank]
	journal Recorder
	logger  *log.Logger
}

func NewBankService(client api.BankClient, c cache.Cache[[]core.Bank], journal Recorder) *BankService {
	if journal == nil {
		journal = nopRecorder{}
	}
	return &BankService{
		api:     client,
		list:    newListStore(c, core.ResourceBank, func(b core.Bank) int64 { return b.ID }),
		journal: journal,
		logger:  log.Default().WithComponent(log.ComponentBank),
	}
}

func (s *BankService) List(ctx context.Context, who core.Identity) ([]core.Bank, error) {
	banks, err := s.list.load(ctx, who.Email, s.api.ListBanks)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	return banks, nil
}

func (s *BankService) Get(ctx context.Context, id int64) (core.Bank, error) {
	b, err := s.api.GetBank(ctx, id)
	if err != nil {
		return core.Bank{}, fmt.Errorf("get bank %d: %w", id, err)
	}
	return b, nil
}

// Create requires a logo path, so the image must be uploaded first.
func (s *BankService) Create(ctx context.Context, who core.Identity, in core.BankInput) (core.Bank, error) {
	if err := in.Validate(true); err != nil {
		return core.Bank{}, err
	}
	b, err := s.api.CreateBank(ctx, in)
	s.journal.Record(ctx, who, core.ResourceBank, core.ActionCreate, b.ID, in.Name, err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBank, core.ActionCreate, b.ID, err)
		return core.Bank{}, fmt.Errorf("create bank: %w", err)
	}
	s.list.add(who.Email, b)
	s.logger.InfoContext(ctx, "Bank created", log.FieldResourceID, b.ID, log.FieldUser, who.Email)
	return b, nil
}

func (s *BankService) Update(ctx context.Context, who core.Identity, id int64, in core.BankInput) (core.Bank, error) {
	if err := in.Validate(false); err != nil {
		return core.Bank{}, err
	}
	b, err := s.api.UpdateBank(ctx, id, in)
	s.journal.Record(ctx, who, core.ResourceBank, core.ActionUpdate, id, in.Name, err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBank, core.ActionUpdate, id, err)
		return core.Bank{}, fmt.Errorf("update bank %d: %w", id, err)
	}
	if b.ID == 0 {
		b.ID = id
	}
	s.list.replace(who.Email, b)
	return b, nil
}

func (s *BankService) Delete(ctx context.Context, who core.Identity, id int64) error {
	err := s.api.DeleteBank(ctx, id)
	s.journal.Record(ctx, who, core.ResourceBank, core.ActionDelete, id, "", err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBank, core.ActionDelete, id, err)
		return fmt.Errorf("delete bank %d: %w", id, err)
	}
	s.list.remove(who.Email, id)
	return nil
}

// Restore undeletes the bank and drops the cached list so the next load
// picks it up again.
func (s *BankService) Restore(ctx context.Context, who core.Identity, id int64) error {
	err := s.api.RestoreBank(ctx, id)
	s.journal.Record(ctx, who, core.ResourceBank, core.ActionRestore, id, "", err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceBank, core.ActionRestore, id, err)
		return fmt.Errorf("restore bank %d: %w", id, err)
	}
	s.list.invalidate(who.Email)
	return nil
}
