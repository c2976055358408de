package api

import (
	"context"
	"io"

	"pfm/internal/core"
)

type AuthClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, name, email, password string) (string, error)
}

type BankClient interface {
	ListBanks(ctx context.Context) ([]core.Bank, error)
	GetBank(ctx context.Context, id int64) (core.Bank, error)
	CreateBank(ctx context.Context, in core.BankInput) (core.Bank, error)
	UpdateBank(ctx context.Context, id int64, in core.BankInput) (core.Bank, error)
	DeleteBank(ctx context.Context, id int64) error
	RestoreBank(ctx context.Context, id int64) error
}

type BankAccountClient interface {
	ListBankAccounts(ctx context.Context) ([]core.BankAccount, error)
	ListBankAccountsByOwner(ctx context.Context, ownerID int64) ([]core.BankAccount, error)
	GetBankAccount(ctx context.Context, id int64) (core.BankAccount, error)
	CreateBankAccount(ctx context.Context, in core.BankAccountInput) (core.BankAccount, error)
	UpdateBankAccount(ctx context.Context, id int64, in core.BankAccountInput) (core.BankAccount, error)
	DeleteBankAccount(ctx context.Context, id int64) error
	RestoreBankAccount(ctx context.Context, id int64) error
}

type TransactionClient interface {
	ListTransactionsByUser(ctx context.Context, userID int64) ([]core.Transaction, error)
	RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

type UserClient interface {
	ListUsers(ctx context.Context) ([]core.User, error)
}

type UploadClient interface {
	Upload(ctx context.Context, kind UploadKind, filename string, r io.Reader) (string, error)
}

// ClientInterface is everything the finance API offers.
type ClientInterface interface {
	AuthClient
	BankClient
	BankAccountClient
	TransactionClient
	UserClient
	UploadClient
}
