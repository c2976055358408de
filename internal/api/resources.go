package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pfm/internal/core"
)

const (
	banksPath        = "/banks"
	bankAccountsPath = "/bank-accounts"
	transactionsPath = "/transactions"
	usersPath        = "/users"
)

func itemPath(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) ListBanks(ctx context.Context) ([]core.Bank, error) {
	return list[core.Bank](ctx, c, banksPath)
}

func (c *Client) GetBank(ctx context.Context, id int64) (core.Bank, error) {
	return get[core.Bank](ctx, c, itemPath(banksPath, id))
}

func (c *Client) CreateBank(ctx context.Context, in core.BankInput) (core.Bank, error) {
	return write[core.Bank](ctx, c, http.MethodPost, banksPath, in)
}

func (c *Client) UpdateBank(ctx context.Context, id int64, in core.BankInput) (core.Bank, error) {
	return write[core.Bank](ctx, c, http.MethodPut, itemPath(banksPath, id), in)
}

// DeleteBank succeeds on any 2xx, 200 and 204 in practice.
func (c *Client) DeleteBank(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, itemPath(banksPath, id), nil, nil)
}

// RestoreBank undeletes a bank. Unlike accounts, the API takes a PATCH here.
func (c *Client) RestoreBank(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodPatch, itemPath(banksPath, id)+"/restore", nil, nil)
}

func (c *Client) ListBankAccounts(ctx context.Context) ([]core.BankAccount, error) {
	return list[core.BankAccount](ctx, c, bankAccountsPath)
}

func (c *Client) ListBankAccountsByOwner(ctx context.Context, ownerID int64) ([]core.BankAccount, error) {
	return list[core.BankAccount](ctx, c, itemPath(bankAccountsPath+"/owner", ownerID))
}

func (c *Client) GetBankAccount(ctx context.Context, id int64) (core.BankAccount, error) {
	return get[core.BankAccount](ctx, c, itemPath(bankAccountsPath, id))
}

func (c *Client) CreateBankAccount(ctx context.Context, in core.BankAccountInput) (core.BankAccount, error) {
	return write[core.BankAccount](ctx, c, http.MethodPost, bankAccountsPath, in)
}

func (c *Client) UpdateBankAccount(ctx context.Context, id int64, in core.BankAccountInput) (core.BankAccount, error) {
	return write[core.BankAccount](ctx, c, http.MethodPut, itemPath(bankAccountsPath, id), in)
}

// DeleteBankAccount soft-deletes; the API flips isDeleted to "1".
func (c *Client) DeleteBankAccount(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, itemPath(bankAccountsPath, id), nil, nil)
}

func (c *Client) RestoreBankAccount(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodPut, itemPath(bankAccountsPath, id)+"/restore", nil, nil)
}

func (c *Client) ListTransactionsByUser(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return list[core.Transaction](ctx, c, itemPath(transactionsPath+"/user", userID))
}

func (c *Client) RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("recent transactions: limit must be positive, got %d", limit)
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	return list[core.Transaction](ctx, c, itemPath(transactionsPath+"/user", userID)+"/recent?"+q.Encode())
}

func (c *Client) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	return write[core.Transaction](ctx, c, http.MethodPost, transactionsPath, in)
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	return write[core.Transaction](ctx, c, http.MethodPut, itemPath(transactionsPath, id), in)
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, itemPath(transactionsPath, id), nil, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]core.User, error) {
	return list[core.User](ctx, c, usersPath)
}
