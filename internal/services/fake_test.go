package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"pfm/internal/api"
	"pfm/internal/core"
)

var errAPI = &api.Error{Status: 500, Message: "backend exploded"}

// fakeAPI serves canned data and counts calls. A non-nil fail makes every
// mutating call return it.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	banks    []core.Bank
	accounts []core.BankAccount
	txs      []core.Transaction
	users    []core.User
	fail     error
	listErr  error
	nextID   int64
	uploaded []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}, nextID: 100}
}

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) id() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func (f *fakeAPI) Login(context.Context, string, string) (string, error) { return "", nil }

func (f *fakeAPI) Register(context.Context, string, string, string) (string, error) { return "", nil }

func (f *fakeAPI) ListBanks(context.Context) ([]core.Bank, error) {
	f.hit("ListBanks")
	return append([]core.Bank(nil), f.banks...), f.listErr
}

func (f *fakeAPI) GetBank(_ context.Context, id int64) (core.Bank, error) {
	for _, b := range f.banks {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Bank{}, &api.Error{Status: 404, Message: "bank not found"}
}

func (f *fakeAPI) CreateBank(_ context.Context, in core.BankInput) (core.Bank, error) {
	f.hit("CreateBank")
	if f.fail != nil {
		return core.Bank{}, f.fail
	}
	return core.Bank{ID: f.id(), Name: in.Name, Country: in.Country, Initials: in.Initials, Logo: in.Logo}, nil
}

func (f *fakeAPI) UpdateBank(_ context.Context, id int64, in core.BankInput) (core.Bank, error) {
	f.hit("UpdateBank")
	if f.fail != nil {
		return core.Bank{}, f.fail
	}
	return core.Bank{ID: id, Name: in.Name, Country: in.Country, Initials: in.Initials, Logo: in.Logo}, nil
}

func (f *fakeAPI) DeleteBank(context.Context, int64) error {
	f.hit("DeleteBank")
	return f.fail
}

func (f *fakeAPI) RestoreBank(context.Context, int64) error {
	f.hit("RestoreBank")
	return f.fail
}

func (f *fakeAPI) ListBankAccounts(context.Context) ([]core.BankAccount, error) {
	f.hit("ListBankAccounts")
	return append([]core.BankAccount(nil), f.accounts...), f.listErr
}

func (f *fakeAPI) ListBankAccountsByOwner(_ context.Context, owner int64) ([]core.BankAccount, error) {
	f.hit("ListBankAccountsByOwner")
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.BankAccount
	for _, a := range f.accounts {
		if a.Owner.ID == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetBankAccount(_ context.Context, id int64) (core.BankAccount, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.BankAccount{}, &api.Error{Status: 404, Message: "account not found"}
}

func (f *fakeAPI) CreateBankAccount(_ context.Context, in core.BankAccountInput) (core.BankAccount, error) {
	f.hit("CreateBankAccount")
	if f.fail != nil {
		return core.BankAccount{}, f.fail
	}
	return core.BankAccount{ID: f.id(), AccountNumber: in.AccountNumber, Balance: in.Balance, AccountType: in.AccountType}, nil
}

func (f *fakeAPI) UpdateBankAccount(_ context.Context, id int64, in core.BankAccountInput) (core.BankAccount, error) {
	f.hit("UpdateBankAccount")
	if f.fail != nil {
		return core.BankAccount{}, f.fail
	}
	return core.BankAccount{ID: id, AccountNumber: in.AccountNumber, Balance: in.Balance, AccountType: in.AccountType}, nil
}

func (f *fakeAPI) DeleteBankAccount(context.Context, int64) error {
	f.hit("DeleteBankAccount")
	return f.fail
}

func (f *fakeAPI) RestoreBankAccount(context.Context, int64) error {
	f.hit("RestoreBankAccount")
	return f.fail
}

func (f *fakeAPI) ListTransactionsByUser(context.Context, int64) ([]core.Transaction, error) {
	f.hit("ListTransactionsByUser")
	return append([]core.Transaction(nil), f.txs...), f.listErr
}

func (f *fakeAPI) RecentTransactions(_ context.Context, _ int64, limit int) ([]core.Transaction, error) {
	f.hit("RecentTransactions")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := append([]core.Transaction(nil), f.txs...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAPI) CreateTransaction(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	f.hit("CreateTransaction")
	if f.fail != nil {
		return core.Transaction{}, f.fail
	}
	return core.Transaction{ID: f.id(), BankAccountID: in.BankAccountID, TransactionType: in.TransactionType, Amount: in.Amount, TransactionDate: in.TransactionDate}, nil
}

func (f *fakeAPI) UpdateTransaction(_ context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	f.hit("UpdateTransaction")
	if f.fail != nil {
		return core.Transaction{}, f.fail
	}
	return core.Transaction{ID: id, BankAccountID: in.BankAccountID, TransactionType: in.TransactionType, Amount: in.Amount, TransactionDate: in.TransactionDate}, nil
}

func (f *fakeAPI) DeleteTransaction(context.Context, int64) error {
	f.hit("DeleteTransaction")
	return f.fail
}

func (f *fakeAPI) ListUsers(context.Context) ([]core.User, error) {
	f.hit("ListUsers")
	return f.users, f.listErr
}

func (f *fakeAPI) Upload(_ context.Context, kind api.UploadKind, filename string, r io.Reader) (string, error) {
	f.hit("Upload")
	if f.fail != nil {
		return "", f.fail
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, filename)
	return "uploads/" + string(kind) + "/" + filename, nil
}

var _ api.ClientInterface = (*fakeAPI)(nil)

type recorded struct {
	resource, action string
	resourceID       int64
	failed           bool
}

type fakeRecorder struct {
	entries []recorded
}

func (r *fakeRecorder) Record(_ context.Context, _ core.Identity, resource, action string, resourceID int64, _ string, err error) {
	r.entries = append(r.entries, recorded{resource: resource, action: action, resourceID: resourceID, failed: err != nil})
}

type fakePublisher struct {
	published []int64
	err       error
	closed    bool
}

func (p *fakePublisher) PublishActivity(_ context.Context, id int64, _ string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, id)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type failingWriter struct{ err error }

func (w failingWriter) AppendActivity(context.Context, core.Activity) (string, error) {
	if w.err == nil {
		return "", errors.New("sheets unavailable")
	}
	return "", w.err
}

var ana = core.Identity{UserID: 7, Email: "ana@example.com", Role: core.RoleUser}
