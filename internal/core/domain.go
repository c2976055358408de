package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Savings  AccountType = "SAVINGS"
	Checking AccountType = "CHECKING"

	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	Active  DeletedFlag = "0"
	Deleted DeletedFlag = "1"

	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

type (
	AccountType     string
	TransactionType string
	// DeletedFlag mirrors the backend's soft-delete marker. Display only.
	DeletedFlag string
	Role        string

	Bank struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Country  string `json:"country"`
		Initials string `json:"initials"`
		Logo     string `json:"logo"`
	}

	// Ref is the compact {id, name} form the API nests inside accounts.
	Ref struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	BankAccount struct {
		ID                 int64           `json:"id"`
		AccountNumber      string          `json:"accountNumber"`
		AccountDescription string          `json:"accountDescription"`
		Balance            decimal.Decimal `json:"balance"`
		AccountType        AccountType     `json:"accountType"`
		Bank               Ref             `json:"bank"`
		Owner              Ref             `json:"owner"`
		IsDeleted          DeletedFlag     `json:"isDeleted"`
	}

	Transaction struct {
		ID              int64           `json:"id"`
		BankAccountID   int64           `json:"bankAccountId"`
		TransactionType TransactionType `json:"transactionType"`
		Amount          decimal.Decimal `json:"amount"`
		TransactionDate string          `json:"transactionDate"`
		Description     string          `json:"description,omitempty"`
		ReceiptFilePath string          `json:"receiptFilePath,omitempty"`
		IsDeleted       DeletedFlag     `json:"isDeleted"`
	}

	User struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	BankInput struct {
		Name     string `json:"name"`
		Country  string `json:"country"`
		Initials string `json:"initials"`
		Logo     string `json:"logo"`
	}

	BankAccountInput struct {
		AccountDescription string          `json:"accountDescription"`
		AccountNumber      string          `json:"accountNumber"`
		Balance            decimal.Decimal `json:"balance"`
		AccountType        AccountType     `json:"accountType"`
		BankID             int64           `json:"bankId"`
		OwnerID            int64           `json:"ownerId"`
	}

	TransactionInput struct {
		BankAccountID   int64           `json:"bankAccountId"`
		TransactionType TransactionType `json:"transactionType"`
		Amount          decimal.Decimal `json:"amount"`
		TransactionDate string          `json:"transactionDate"`
		Description     string          `json:"description,omitempty"`
		ReceiptFilePath string          `json:"receiptFilePath,omitempty"`
		IsDeleted       DeletedFlag     `json:"isDeleted,omitempty"`
	}

	// Identity is what a session token says about its bearer.
	Identity struct {
		UserID int64
		Email  string
		Role   Role
	}
)

var (
	ErrEmptyName          = errors.New("name is required")
	ErrEmptyCountry       = errors.New("country is required")
	ErrMissingLogo        = errors.New("upload a logo before saving the bank")
	ErrEmptyAccountNumber = errors.New("account number is required")
	ErrMissingBank        = errors.New("bank is required")
	ErrMissingOwner       = errors.New("owner is required")
	ErrInvalidAccountType = errors.New("account type must be SAVINGS or CHECKING")
	ErrMissingAccount     = errors.New("bank account is required")
	ErrInvalidTxType      = errors.New("transaction type must be INCOME or EXPENSE")
	ErrMissingDate        = errors.New("transaction date is required")
	ErrInvalidDate        = errors.New("invalid transaction date")
)

func (t AccountType) Valid() bool { return t == Savings || t == Checking }

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

func (f DeletedFlag) IsDeleted() bool { return f == Deleted }

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// Validate checks a bank payload. Logo is only mandatory on create.
func (in BankInput) Validate(creating bool) error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(in.Country) == "" {
		return ErrEmptyCountry
	}
	if creating && strings.TrimSpace(in.Logo) == "" {
		return ErrMissingLogo
	}
	return nil
}

func (in BankAccountInput) Validate() error {
	if strings.TrimSpace(in.AccountNumber) == "" {
		return ErrEmptyAccountNumber
	}
	if !in.AccountType.Valid() {
		return ErrInvalidAccountType
	}
	if in.BankID <= 0 {
		return ErrMissingBank
	}
	if in.OwnerID <= 0 {
		return ErrMissingOwner
	}
	return nil
}

func (in TransactionInput) Validate() error {
	if in.BankAccountID <= 0 {
		return ErrMissingAccount
	}
	if !in.TransactionType.Valid() {
		return ErrInvalidTxType
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(in.TransactionDate) == "" {
		return ErrMissingDate
	}
	if _, err := ParseDate(in.TransactionDate); err != nil {
		return err
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 shapes the API and date inputs produce.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// APITimestamp is the instant layout the API expects for transaction dates,
// millisecond precision in UTC.
const APITimestamp = "2006-01-02T15:04:05.000Z07:00"

// ToAPITimestamp normalises a form or API date to APITimestamp. Blank input
// stays blank so Validate can report it as missing.
func ToAPITimestamp(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(APITimestamp), nil
}

// Date returns the parsed transaction date, or the zero time.
func (t Transaction) Date() time.Time {
	d, _ := ParseDate(t.TransactionDate)
	return d
}

// Input converts a stored transaction back into an update payload.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		BankAccountID:   t.BankAccountID,
		TransactionType: t.TransactionType,
		Amount:          t.Amount,
		TransactionDate: t.TransactionDate,
		Description:     t.Description,
		ReceiptFilePath: t.ReceiptFilePath,
		IsDeleted:       t.IsDeleted,
	}
}

func (a BankAccount) Input() BankAccountInput {
	return BankAccountInput{
		AccountDescription: a.AccountDescription,
		AccountNumber:      a.AccountNumber,
		Balance:            a.Balance,
		AccountType:        a.AccountType,
		BankID:             a.Bank.ID,
		OwnerID:            a.Owner.ID,
	}
}

func (b Bank) Input() BankInput {
	return BankInput{Name: b.Name, Country: b.Country, Initials: b.Initials, Logo: b.Logo}
}
