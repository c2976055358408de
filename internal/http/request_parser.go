// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Every mutation form goes through RequestBodyParser so handlers accept both
// HTMX form posts and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pfm/internal/core"
)

// maxFormBody caps a urlencoded or JSON mutation body.
const maxFormBody = 64 << 10

var errInvalidID = errors.New("invalid id")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBody))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Int64 returns key as a number, or 0 when it is missing or malformed.
func (p *RequestBodyParser) Int64(key string) int64 {
	n, err := strconv.ParseInt(p.Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseBankForm reads a bank payload.
func ParseBankForm(p *RequestBodyParser) core.BankInput {
	return core.BankInput{
		Name:     p.Get("name"),
		Country:  p.Get("country"),
		Initials: strings.ToUpper(p.Get("initials")),
		Logo:     p.Get("logo"),
	}
}

// ParseAccountForm reads a bank account payload. Only the balance can fail
// here; missing ids and types are caught by BankAccountInput.Validate.
func ParseAccountForm(p *RequestBodyParser) (core.BankAccountInput, error) {
	balance, err := core.ParseBalance(p.Get("balance"))
	if err != nil {
		return core.BankAccountInput{}, err
	}
	return core.BankAccountInput{
		AccountNumber:      p.Get("accountNumber"),
		AccountDescription: p.Get("accountDescription"),
		Balance:            balance,
		AccountType:        core.AccountType(strings.ToUpper(p.Get("accountType"))),
		BankID:             p.Int64("bankId"),
		OwnerID:            p.Int64("ownerId"),
	}, nil
}

// ParseTransactionForm reads a transaction payload.
func ParseTransactionForm(p *RequestBodyParser) (core.TransactionInput, error) {
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.TransactionInput{}, err
	}
	date, err := core.ToAPITimestamp(p.Get("transactionDate"))
	if err != nil {
		return core.TransactionInput{}, err
	}
	return core.TransactionInput{
		BankAccountID:   p.Int64("bankAccountId"),
		TransactionType: core.TransactionType(strings.ToUpper(p.Get("transactionType"))),
		Amount:          amount,
		TransactionDate: date,
		Description:     p.Get("description"),
		ReceiptFilePath: p.Get("receiptFilePath"),
	}, nil
}

// PathID reads the {id} wildcard of the matched route.
func PathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// parseBody is the common prologue of every mutation handler.
func parseBody(r *http.Request) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, errBadRequest
	}
	return p, nil
}
