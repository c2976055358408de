package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"pfm/internal/core"
)

type accountFormView struct {
	Account core.BankAccount
	Banks   []core.Bank
	Owners  []core.User
	Editing bool
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.List(r.Context(), identity(r))
	if err != nil {
		s.failPage(w, r, err, "bank_accounts", "Bank accounts", "accounts")
		return
	}
	s.renderPage(w, r, http.StatusOK, "bank_accounts", "Bank accounts", "accounts", "", accounts)
}

// handleAccountForm loads the bank and owner choices, and the account when
// editing, concurrently.
func (s *Server) handleAccountForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := identity(r)
	view := accountFormView{}

	var id int64
	if r.PathValue("id") != "" {
		var err error
		if id, err = PathID(r); err != nil {
			s.fail(w, r, err)
			return
		}
		view.Editing = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Banks, err = s.banks.List(gctx, who)
		return err
	})
	g.Go(func() (err error) {
		view.Owners, err = s.accounts.Owners(gctx)
		return err
	})
	if view.Editing {
		g.Go(func() (err error) {
			view.Account, err = s.accounts.Get(gctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse(), "account_form", view)
}

func (s *Server) handleAccountDetails(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse(), "account_details", account)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := ParseAccountForm(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := s.accounts.Create(r.Context(), identity(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Account "+account.AccountNumber+" created").
		TriggerFormReset().
		TriggerPanelClose().
		TriggerListChanged(core.ResourceBankAccount, core.ActionCreate, account.ID),
		"account_row", account)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := parseBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := ParseAccountForm(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := s.accounts.Update(r.Context(), identity(r), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Account "+account.AccountNumber+" updated").
		TriggerPanelClose().
		TriggerListChanged(core.ResourceBankAccount, core.ActionUpdate, account.ID),
		"account_row", account)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.accounts.Delete(r.Context(), identity(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerSuccessNotification("Account deleted").
		TriggerListChanged(core.ResourceBankAccount, core.ActionDelete, id).
		Write(w)
}

// handleRestoreAccount answers with the refetched rows; the restored
// account is not part of the API's answer.
func (s *Server) handleRestoreAccount(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	who := identity(r)
	if err := s.accounts.Restore(r.Context(), who, id); err != nil {
		s.fail(w, r, err)
		return
	}
	accounts, err := s.accounts.List(r.Context(), who)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Account restored").
		TriggerListChanged(core.ResourceBankAccount, core.ActionRestore, id),
		"account_rows", accounts)
}
