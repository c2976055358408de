package http

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"pfm/internal/core"
)

type txFormView struct {
	Tx       core.Transaction
	Accounts []core.BankAccount
	Editing  bool
	Receipt  uploadField
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.List(r.Context(), identity(r))
	if err != nil {
		s.failPage(w, r, err, "transactions", "Transactions", "transactions")
		return
	}
	s.renderPage(w, r, http.StatusOK, "transactions", "Transactions", "transactions", "", txs)
}

// findTransaction resolves the {id} of the route in the user's ledger.
func (s *Server) findTransaction(r *http.Request) (core.Transaction, error) {
	id, err := PathID(r)
	if err != nil {
		return core.Transaction{}, err
	}
	tx, found, err := s.transactions.Find(r.Context(), identity(r), id)
	if err != nil {
		return core.Transaction{}, err
	}
	if !found {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, errNotFound)
	}
	return tx, nil
}

func (s *Server) handleTransactionForm(w http.ResponseWriter, r *http.Request) {
	who := identity(r)
	view := txFormView{Tx: core.Transaction{TransactionType: core.Expense}}
	editing := r.PathValue("id") != ""

	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		view.Accounts, err = s.accounts.List(gctx, who)
		return err
	})
	if editing {
		g.Go(func() (err error) {
			view.Tx, err = s.findTransaction(r.WithContext(gctx))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	view.Editing = editing
	view.Receipt = newUploadField(fieldReceipt, view.Tx.ReceiptFilePath)
	s.renderPartial(w, r, NewHTMXResponse(), "tx_form", view)
}

func (s *Server) handleTransactionDetails(w http.ResponseWriter, r *http.Request) {
	tx, err := s.findTransaction(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse(), "tx_details", tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := ParseTransactionForm(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.transactions.Create(r.Context(), identity(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Transaction saved").
		TriggerFormReset().
		TriggerPanelClose().
		TriggerListChanged(core.ResourceTransaction, core.ActionCreate, tx.ID),
		"tx_row", tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
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
	in, err := ParseTransactionForm(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.transactions.Update(r.Context(), identity(r), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Transaction updated").
		TriggerPanelClose().
		TriggerListChanged(core.ResourceTransaction, core.ActionUpdate, tx.ID),
		"tx_row", tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.transactions.Delete(r.Context(), identity(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerSuccessNotification("Transaction deleted").
		TriggerListChanged(core.ResourceTransaction, core.ActionDelete, id).
		Write(w)
}
