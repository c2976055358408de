package http

import (
	"net/http"

	"pfm/internal/core"
)

type bankFormView struct {
	Bank    core.Bank
	Editing bool
	Logo    uploadField
}

func (s *Server) handleBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.banks.List(r.Context(), identity(r))
	if err != nil {
		s.failPage(w, r, err, "banks", "Banks", "banks")
		return
	}
	s.renderPage(w, r, http.StatusOK, "banks", "Banks", "banks", "", banks)
}

// handleBankForm serves both the empty create form and the edit form.
func (s *Server) handleBankForm(w http.ResponseWriter, r *http.Request) {
	view := bankFormView{}
	if r.PathValue("id") != "" {
		id, err := PathID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		bank, err := s.banks.Get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		view = bankFormView{Bank: bank, Editing: true}
	}
	view.Logo = newUploadField(fieldLogo, view.Bank.Logo)
	s.renderPartial(w, r, NewHTMXResponse(), "bank_form", view)
}

func (s *Server) handleBankDetails(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bank, err := s.banks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse(), "bank_details", bank)
}

func (s *Server) handleCreateBank(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bank, err := s.banks.Create(r.Context(), identity(r), ParseBankForm(p))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Bank "+bank.Name+" created").
		TriggerFormReset().
		TriggerPanelClose().
		TriggerListChanged(core.ResourceBank, core.ActionCreate, bank.ID),
		"bank_row", bank)
}

func (s *Server) handleUpdateBank(w http.ResponseWriter, r *http.Request) {
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
	bank, err := s.banks.Update(r.Context(), identity(r), id, ParseBankForm(p))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Bank "+bank.Name+" updated").
		TriggerPanelClose().
		TriggerListChanged(core.ResourceBank, core.ActionUpdate, bank.ID),
		"bank_row", bank)
}

func (s *Server) handleDeleteBank(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.banks.Delete(r.Context(), identity(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	// An empty body removes the row the request came from.
	NewHTMXResponse().
		TriggerSuccessNotification("Bank deleted").
		TriggerListChanged(core.ResourceBank, core.ActionDelete, id).
		Write(w)
}

func (s *Server) handleRestoreBank(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	who := identity(r)
	if err := s.banks.Restore(r.Context(), who, id); err != nil {
		s.fail(w, r, err)
		return
	}
	banks, err := s.banks.List(r.Context(), who)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse().
		TriggerSuccessNotification("Bank restored").
		TriggerListChanged(core.ResourceBank, core.ActionRestore, id),
		"bank_rows", banks)
}
