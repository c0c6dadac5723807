package api

import (
	"net/http"

	"money-ledger/pkg/journal"
	"money-ledger/pkg/ledger"

	"github.com/gorilla/mux"
)

func (s *Server) accountRoutes(r *mux.Router) {
	r.HandleFunc("/accounts", s.createAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts", s.listAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}", s.getAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}", s.updateAccount).Methods(http.MethodPatch)
	r.HandleFunc("/accounts/{id}", s.deleteAccount).Methods(http.MethodDelete)
	r.HandleFunc("/accounts/{id}/restore", s.restoreAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/balance", s.setBalance).Methods(http.MethodPut)
	r.HandleFunc("/accounts/{id}/reconcile", s.reconcileAccount).Methods(http.MethodPost)
	if s.svc.Journal != nil {
		r.HandleFunc("/accounts/{id}/journal", s.accountJournal).Methods(http.MethodGet)
	}
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.Ledger.CreateAccount(r.Context(), ledger.CreateAccountInput{
		OwnerID:        ownerFrom(r.Context()),
		Name:           req.Name,
		Type:           req.Type,
		Currency:       req.Currency,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	accounts, err := s.svc.Ledger.ListAccounts(r.Context(), ownerFrom(r.Context()), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(accounts, toAccount))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.svc.Ledger.GetAccount(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(account))
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.svc.Ledger.UpdateAccount(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"], ledger.AccountUpdate{
		Name: req.Name,
		Type: req.Type,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(account))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.SoftDelete(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) restoreAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.Restore(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setBalance(w http.ResponseWriter, r *http.Request) {
	var req setBalanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Balance == nil {
		writeError(w, r, invalid("balance is required"))
		return
	}
	owner, id := ownerFrom(r.Context()), mux.Vars(r)["id"]
	if err := s.svc.Ledger.SetBalance(r.Context(), owner, id, *req.Balance); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.svc.Ledger.GetAccount(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(account))
}

func (s *Server) reconcileAccount(w http.ResponseWriter, r *http.Request) {
	fix, err := queryBool(r, "fix")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.svc.Ledger.Reconcile(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"], fix)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconciliation(rec))
}

func (s *Server) accountJournal(w http.ResponseWriter, r *http.Request) {
	owner, id := ownerFrom(r.Context()), mux.Vars(r)["id"]
	// ownership check; the journal itself is filtered by owner too
	if _, err := s.svc.Ledger.GetAccount(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Journal.List(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, func(e journal.Entry) journalEntryJSON {
		return journalEntryJSON{
			ID:         e.ID,
			RecordKind: e.RecordKind,
			RecordID:   e.RecordID,
			Operation:  e.Operation,
			Delta:      e.Delta,
			Balance:    e.Balance,
			Time:       e.Time,
		}
	}))
}
