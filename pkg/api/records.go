package api

import (
	"net/http"

	"money-ledger/pkg/transactions"
	"money-ledger/pkg/transfers"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func (s *Server) transactionRoutes(r *mux.Router) {
	r.HandleFunc("/transactions", s.createTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions", s.listTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", s.getTransaction).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", s.updateTransaction).Methods(http.MethodPatch)
	r.HandleFunc("/transactions/{id}", s.deleteTransaction).Methods(http.MethodDelete)
	r.HandleFunc("/transactions/{id}/tags/{tagId}", s.addTransactionTag).Methods(http.MethodPut)
	r.HandleFunc("/transactions/{id}/tags/{tagId}", s.removeTransactionTag).Methods(http.MethodDelete)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.Transactions.Create(r.Context(), transactions.CreateInput{
		OwnerID:    ownerFrom(r.Context()),
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Type:       req.Type,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Date:       req.Date,
		Notes:      req.Notes,
		Attachment: req.Attachment,
		Tags:       req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	f := transactions.ListFilter{
		AccountID:  r.URL.Query().Get("accountId"),
		CategoryID: r.URL.Query().Get("categoryId"),
		TagID:      r.URL.Query().Get("tagId"),
	}
	f.Type = entryTypeParam(r)
	var err error
	if f.From, err = queryTime(r, "from"); err == nil {
		if f.To, err = queryTime(r, "to"); err == nil {
			f.Limit, err = queryInt(r, "limit")
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Transactions.List(r.Context(), ownerFrom(r.Context()), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toTransaction))
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Transactions.Get(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(tx))
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Transactions.Update(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"], transactions.UpdateInput{
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Type:       req.Type,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Date:       req.Date,
		Notes:      req.Notes,
		Attachment: req.Attachment,
		Tags:       req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(tx))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Transactions.Delete(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addTransactionTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.Transactions.AddTag(r.Context(), ownerFrom(r.Context()), vars["id"], vars["tagId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeTransactionTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.Transactions.RemoveTag(r.Context(), ownerFrom(r.Context()), vars["id"], vars["tagId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) transferRoutes(r *mux.Router) {
	r.HandleFunc("/transfers", s.createTransfer).Methods(http.MethodPost)
	r.HandleFunc("/transfers", s.listTransfers).Methods(http.MethodGet)
	r.HandleFunc("/transfers/{id}", s.getTransfer).Methods(http.MethodGet)
	r.HandleFunc("/transfers/{id}", s.updateTransfer).Methods(http.MethodPatch)
	r.HandleFunc("/transfers/{id}", s.deleteTransfer).Methods(http.MethodDelete)
}

func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := transfers.CreateInput{
		OwnerID:       ownerFrom(r.Context()),
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Date:          req.Date,
		Notes:         req.Notes,
	}
	if req.ExchangeRate != nil {
		in.ExchangeRate = decimal.NewNullDecimal(*req.ExchangeRate)
	}
	id, err := s.svc.Transfers.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) listTransfers(w http.ResponseWriter, r *http.Request) {
	f := transfers.ListFilter{AccountID: r.URL.Query().Get("accountId")}
	var err error
	if f.From, err = queryTime(r, "from"); err == nil {
		if f.To, err = queryTime(r, "to"); err == nil {
			f.Limit, err = queryInt(r, "limit")
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Transfers.List(r.Context(), ownerFrom(r.Context()), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toTransfer))
}

func (s *Server) getTransfer(w http.ResponseWriter, r *http.Request) {
	tr, err := s.svc.Transfers.Get(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransfer(tr))
}

func (s *Server) updateTransfer(w http.ResponseWriter, r *http.Request) {
	var req updateTransferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tr, err := s.svc.Transfers.Update(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"], transfers.UpdateInput{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Date:          req.Date,
		ExchangeRate:  req.ExchangeRate,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransfer(tr))
}

func (s *Server) deleteTransfer(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Transfers.Delete(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
