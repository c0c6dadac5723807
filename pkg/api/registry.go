package api

import (
	"net/http"

	"money-ledger/pkg/model"
	"money-ledger/pkg/registry"

	"github.com/gorilla/mux"
)

// entryTypeParam reads ?type=; the services reject unknown values.
func entryTypeParam(r *http.Request) model.EntryType {
	return model.EntryType(r.URL.Query().Get("type"))
}

func (s *Server) categoryRoutes(r *mux.Router) {
	r.HandleFunc("/categories", s.createCategory).Methods(http.MethodPost)
	r.HandleFunc("/categories", s.listCategories).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id}", s.getCategory).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id}", s.updateCategory).Methods(http.MethodPatch)
	r.HandleFunc("/categories/{id}", s.deleteCategory).Methods(http.MethodDelete)
	r.HandleFunc("/categories/{id}/restore", s.restoreCategory).Methods(http.MethodPost)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.Categories.Create(r.Context(), registry.CreateCategoryInput{
		OwnerID: ownerFrom(r.Context()),
		Name:    req.Name,
		Type:    req.Type,
		Color:   req.Color,
		Icon:    req.Icon,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	typ := entryTypeParam(r)
	if typ != "" && !typ.Valid() {
		writeError(w, r, invalid("type must be income or expense"))
		return
	}
	list, err := s.svc.Categories.List(r.Context(), ownerFrom(r.Context()), registry.CategoryFilter{
		Type:       typ,
		ActiveOnly: activeOnly,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toCategory))
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Categories.Get(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategory(c))
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Categories.Update(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"], registry.CategoryUpdate{
		Name:  req.Name,
		Type:  req.Type,
		Color: req.Color,
		Icon:  req.Icon,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategory(c))
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Categories.SoftDelete(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) restoreCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Categories.Restore(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) tagRoutes(r *mux.Router) {
	r.HandleFunc("/tags", s.createTag).Methods(http.MethodPost)
	r.HandleFunc("/tags", s.listTags).Methods(http.MethodGet)
	r.HandleFunc("/tags/{id}", s.getTag).Methods(http.MethodGet)
	r.HandleFunc("/tags/{id}", s.updateTag).Methods(http.MethodPatch)
	r.HandleFunc("/tags/{id}", s.deleteTag).Methods(http.MethodDelete)
}

func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.Tags.Create(r.Context(), registry.CreateTagInput{
		OwnerID: ownerFrom(r.Context()),
		Name:    req.Name,
		Color:   req.Color,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Tags.List(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toTag))
}

func (s *Server) getTag(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Tags.Get(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTag(t))
}

func (s *Server) updateTag(w http.ResponseWriter, r *http.Request) {
	var req updateTagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Tags.Update(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"], registry.TagUpdate{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTag(t))
}

func (s *Server) deleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Tags.Delete(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
