package api

import (
	"net/http"

	"github.com/krm/mini-commerce/internal/store"
	"github.com/krm/mini-commerce/internal/validation"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), s.db)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *Server) handleListActiveCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListActiveCategories(r.Context(), s.db)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	category, err := store.GetCategory(r.Context(), s.db, id)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req validation.CategoryRequest
	if err := validation.BindAndValidate(w, r, &req, s.validate); err != nil {
		return
	}

	category, err := store.CreateCategory(r.Context(), s.db, req.Name, req.Description, req.ImageURL, req.Active)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req validation.CategoryRequest
	if err := validation.BindAndValidate(w, r, &req, s.validate); err != nil {
		return
	}

	category, err := store.UpdateCategory(r.Context(), s.db, id, req.Name, req.Description, req.ImageURL, req.Active)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := store.DeleteCategory(r.Context(), s.db, id); err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
