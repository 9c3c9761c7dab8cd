package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/krm/mini-commerce/internal/store"
	"github.com/krm/mini-commerce/internal/validation"
)

func productParams(req validation.ProductRequest) store.ProductParams {
	return store.ProductParams{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       decimal.NewFromFloat(req.Price),
		Stock:       req.Stock,
		Active:      req.Active,
		Featured:    req.Featured,
		CategoryID:  req.CategoryID,
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := store.ListProducts(r.Context(), s.db, page, pageSize)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListActiveProducts(w http.ResponseWriter, r *http.Request) {
	products, err := store.ListActiveProducts(r.Context(), s.db)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleListFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := store.ListFeaturedProducts(r.Context(), s.db)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	page, pageSize := pageParams(r)

	result, err := store.SearchProducts(r.Context(), s.db, keyword, page, pageSize)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListProductsByPriceRange(w http.ResponseWriter, r *http.Request) {
	minPrice, err := decimal.NewFromString(r.URL.Query().Get("min"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid min price")
		return
	}
	maxPrice, err := decimal.NewFromString(r.URL.Query().Get("max"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid max price")
		return
	}
	page, pageSize := pageParams(r)

	result, err := store.ListProductsByPriceRange(r.Context(), s.db, minPrice, maxPrice, page, pageSize)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListProductsByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := idParam(w, r, "categoryID")
	if !ok {
		return
	}
	page, pageSize := pageParams(r)

	result, err := store.ListProductsByCategory(r.Context(), s.db, categoryID, page, pageSize)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	product, err := store.GetProduct(r.Context(), s.db, id)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req validation.ProductRequest
	if err := validation.BindAndValidate(w, r, &req, s.validate); err != nil {
		return
	}

	product, err := store.CreateProduct(r.Context(), s.db, productParams(req))
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req validation.ProductRequest
	if err := validation.BindAndValidate(w, r, &req, s.validate); err != nil {
		return
	}

	product, err := store.UpdateProduct(r.Context(), s.db, id, productParams(req))
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := store.DeleteProduct(r.Context(), s.db, id); err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
