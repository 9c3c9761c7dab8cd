package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/krm/mini-commerce/internal/store"
	"github.com/krm/mini-commerce/internal/validation"
)

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := store.ListOrders(r.Context(), s.db, page, pageSize)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	order, err := store.GetOrder(r.Context(), s.db, id)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(w, r, &req, s.validate); err != nil {
		return
	}

	items := make([]store.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, store.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := store.CreateOrder(r.Context(), s.db, store.CreateOrderRequest{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
	})
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req validation.UpdateOrderStatusRequest
	if err := validation.BindAndValidate(w, r, &req, s.validate); err != nil {
		return
	}

	order, err := store.UpdateOrderStatus(r.Context(), s.db, id, req.Status)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleListOrdersByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter email")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListOrdersByEmail(r.Context(), s.db, email, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := store.ListOrdersByStatus(r.Context(), s.db, chi.URLParam(r, "status"))
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleListOrdersByDateRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start date, want RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid end date, want RFC 3339")
		return
	}

	orders, err := store.ListOrdersByDateRange(r.Context(), s.db, start, end)
	if err != nil {
		respondStoreError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}
