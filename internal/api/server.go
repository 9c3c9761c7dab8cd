package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/krm/mini-commerce/internal/validation"
)

// Server holds the handler dependencies. Store access goes through the
// injected *sql.DB; there is no package-level state.
type Server struct {
	db       *sql.DB
	validate *validatorv10.Validate
	logger   zerolog.Logger
}

func NewServer(db *sql.DB, logger zerolog.Logger) *Server {
	return &Server{
		db:       db,
		validate: validation.New(),
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", s.handleListCategories)
		r.Get("/active", s.handleListActiveCategories)
		r.Post("/", s.handleCreateCategory)
		r.Get("/{id}", s.handleGetCategory)
		r.Put("/{id}", s.handleUpdateCategory)
		r.Delete("/{id}", s.handleDeleteCategory)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Get("/active", s.handleListActiveProducts)
		r.Get("/featured", s.handleListFeaturedProducts)
		r.Get("/search", s.handleSearchProducts)
		r.Get("/price-range", s.handleListProductsByPriceRange)
		r.Get("/category/{categoryID}", s.handleListProductsByCategory)
		r.Post("/", s.handleCreateProduct)
		r.Get("/{id}", s.handleGetProduct)
		r.Put("/{id}", s.handleUpdateProduct)
		r.Delete("/{id}", s.handleDeleteProduct)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.handleListOrders)
		r.Post("/", s.handleCreateOrder)
		r.Get("/customer", s.handleListOrdersByEmail)
		r.Get("/date-range", s.handleListOrdersByDateRange)
		r.Get("/status/{status}", s.handleListOrdersByStatus)
		r.Get("/{id}", s.handleGetOrder)
		r.Patch("/{id}/status", s.handleUpdateOrderStatus)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// idParam parses the {id} URL parameter. It writes the 400 itself so
// handlers can just return on error.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
