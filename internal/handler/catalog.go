package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/quickcart/internal/domain/product"
)

// CatalogConfig holds non-dependency configuration for CatalogHandler.
type CatalogConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// CatalogHandler serves the product catalog.
type CatalogHandler struct {
	products     product.Repository
	imageBaseURL string
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(cfg CatalogConfig, products product.Repository) *CatalogHandler {
	return &CatalogHandler{
		products:     products,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

// Routes registers the catalog endpoints on r.
func (h *CatalogHandler) Routes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products/bulk", h.bulkProducts)
	r.Get("/products/{product_id}", h.getProduct)
	r.Get("/categories", h.listCategories)
}

type productResponse struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       money  `json:"price"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
	Available   bool   `json:"available"`
}

func (h *CatalogHandler) toResponse(p product.Product) productResponse {
	return productResponse{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Category:    p.Category,
		ImageURL:    h.imageURL(p.ImageURL),
		Available:   p.Available,
	}
}

func (h *CatalogHandler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}

func (h *CatalogHandler) toResponses(list []product.Product) []productResponse {
	out := make([]productResponse, len(list))
	for i, p := range list {
		out[i] = h.toResponse(p)
	}
	return out
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, h.toResponses(list))
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(*p))
}

type bulkRequest struct {
	ProductIDs []string `json:"product_ids"`
}

func (h *CatalogHandler) bulkProducts(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductIDs == nil {
		writeError(w, r, badRequest("product_ids is required"))
		return
	}

	list, err := h.products.GetByIDs(r.Context(), req.ProductIDs)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "get products"))
		return
	}
	writeJSON(w, http.StatusOK, h.toResponses(list))
}

type categoryResponse struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.products.Categories(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list categories"))
		return
	}
	out := make([]categoryResponse, len(cats))
	for i, c := range cats {
		out[i] = categoryResponse{Name: c}
	}
	writeJSON(w, http.StatusOK, out)
}
