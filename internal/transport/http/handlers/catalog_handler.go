package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/model"
	catalogsvc "github.com/areut/bookmarket/backend/internal/services/catalog"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
	"github.com/areut/bookmarket/backend/internal/transport/http/dto"
	httperrors "github.com/areut/bookmarket/backend/internal/transport/http/errors"
)

type CatalogHandler struct {
	catalog *catalogsvc.Service
}

func NewCatalogHandler(catalog *catalogsvc.Service) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	filter := pgrepo.BookFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
	}
	if raw := r.URL.Query().Get("price_min"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid price_min")
			return
		}
		filter.PriceMin = &value
	}
	if raw := r.URL.Query().Get("price_max"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid price_max")
			return
		}
		filter.PriceMax = &value
	}

	books, err := h.catalog.ListBooks(r.Context(), filter)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list books")
		return
	}
	total, err := h.catalog.CountBooks(r.Context(), filter)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to count books")
		return
	}

	items := make([]dto.BookResponse, 0, len(books))
	for _, book := range books {
		items = append(items, toBookResponse(book))
	}
	httperrors.Write(w, http.StatusOK, dto.BookListResponse{
		Books: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid book id")
		return
	}

	book, err := h.catalog.GetBook(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, catalogsvc.ErrBookNotFound) {
			writeNotFound(w, "BOOK_NOT_FOUND", "book not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load book")
		return
	}

	httperrors.Write(w, http.StatusOK, toBookResponse(book))
}

func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid book id")
		return
	}

	var req dto.BookUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.Title == nil && req.Author == nil && req.Price == nil {
		writeBadRequest(w, "VALIDATION_ERROR", "empty update payload")
		return
	}

	book, err := h.catalog.UpdateBook(r.Context(), bookID, pgrepo.BookPatch{
		Title:  req.Title,
		Author: req.Author,
		Price:  req.Price,
	})
	if err != nil {
		if errors.Is(err, catalogsvc.ErrBookNotFound) {
			writeNotFound(w, "BOOK_NOT_FOUND", "book not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to update book")
		return
	}

	httperrors.Write(w, http.StatusOK, toBookResponse(book))
}

func toBookResponse(book model.Book) dto.BookResponse {
	return dto.BookResponse{
		ID:        book.ID,
		Title:     book.Title,
		Author:    book.Author,
		Price:     book.Price,
		IsBundle:  book.IsBundle,
		CreatedAt: book.CreatedAt,
		UpdatedAt: book.UpdatedAt,
	}
}
