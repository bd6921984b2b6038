package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dejobratic/ferretec/internal/store/app"
	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/ports"
	"github.com/dejobratic/ferretec/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

// Handler exposes the store over the JSON API. Every response carries a
// "success" flag; failures carry a "message".
type Handler struct {
	catalog     app.Catalog
	idempotency ports.IdempotencyStore
	inflight    *keyLocks
	logger      *slog.Logger
}

// NewHandler constructs a Handler. idempotency may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(catalog app.Catalog, idempotency ports.IdempotencyStore, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:     catalog,
		idempotency: idempotency,
		inflight:    newKeyLocks(),
		logger:      logger,
	}
}

// RegisterRoutes binds the API under /api.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/productos", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/productos", h.registerProduct).Methods(http.MethodPost)
	api.HandleFunc("/clientes", h.listCustomers).Methods(http.MethodGet)
	api.HandleFunc("/clientes", h.registerCustomer).Methods(http.MethodPost)

	api.HandleFunc("/carrito/agregar", h.addToCart).Methods(http.MethodPost)
	api.HandleFunc("/carrito/actualizar", h.updateCart).Methods(http.MethodPut)
	api.HandleFunc("/carrito/{cliente_id:[0-9]+}", h.getCart).Methods(http.MethodGet)
	api.HandleFunc("/carrito/{cliente_id:[0-9]+}/{producto_id:[0-9]+}", h.removeFromCart).Methods(http.MethodDelete)

	api.HandleFunc("/comprar", h.purchase).Methods(http.MethodPost)
	api.HandleFunc("/ventas", h.listSales).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "resource not found")
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

type purchaseRequest struct {
	CustomerID int `json:"cliente_id"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"productos": h.catalog.ListProducts(r.Context()),
	})
}

func (h *Handler) registerProduct(w http.ResponseWriter, r *http.Request) {
	var payload app.RegisterProductInput
	if !decode(w, r, &payload) {
		return
	}

	product, err := h.catalog.RegisterProduct(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest, nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  "product registered",
		"producto": product,
	})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"clientes": h.catalog.ListCustomers(r.Context()),
	})
}

func (h *Handler) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var payload app.RegisterCustomerInput
	if !decode(w, r, &payload) {
		return
	}

	customer, err := h.catalog.RegisterCustomer(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest, nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "customer registered",
		"cliente": customer,
	})
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var payload app.CartInput
	if !decode(w, r, &payload) {
		return
	}

	if err := h.catalog.AddProductToCart(r.Context(), payload); err != nil {
		h.fail(w, r, err, http.StatusBadRequest, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "product added to cart"})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "cliente_id")
	if !ok {
		return
	}

	detail, err := h.catalog.GetCartDetail(r.Context(), customerID)
	if err != nil {
		h.fail(w, r, err, http.StatusNotFound, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"cliente":         detail.Customer,
		"carrito":         detail.Items,
		"total":           detail.Total,
		"total_productos": detail.TotalItems,
	})
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	var payload app.CartInput
	if !decode(w, r, &payload) {
		return
	}

	if err := h.catalog.UpdateCart(r.Context(), payload); err != nil {
		h.fail(w, r, err, http.StatusBadRequest, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "cart updated"})
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "cliente_id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "producto_id")
	if !ok {
		return
	}

	if err := h.catalog.RemoveFromCart(r.Context(), customerID, productID); err != nil {
		h.fail(w, r, err, http.StatusNotFound, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "product removed from cart"})
}

// purchase completes a sale. With an Idempotency-Key header, the first
// successful response is stored and replayed for later requests with the same key.
// Requests sharing a key run one at a time.
func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idemKey := ""
	if h.idempotency != nil {
		idemKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	if idemKey != "" {
		unlock := h.inflight.lock(idemKey)
		defer unlock()

		stored, err := h.idempotency.Get(ctx, idemKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if stored != nil {
			telemetry.AddSpanEvent(trace.SpanFromContext(ctx), "idempotent_replay",
				attribute.String("sale.id", stored.SaleID))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	var payload purchaseRequest
	if !decode(w, r, &payload) {
		return
	}

	sale, err := h.catalog.Purchase(ctx, payload.CustomerID)
	if err != nil {
		var extra map[string]any
		if sale != nil {
			extra = map[string]any{"venta": sale}
		}
		h.fail(w, r, err, http.StatusBadRequest, extra)
		return
	}

	body, err := json.Marshal(map[string]any{
		"success": true,
		"message": "purchase completed",
		"venta":   sale,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if idemKey != "" {
		stored := ports.StoredResponse{StatusCode: http.StatusOK, Body: body, SaleID: sale.ID}
		if err := h.idempotency.Save(ctx, idemKey, stored); err != nil {
			h.logger.WarnContext(ctx, "failed to store idempotent response", "sale_id", sale.ID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.catalog.Sales(r.Context())
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError, nil)
		return
	}
	if sales == nil {
		sales = []domain.Sale{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ventas": sales})
}

// fail writes err as a JSON failure. Business-rule errors get businessStatus;
// anything else is a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, businessStatus int, extra map[string]any) {
	status := http.StatusInternalServerError
	if domain.IsBusiness(err) {
		status = businessStatus
	}
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	payload := map[string]any{"success": false, "message": err.Error()}
	for k, v := range extra {
		payload[k] = v
	}
	writeJSON(w, status, payload)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is required")
	default:
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
	}
	return false
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
