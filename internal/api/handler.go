package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ashendes/kitchen-pos/internal/kitchen"
	"github.com/ashendes/kitchen-pos/internal/menu"
	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/ashendes/kitchen-pos/internal/patterns"
	"github.com/ashendes/kitchen-pos/internal/settlement"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler exposes the kitchen and settlement operations over HTTP
type Handler struct {
	kitchen  *kitchen.Service
	payments *settlement.Processor
	menu     *menu.Catalog
	circuit  *patterns.CircuitBreakerWrapper
	logger   log.FieldLogger
}

// NewHandler wires the HTTP handlers. circuit may be nil when no back
// office is configured.
func NewHandler(k *kitchen.Service, p *settlement.Processor, m *menu.Catalog, circuit *patterns.CircuitBreakerWrapper, logger log.FieldLogger) *Handler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Handler{
		kitchen:  k,
		payments: p,
		menu:     m,
		circuit:  circuit,
		logger:   logger,
	}
}

// Register mounts every route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)

	r.GET("/menu/items", h.listMenuItems)
	r.POST("/menu/refresh", h.refreshMenu)

	orders := r.Group("/kitchen-orders")
	orders.POST("", h.createOrder)
	orders.GET("", h.listOrders)
	orders.GET("/:orderId", h.getOrder)
	orders.PATCH("/:orderId/items/:itemId", h.updateItemStatus)
	orders.POST("/:orderId/acknowledge", h.acknowledge)
	orders.POST("/:orderId/complete", h.complete)
	orders.POST("/:orderId/serve", h.serve)
	orders.POST("/:orderId/quote", h.quote)
	orders.POST("/:orderId/payment", h.processPayment)

	r.GET("/transactions", h.listTransactions)
	r.GET("/backend/circuit-status", h.circuitStatus)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) listMenuItems(c *gin.Context) {
	c.JSON(http.StatusOK, h.menu.All())
}

// refreshMenu reloads the catalog from the back office on demand
func (h *Handler) refreshMenu(c *gin.Context) {
	if err := h.menu.Refresh(c.Request.Context()); err != nil {
		h.logger.Warn("Menu refresh failed: ", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.menu.All())
}

// createOrder sends a cart to the kitchen
func (h *Handler) createOrder(c *gin.Context) {
	var req models.CreateKitchenOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	order, err := h.kitchen.SendToKitchen(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	view, err := h.kitchen.Get(order.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) listOrders(c *gin.Context) {
	views, err := h.kitchen.List(kitchen.Filter{
		Status:  c.Query("status"),
		Station: models.Station(c.Query("station")),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) getOrder(c *gin.Context) {
	view, err := h.kitchen.Get(c.Param("orderId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateItemStatus(c *gin.Context) {
	var req models.UpdateItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	order, err := h.kitchen.UpdateItemStatus(c.Request.Context(), c.Param("orderId"), c.Param("itemId"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kitchen.View(order, h.kitchen.Clock().Now()))
}

func (h *Handler) acknowledge(c *gin.Context) {
	h.orderAction(c, h.kitchen.Acknowledge)
}

func (h *Handler) complete(c *gin.Context) {
	h.orderAction(c, h.kitchen.Complete)
}

func (h *Handler) serve(c *gin.Context) {
	h.orderAction(c, h.kitchen.Serve)
}

func (h *Handler) orderAction(c *gin.Context, action func(ctx context.Context, orderID string) (models.KitchenOrder, error)) {
	order, err := action(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kitchen.View(order, h.kitchen.Clock().Now()))
}

// quote returns the totals of an order. An empty body means no discount.
func (h *Handler) quote(c *gin.Context) {
	var req models.QuoteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	totals, err := h.payments.Quote(c.Param("orderId"), req.DiscountAmount, req.DiscountType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals.Response())
}

func (h *Handler) processPayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	tx, err := h.payments.ProcessPayment(c.Request.Context(), c.Param("orderId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PaymentResponse{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
		Message:       "Payment processed successfully",
		Transaction:   tx,
		Display:       tx.Total.StringFixed(2),
	})
}

func (h *Handler) listTransactions(c *gin.Context) {
	txs, err := h.payments.Transactions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// circuitStatus reports the back-office circuit breaker
func (h *Handler) circuitStatus(c *gin.Context) {
	if h.circuit == nil {
		c.JSON(http.StatusOK, gin.H{"backoffice_circuit": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"backoffice_circuit": gin.H{
			"name":  h.circuit.Name(),
			"state": h.circuit.GetState(),
			"value": h.circuit.GetStateValue(),
		},
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var missing *settlement.MissingPriceError

	switch {
	case errors.Is(err, kitchen.ErrOrderNotFound), errors.Is(err, kitchen.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":         err.Error(),
			"menu_item_ids": missing.MenuItemIDs,
		})

	case errors.Is(err, kitchen.ErrEmptyOrder),
		errors.Is(err, kitchen.ErrTableRequired),
		errors.Is(err, kitchen.ErrInvalidOrderType),
		errors.Is(err, kitchen.ErrInvalidItem),
		errors.Is(err, kitchen.ErrInvalidStatus),
		errors.Is(err, kitchen.ErrUnknownStation),
		errors.Is(err, settlement.ErrInvalidDiscount),
		errors.Is(err, settlement.ErrPaymentMethodRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, kitchen.ErrInvalidTransition),
		errors.Is(err, settlement.ErrOrderNotPayable),
		errors.Is(err, settlement.ErrAlreadyPaid),
		errors.Is(err, settlement.ErrVersionConflict),
		errors.Is(err, settlement.ErrPaymentInProgress),
		errors.Is(err, settlement.ErrDuplicateTransaction):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, patterns.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		h.logger.WithField("path", c.FullPath()).Error("Request failed: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
