package main

import (
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashendes/kitchen-pos/internal/config"
	"github.com/ashendes/kitchen-pos/internal/metrics"
	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const serviceName = "backoffice-stub"

// Backoffice stands in for the restaurant back-office API
type Backoffice struct {
	menu          map[string]models.MenuItem
	orders        map[string]*models.KitchenOrder
	transactions  []models.Transaction
	mutex         sync.RWMutex
	token         string
	chaosEnabled  bool
	chaosSlowMode bool
	chaosMutex    sync.RWMutex
}

var backoffice *Backoffice

func init() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)

	backoffice = &Backoffice{
		menu:   make(map[string]models.MenuItem),
		orders: make(map[string]*models.KitchenOrder),
	}

	// Add sample menu
	sampleMenu := []models.MenuItem{
		{ID: "MENU-001", Name: "Margherita Pizza", Price: decimal.RequireFromString("18.99"), CategoryID: "CAT-002", Available: true},
		{ID: "MENU-002", Name: "Caesar Salad", Price: decimal.RequireFromString("14.99"), CategoryID: "CAT-005", Available: true},
		{ID: "MENU-003", Name: "Beef Burger", Price: decimal.RequireFromString("16.99"), CategoryID: "CAT-003", Available: true},
		{ID: "MENU-004", Name: "Pasta Carbonara", Price: decimal.RequireFromString("19.99"), CategoryID: "CAT-004", Available: false},
		{ID: "MENU-005", Name: "Ribeye Steak", Price: decimal.RequireFromString("28.99"), CategoryID: "CAT-003", Available: true},
		{ID: "MENU-006", Name: "French Fries", Price: decimal.RequireFromString("5.99"), CategoryID: "CAT-006", Available: true},
		{ID: "MENU-007", Name: "Soft Drink", Price: decimal.RequireFromString("3.49"), CategoryID: "CAT-001", Available: true},
	}

	for _, item := range sampleMenu {
		backoffice.menu[item.ID] = item
	}
}

func main() {
	cfg, err := config.LoadWith("backoffice", map[string]interface{}{"web.port": "3000"})
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	backoffice.token = cfg.BackendToken

	router := gin.Default()

	// Add Prometheus middleware
	router.Use(metrics.PrometheusMiddleware(serviceName))

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/status", getStatus)

	apiGroup := router.Group("/api", requireToken)
	apiGroup.GET("/menu/items", listMenuItems)
	apiGroup.GET("/kitchen-orders", listOrders)
	apiGroup.POST("/kitchen-orders", receiveOrder)
	apiGroup.PATCH("/kitchen-orders/:orderId", patchOrderStatus)
	apiGroup.PATCH("/kitchen-orders/:orderId/menu/items/:itemId", patchItemStatus)
	apiGroup.GET("/transactions", listTransactions)
	apiGroup.POST("/transactions", receiveTransaction)

	// Chaos engineering endpoints
	router.POST("/chaos/enable", enableChaos)
	router.POST("/chaos/disable", disableChaos)
	router.POST("/chaos/slow", enableSlowMode)
	router.POST("/chaos/slow/disable", disableSlowMode)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.WithField("port", cfg.WebPort).Info("Backoffice stub starting")
	if err := router.Run(":" + cfg.WebPort); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

// requireToken enforces the bearer token when one is configured
func requireToken(c *gin.Context) {
	if backoffice.token == "" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+backoffice.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
		return
	}
	c.Next()
}

func getStatus(c *gin.Context) {
	backoffice.mutex.RLock()
	orders, transactions := len(backoffice.orders), len(backoffice.transactions)
	backoffice.mutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"service":         serviceName,
		"status":          "healthy",
		"orders":          orders,
		"transactions":    transactions,
		"chaos_enabled":   backoffice.getChaosEnabled(),
		"chaos_slow_mode": backoffice.getSlowMode(),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func listMenuItems(c *gin.Context) {
	if chaosFailed(c) {
		return
	}

	backoffice.mutex.RLock()
	items := make([]models.MenuItem, 0, len(backoffice.menu))
	for _, item := range backoffice.menu {
		items = append(items, item)
	}
	backoffice.mutex.RUnlock()

	c.JSON(http.StatusOK, items)
}

func listOrders(c *gin.Context) {
	backoffice.mutex.RLock()
	orders := make([]models.KitchenOrder, 0, len(backoffice.orders))
	for _, o := range backoffice.orders {
		orders = append(orders, o.Clone())
	}
	backoffice.mutex.RUnlock()

	c.JSON(http.StatusOK, orders)
}

func receiveOrder(c *gin.Context) {
	var order models.KitchenOrder
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(order.ID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "order id is required"})
		return
	}

	if chaosFailed(c) {
		return
	}

	backoffice.mutex.Lock()
	backoffice.orders[order.ID] = &order
	backoffice.mutex.Unlock()

	log.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"items":        len(order.Items),
	}).Info("Kitchen order received")

	c.JSON(http.StatusCreated, order)
}

func patchItemStatus(c *gin.Context) {
	var req models.ItemStatusSync
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	if chaosFailed(c) {
		return
	}

	orderID, itemID := c.Param("orderId"), c.Param("itemId")

	backoffice.mutex.Lock()
	defer backoffice.mutex.Unlock()

	order, exists := backoffice.orders[orderID]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found: " + orderID})
		return
	}
	item := order.Item(itemID)
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Item not found: " + itemID})
		return
	}
	item.Status = req.Status

	log.WithFields(log.Fields{
		"order_id": orderID,
		"item_id":  itemID,
		"status":   req.Status,
	}).Info("Item status updated")

	c.JSON(http.StatusOK, item)
}

func patchOrderStatus(c *gin.Context) {
	var req models.OrderStatusSync
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	if chaosFailed(c) {
		return
	}

	orderID := c.Param("orderId")

	backoffice.mutex.Lock()
	defer backoffice.mutex.Unlock()

	order, exists := backoffice.orders[orderID]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found: " + orderID})
		return
	}
	order.Status = req.Status

	log.WithFields(log.Fields{
		"order_id": orderID,
		"status":   req.Status,
	}).Info("Order status updated")

	c.JSON(http.StatusOK, order)
}

func listTransactions(c *gin.Context) {
	backoffice.mutex.RLock()
	txs := make([]models.Transaction, len(backoffice.transactions))
	copy(txs, backoffice.transactions)
	backoffice.mutex.RUnlock()

	c.JSON(http.StatusOK, txs)
}

func receiveTransaction(c *gin.Context) {
	var tx models.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	if chaosFailed(c) {
		return
	}

	backoffice.mutex.Lock()
	backoffice.transactions = append(backoffice.transactions, tx)
	if order, exists := backoffice.orders[tx.OrderID]; exists {
		order.Status = models.OrderStatusServed
		order.Paid = true
	}
	backoffice.mutex.Unlock()

	log.WithFields(log.Fields{
		"transaction_id": tx.ID,
		"order_id":       tx.OrderID,
		"total":          tx.Total.StringFixed(2),
	}).Info("Transaction recorded")

	c.JSON(http.StatusCreated, tx)
}

func enableChaos(c *gin.Context) {
	backoffice.setChaosEnabled(true)
	metrics.ChaosFailureRate.WithLabelValues(serviceName).Set(1)

	log.Info("Chaos mode ENABLED for backoffice stub")
	c.JSON(http.StatusOK, gin.H{
		"message": "Chaos mode enabled",
		"info":    "30% of requests will fail randomly",
	})
}

func disableChaos(c *gin.Context) {
	backoffice.setChaosEnabled(false)
	backoffice.setSlowMode(false)
	metrics.ChaosFailureRate.WithLabelValues(serviceName).Set(0)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(0)

	log.Info("Chaos mode DISABLED for backoffice stub")
	c.JSON(http.StatusOK, gin.H{
		"message": "Chaos mode disabled",
	})
}

func enableSlowMode(c *gin.Context) {
	backoffice.setSlowMode(true)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(1)

	log.Info("Slow mode ENABLED for backoffice stub")
	c.JSON(http.StatusOK, gin.H{
		"message": "Slow mode enabled",
		"info":    "Requests will have 2-5 second delays",
	})
}

func disableSlowMode(c *gin.Context) {
	backoffice.setSlowMode(false)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(0)

	log.Info("Slow mode DISABLED for backoffice stub")
	c.JSON(http.StatusOK, gin.H{
		"message": "Slow mode disabled",
	})
}

// Helper methods
func (b *Backoffice) setChaosEnabled(enabled bool) {
	b.chaosMutex.Lock()
	defer b.chaosMutex.Unlock()
	b.chaosEnabled = enabled
}

func (b *Backoffice) getChaosEnabled() bool {
	b.chaosMutex.RLock()
	defer b.chaosMutex.RUnlock()
	return b.chaosEnabled
}

func (b *Backoffice) setSlowMode(enabled bool) {
	b.chaosMutex.Lock()
	defer b.chaosMutex.Unlock()
	b.chaosSlowMode = enabled
}

func (b *Backoffice) getSlowMode() bool {
	b.chaosMutex.RLock()
	defer b.chaosMutex.RUnlock()
	return b.chaosSlowMode
}

// chaosFailed applies slow mode and, in failure mode, answers 503 for 30%
// of requests. It reports whether the request was answered.
func chaosFailed(c *gin.Context) bool {
	if backoffice.getSlowMode() {
		delay := time.Duration(2000+rand.Intn(3000)) * time.Millisecond
		log.WithField("delay_ms", delay.Milliseconds()).Debug("Chaos: Simulating slow response")
		time.Sleep(delay)
	}

	if backoffice.getChaosEnabled() && rand.Float32() < 0.3 {
		log.WithField("path", c.FullPath()).Warn("Chaos: Simulated failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Service temporarily unavailable"})
		return true
	}
	return false
}
