package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/ashendes/kitchen-pos/internal/patterns"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          map[string]interface{}
}

// fakeBackoffice is a programmable back-office API
type fakeBackoffice struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (f *fakeBackoffice) record(c *gin.Context) {
	var body map[string]interface{}
	_ = c.ShouldBindJSON(&body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
		Body:          body,
	})
	f.mu.Unlock()
}

func (f *fakeBackoffice) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeBackoffice) setStatus(code int) {
	f.mu.Lock()
	f.status = code
	f.mu.Unlock()
}

func (f *fakeBackoffice) forced() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func newFakeBackoffice(t *testing.T) (*fakeBackoffice, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := &fakeBackoffice{}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		fake.record(c)
		if code := fake.forced(); code != 0 {
			c.AbortWithStatusJSON(code, gin.H{"message": http.StatusText(code)})
			return
		}
		if c.GetHeader("Authorization") != "Bearer secret" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		c.Next()
	})

	api := router.Group("/api")
	api.GET("/menu/items", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": "MENU-001", "name": "Margherita Pizza", "price": "18.99", "category_id": "pizza", "available": true},
			{"id": "MENU-007", "name": "Soft Drink", "price": 3.49, "category_id": "drinks", "available": true},
		})
	})
	api.GET("/kitchen-orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{
				"id": "order-1", "order_number": "042", "order_type": "takeaway", "status": "preparing",
				"priority": "high", "order_time": "2024-03-01T12:00:00Z", "version": 3, "paid": false,
				"items": []gin.H{{"id": "item-1", "menu_item_id": "MENU-001", "name": "Margherita Pizza", "quantity": 2, "status": "preparing", "station": "main", "estimated_time": 15}},
			},
		})
	})
	api.POST("/kitchen-orders", func(c *gin.Context) { c.Status(http.StatusCreated) })
	api.PATCH("/kitchen-orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.PATCH("/kitchen-orders/:id/menu/items/:itemId", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.POST("/transactions", func(c *gin.Context) { c.Status(http.StatusCreated) })
	api.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "no such thing"})
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return fake, server
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return New(Options{
		BaseURL: baseURL + "/api",
		Token:   "secret",
		Timeout: time.Second,
		Breaker: patterns.BreakerSettings{MinRequests: 3, FailureRatio: 0.6, Timeout: time.Minute},
		Logger:  logger,
	})
}

func TestFetchMenuItems(t *testing.T) {
	fake, server := newFakeBackoffice(t)
	client := newTestClient(t, server.URL)

	items, err := client.FetchMenuItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Margherita Pizza", items[0].Name)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("18.99")))
	assert.True(t, items[1].Price.Equal(decimal.RequireFromString("3.49")))

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer secret", reqs[0].Authorization)
	assert.Equal(t, "/api/menu/items", reqs[0].Path)
}

func TestFetchKitchenOrders(t *testing.T) {
	fake, server := newFakeBackoffice(t)
	client := newTestClient(t, server.URL)

	orders, err := client.FetchKitchenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.Equal(t, models.PriorityHigh, order.Priority)
	assert.Equal(t, 3, order.Version)
	assert.True(t, order.OrderTime.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.Len(t, order.Items, 1)
	assert.Equal(t, models.ItemStatusPreparing, order.Items[0].Status)
	assert.Equal(t, 2, order.Items[0].Quantity)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/api/kitchen-orders", reqs[0].Path)
}

func TestSyncCalls(t *testing.T) {
	fake, server := newFakeBackoffice(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	require.NoError(t, client.PushOrder(ctx, models.KitchenOrder{ID: "order-1", OrderNumber: "042", Status: models.OrderStatusNew}))
	require.NoError(t, client.PatchItemStatus(ctx, "order-1", "item 1", models.ItemStatusReady))
	require.NoError(t, client.PatchOrderStatus(ctx, "order-1", models.OrderStatusServed))
	require.NoError(t, client.PostTransaction(ctx, models.Transaction{ID: "txn-1", OrderID: "order-1", Total: decimal.RequireFromString("31.658")}))

	reqs := fake.Requests()
	require.Len(t, reqs, 4)

	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/api/kitchen-orders", reqs[0].Path)
	assert.Equal(t, "order-1", reqs[0].Body["id"])

	assert.Equal(t, http.MethodPatch, reqs[1].Method)
	assert.Equal(t, "/api/kitchen-orders/order-1/menu/items/item 1", reqs[1].Path)
	assert.Equal(t, "ready", reqs[1].Body["status"])

	assert.Equal(t, "/api/kitchen-orders/order-1", reqs[2].Path)
	assert.Equal(t, "served", reqs[2].Body["status"])

	assert.Equal(t, "/api/transactions", reqs[3].Path)
	assert.Equal(t, "31.658", reqs[3].Body["total"])
}

func TestClientErrorsDoNotTripCircuit(t *testing.T) {
	_, server := newFakeBackoffice(t)
	client := newTestClient(t, server.URL)

	for i := 0; i < 5; i++ {
		err := client.Get(context.Background(), "/missing", nil)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, "no such thing", statusErr.Message)
	}
	assert.Equal(t, "closed", client.Circuit().GetState())
}

func TestUnauthorizedClearsToken(t *testing.T) {
	fake, server := newFakeBackoffice(t)
	client := newTestClient(t, server.URL)
	client.SetToken("stale")

	_, err := client.FetchMenuItems(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Empty(t, client.Token())

	_, err = client.FetchMenuItems(context.Background())
	require.Error(t, err)
	reqs := fake.Requests()
	assert.Equal(t, "Bearer stale", reqs[0].Authorization)
	assert.Empty(t, reqs[1].Authorization)

	client.SetToken("secret")
	_, err = client.FetchMenuItems(context.Background())
	assert.NoError(t, err)
}

func TestServerErrorsOpenCircuit(t *testing.T) {
	fake, server := newFakeBackoffice(t)
	client := newTestClient(t, server.URL)
	fake.setStatus(http.StatusInternalServerError)

	for i := 0; i < 3; i++ {
		err := client.PatchOrderStatus(context.Background(), "order-1", models.OrderStatusReady)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr), "attempt %d: %v", i, err)
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	}
	assert.Equal(t, "open", client.Circuit().GetState())

	fake.setStatus(0)
	seen := len(fake.Requests())
	err := client.PatchOrderStatus(context.Background(), "order-1", models.OrderStatusReady)
	assert.ErrorIs(t, err, patterns.ErrUnavailable)
	assert.Len(t, fake.Requests(), seen)
}

func TestTransportErrorsCountAgainstCircuit(t *testing.T) {
	_, server := newFakeBackoffice(t)
	client := newTestClient(t, server.URL)
	server.Close()

	for i := 0; i < 3; i++ {
		_, err := client.FetchMenuItems(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, "open", client.Circuit().GetState())
}
