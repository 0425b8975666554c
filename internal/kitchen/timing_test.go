package kitchen

import (
	"context"
	"testing"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElapsedMinutes(t *testing.T) {
	tests := []struct {
		name  string
		after time.Duration
		want  int
	}{
		{"atCreation", 0, 0},
		{"justUnderAMinute", 59 * time.Second, 0},
		{"exactlyOneMinute", time.Minute, 1},
		{"sixtyFiveSeconds", 65 * time.Second, 1},
		{"justUnderTwoMinutes", 119*time.Second + 999*time.Millisecond, 1},
		{"twoMinutes", 2 * time.Minute, 2},
		{"anHour", time.Hour, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ElapsedMinutes(baseTime, baseTime.Add(tt.after)))
		})
	}
}

func TestElapsedMinutesIsMonotonic(t *testing.T) {
	prev := 0
	for s := 0; s <= 600; s += 7 {
		got := ElapsedMinutes(baseTime, baseTime.Add(time.Duration(s)*time.Second))
		assert.GreaterOrEqual(t, got, prev)
		assert.Equal(t, s/60, got)
		prev = got
	}
}

func TestIsOverdue(t *testing.T) {
	order := newTestOrder("order-1", "item-1")
	require.Equal(t, 15, order.TotalEstimatedTime)

	assert.False(t, IsOverdue(order, baseTime.Add(15*time.Minute)))
	assert.False(t, IsOverdue(order, baseTime.Add(15*time.Minute+59*time.Second)))
	assert.True(t, IsOverdue(order, baseTime.Add(16*time.Minute)))
}

func TestProgress(t *testing.T) {
	order := newTestOrder("order-1", "item-1")

	order.ElapsedTime = 0
	assert.Equal(t, 0.0, Progress(order))

	order.ElapsedTime = 3
	assert.InDelta(t, 20.0, Progress(order), 1e-9)

	order.ElapsedTime = 30
	assert.Equal(t, 85.0, Progress(order))

	order.TotalEstimatedTime = 0
	assert.Equal(t, 0.0, Progress(order))
}

func TestPriorityRank(t *testing.T) {
	rushed := models.KitchenOrder{Priority: models.PriorityLow, IsRushed: true}
	urgent := models.KitchenOrder{Priority: models.PriorityUrgent}
	high := models.KitchenOrder{Priority: models.PriorityHigh}
	normal := models.KitchenOrder{Priority: models.PriorityNormal}
	low := models.KitchenOrder{Priority: models.PriorityLow}

	assert.Greater(t, PriorityRank(rushed), PriorityRank(urgent))
	assert.Greater(t, PriorityRank(urgent), PriorityRank(high))
	assert.Greater(t, PriorityRank(high), PriorityRank(normal))
	assert.Greater(t, PriorityRank(normal), PriorityRank(low))
}

func TestTickRefreshesElapsedAndFlagsOverdueOnce(t *testing.T) {
	clock := newFakeClock(baseTime)
	store := NewStore(clock)

	late := newTestOrder("late", "late-item")
	onTime := newTestOrder("on-time", "on-time-item")
	onTime.OrderTime = baseTime.Add(10 * time.Minute)
	served := newTestOrder("served", "served-item")
	served.Status = models.OrderStatusServed
	for _, o := range []models.KitchenOrder{late, onTime, served} {
		require.NoError(t, store.Add(o))
	}

	logger, hook := test.NewNullLogger()
	ticker := NewTicker(store, clock, time.Second, logger)

	clock.Set(baseTime.Add(16 * time.Minute))
	summary := ticker.Tick()
	assert.Equal(t, 3, summary.Orders)
	assert.Equal(t, []string{"late"}, summary.Overdue)
	assert.Equal(t, 2, summary.ByStatus[models.OrderStatusNew])
	assert.Equal(t, 1, summary.ByStatus[models.OrderStatusServed])

	got, _ := store.Get("on-time")
	assert.Equal(t, 6, got.ElapsedTime)
	assert.Equal(t, models.OrderStatusNew, got.Status)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "Order delayed", hook.LastEntry().Message)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "late", hook.LastEntry().Data["order_id"])

	clock.Advance(time.Minute)
	summary = ticker.Tick()
	assert.Equal(t, []string{"late"}, summary.Overdue)
	assert.Len(t, hook.AllEntries(), 1)
}

func TestTickerStartStop(t *testing.T) {
	clock := newFakeClock(baseTime)
	store := NewStore(clock)
	require.NoError(t, store.Add(newTestOrder("order-1", "item-1")))

	logger, _ := test.NewNullLogger()
	ticker := NewTicker(store, clock, 5*time.Millisecond, logger)

	require.NoError(t, ticker.Start(context.Background()))
	assert.True(t, ticker.Running())
	assert.ErrorIs(t, ticker.Start(context.Background()), ErrTickerRunning)

	clock.Set(baseTime.Add(65 * time.Second))
	assert.Eventually(t, func() bool {
		o, _ := store.Get("order-1")
		return o.ElapsedTime == 1
	}, time.Second, 5*time.Millisecond)

	ticker.Stop()
	assert.False(t, ticker.Running())

	clock.Set(baseTime.Add(10 * time.Minute))
	time.Sleep(20 * time.Millisecond)
	o, _ := store.Get("order-1")
	assert.Equal(t, 1, o.ElapsedTime)

	require.NoError(t, ticker.Start(context.Background()))
	ticker.Stop()
	ticker.Stop()
}

func TestTickerStopsWithContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ticker := NewTicker(NewStore(nil), nil, time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ticker.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		ticker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop after context cancellation")
	}
}
