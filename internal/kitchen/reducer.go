package kitchen

import "github.com/ashendes/kitchen-pos/internal/models"

// NextOrderStatus derives the order status after an item status change.
//
// All items ready promotes the order to ready. Otherwise any item preparing
// promotes a new or acknowledged order to preparing. Nothing demotes an
// order: reverting an item on a ready order leaves the order ready. A served
// order is final and an order without items keeps its status.
func NextOrderStatus(current models.OrderStatus, items []models.ItemStatus) models.OrderStatus {
	if len(items) == 0 || current == models.OrderStatusServed {
		return current
	}

	allReady := true
	anyPreparing := false
	for _, s := range items {
		if s != models.ItemStatusReady {
			allReady = false
		}
		if s == models.ItemStatusPreparing {
			anyPreparing = true
		}
	}

	switch {
	case allReady && current != models.OrderStatusReady:
		return models.OrderStatusReady
	case anyPreparing && (current == models.OrderStatusNew || current == models.OrderStatusAcknowledged):
		return models.OrderStatusPreparing
	}
	return current
}

// TotalEstimatedTime is the largest item estimate of the order, in minutes
func TotalEstimatedTime(items []models.KitchenOrderItem) int {
	longest := 0
	for _, item := range items {
		if item.EstimatedTime > longest {
			longest = item.EstimatedTime
		}
	}
	return longest
}
