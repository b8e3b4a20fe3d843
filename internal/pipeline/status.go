package pipeline

import "cart-analytics/internal/models"

// cartStatusByOrderStatus is the abandonment policy. The dataset has no
// explicit abandonment event, so it is inferred from the order status.
var cartStatusByOrderStatus = map[models.OrderStatus]models.CartStatus{
	models.OrderCanceled:    models.CartAbandoned,
	models.OrderUnavailable: models.CartAbandoned,
	models.OrderDelivered:   models.CartCompleted,
	models.OrderShipped:     models.CartCompleted,
	models.OrderInvoiced:    models.CartCompleted,
	models.OrderProcessing:  models.CartCompleted,
	models.OrderCreated:     models.CartPending,
	models.OrderApproved:    models.CartPending,
}

func ClassifyCartStatus(status models.OrderStatus) models.CartStatus {
	if cs, ok := cartStatusByOrderStatus[status]; ok {
		return cs
	}
	return models.CartOther
}
