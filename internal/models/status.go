package models

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:    {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusConfirmed:  {OrderStatusProcessing: true, OrderStatusShipped: true, OrderStatusCancelled: true},
	OrderStatusProcessing: {OrderStatusShipped: true, OrderStatusCancelled: true},
	OrderStatusShipped:    {OrderStatusDelivered: true},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}
