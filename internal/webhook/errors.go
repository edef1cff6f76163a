package webhook

import "fmt"

// SignatureError is the only error HandleNotification returns. The HTTP
// layer answers it with 401.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "invalid webhook signature: " + e.Reason
}

// NotFoundError means the notification names a gateway order we never
// stored. It is acknowledged, not retried.
type NotFoundError struct {
	GatewayOrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no order for gateway order id %q", e.GatewayOrderID)
}
