package paymob

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Step names one call of the payment handshake.
type Step string

const (
	StepAuthenticate  Step = "authenticate"
	StepRegisterOrder Step = "register_order"
	StepPaymentKey    Step = "payment_key"
)

var ErrNotConfigured = errors.New("paymob credentials are not configured")

// GatewayError is returned for every failed handshake call: transport errors,
// timeouts, non-2xx answers and unusable response bodies.
type GatewayError struct {
	Step       Step
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("paymob %s: status %d: %v", e.Step, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("paymob %s: %v", e.Step, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call was cut off by a deadline.
func (e *GatewayError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
