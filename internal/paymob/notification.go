package paymob

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paymob-signature"

const TransactionType = "TRANSACTION"

// ID holds gateway identifiers, which Paymob sends as numbers in some
// payloads and as strings in others.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("paymob id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as JSON numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if id != "" && isDigits(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type Notification struct {
	Type string      `json:"type"`
	Obj  Transaction `json:"obj"`
}

type Transaction struct {
	ID          ID    `json:"id"`
	Success     bool  `json:"success"`
	Pending     bool  `json:"pending"`
	AmountCents int64 `json:"amount_cents"`
	Order       struct {
		ID              ID     `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`
}

// ParseNotification decodes a transaction callback and rejects payloads
// that cannot be tied to a gateway order.
func ParseNotification(raw []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if n.Type != "" && !strings.EqualFold(n.Type, TransactionType) {
		return Notification{}, fmt.Errorf("unsupported notification type %q", n.Type)
	}
	if n.Obj.Order.ID == "" {
		return Notification{}, fmt.Errorf("notification has no order id")
	}
	return n, nil
}

func Sign(secret, body []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time; hex case is ignored.
func VerifySignature(secret, body []byte, signature string) bool {
	expected := Sign(secret, body)
	given := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(expected), []byte(given))
}
