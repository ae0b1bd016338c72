package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderID accepts an order id sent either as a JSON string or a JSON number.
// Numbers keep their literal text, so 7 and "7" decode the same.
type OrderID string

func (id *OrderID) UnmarshalJSON(data []byte) error {
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
		*id = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}
	*id = OrderID(n.String())
	return nil
}

// MutationRequest is the payload for POST /api/admin/orders
type MutationRequest struct {
	ID     OrderID `json:"id" validate:"required"`
	Action string  `json:"action" validate:"required,oneof=complete pending delete"`
}

// LoginRequest is the payload for POST /api/admin/login. An empty password is
// rejected by the admin service, after it checks that login is possible at all.
type LoginRequest struct {
	Password string `json:"password"`
}
