package enum

import (
	"encoding/json"
	"strings"
)

// PaymentMethod is how a payment was collected
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodMobile   PaymentMethod = "mobile"
)

func (m PaymentMethod) String() string {
	return string(m)
}

// RequiresReference reports whether a payment with this method must carry a
// reference. Only cash does not.
func (m PaymentMethod) RequiresReference() bool {
	return m != PaymentMethodCash
}

// NormalizePaymentMethod lower-cases and trims a method name
func NormalizePaymentMethod(s string) PaymentMethod {
	return PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
}

func (m PaymentMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*m = NormalizePaymentMethod(str)
	return nil
}
