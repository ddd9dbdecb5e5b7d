package enums

// CartStatus moves one way: active carts become converted at checkout.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
)

var cartStatuses = []CartStatus{CartStatusActive, CartStatusConverted}

func (c CartStatus) String() string { return string(c) }

func (c CartStatus) IsValid() bool {
	_, err := ParseCartStatus(string(c))
	return err == nil
}

func ParseCartStatus(value string) (CartStatus, error) {
	return parse("cart status", cartStatuses, value)
}
