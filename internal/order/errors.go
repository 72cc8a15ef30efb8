package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotInOrder = errors.New("product not found in order")
	ErrInvalidQuantity   = errors.New("quantity must be positive and not exceed the ordered quantity")
	ErrInvalidProductKey = errors.New("product key must look like productId|color")
	ErrInvalidProgress   = errors.New("progress must be between 0 and 100")
	ErrInvalidOrder      = errors.New("order must contain customer details and at least one product")
	ErrInvalidTotal      = errors.New("total price cannot be negative")
	ErrDuplicateOrderID  = errors.New("order with this ID already exists")
	ErrMissingRecipient  = errors.New("notification requires a recipient email")
)
