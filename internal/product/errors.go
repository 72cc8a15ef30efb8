package product

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrColorNotFound     = errors.New("color not found")
	ErrNoColors          = errors.New("at least one color must be provided")
	ErrInvalidStock      = errors.New("color stock cannot be negative")
	ErrInvalidPrice      = errors.New("prices cannot be negative")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
	ErrProductInUse      = errors.New("product is referenced by existing orders")
)
