package product

import "errors"

// ErrProductNotFound is returned when a product record does not exist.
//
// Callers should use errors.Is to check for this condition:
//
//	if errors.Is(err, product.ErrProductNotFound) { ... }
var ErrProductNotFound = errors.New("product: not found")
