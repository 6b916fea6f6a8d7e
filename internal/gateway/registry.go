package gateway

import (
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
)

// Registry dispatches to the closed set of gateway adapters by payment
// method. Cash on delivery deliberately has no adapter: nothing to create,
// capture or verify.
type Registry struct {
	adapters map[domain.PaymentMethod]ports.GatewayAdapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...ports.GatewayAdapter) *Registry {
	m := make(map[domain.PaymentMethod]ports.GatewayAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Method()] = a
	}
	return &Registry{adapters: m}
}

// ForMethod returns the adapter serving a payment method.
func (r *Registry) ForMethod(method domain.PaymentMethod) (ports.GatewayAdapter, error) {
	adapter, ok := r.adapters[method]
	if !ok {
		return nil, apperror.ErrUnsupportedGateway(string(method))
	}
	return adapter, nil
}
