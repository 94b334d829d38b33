package limits

import "context"

type providerCtxKey struct{}

// SetProviderToContext stores the session provider for downstream handlers.
func SetProviderToContext(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerCtxKey{}, p)
}

// GetProviderFromContext retrieves the session provider, if present.
func GetProviderFromContext(ctx context.Context) (*Provider, bool) {
	p, ok := ctx.Value(providerCtxKey{}).(*Provider)
	return p, ok && p != nil
}

// ProviderFromContext is like GetProviderFromContext but returns ErrProviderNotInCtx.
func ProviderFromContext(ctx context.Context) (*Provider, error) {
	p, ok := GetProviderFromContext(ctx)
	if !ok {
		return nil, ErrProviderNotInCtx
	}
	return p, nil
}
