package tenancy

import "context"

type ctxKey string

const brandKey ctxKey = "reislab.brand_id"

// WithBrandID stores the brand id in context.
func WithBrandID(ctx context.Context, brandID string) context.Context {
	return context.WithValue(ctx, brandKey, brandID)
}

// BrandIDFromContext extracts the brand id if present.
func BrandIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(brandKey)
	if val == nil {
		return "", false
	}
	brandID, ok := val.(string)
	return brandID, ok && brandID != ""
}
