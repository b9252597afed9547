package repository

import (
	"context"
	"iter"

	"github.com/sangkips/tillsync/internal/domain/entity"
)

// CatalogRepository defines the interface for the local catalog cache
type CatalogRepository interface {
	// CacheCatalog upserts the given records and stamps them with the current
	// time. Records absent from the input are kept, so a partial fetch never
	// shrinks the cache.
	CacheCatalog(ctx context.Context, products []entity.CachedProduct, categories []entity.CachedCategory) error
	// QueryProducts returns a lazy, finite result set. Ranging over it again
	// re-runs the query.
	QueryProducts(ctx context.Context, filter ProductFilter) iter.Seq2[entity.CachedProduct, error]
	GetProduct(ctx context.Context, id string) (*entity.CachedProduct, error)
	ListCategories(ctx context.Context) ([]entity.CachedCategory, error)
}

// ProductFilter contains filtering parameters for cached product queries
type ProductFilter struct {
	CategoryID *string
	Active     *bool
	Favorite   *bool
	Search     string // case-insensitive substring of name or code
}

// CollectProducts drains a product result set into a slice
func CollectProducts(seq iter.Seq2[entity.CachedProduct, error]) ([]entity.CachedProduct, error) {
	products := []entity.CachedProduct{}
	for p, err := range seq {
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}
