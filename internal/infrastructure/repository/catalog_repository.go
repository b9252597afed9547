package repository

import (
	"context"
	"errors"
	"iter"

	"github.com/sangkips/tillsync/internal/domain/entity"
	domainRepo "github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/pkg/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const catalogBatchSize = 200

type catalogRepository struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewCatalogRepository creates a new catalog cache repository
func NewCatalogRepository(db *gorm.DB, clk clock.Clock) domainRepo.CatalogRepository {
	return &catalogRepository{db: db, clock: clk}
}

func (r *catalogRepository) CacheCatalog(ctx context.Context, products []entity.CachedProduct, categories []entity.CachedCategory) error {
	if len(products) == 0 && len(categories) == 0 {
		return nil
	}

	now := r.clock.Now().UTC()
	cats := make([]entity.CachedCategory, len(categories))
	copy(cats, categories)
	for i := range cats {
		cats[i].LastUpdated = now
	}
	prods := make([]entity.CachedProduct, len(products))
	copy(prods, products)
	for i := range prods {
		prods[i].LastUpdated = now
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(cats) > 0 {
			if err := tx.Clauses(upsert).CreateInBatches(&cats, catalogBatchSize).Error; err != nil {
				return err
			}
		}
		if len(prods) > 0 {
			if err := tx.Clauses(upsert).CreateInBatches(&prods, catalogBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return storageErr("cache catalog", err)
}

// QueryProducts narrows the SQL query on the most selective indexed
// predicate and applies the remaining ones while streaming rows. Ranging holds
// a store connection, so callers must not issue other store calls mid-range.
func (r *catalogRepository) QueryProducts(ctx context.Context, filter domainRepo.ProductFilter) iter.Seq2[entity.CachedProduct, error] {
	return func(yield func(entity.CachedProduct, error) bool) {
		query := r.db.WithContext(ctx).Model(&entity.CachedProduct{})
		switch {
		case filter.CategoryID != nil:
			query = query.Where("category_id = ?", *filter.CategoryID)
		case filter.Favorite != nil:
			query = query.Where("favorite = ?", *filter.Favorite)
		case filter.Active != nil:
			query = query.Where("active = ?", *filter.Active)
		}

		rows, err := query.Order("name ASC").Order("id ASC").Rows()
		if err != nil {
			yield(entity.CachedProduct{}, storageErr("query products", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var product entity.CachedProduct
			if err := r.db.ScanRows(rows, &product); err != nil {
				yield(entity.CachedProduct{}, storageErr("scan product", err))
				return
			}
			if !matchesFilter(&product, filter) {
				continue
			}
			if !yield(product, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(entity.CachedProduct{}, storageErr("query products", err))
		}
	}
}

func matchesFilter(p *entity.CachedProduct, filter domainRepo.ProductFilter) bool {
	if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
		return false
	}
	if filter.Active != nil && p.Active != *filter.Active {
		return false
	}
	if filter.Favorite != nil && p.Favorite != *filter.Favorite {
		return false
	}
	return p.Matches(filter.Search)
}

func (r *catalogRepository) GetProduct(ctx context.Context, id string) (*entity.CachedProduct, error) {
	var product entity.CachedProduct
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get product", err)
	}
	return &product, nil
}

func (r *catalogRepository) ListCategories(ctx context.Context) ([]entity.CachedCategory, error) {
	categories := []entity.CachedCategory{}
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, storageErr("list categories", err)
}
