package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/internal/infrastructure/remote"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/sangkips/tillsync/pkg/clock"
	"github.com/sangkips/tillsync/pkg/connectivity"
)

// ErrOffline is returned by Refresh when there is no connectivity
var ErrOffline = &apperror.NetworkError{Op: "refresh catalog", Err: errors.New("offline")}

// CatalogFetcher downloads the catalog from the server
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context) (*remote.CatalogResponse, error)
}

// RefreshResult summarizes one catalog refresh
type RefreshResult struct {
	Products    int       `json:"products"`
	Categories  int       `json:"categories"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// CatalogService keeps the local catalog cache fresh. Reads always go to the
// cache, so search works the same online and offline.
type CatalogService struct {
	repo     repository.CatalogRepository
	fetcher  CatalogFetcher
	monitor  connectivity.Monitor
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	refreshing atomic.Bool
	wg         sync.WaitGroup

	mu          sync.Mutex
	ctx         context.Context
	stopped     bool
	unsubscribe func()
	timer       clock.Timer
}

// NewCatalogService creates a new catalog service. interval is the periodic
// refresh period; zero disables periodic refreshes.
func NewCatalogService(
	repo repository.CatalogRepository,
	fetcher CatalogFetcher,
	monitor connectivity.Monitor,
	clk clock.Clock,
	interval time.Duration,
	logger *slog.Logger,
) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		repo:     repo,
		fetcher:  fetcher,
		monitor:  monitor,
		clock:    clk,
		interval: interval,
		logger:   logger.With("component", "catalog"),
		ctx:      context.Background(),
	}
}

// Refresh fetches the catalog and upserts it into the cache
func (s *CatalogService) Refresh(ctx context.Context) (*RefreshResult, error) {
	if !s.monitor.Online() {
		return nil, ErrOffline
	}

	catalog, err := s.fetcher.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheCatalog(ctx, catalog.Products, catalog.Categories); err != nil {
		return nil, err
	}

	result := &RefreshResult{
		Products:    len(catalog.Products),
		Categories:  len(catalog.Categories),
		RefreshedAt: s.clock.Now(),
	}
	s.logger.Info("catalog refreshed", "products", result.Products, "categories", result.Categories)
	return result, nil
}

// Start refreshes on every transition to online and on the configured
// interval while online.
func (s *CatalogService) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	s.unsubscribe = s.monitor.Subscribe(func(online bool) {
		if online {
			s.refreshAsync()
		}
	})
	s.arm()
	s.mu.Unlock()

	if s.monitor.Online() {
		s.refreshAsync()
	}
}

// Stop cancels the periodic refresh and waits for an in-flight one
func (s *CatalogService) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until background refreshes have finished
func (s *CatalogService) Wait() {
	s.wg.Wait()
}

// arm must be called with s.mu held
func (s *CatalogService) arm() {
	if s.interval <= 0 || s.stopped {
		return
	}
	s.timer = s.clock.AfterFunc(s.interval, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.arm()
		s.mu.Unlock()

		if s.monitor.Online() {
			s.refreshAsync()
		}
	})
}

func (s *CatalogService) refreshAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.refreshing.CompareAndSwap(false, true) {
		return
	}

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.refreshing.Store(false)
		if _, err := s.Refresh(ctx); err != nil {
			s.logger.Warn("catalog refresh failed, serving cached catalog", "error", err)
		}
	}()
}

// SearchProducts reads matching products from the cache
func (s *CatalogService) SearchProducts(ctx context.Context, filter repository.ProductFilter) ([]entity.CachedProduct, error) {
	return repository.CollectProducts(s.repo.QueryProducts(ctx, filter))
}

// GetProduct returns one cached product
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*entity.CachedProduct, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// Categories lists cached categories
func (s *CatalogService) Categories(ctx context.Context) ([]entity.CachedCategory, error) {
	return s.repo.ListCategories(ctx)
}
