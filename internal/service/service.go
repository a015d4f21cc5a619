package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"possettle/backend/internal/cache"
	"possettle/backend/internal/domain"
	"possettle/backend/internal/payment"
	"possettle/backend/internal/store"
	"possettle/backend/internal/xid"
)

const defaultDrawerCacheTTL = 5 * time.Second

var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	invoices       *InvoiceGenerator
	payments       *PaymentRouter
	drawerCache    cache.DrawerCache
	drawerCacheTTL time.Duration
	// drawerCacheMu orders cache fills against invalidations; drawerCacheGen
	// is bumped by every invalidation so a fill started before one is dropped.
	drawerCacheMu  sync.Mutex
	drawerCacheGen uint64
	defaultStoreID string
	now            func() time.Time
}

// New wires the settlement core. Nil collaborators fall back to the
// repository-backed invoice sequence, the payment simulator and no drawer cache.
func New(repo store.Repository, invoices *InvoiceGenerator, payments *PaymentRouter, drawerCache cache.DrawerCache, defaultStoreID string) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}
	if invoices == nil {
		invoices = NewInvoiceGenerator(repo, DefaultInvoicePrefix, DefaultInvoiceRetryDelay)
	}
	if payments == nil {
		sim := payment.NewSimulator("")
		payments = NewPaymentRouter(sim, sim)
	}
	if drawerCache == nil {
		drawerCache = cache.NoopDrawerCache{}
	}

	return &Service{
		repo:           repo,
		invoices:       invoices,
		payments:       payments,
		drawerCache:    drawerCache,
		drawerCacheTTL: defaultDrawerCacheTTL,
		defaultStoreID: defaultStoreID,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetDrawerCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		s.drawerCacheTTL = ttl
	}
}

func (s *Service) ListProducts(ctx context.Context, storeID string) (domain.ProductListResponse, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.ProductListResponse{}, err
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	stock, err := s.repo.GetStockMap(ctx, storeID, ids)
	if err != nil {
		return domain.ProductListResponse{}, err
	}

	resp := domain.ProductListResponse{Products: make([]domain.ProductStock, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, domain.ProductStock{Product: p, Stock: stock[p.ID]})
	}
	return resp, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	methods, err := s.repo.ListPaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		methods[i].Category = ClassifyMethod(methods[i])
	}
	return methods, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Actor{}, ErrAdminRequired
	}
	return actor, nil
}

func operatorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return "system"
}
