package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/internal/users"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

// revenueStatuses are the statuses whose totals count as revenue.
var revenueStatuses = []enums.OrderStatus{enums.OrderStatusApproved, enums.OrderStatusCompleted}

type productCounter interface {
	Counts(ctx context.Context) (catalog.ProductCounts, error)
	CountsForFarmer(ctx context.Context, farmerID uuid.UUID) (catalog.FarmerProductCounts, error)
}

type userCounter interface {
	Counts(ctx context.Context) (users.Counts, error)
}

// StatsService assembles the admin and farmer dashboard numbers.
type StatsService struct {
	repo     Repository
	products productCounter
	users    userCounter
}

func NewStatsService(repo Repository, products productCounter, accounts userCounter) (*StatsService, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product counter required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("user counter required")
	}
	return &StatsService{repo: repo, products: products, users: accounts}, nil
}

func (s *StatsService) Dashboard(ctx context.Context, actor types.Actor) (*DashboardStats, error) {
	if !actor.Is(enums.UserRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count orders")
	}
	revenue, err := s.repo.SumRevenue(ctx, revenueStatuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sum revenue")
	}
	products, err := s.products.Counts(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := s.users.Counts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count users")
	}

	stats := &DashboardStats{
		OrdersByStatus: make(map[enums.OrderStatus]int64, len(enums.OrderStatuses())),
		TotalRevenue:   revenue,
		Products:       products,
		Users:          accounts,
	}
	for _, status := range enums.OrderStatuses() {
		stats.OrdersByStatus[status] = counts[status]
		stats.TotalOrders += counts[status]
	}
	return stats, nil
}

// FarmerAnalytics summarises the calling farmer's listings and sales.
func (s *StatsService) FarmerAnalytics(ctx context.Context, actor types.Actor) (*FarmerAnalytics, error) {
	if !actor.Is(enums.UserRoleFarmer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer role required")
	}
	products, err := s.products.CountsForFarmer(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count farmer products")
	}
	sales, err := s.repo.FarmerSales(ctx, actor.UserID, revenueStatuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sum farmer sales")
	}
	return &FarmerAnalytics{
		Products:       products,
		TotalLineItems: sales.LineCount,
		TotalRevenue:   sales.Revenue,
		ItemsSold:      sales.ItemsSold,
	}, nil
}
