package stats

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// MonthlySales is one dashboard bucket. The month is sent as _id, the key the
// dashboard reads.
type MonthlySales struct {
	Month       string  `db:"month" json:"_id"`
	TotalSales  float64 `db:"total_sales" json:"totalSales"`
	TotalOrders int64   `db:"total_orders" json:"totalOrders"`
}

type Counters struct {
	TotalOrders      int64   `db:"total_orders"`
	TotalSales       float64 `db:"total_sales"`
	TotalProducts    int64   `db:"total_products"`
	TrendingProducts int64   `db:"trending_products"`
	TotalUsers       int64   `db:"total_users"`
}

type Summary struct {
	TotalOrders      int64          `json:"totalOrders"`
	TotalSales       float64        `json:"totalSales"`
	TrendingProducts int64          `json:"trendingProducts"`
	TotalProducts    int64          `json:"totalProducts"`
	MonthlySales     []MonthlySales `json:"monthlySales"`
	TotalUsers       int64          `json:"totalUsers"`
}

type Repository interface {
	Counters(ctx context.Context) (Counters, error)
	MonthlySales(ctx context.Context) ([]MonthlySales, error)
}

// ExternalUserCounter counts customer accounts kept outside the database.
type ExternalUserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

func (r *sqlxRepository) Counters(ctx context.Context) (Counters, error) {
	var c Counters
	err := r.db.GetContext(ctx, &c, `
		SELECT
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COALESCE(SUM(total_price), 0) FROM orders) AS total_sales,
			(SELECT COUNT(*) FROM products) AS total_products,
			(SELECT COUNT(*) FROM products WHERE trending) AS trending_products,
			(SELECT COUNT(*) FROM users) AS total_users
	`)
	if err != nil {
		return Counters{}, fmt.Errorf("repository: failed to load stats counters: %w", err)
	}
	return c, nil
}

func (r *sqlxRepository) MonthlySales(ctx context.Context) ([]MonthlySales, error) {
	sales := make([]MonthlySales, 0)
	err := r.db.SelectContext(ctx, &sales, `
		SELECT
			to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
			COALESCE(SUM(total_price), 0) AS total_sales,
			COUNT(*) AS total_orders
		FROM orders
		GROUP BY 1
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to load monthly sales: %w", err)
	}
	return sales, nil
}

type Service interface {
	Summary(ctx context.Context) (*Summary, error)
}

type service struct {
	repo     Repository
	external ExternalUserCounter
}

func NewService(repo Repository, external ExternalUserCounter) Service {
	return &service{repo: repo, external: external}
}

// Summary aggregates the dashboard numbers. A failing external user source
// counts as zero users.
func (s *service) Summary(ctx context.Context) (*Summary, error) {
	c, err := s.repo.Counters(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load stats counters")
		return nil, fmt.Errorf("service: failed to load stats: %w", err)
	}

	monthly, err := s.repo.MonthlySales(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load monthly sales")
		return nil, fmt.Errorf("service: failed to load stats: %w", err)
	}

	var externalUsers int64
	if s.external != nil {
		externalUsers, err = s.external.CountUsers(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("service: external user count unavailable, using 0")
			externalUsers = 0
		}
	}

	log.Debug().
		Int64("db_users", c.TotalUsers).
		Int64("external_users", externalUsers).
		Int64("orders", c.TotalOrders).
		Msg("service: stats computed")

	return &Summary{
		TotalOrders:      c.TotalOrders,
		TotalSales:       c.TotalSales,
		TrendingProducts: c.TrendingProducts,
		TotalProducts:    c.TotalProducts,
		MonthlySales:     monthly,
		TotalUsers:       c.TotalUsers + externalUsers,
	}, nil
}
