package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vasiliy-maslov/boutique-api/internal/db"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByEmail(ctx context.Context, email string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
	// ReplaceItems swaps the order's line items and total in one go.
	ReplaceItems(ctx context.Context, id uuid.UUID, items []LineItem, total float64) error
	UpdateFlags(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var orderColumns = []any{
	"id", "name", "email", "phone", "street", "city", "state", "country", "zipcode",
	"total_price", "is_paid", "is_delivered", "product_progress", "created_at", "updated_at",
}

type postgresRepository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	conn := db.Conn(ctx, r.pool)

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.ProductProgress == nil {
		o.ProductProgress = map[string]int{}
	}

	query := `
		INSERT INTO orders (id, name, email, phone, street, city, state, country, zipcode,
			total_price, is_paid, is_delivered, product_progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := conn.Exec(ctx, query,
		o.ID, o.Name, o.Email, o.Phone,
		o.Address.Street, o.Address.City, o.Address.State, o.Address.Country, o.Address.Zipcode,
		o.TotalPrice, o.IsPaid, o.IsDelivered, o.ProductProgress, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateOrderID
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	return insertItems(ctx, conn, o.ID, o.Products)
}

func insertItems(ctx context.Context, conn db.Querier, orderID uuid.UUID, items []LineItem) error {
	query := `
		INSERT INTO order_items (id, order_id, position, product_id, quantity,
			color_id, color_en, color_fr, color_ar, color_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i, li := range items {
		itemID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", err)
		}
		_, err = conn.Exec(ctx, query,
			itemID, orderID, i, li.ProductID, li.Quantity,
			li.Color.ColorID, li.Color.ColorName.EN, li.Color.ColorName.FR, li.Color.ColorName.AR, li.Color.Image,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert item %d of order %s: %w", i, orderID, err)
		}
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	orders, err := r.selectOrders(ctx, goqu.C("id").Eq(id.String()))
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return &orders[0], nil
}

func (r *postgresRepository) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	return r.selectOrders(ctx, goqu.C("email").Eq(email))
}

func (r *postgresRepository) List(ctx context.Context) ([]Order, error) {
	return r.selectOrders(ctx)
}

// selectOrders loads the orders matching every expression, newest first,
// together with their line items.
func (r *postgresRepository) selectOrders(ctx context.Context, where ...exp.Expression) ([]Order, error) {
	query, args, err := goqu.Dialect("postgres").
		From("orders").
		Select(orderColumns...).
		Where(where...).
		Order(goqu.I("created_at").Desc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build order query: %w", err)
	}

	conn := db.Conn(ctx, r.pool)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	index := make(map[uuid.UUID]int)
	ids := make([]uuid.UUID, 0)

	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID, &o.Name, &o.Email, &o.Phone,
			&o.Address.Street, &o.Address.City, &o.Address.State, &o.Address.Country, &o.Address.Zipcode,
			&o.TotalPrice, &o.IsPaid, &o.IsDelivered, &o.ProductProgress, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Products = make([]LineItem, 0)
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := conn.Query(ctx, `
		SELECT i.order_id, i.product_id, i.quantity, i.color_id, i.color_en, i.color_fr, i.color_ar, i.color_image,
			COALESCE(p.title, ''), COALESCE(p.cover_image, '')
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_id, i.position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			li      LineItem
			orderID uuid.UUID
		)
		err := itemRows.Scan(
			&orderID, &li.ProductID, &li.Quantity, &li.Color.ColorID,
			&li.Color.ColorName.EN, &li.Color.ColorName.FR, &li.Color.ColorName.AR, &li.Color.Image,
			&li.Title, &li.CoverImage,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Products = append(orders[i].Products, li)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating order items: %w", err)
	}

	return orders, nil
}

func (r *postgresRepository) ReplaceItems(ctx context.Context, id uuid.UUID, items []LineItem, total float64) error {
	conn := db.Conn(ctx, r.pool)

	cmdTag, err := conn.Exec(ctx,
		`UPDATE orders SET total_price = $2, updated_at = $3 WHERE id = $1`,
		id, total, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update total of order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	if _, err := conn.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("repository: failed to clear items of order %s: %w", id, err)
	}

	return insertItems(ctx, conn, id, items)
}

func (r *postgresRepository) UpdateFlags(ctx context.Context, o *Order) error {
	o.UpdatedAt = time.Now().UTC()

	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE orders
		SET is_paid = $2, is_delivered = $3, product_progress = $4, updated_at = $5
		WHERE id = $1
		RETURNING created_at
	`, o.ID, o.IsPaid, o.IsDelivered, o.ProductProgress, o.UpdatedAt).Scan(&o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("repository: failed to update order %s: %w", o.ID, err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
