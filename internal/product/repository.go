package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/db"
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	UpdateFinalPrice(ctx context.Context, id uuid.UUID, finalPrice float64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var productColumns = []any{
	"id", "title", "description", "translations", "category", "cover_image",
	"old_price", "new_price", "final_price", "stock_quantity", "trending", "created_at", "updated_at",
}

type postgresRepository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, p *Product) error {
	conn := db.Conn(ctx, r.pool)

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO products (id, title, description, translations, category, cover_image,
			old_price, new_price, final_price, stock_quantity, trending, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := conn.Exec(ctx, query,
		p.ID, p.Title, p.Description, p.Translations, p.Category, p.CoverImage,
		p.OldPrice, p.NewPrice, p.FinalPrice, p.StockQuantity, p.Trending, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	for i := range p.Colors {
		if err := insertColor(ctx, conn, p.ID, i, &p.Colors[i]); err != nil {
			return err
		}
	}

	return nil
}

func insertColor(ctx context.Context, conn db.Querier, productID uuid.UUID, position int, c *Color) error {
	query := `
		INSERT INTO product_colors (id, product_id, position, name_en, name_fr, name_ar, image, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := conn.Exec(ctx, query,
		c.ID, productID, position, c.ColorName.EN, c.ColorName.FR, c.ColorName.AR, c.Image, c.Stock,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert color %s for product %s: %w", c.ID, productID, err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	products, err := r.GetByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}

	p, ok := products[id]
	if !ok {
		return nil, ErrProductNotFound
	}

	return p, nil
}

func (r *postgresRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	result := make(map[uuid.UUID]*Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := goqu.Dialect("postgres").
		From("products").
		Select(productColumns...).
		Where(goqu.C("id").In(uuidArgs(ids)...)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build product query: %w", err)
	}

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	for i := range products {
		result[products[i].ID] = &products[i]
	}

	return result, nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	ds := goqu.Dialect("postgres").
		From("products").
		Select(productColumns...).
		Order(goqu.I("created_at").Desc())

	if filter.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(filter.Category))
	}
	if filter.Trending != nil {
		ds = ds.Where(goqu.C("trending").Eq(*filter.Trending))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build product list query: %w", err)
	}

	return r.queryProducts(ctx, query, args...)
}

func (r *postgresRepository) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	conn := db.Conn(ctx, r.pool)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	index := make(map[uuid.UUID]int)
	ids := make([]uuid.UUID, 0)

	for rows.Next() {
		var p Product
		err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Translations, &p.Category, &p.CoverImage,
			&p.OldPrice, &p.NewPrice, &p.FinalPrice, &p.StockQuantity, &p.Trending, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		p.Colors = make([]Color, 0)
		index[p.ID] = len(products)
		ids = append(ids, p.ID)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating products: %w", err)
	}

	if len(ids) == 0 {
		return products, nil
	}

	colorRows, err := conn.Query(ctx, `
		SELECT id, product_id, name_en, name_fr, name_ar, image, stock
		FROM product_colors
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query product colors: %w", err)
	}
	defer colorRows.Close()

	for colorRows.Next() {
		var (
			c         Color
			productID uuid.UUID
		)
		if err := colorRows.Scan(&c.ID, &productID, &c.ColorName.EN, &c.ColorName.FR, &c.ColorName.AR, &c.Image, &c.Stock); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product color: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].Colors = append(products[i].Colors, c)
		}
	}
	if err := colorRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating product colors: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Product) error {
	conn := db.Conn(ctx, r.pool)
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET title = $2, description = $3, translations = $4, category = $5, cover_image = $6,
			old_price = $7, new_price = $8, final_price = $9, stock_quantity = $10, trending = $11, updated_at = $12
		WHERE id = $1
		RETURNING created_at
	`
	err := conn.QueryRow(ctx, query,
		p.ID, p.Title, p.Description, p.Translations, p.Category, p.CoverImage,
		p.OldPrice, p.NewPrice, p.FinalPrice, p.StockQuantity, p.Trending, p.UpdatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}

	keep := make([]uuid.UUID, 0, len(p.Colors))
	for _, c := range p.Colors {
		keep = append(keep, c.ID)
	}

	_, err = conn.Exec(ctx, `DELETE FROM product_colors WHERE product_id = $1 AND NOT (id = ANY($2))`, p.ID, keep)
	if err != nil {
		return fmt.Errorf("repository: failed to prune colors of product %s: %w", p.ID, err)
	}

	upsert := `
		INSERT INTO product_colors (id, product_id, position, name_en, name_fr, name_ar, image, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET position = EXCLUDED.position, name_en = EXCLUDED.name_en, name_fr = EXCLUDED.name_fr,
			name_ar = EXCLUDED.name_ar, image = EXCLUDED.image, stock = EXCLUDED.stock
		WHERE product_colors.product_id = EXCLUDED.product_id
	`
	for i, c := range p.Colors {
		_, err := conn.Exec(ctx, upsert, c.ID, p.ID, i, c.ColorName.EN, c.ColorName.FR, c.ColorName.AR, c.Image, c.Stock)
		if err != nil {
			return fmt.Errorf("repository: failed to upsert color %s of product %s: %w", c.ID, p.ID, err)
		}
	}

	return nil
}

func (r *postgresRepository) UpdateFinalPrice(ctx context.Context, id uuid.UUID, finalPrice float64) error {
	cmdTag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE products SET final_price = $2, updated_at = $3 WHERE id = $1`,
		id, finalPrice, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update final price of product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			log.Warn().Stringer("product_id", id).Msg("repository: product still referenced by orders")
			return ErrProductInUse
		}
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func uuidArgs(ids []uuid.UUID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
