package product

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/db"
)

// Ledger owns the per-color stock counters of the catalog.
type Ledger interface {
	// AdjustStock adds delta to the color's stock, clamping at zero, and
	// recomputes the product's stock quantity. It returns ErrColorNotFound
	// when the product has no such color.
	AdjustStock(ctx context.Context, productID, colorID uuid.UUID, delta int) error
}

type postgresLedger struct {
	pool db.Querier
	tx   db.Transactor
}

func NewLedger(pool db.Querier, tx db.Transactor) Ledger {
	return &postgresLedger{pool: pool, tx: tx}
}

// AdjustStock increments in SQL rather than read-modify-write so concurrent
// orders against the same color cannot lose an update.
func (l *postgresLedger) AdjustStock(ctx context.Context, productID, colorID uuid.UUID, delta int) error {
	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx, l.pool)

		cmdTag, err := conn.Exec(ctx, `
			UPDATE product_colors
			SET stock = GREATEST(stock + $3, 0)
			WHERE id = $2 AND product_id = $1
		`, productID, colorID, delta)
		if err != nil {
			return fmt.Errorf("ledger: failed to adjust stock of color %s: %w", colorID, err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrColorNotFound
		}

		_, err = conn.Exec(ctx, `
			UPDATE products
			SET stock_quantity = (SELECT COALESCE(SUM(stock), 0) FROM product_colors WHERE product_id = $1),
				updated_at = NOW()
			WHERE id = $1
		`, productID)
		if err != nil {
			return fmt.Errorf("ledger: failed to recompute stock quantity of product %s: %w", productID, err)
		}

		log.Debug().
			Stringer("product_id", productID).
			Stringer("color_id", colorID).
			Int("delta", delta).
			Msg("ledger: stock adjusted")

		return nil
	})
}
