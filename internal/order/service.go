package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/boutique-api/internal/db"
	"github.com/vasiliy-maslov/boutique-api/internal/events"
	"github.com/vasiliy-maslov/boutique-api/internal/mail"
	"github.com/vasiliy-maslov/boutique-api/internal/product"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/vasiliy-maslov/boutique-api/internal/order")

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Service interface {
	CreateOrder(ctx context.Context, input CreateInput) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByEmail(ctx context.Context, email string) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	// RemoveLineQuantity returns deleted=true, and a nil order, when the
	// removal emptied the order.
	RemoveLineQuantity(ctx context.Context, orderID uuid.UUID, productKey string, quantity int) (*Order, bool, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	UpdateOrderFlags(ctx context.Context, id uuid.UUID, patch FlagsPatch) (*Order, error)
	SendProgressNotification(ctx context.Context, req ProgressRequest) error
}

type service struct {
	repo      Repository
	products  product.Repository
	ledger    product.Ledger
	tx        db.Transactor
	mailer    Mailer
	publisher EventPublisher
}

func NewService(
	repo Repository,
	products product.Repository,
	ledger product.Ledger,
	tx db.Transactor,
	mailer Mailer,
	publisher EventPublisher,
) Service {
	return &service{
		repo:      repo,
		products:  products,
		ledger:    ledger,
		tx:        tx,
		mailer:    mailer,
		publisher: publisher,
	}
}

func (s *service) CreateOrder(ctx context.Context, input CreateInput) (o *Order, err error) {
	ctx, span := tracer.Start(ctx, "order.CreateOrder", trace.WithAttributes(attribute.Int("order.lines", len(input.Products))))
	defer func() { endSpan(span, err) }()

	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order ID: %w", err)
	}

	o = &Order{
		ID:              id,
		Name:            strings.TrimSpace(input.Name),
		Email:           strings.TrimSpace(input.Email),
		Phone:           strings.TrimSpace(input.Phone),
		Address:         input.Address,
		TotalPrice:      input.TotalPrice,
		ProductProgress: map[string]int{},
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lines, err := s.resolveLines(ctx, input.Products)
		if err != nil {
			return err
		}
		o.Products = lines

		if err := s.repo.Create(ctx, o); err != nil {
			return err
		}

		for _, li := range o.Products {
			if err := s.adjustLineStock(ctx, li, -li.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Int("lines", len(o.Products)).Msg("service: order created")
	s.publish(ctx, events.New(events.OrderCreated, o.ID, o))
	return o, nil
}

func validateCreateInput(input CreateInput) error {
	required := []string{
		input.Name, input.Email, input.Phone,
		input.Address.Street, input.Address.City, input.Address.State, input.Address.Country, input.Address.Zipcode,
	}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return ErrInvalidOrder
		}
	}
	if len(input.Products) == 0 {
		return ErrInvalidOrder
	}
	for _, li := range input.Products {
		if li.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	if input.TotalPrice < 0 {
		return ErrInvalidTotal
	}
	return nil
}

// resolveLines loads every referenced product, failing on the first missing
// one, and pins each requested color to its inventory slot.
func (s *service) resolveLines(ctx context.Context, inputs []LineInput) ([]LineItem, error) {
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ProductID)
	}

	catalog, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		p, ok := catalog[in.ProductID]
		if !ok {
			log.Warn().Stringer("product_id", in.ProductID).Msg("service: ordered product does not exist")
			return nil, fmt.Errorf("%w: %s", product.ErrProductNotFound, in.ProductID)
		}
		lines = append(lines, LineItem{
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			Color:      normalizeColor(p, in),
			Title:      p.Title,
			CoverImage: p.CoverImage,
		})
	}
	return lines, nil
}

// normalizeColor pins the requested color to an inventory slot of p, by id
// first and then by name, locale against locale. A resolved color takes the
// catalog's names; otherwise the request is kept.
func normalizeColor(p *product.Product, in LineInput) LineColor {
	var sel ColorSelection
	if in.Color != nil {
		sel = *in.Color
	}

	color := LineColor{
		ColorName: sel.ColorName.Normalize(),
		Image:     sel.Image,
	}

	var (
		match product.Color
		found bool
	)
	if sel.ColorID.Valid {
		match, found = p.MatchColor(sel.ColorID.UUID.String())
	}
	if !found {
		match, found = p.MatchLocalized(sel.ColorName.lookupName())
	}
	if found {
		color.ColorID = uuid.NullUUID{UUID: match.ID, Valid: true}
		color.ColorName = match.ColorName
		if color.Image == "" {
			color.Image = match.Image
		}
	}

	if color.Image == "" {
		color.Image = in.CoverImage
	}
	if color.Image == "" {
		color.Image = p.CoverImage
	}
	return color
}

// adjustLineStock moves delta units of the line's color. A line that never
// resolved to a color, or whose color has since been removed, is skipped.
func (s *service) adjustLineStock(ctx context.Context, li LineItem, delta int) error {
	if !li.Color.ColorID.Valid {
		log.Warn().
			Stringer("product_id", li.ProductID).
			Str("color", li.Color.ColorName.EN).
			Msg("service: line item has no matching color, stock left untouched")
		return nil
	}

	err := s.ledger.AdjustStock(ctx, li.ProductID, li.Color.ColorID.UUID, delta)
	if errors.Is(err, product.ErrColorNotFound) {
		log.Warn().
			Stringer("product_id", li.ProductID).
			Stringer("color_id", li.Color.ColorID.UUID).
			Msg("service: color no longer exists, stock left untouched")
		return nil
	}
	return err
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func (s *service) GetOrdersByEmail(ctx context.Context, email string) ([]Order, error) {
	orders, err := s.repo.ListByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch orders by email")
		return nil, fmt.Errorf("service: failed to fetch orders by email: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders, nil
}

func (s *service) ListOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) RemoveLineQuantity(ctx context.Context, orderID uuid.UUID, productKey string, quantity int) (updated *Order, deleted bool, err error) {
	ctx, span := tracer.Start(ctx, "order.RemoveLineQuantity", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.Int("order.quantity", quantity),
	))
	defer func() { endSpan(span, err) }()

	productID, colorKey, err := ParseProductKey(productKey)
	if err != nil {
		return nil, false, err
	}
	if quantity <= 0 {
		return nil, false, ErrInvalidQuantity
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		idx := o.FindLine(productID, colorKey)
		if idx < 0 {
			return ErrProductNotInOrder
		}
		line := o.Products[idx]
		if quantity > line.Quantity {
			return ErrInvalidQuantity
		}

		remaining := make([]LineItem, 0, len(o.Products))
		for i, li := range o.Products {
			if i == idx {
				li.Quantity -= quantity
				if li.Quantity == 0 {
					continue
				}
			}
			remaining = append(remaining, li)
		}

		if err := s.adjustLineStock(ctx, line, quantity); err != nil {
			return err
		}

		if len(remaining) == 0 {
			deleted = true
			return s.repo.Delete(ctx, orderID)
		}

		total, err := s.priceLines(ctx, remaining)
		if err != nil {
			return err
		}
		if err := s.repo.ReplaceItems(ctx, orderID, remaining, total); err != nil {
			return err
		}

		o.Products = remaining
		o.TotalPrice = total
		if quantity == line.Quantity && o.dropProgress(line) {
			if err := s.repo.UpdateFlags(ctx, o); err != nil {
				return err
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		if isClientError(err) {
			return nil, false, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to remove product from order")
		return nil, false, fmt.Errorf("service: failed to remove product from order: %w", err)
	}

	if deleted {
		log.Info().Stringer("order_id", orderID).Msg("service: order deleted because it has no more products")
		s.publish(ctx, events.New(events.OrderDeleted, orderID, nil))
		return nil, true, nil
	}

	log.Info().Stringer("order_id", orderID).Int("removed", quantity).Msg("service: order line updated")
	s.publish(ctx, events.New(events.OrderUpdated, orderID, updated))
	return updated, false, nil
}

// priceLines totals the lines at the catalog's current new price. Lines whose
// product has disappeared count as free.
func (s *service) priceLines(ctx context.Context, lines []LineItem) (float64, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, li := range lines {
		ids = append(ids, li.ProductID)
	}

	catalog, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	total := decimal.Zero
	for _, li := range lines {
		p, ok := catalog[li.ProductID]
		if !ok {
			continue
		}
		total = total.Add(decimal.NewFromFloat(p.NewPrice).Mul(decimal.NewFromInt(int64(li.Quantity))))
	}

	return total.Round(2).InexactFloat64(), nil
}

func (s *service) DeleteOrder(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "order.DeleteOrder", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer func() { endSpan(span, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		for _, li := range o.Products {
			if err := s.adjustLineStock(ctx, li, li.Quantity); err != nil {
				return err
			}
		}

		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to delete order")
		return fmt.Errorf("service: failed to delete order: %w", err)
	}

	log.Info().Stringer("order_id", id).Msg("service: order deleted and stock restored")
	s.publish(ctx, events.New(events.OrderDeleted, id, nil))
	return nil
}

func (s *service) UpdateOrderFlags(ctx context.Context, id uuid.UUID, patch FlagsPatch) (*Order, error) {
	for _, v := range patch.ProductProgress {
		if v < 0 || v > 100 {
			return nil, ErrInvalidProgress
		}
	}

	var o *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if patch.IsPaid != nil {
			current.IsPaid = *patch.IsPaid
		}
		if patch.IsDelivered != nil {
			current.IsDelivered = *patch.IsDelivered
		}
		if patch.ProductProgress != nil {
			current.ProductProgress = patch.ProductProgress
		}

		if err := s.repo.UpdateFlags(ctx, current); err != nil {
			return err
		}
		o = current
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order")
		return nil, fmt.Errorf("service: failed to update order: %w", err)
	}

	log.Info().Stringer("order_id", id).Bool("is_paid", o.IsPaid).Bool("is_delivered", o.IsDelivered).Msg("service: order updated")
	s.publish(ctx, events.New(events.OrderUpdated, id, o))
	return o, nil
}

func (s *service) SendProgressNotification(ctx context.Context, req ProgressRequest) (err error) {
	ctx, span := tracer.Start(ctx, "order.SendProgressNotification", trace.WithAttributes(
		attribute.String("order.id", req.OrderID.String()),
		attribute.Int("order.progress", req.Progress),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(req.Email) == "" {
		return ErrMissingRecipient
	}
	if req.Progress < 0 || req.Progress > 100 {
		return ErrInvalidProgress
	}
	productID, colorKey, err := ParseProductKey(req.ProductKey)
	if err != nil {
		return err
	}

	o, err := s.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return err
	}

	idx := o.FindLine(productID, colorKey)
	if idx < 0 {
		return ErrProductNotInOrder
	}
	line := o.Products[idx]

	// Keys made of a color id are shown with the color's name instead.
	colorLabel := colorKey
	if line.Color.ColorID.Valid && line.Color.ColorID.UUID.String() == colorKey {
		colorLabel = line.Color.ColorName.FR
	}

	msg, err := composeProgressMessage(o, line, colorLabel, req)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to send progress notification")
		return fmt.Errorf("service: failed to send progress notification: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Int("progress", req.Progress).Msg("service: progress notification sent")
	return nil
}

// publish is best effort: the order change is already committed.
func (s *service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event", e.Type).Stringer("order_id", e.OrderID).Msg("service: failed to publish order event")
	}
}

func isClientError(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotInOrder) ||
		errors.Is(err, ErrInvalidQuantity)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
