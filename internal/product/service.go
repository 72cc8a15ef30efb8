package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/boutique-api/internal/db"
)

// Translator turns source-locale (English) text into the target locale.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type Service interface {
	CreateProduct(ctx context.Context, input Input) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input Input) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdatePriceByPercentage(ctx context.Context, id uuid.UUID, percentage float64) (float64, error)
}

type service struct {
	repo       Repository
	tx         db.Transactor
	translator Translator
}

func NewService(repo Repository, tx db.Transactor, translator Translator) Service {
	return &service{
		repo:       repo,
		tx:         tx,
		translator: translator,
	}
}

func (s *service) CreateProduct(ctx context.Context, input Input) (*Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate product ID: %w", err)
	}

	p := &Product{ID: id}
	s.fill(ctx, p, input)
	if err := assignColorIDs(p, nil); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Int("colors", len(p.Colors)).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input Input) (*Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	// Translation happens before the transaction opens.
	p := &Product{ID: id}
	s.fill(ctx, p, input)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		p.CreatedAt = current.CreatedAt
		if err := assignColorIDs(p, current); err != nil {
			return err
		}

		return s.repo.Update(ctx, p)
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Msg("service: product updated")
	return p, nil
}

// fill derives every stored attribute of p from the admin input. Colors keep
// the id the admin sent until assignColorIDs runs.
func (s *service) fill(ctx context.Context, p *Product, input Input) {
	p.Title = strings.TrimSpace(input.Title)
	p.Description = strings.TrimSpace(input.Description)
	p.Category = strings.TrimSpace(input.Category)
	p.OldPrice = input.OldPrice
	p.NewPrice = input.NewPrice
	p.FinalPrice = DefaultFinalPrice(input.NewPrice, input.OldPrice)
	p.Trending = input.Trending

	p.Translations = Translations{
		EN: Translation{Title: p.Title, Description: p.Description},
		FR: Translation{
			Title:       s.translateOrKeep(ctx, p.Title, LocaleFR),
			Description: s.translateOrKeep(ctx, p.Description, LocaleFR),
		},
		AR: Translation{
			Title:       s.translateOrKeep(ctx, p.Title, LocaleAR),
			Description: s.translateOrKeep(ctx, p.Description, LocaleAR),
		},
	}

	p.Colors = make([]Color, 0, len(input.Colors))
	for _, in := range input.Colors {
		name := strings.TrimSpace(in.ColorName)
		p.Colors = append(p.Colors, Color{
			ID: in.ID,
			ColorName: LocalizedName{
				EN: name,
				FR: s.translateOrKeep(ctx, name, LocaleFR),
				AR: s.translateOrKeep(ctx, name, LocaleAR),
			},
			Image: in.Image,
			Stock: in.Stock,
		})
	}

	p.CoverImage = p.Colors[0].Image
	p.RecalculateStock()
}

// assignColorIDs keeps the ids of colors that belong to current and gives
// every other color a fresh one.
func assignColorIDs(p *Product, current *Product) error {
	known := make(map[uuid.UUID]bool)
	if current != nil {
		for _, c := range current.Colors {
			known[c.ID] = true
		}
	}

	for i := range p.Colors {
		if p.Colors[i].ID != uuid.Nil && known[p.Colors[i].ID] {
			continue
		}
		newID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("service: failed to generate color ID: %w", err)
		}
		p.Colors[i].ID = newID
	}
	return nil
}

// translateOrKeep never fails: a translation error keeps the source text.
func (s *service) translateOrKeep(ctx context.Context, text, target string) string {
	if text == "" || s.translator == nil {
		return text
	}

	translated, err := s.translator.Translate(ctx, text, target)
	if err != nil || translated == "" {
		log.Warn().Err(err).Str("target", target).Msg("service: translation failed, keeping source text")
		return text
	}

	return translated
}

func validateInput(input Input) error {
	if len(input.Colors) == 0 {
		return ErrNoColors
	}
	if input.OldPrice < 0 || input.NewPrice < 0 {
		return ErrInvalidPrice
	}
	for _, c := range input.Colors {
		if c.Stock < 0 {
			return ErrInvalidStock
		}
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}
	return p, nil
}

func (s *service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var deleted *Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		deleted = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrProductInUse) {
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return nil, fmt.Errorf("service: failed to delete product: %w", err)
	}

	log.Info().Stringer("product_id", id).Msg("service: product deleted")
	return deleted, nil
}

// UpdatePriceByPercentage discounts the old price by percentage and stores the
// result as the final price.
func (s *service) UpdatePriceByPercentage(ctx context.Context, id uuid.UUID, percentage float64) (float64, error) {
	if percentage < 0 || percentage > 100 {
		return 0, ErrInvalidPercentage
	}

	var finalPrice float64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		oldPrice := decimal.NewFromFloat(p.OldPrice)
		discount := oldPrice.Mul(decimal.NewFromFloat(percentage)).Div(decimal.NewFromInt(100))
		finalPrice = oldPrice.Sub(discount).Round(2).InexactFloat64()

		return s.repo.UpdateFinalPrice(ctx, id, finalPrice)
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return 0, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to update product price")
		return 0, fmt.Errorf("service: failed to update product price: %w", err)
	}

	log.Info().Stringer("product_id", id).Float64("final_price", finalPrice).Msg("service: product price updated")
	return finalPrice, nil
}
