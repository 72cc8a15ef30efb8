package product

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// Locales every catalog text is kept in. English is the source locale.
const (
	LocaleEN = "en"
	LocaleFR = "fr"
	LocaleAR = "ar"
)

// LocalizedName is a display name in every supported locale.
type LocalizedName struct {
	EN string `json:"en"`
	FR string `json:"fr"`
	AR string `json:"ar"`
}

// Matches reports whether key equals one of the localized names.
func (n LocalizedName) Matches(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	return n.EN == key || n.FR == key || n.AR == key
}

type Translation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Translations struct {
	EN Translation `json:"en"`
	FR Translation `json:"fr"`
	AR Translation `json:"ar"`
}

// Color is one purchasable variant of a product. Stock is tracked per color
// and ID is the stable identity used by the inventory ledger.
type Color struct {
	ID        uuid.UUID     `json:"id"`
	ColorName LocalizedName `json:"colorName"`
	Image     string        `json:"image"`
	Stock     int           `json:"stock"`
}

type Product struct {
	ID            uuid.UUID    `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Translations  Translations `json:"translations"`
	Category      string       `json:"category"`
	CoverImage    string       `json:"coverImage"`
	Colors        []Color      `json:"colors"`
	OldPrice      float64      `json:"oldPrice"`
	NewPrice      float64      `json:"newPrice"`
	FinalPrice    float64      `json:"finalPrice"`
	StockQuantity int          `json:"stockQuantity"`
	Trending      bool         `json:"trending"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// In returns the name in locale, or "" for an unknown locale.
func (n LocalizedName) In(locale string) string {
	switch locale {
	case LocaleEN:
		return n.EN
	case LocaleFR:
		return n.FR
	case LocaleAR:
		return n.AR
	}
	return ""
}

// MatchColor finds the color identified by key, which is either the color id
// or its name in any locale.
func (p *Product) MatchColor(key string) (Color, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Color{}, false
	}
	if id, err := uuid.FromString(key); err == nil {
		for _, c := range p.Colors {
			if c.ID == id {
				return c, true
			}
		}
	}
	return p.MatchLocalized(LocalizedName{EN: key, FR: key, AR: key})
}

// MatchLocalized finds the color whose name equals name in the same locale.
// Every color's English name is tried before any French one, and French
// before Arabic. Empty names never match.
func (p *Product) MatchLocalized(name LocalizedName) (Color, bool) {
	for _, locale := range []string{LocaleEN, LocaleFR, LocaleAR} {
		want := strings.TrimSpace(name.In(locale))
		if want == "" {
			continue
		}
		for _, c := range p.Colors {
			if strings.TrimSpace(c.ColorName.In(locale)) == want {
				return c, true
			}
		}
	}
	return Color{}, false
}

// RecalculateStock sets StockQuantity to the sum of every color's stock.
func (p *Product) RecalculateStock() {
	total := 0
	for _, c := range p.Colors {
		total += c.Stock
	}
	p.StockQuantity = total
}

// DefaultFinalPrice is the new price when one is set, the old price otherwise.
func DefaultFinalPrice(newPrice, oldPrice float64) float64 {
	if newPrice > 0 {
		return newPrice
	}
	return oldPrice
}

type ListFilter struct {
	Category string
	Trending *bool
}

type ColorInput struct {
	ID        uuid.UUID
	ColorName string
	Image     string
	Stock     int
}

// Input is the admin-facing shape of a product: texts in the source locale only.
type Input struct {
	Title       string
	Description string
	Category    string
	OldPrice    float64
	NewPrice    float64
	Trending    bool
	Colors      []ColorInput
}
