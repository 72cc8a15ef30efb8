package order

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/boutique-api/internal/product"
)

// Names used when a customer orders a product without picking a color.
const (
	DefaultColorName   = "Original"
	DefaultColorNameAR = "أصلي"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zipcode string `json:"zipcode"`
}

// LineColor is the color variant a line item was ordered in. ColorID points at
// the inventory slot; the names and image are kept for display.
type LineColor struct {
	ColorID   uuid.NullUUID         `json:"colorId"`
	ColorName product.LocalizedName `json:"colorName"`
	Image     string                `json:"image"`
}

type LineItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	Color     LineColor `json:"color"`
	// Filled on reads from the live catalog.
	Title      string `json:"title,omitempty"`
	CoverImage string `json:"coverImage,omitempty"`
}

// Matches reports whether the line was ordered for productID in the color
// identified by colorKey (color id or a name in any locale).
func (li LineItem) Matches(productID uuid.UUID, colorKey string) bool {
	if li.ProductID != productID {
		return false
	}
	colorKey = strings.TrimSpace(colorKey)
	if li.Color.ColorID.Valid && li.Color.ColorID.UUID.String() == colorKey {
		return true
	}
	return li.Color.ColorName.Matches(colorKey)
}

type Order struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	Address         Address        `json:"address"`
	Products        []LineItem     `json:"products"`
	TotalPrice      float64        `json:"totalPrice"`
	IsPaid          bool           `json:"isPaid"`
	IsDelivered     bool           `json:"isDelivered"`
	ProductProgress map[string]int `json:"productProgress"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// FindLine returns the index of the first line matching the product key, or -1.
func (o *Order) FindLine(productID uuid.UUID, colorKey string) int {
	for i, li := range o.Products {
		if li.Matches(productID, colorKey) {
			return i
		}
	}
	return -1
}

// dropProgress removes the progress entries that refer to removed and to no
// line still in the order. It reports whether any entry was removed.
func (o *Order) dropProgress(removed LineItem) bool {
	dropped := false
	for key := range o.ProductProgress {
		productID, colorKey, err := ParseProductKey(key)
		if err != nil || !removed.Matches(productID, colorKey) || o.FindLine(productID, colorKey) >= 0 {
			continue
		}
		delete(o.ProductProgress, key)
		dropped = true
	}
	return dropped
}

// ParseProductKey splits a "productId|colorKey" composite key.
func ParseProductKey(key string) (uuid.UUID, string, error) {
	idPart, colorKey, ok := strings.Cut(key, "|")
	if !ok || strings.TrimSpace(colorKey) == "" {
		return uuid.Nil, "", ErrInvalidProductKey
	}
	id, err := uuid.FromString(strings.TrimSpace(idPart))
	if err != nil {
		return uuid.Nil, "", ErrInvalidProductKey
	}
	return id, strings.TrimSpace(colorKey), nil
}

// ColorName accepts either a plain string or a {en, fr, ar} object on the wire.
type ColorName struct {
	Plain     string
	Localized *product.LocalizedName
}

func (c *ColorName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ColorName{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ColorName{Plain: s}
		return nil
	}
	var n product.LocalizedName
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = ColorName{Localized: &n}
	return nil
}

func (c ColorName) MarshalJSON() ([]byte, error) {
	if c.Localized != nil {
		return json.Marshal(c.Localized)
	}
	return json.Marshal(c.Plain)
}

// Normalize returns the canonical multilingual shape of the name. Missing
// translations fall back to the default color names.
func (c ColorName) Normalize() product.LocalizedName {
	if c.Localized != nil {
		return *c.Localized
	}
	s := strings.TrimSpace(c.Plain)
	if s == "" {
		return product.LocalizedName{EN: DefaultColorName, FR: DefaultColorName, AR: DefaultColorNameAR}
	}
	return product.LocalizedName{EN: s, FR: s, AR: DefaultColorNameAR}
}

// lookupName is the name used to find the color in the catalog. Unlike
// Normalize it never carries the Arabic placeholder, which would match any
// product's default color.
func (c ColorName) lookupName() product.LocalizedName {
	if c.Localized != nil {
		return *c.Localized
	}
	s := strings.TrimSpace(c.Plain)
	if s == "" {
		s = DefaultColorName
	}
	return product.LocalizedName{EN: s, FR: s}
}

type ColorSelection struct {
	ColorID   uuid.NullUUID `json:"colorId"`
	ColorName ColorName     `json:"colorName"`
	Image     string        `json:"image"`
}

type LineInput struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Color     *ColorSelection `json:"color"`
	// Cover image the storefront showed, used when the color has none.
	CoverImage string `json:"coverImage"`
}

type CreateInput struct {
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Address    Address     `json:"address"`
	Products   []LineInput `json:"products"`
	TotalPrice float64     `json:"totalPrice"`
}

// FlagsPatch carries a partial update; nil fields are left untouched and a
// non-nil ProductProgress replaces the stored map.
type FlagsPatch struct {
	IsPaid          *bool
	IsDelivered     *bool
	ProductProgress map[string]int
}

type ProgressRequest struct {
	OrderID      uuid.UUID
	Email        string
	ProductKey   string
	Progress     int
	ArticleIndex int
}
