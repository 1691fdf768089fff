package grouporder

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxNoteLength bounds the free text note on an item
const MaxNoteLength = 500

// Item is a line in the shared cart, owned by exactly one member.
// ListPrice is the catalog price captured when the item is added; later
// catalog changes never reach it. UnitPrice is ListPrice at the group's
// current discount percent and follows every tier change.
type Item struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	MemberID   uuid.UUID
	ProductID  uuid.UUID
	VariantID  *uuid.UUID
	Quantity   int
	ListPrice  decimal.Decimal
	UnitPrice  decimal.Decimal // post-discount unit price
	UnitWeight int             // grams, used for shipping quotes
	Note       string
	Position   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewItemInput carries the values needed to add an item
type NewItemInput struct {
	ProductID  uuid.UUID
	VariantID  *uuid.UUID
	Quantity   int
	ListPrice  decimal.Decimal
	UnitWeight int
	Note       string
}

// ItemPatch describes an owner or host edit. Nil fields are left unchanged.
type ItemPatch struct {
	Quantity *int
	Note     *string
}

// IsEmpty reports whether the patch changes nothing
func (p ItemPatch) IsEmpty() bool {
	return p.Quantity == nil && p.Note == nil
}

func validateItemInput(in NewItemInput) error {
	if in.ProductID == uuid.Nil {
		return ErrInvalidProduct
	}
	if in.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if in.ListPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Note)) > MaxNoteLength {
		return ErrInvalidNote
	}
	return nil
}

// LineTotal returns UnitPrice * Quantity
func (i *Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// reprice sets UnitPrice from ListPrice at percent
func (i *Item) reprice(percent int32) {
	i.UnitPrice = ApplyDiscount(i.ListPrice, percent)
}

// Weight returns the total weight of the line in grams
func (i *Item) Weight() int {
	return i.UnitWeight * i.Quantity
}

func (i *Item) apply(p ItemPatch, now time.Time) error {
	if p.Quantity != nil {
		if *p.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		i.Quantity = *p.Quantity
	}
	if p.Note != nil {
		note := strings.TrimSpace(*p.Note)
		if utf8.RuneCountInString(note) > MaxNoteLength {
			return ErrInvalidNote
		}
		i.Note = note
	}
	i.UpdatedAt = now
	return nil
}
