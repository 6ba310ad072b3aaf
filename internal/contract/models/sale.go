package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	entity "civitas/internal/entity/models"
	intent "civitas/internal/intent/models"
	dErrors "civitas/pkg/domain-errors"
)

// SaleItem is the goods a sale transfers.
type SaleItem struct {
	Name                string
	Description         string
	Quantity            decimal.Decimal
	Unit                intent.QuantityUnit
	QualityRequirements []string
}

// SaleContract transfers ownership of goods against a price.
type SaleContract struct {
	*Contract
	item             SaleItem
	price            intent.Price
	deliveryTime     *time.Time
	deliveryLocation string
}

var _ Typical = (*SaleContract)(nil)

type SaleOption func(*SaleContract)

func WithDeliveryTime(t time.Time) SaleOption {
	return func(s *SaleContract) { s.deliveryTime = &t }
}

func WithDeliveryLocation(address string) SaleOption {
	return func(s *SaleContract) { s.deliveryLocation = strings.TrimSpace(address) }
}

func NewSale(base *Contract, item SaleItem, price intent.Price, opts ...SaleOption) *SaleContract {
	item.QualityRequirements = slices.Clone(item.QualityRequirements)
	s := &SaleContract{Contract: base, item: item, price: price}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaleFromContent reads the item, price, delivery date and place from the
// offer's content.
func SaleFromContent(parties []entity.Entity, declarations []*intent.Declaration, content intent.Content, opts ...Option) *SaleContract {
	subject := content.Subject()
	item := SaleItem{Name: subject.Name, Description: subject.Description}
	if q, ok := content.Quantity(); ok {
		item.Quantity = q.Amount
		item.Unit = q.Unit
	}
	if q, ok := content.Quality(); ok {
		item.QualityRequirements = q.Requirements
	}
	price, _ := content.Price()

	var saleOpts []SaleOption
	if tl, ok := content.TimeLimit(); ok {
		opts = append(opts, WithTimeLimit(tl.End))
		saleOpts = append(saleOpts, WithDeliveryTime(tl.End))
	}
	if loc, ok := content.Location(); ok {
		saleOpts = append(saleOpts, WithDeliveryLocation(loc.Address))
	}
	return NewSale(New(parties, declarations, opts...), item, price, saleOpts...)
}

func (s *SaleContract) Item() SaleItem {
	item := s.item
	item.QualityRequirements = slices.Clone(item.QualityRequirements)
	return item
}

func (s *SaleContract) Price() intent.Price { return s.price }

func (s *SaleContract) DeliveryTime() (time.Time, bool) {
	if s.deliveryTime == nil {
		return time.Time{}, false
	}
	return *s.deliveryTime, true
}

func (s *SaleContract) DeliveryLocation() string { return s.deliveryLocation }

// ValidateLegalRequirements checks what a sale needs beyond any contract:
// a named item, a positive quantity and price, and exactly a seller and a buyer.
func (s *SaleContract) ValidateLegalRequirements() error {
	if strings.TrimSpace(s.item.Name) == "" {
		return dErrors.New(dErrors.CodeElementMissing, "sale item name is required").
			In("SaleContract", "ValidateLegalRequirements")
	}
	if !s.item.Quantity.IsPositive() {
		return dErrors.New(dErrors.CodeContentIllegal, "sale quantity must be greater than zero").
			In("SaleContract", "ValidateLegalRequirements")
	}
	if !s.price.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeContentIllegal, "sale price must be greater than zero").
			In("SaleContract", "ValidateLegalRequirements")
	}
	if len(s.parties) != 2 {
		return dErrors.Newf(dErrors.CodePartyUnqualified, "a sale needs exactly two parties, got %d", len(s.parties)).
			In("SaleContract", "ValidateLegalRequirements")
	}
	return nil
}

func (s *SaleContract) Validate() error {
	if err := s.Contract.Validate(); err != nil {
		return err
	}
	return s.ValidateLegalRequirements()
}

// MakeEffective runs the sale checks before the base transition.
func (s *SaleContract) MakeEffective(hooks ...CommitHook) error {
	return s.makeEffective(s.Validate, hooks)
}
