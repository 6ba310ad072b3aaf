package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

// SubjectKind classifies what a deal is about. Any string outside the four
// known kinds is carried as-is and treated as "other".
type SubjectKind string

const (
	SubjectSpecificGoods        SubjectKind = "specific_goods"
	SubjectGenericGoods         SubjectKind = "generic_goods"
	SubjectService              SubjectKind = "service"
	SubjectIntellectualProperty SubjectKind = "intellectual_property"
)

func (k SubjectKind) IsGoods() bool {
	return k == SubjectSpecificGoods || k == SubjectGenericGoods
}

// SubjectMatter identifies the object of the deal.
type SubjectMatter struct {
	ID          id.SubjectMatterID
	Kind        SubjectKind
	Name        string
	Description string
}

// Identity is the name_kind string that feeds the essential hash.
func (s SubjectMatter) Identity() string {
	return s.Name + "_" + string(s.Kind)
}

// Equal holds when both carry the same non-nil id, or the same name and kind.
func (s SubjectMatter) Equal(other SubjectMatter) bool {
	if !s.ID.IsNil() && s.ID == other.ID {
		return true
	}
	return s.Name == other.Name && s.Kind == other.Kind
}

type QuantityUnit string

const (
	UnitPiece       QuantityUnit = "piece"
	UnitKilogram    QuantityUnit = "kilogram"
	UnitMeter       QuantityUnit = "meter"
	UnitSquareMeter QuantityUnit = "square_meter"
	UnitCubicMeter  QuantityUnit = "cubic_meter"
)

type Quantity struct {
	Amount decimal.Decimal
	Unit   QuantityUnit
}

type Quality struct {
	Standard      string
	Requirements  []string
	WarrantyUntil *time.Time
}

// Price is the consideration: an amount in a currency.
type Price struct {
	Amount          decimal.Decimal
	Currency        string
	PaymentMethod   string
	PaymentDeadline *time.Time
}

type Location struct {
	Address      string
	Requirements string
}

// TimeLimit is the performance window. A non-empty Installments list means
// performance is split across those dates.
type TimeLimit struct {
	Start        *time.Time
	End          time.Time
	Installments []time.Time
}

func (t TimeLimit) IsInstallment() bool { return len(t.Installments) > 0 }

// Content is the economic substance of a declaration. Build it with
// NewContent; once handed to a declaration it is copied and never shared.
type Content struct {
	subject     SubjectMatter
	quantity    *Quantity
	quality     *Quality
	price       *Price
	timeLimit   *TimeLimit
	location    *Location
	obligations []string
	terms       map[string]string
}

// ContentOption sets an optional term.
type ContentOption func(*Content)

func WithQuantity(q Quantity) ContentOption {
	return func(c *Content) { c.quantity = &q }
}

func WithQuality(q Quality) ContentOption {
	return func(c *Content) { c.quality = &q }
}

func WithPrice(p Price) ContentOption {
	return func(c *Content) { c.price = &p }
}

func WithTimeLimit(t TimeLimit) ContentOption {
	return func(c *Content) { c.timeLimit = &t }
}

func WithLocation(l Location) ContentOption {
	return func(c *Content) { c.location = &l }
}

// NewContent validates and assembles content. Malformed terms fail with
// intent_content_malformed.
func NewContent(subject SubjectMatter, opts ...ContentOption) (Content, error) {
	c := Content{
		subject: subject,
		terms:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return Content{}, err.In("IntentContent", "New")
	}
	return c.Clone(), nil
}

func (c Content) validate() *dErrors.Error {
	if p := c.price; p != nil {
		if p.Amount.IsNegative() {
			return dErrors.Newf(dErrors.CodeContentMalformed, "price amount cannot be negative, got %s", p.Amount)
		}
		if strings.TrimSpace(p.Currency) == "" {
			return dErrors.New(dErrors.CodeContentMalformed, "price currency is required")
		}
	}
	if q := c.quantity; q != nil {
		if !q.Amount.IsPositive() {
			return dErrors.Newf(dErrors.CodeContentMalformed, "quantity must be positive, got %s", q.Amount)
		}
		if strings.TrimSpace(string(q.Unit)) == "" {
			return dErrors.New(dErrors.CodeContentMalformed, "quantity unit is required")
		}
	}
	if t := c.timeLimit; t != nil {
		if t.End.IsZero() {
			return dErrors.New(dErrors.CodeContentMalformed, "time limit end is required")
		}
		if t.Start != nil && t.End.Before(*t.Start) {
			return dErrors.New(dErrors.CodeContentMalformed, "time limit ends before it starts")
		}
	}
	return nil
}

func (c Content) Subject() SubjectMatter { return c.subject }

func (c Content) Quantity() (Quantity, bool) {
	if c.quantity == nil {
		return Quantity{}, false
	}
	return *c.quantity, true
}

func (c Content) Quality() (Quality, bool) {
	if c.quality == nil {
		return Quality{}, false
	}
	return cloneQuality(*c.quality), true
}

func (c Content) Price() (Price, bool) {
	if c.price == nil {
		return Price{}, false
	}
	return clonePrice(*c.price), true
}

func (c Content) TimeLimit() (TimeLimit, bool) {
	if c.timeLimit == nil {
		return TimeLimit{}, false
	}
	return cloneTimeLimit(*c.timeLimit), true
}

func (c Content) Location() (Location, bool) {
	if c.location == nil {
		return Location{}, false
	}
	return *c.location, true
}

func (c Content) Obligations() []string { return slices.Clone(c.obligations) }

func (c Content) Terms() map[string]string { return maps.Clone(c.terms) }

func (c Content) Term(name string) (string, bool) {
	v, ok := c.terms[name]
	return v, ok
}

// AddObligation appends an ancillary obligation.
func (c *Content) AddObligation(obligation string) {
	c.obligations = append(c.obligations, obligation)
}

// AddTerm sets a named extra term, replacing an earlier value.
func (c *Content) AddTerm(name, value string) {
	if c.terms == nil {
		c.terms = make(map[string]string)
	}
	c.terms[name] = value
}

// IsEssential reports whether the content carries the minimum terms a
// contract of its kind needs.
func (c Content) IsEssential() bool {
	if c.subject.Name == "" {
		return false
	}
	switch {
	case c.subject.Kind.IsGoods():
		return c.price != nil
	case c.subject.Kind == SubjectService:
		return c.timeLimit != nil && c.price != nil
	case c.subject.Kind == SubjectIntellectualProperty:
		return c.price != nil && len(c.terms) > 0
	default:
		return true
	}
}

// MatchesEssentialTerms holds when the subjects are equal and, where both
// name a price, the amounts agree. Everything else may differ.
func (c Content) MatchesEssentialTerms(other Content) bool {
	if !c.subject.Equal(other.subject) {
		return false
	}
	if c.price != nil && other.price != nil && !c.price.Amount.Equal(other.price.Amount) {
		return false
	}
	return true
}

// EssentialHash digests the essential terms with SHA-256.
func (c Content) EssentialHash() string {
	return c.EssentialHashWith(DigestSHA256)
}

// EssentialHashWith digests subject identity, then price amount_currency
// and quantity amount_unit when present, joined by "_".
func (c Content) EssentialHashWith(alg DigestAlgorithm) string {
	parts := []string{c.subject.Identity()}
	if c.price != nil {
		parts = append(parts, c.price.Amount.String()+"_"+c.price.Currency)
	}
	if c.quantity != nil {
		parts = append(parts, c.quantity.Amount.String()+"_"+string(c.quantity.Unit))
	}
	return alg.Sum(strings.Join(parts, "_"))
}

// Clone returns a deep copy.
func (c Content) Clone() Content {
	out := Content{
		subject:     c.subject,
		obligations: slices.Clone(c.obligations),
		terms:       maps.Clone(c.terms),
	}
	if out.terms == nil {
		out.terms = make(map[string]string)
	}
	if c.quantity != nil {
		q := *c.quantity
		out.quantity = &q
	}
	if c.quality != nil {
		q := cloneQuality(*c.quality)
		out.quality = &q
	}
	if c.price != nil {
		p := clonePrice(*c.price)
		out.price = &p
	}
	if c.timeLimit != nil {
		t := cloneTimeLimit(*c.timeLimit)
		out.timeLimit = &t
	}
	if c.location != nil {
		l := *c.location
		out.location = &l
	}
	return out
}

func cloneQuality(q Quality) Quality {
	q.Requirements = slices.Clone(q.Requirements)
	q.WarrantyUntil = cloneTime(q.WarrantyUntil)
	return q
}

func clonePrice(p Price) Price {
	p.PaymentDeadline = cloneTime(p.PaymentDeadline)
	return p
}

func cloneTimeLimit(t TimeLimit) TimeLimit {
	t.Start = cloneTime(t.Start)
	t.Installments = slices.Clone(t.Installments)
	return t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
