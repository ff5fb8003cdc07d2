package checkout

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// Directory is the read-only lookup the context is resolved from. Implementations return
// ErrNotFound (possibly wrapped) for unknown ids.
type Directory interface {
	SalesChannel(ctx context.Context, id string) (SalesChannel, error)
	Currency(ctx context.Context, id string) (Currency, error)
	CustomerGroup(ctx context.Context, id string) (CustomerGroup, error)
	Taxes(ctx context.Context) ([]Tax, error)
	Country(ctx context.Context, id string) (Country, error)
	CountryState(ctx context.Context, id string) (CountryState, error)
	Address(ctx context.Context, id string) (Address, error)
	Language(ctx context.Context, id string) (Language, error)
	PaymentMethod(ctx context.Context, id string) (PaymentMethod, error)
	ShippingMethod(ctx context.Context, id string) (ShippingMethod, error)
	Customer(ctx context.Context, id string) (Customer, error)
}

// Snapshot is the serialisable content of a directory.
type Snapshot struct {
	SalesChannels   []SalesChannel   `yaml:"salesChannels"`
	Currencies      []Currency       `yaml:"currencies"`
	CustomerGroups  []CustomerGroup  `yaml:"customerGroups"`
	Taxes           []Tax            `yaml:"taxes"`
	Countries       []Country        `yaml:"countries"`
	CountryStates   []CountryState   `yaml:"countryStates"`
	Addresses       []Address        `yaml:"addresses"`
	Languages       []Language       `yaml:"languages"`
	PaymentMethods  []PaymentMethod  `yaml:"paymentMethods"`
	ShippingMethods []ShippingMethod `yaml:"shippingMethods"`
	Customers       []Customer       `yaml:"customers"`
}

// MemoryDirectory serves a snapshot from memory. It is safe for concurrent reads.
type MemoryDirectory struct {
	salesChannels   map[string]SalesChannel
	currencies      map[string]Currency
	customerGroups  map[string]CustomerGroup
	taxes           []Tax
	countries       map[string]Country
	countryStates   map[string]CountryState
	addresses       map[string]Address
	languages       map[string]Language
	paymentMethods  map[string]PaymentMethod
	shippingMethods map[string]ShippingMethod
	customers       map[string]Customer
}

// NewMemoryDirectory indexes s by id.
func NewMemoryDirectory(s Snapshot) *MemoryDirectory {
	return &MemoryDirectory{
		salesChannels:   index(s.SalesChannels, func(v SalesChannel) string { return v.ID }),
		currencies:      index(s.Currencies, func(v Currency) string { return v.ID }),
		customerGroups:  index(s.CustomerGroups, func(v CustomerGroup) string { return v.ID }),
		taxes:           cloneTaxes(s.Taxes),
		countries:       index(s.Countries, func(v Country) string { return v.ID }),
		countryStates:   index(s.CountryStates, func(v CountryState) string { return v.ID }),
		addresses:       index(s.Addresses, func(v Address) string { return v.ID }),
		languages:       index(s.Languages, func(v Language) string { return v.ID }),
		paymentMethods:  index(s.PaymentMethods, func(v PaymentMethod) string { return v.ID }),
		shippingMethods: index(s.ShippingMethods, func(v ShippingMethod) string { return v.ID }),
		customers:       index(s.Customers, func(v Customer) string { return v.ID }),
	}
}

// LoadDirectory reads a YAML snapshot from path and indexes it.
func LoadDirectory(path string) (*MemoryDirectory, error) {
	s, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryDirectory(s), nil
}

// ReadSnapshot decodes a YAML snapshot. Currencies without explicit decimals get the
// ISO 4217 precision of their code.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read directory: %w", err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode directory: %w", err)
	}
	for i, c := range s.Currencies {
		filled, err := c.withPrecision()
		if err != nil {
			return Snapshot{}, err
		}
		s.Currencies[i] = filled
	}
	return s, nil
}

// WithTaxCalculation returns a copy of s where sales channels without a calculation method use m.
func (s Snapshot) WithTaxCalculation(m tax.Method) Snapshot {
	channels := make([]SalesChannel, len(s.SalesChannels))
	copy(channels, s.SalesChannels)
	for i := range channels {
		if channels[i].TaxCalculation == "" {
			channels[i].TaxCalculation = m
		}
	}
	s.SalesChannels = channels
	return s
}

// SalesChannel implements Directory.
func (m *MemoryDirectory) SalesChannel(_ context.Context, id string) (SalesChannel, error) {
	return lookup(m.salesChannels, "sales channel", id)
}

// Currency implements Directory.
func (m *MemoryDirectory) Currency(_ context.Context, id string) (Currency, error) {
	return lookup(m.currencies, "currency", id)
}

// CustomerGroup implements Directory.
func (m *MemoryDirectory) CustomerGroup(_ context.Context, id string) (CustomerGroup, error) {
	return lookup(m.customerGroups, "customer group", id)
}

// Taxes implements Directory.
func (m *MemoryDirectory) Taxes(context.Context) ([]Tax, error) {
	return cloneTaxes(m.taxes), nil
}

// Country implements Directory.
func (m *MemoryDirectory) Country(_ context.Context, id string) (Country, error) {
	return lookup(m.countries, "country", id)
}

// CountryState implements Directory.
func (m *MemoryDirectory) CountryState(_ context.Context, id string) (CountryState, error) {
	return lookup(m.countryStates, "country state", id)
}

// Address implements Directory.
func (m *MemoryDirectory) Address(_ context.Context, id string) (Address, error) {
	return lookup(m.addresses, "address", id)
}

// Language implements Directory.
func (m *MemoryDirectory) Language(_ context.Context, id string) (Language, error) {
	return lookup(m.languages, "language", id)
}

// PaymentMethod implements Directory.
func (m *MemoryDirectory) PaymentMethod(_ context.Context, id string) (PaymentMethod, error) {
	return lookup(m.paymentMethods, "payment method", id)
}

// ShippingMethod implements Directory.
func (m *MemoryDirectory) ShippingMethod(_ context.Context, id string) (ShippingMethod, error) {
	method, err := lookup(m.shippingMethods, "shipping method", id)
	if err != nil {
		return ShippingMethod{}, err
	}
	prices := make([]ShippingPrice, len(method.Prices))
	copy(prices, method.Prices)
	method.Prices = prices
	return method, nil
}

// Customer implements Directory.
func (m *MemoryDirectory) Customer(_ context.Context, id string) (Customer, error) {
	return lookup(m.customers, "customer", id)
}

func index[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[key(item)] = item
	}
	return out
}

func lookup[T any](items map[string]T, kind, id string) (T, error) {
	v, ok := items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
	}
	return v, nil
}
