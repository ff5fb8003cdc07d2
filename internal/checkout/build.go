package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Config lists the ids a checkout context is built from. Empty fields fall back to Defaults.
type Config struct {
	SalesChannelID          string `json:"salesChannelId,omitempty"`
	CurrencyID              string `json:"currencyId,omitempty"`
	CustomerGroupID         string `json:"customerGroupId,omitempty"`
	FallbackCustomerGroupID string `json:"fallbackCustomerGroupId,omitempty"`
	CountryID               string `json:"countryId,omitempty"`
	CountryStateID          string `json:"countryStateId,omitempty"`
	LanguageID              string `json:"languageId,omitempty"`
	FallbackLanguageID      string `json:"fallbackLanguageId,omitempty"`
	PaymentMethodID         string `json:"paymentMethodId,omitempty"`
	ShippingMethodID        string `json:"shippingMethodId,omitempty"`
	AddressID               string `json:"addressId,omitempty"`
	CustomerID              string `json:"customerId,omitempty"`
}

// Defaults are the documented system defaults applied to omitted Config fields.
//
//   - SalesChannelID, CurrencyID, LanguageID, CountryID, PaymentMethodID and ShippingMethodID
//     replace the matching omitted field.
//   - CustomerGroupID is the fallback customer group. It is also the current group when
//     neither a group nor a customer is given.
//   - FallbackLanguageID defaults to the resolved current language.
//   - Country and state come from the address when an address is given and no country is.
type Defaults struct {
	SalesChannelID   string
	CurrencyID       string
	CustomerGroupID  string
	LanguageID       string
	CountryID        string
	PaymentMethodID  string
	ShippingMethodID string
}

// Build resolves cfg against dir and returns an immutable Context. Missing required fields
// yield ErrConfigurationMissing; ids the directory does not know yield ErrNotFound.
func Build(ctx context.Context, dir Directory, cfg Config, defaults Defaults) (*Context, error) {
	if dir == nil {
		return nil, errors.New("checkout directory not configured")
	}
	var parts Parts
	parts.Token = uuid.NewString()

	id, err := required("salesChannelId", cfg.SalesChannelID, defaults.SalesChannelID)
	if err != nil {
		return nil, err
	}
	if parts.SalesChannel, err = dir.SalesChannel(ctx, id); err != nil {
		return nil, err
	}

	if id, err = required("currencyId", cfg.CurrencyID, defaults.CurrencyID); err != nil {
		return nil, err
	}
	if parts.Currency, err = dir.Currency(ctx, id); err != nil {
		return nil, err
	}

	if cfg.CustomerID != "" {
		customer, err := dir.Customer(ctx, cfg.CustomerID)
		if err != nil {
			return nil, err
		}
		parts.Customer = &customer
	}

	if id, err = required("fallbackCustomerGroupId", cfg.FallbackCustomerGroupID, defaults.CustomerGroupID); err != nil {
		return nil, err
	}
	if parts.FallbackCustomerGroup, err = dir.CustomerGroup(ctx, id); err != nil {
		return nil, err
	}
	groupID := cfg.CustomerGroupID
	if groupID == "" && parts.Customer != nil {
		groupID = parts.Customer.GroupID
	}
	if groupID == "" {
		parts.CustomerGroup = parts.FallbackCustomerGroup
	} else if parts.CustomerGroup, err = dir.CustomerGroup(ctx, groupID); err != nil {
		return nil, err
	}

	if parts.Taxes, err = dir.Taxes(ctx); err != nil {
		return nil, fmt.Errorf("load taxes: %w", err)
	}

	if parts.Location, err = resolveLocation(ctx, dir, cfg, defaults); err != nil {
		return nil, err
	}

	if id, err = required("languageId", cfg.LanguageID, defaults.LanguageID); err != nil {
		return nil, err
	}
	if parts.Language, err = dir.Language(ctx, id); err != nil {
		return nil, err
	}
	parts.FallbackLanguage = parts.Language
	if cfg.FallbackLanguageID != "" {
		if parts.FallbackLanguage, err = dir.Language(ctx, cfg.FallbackLanguageID); err != nil {
			return nil, err
		}
	}

	if id, err = required("paymentMethodId", cfg.PaymentMethodID, defaults.PaymentMethodID); err != nil {
		return nil, err
	}
	if parts.PaymentMethod, err = dir.PaymentMethod(ctx, id); err != nil {
		return nil, err
	}

	if id, err = required("shippingMethodId", cfg.ShippingMethodID, defaults.ShippingMethodID); err != nil {
		return nil, err
	}
	if parts.ShippingMethod, err = dir.ShippingMethod(ctx, id); err != nil {
		return nil, err
	}

	return NewContext(parts)
}

func resolveLocation(ctx context.Context, dir Directory, cfg Config, defaults Defaults) (ShippingLocation, error) {
	var addr Address
	if cfg.AddressID != "" {
		a, err := dir.Address(ctx, cfg.AddressID)
		if err != nil {
			return ShippingLocation{}, err
		}
		addr = a
	}

	countryID := firstNonEmpty(cfg.CountryID, addr.CountryID, defaults.CountryID)
	if countryID == "" {
		return ShippingLocation{}, fmt.Errorf("%w: countryId", ErrConfigurationMissing)
	}
	country, err := dir.Country(ctx, countryID)
	if err != nil {
		return ShippingLocation{}, err
	}

	stateID := cfg.CountryStateID
	if stateID == "" && addr.CountryID == country.ID {
		stateID = addr.StateID
	}
	var state *CountryState
	if stateID != "" {
		s, err := dir.CountryState(ctx, stateID)
		if err != nil {
			return ShippingLocation{}, err
		}
		if s.CountryID != "" && s.CountryID != country.ID {
			return ShippingLocation{}, fmt.Errorf("%w: state %s does not belong to country %s", ErrInvalidConfiguration, s.ID, country.ID)
		}
		state = &s
	}
	return LocationFromAddress(addr, country, state), nil
}

func required(field, value, fallback string) (string, error) {
	if v := firstNonEmpty(value, fallback); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrConfigurationMissing, field)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
