package timesheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Setting keys.
const (
	KeyOverheadPercent    = "overhead_percent"
	KeyToleranceMinutes   = "daily_tolerance_minutes"
	KeyAllowedEmailDomain = "allowed_email_domain"
)

// DefaultToleranceMinutes is used when neither the store nor config has one.
var DefaultToleranceMinutes = decimal.NewFromInt(6)

// Defaults are the values used for settings the store has never seen.
type Defaults struct {
	OverheadPercent    decimal.Decimal
	ToleranceMinutes   decimal.Decimal
	AllowedEmailDomain string
}

// Settings provides typed access to the key/value settings store.
// Lookup order is store, then Defaults.
type Settings struct {
	store    SettingsStore
	defaults Defaults
}

func NewSettings(store SettingsStore, defaults Defaults) *Settings {
	if defaults.ToleranceMinutes.IsZero() {
		defaults.ToleranceMinutes = DefaultToleranceMinutes
	}
	return &Settings{store: store, defaults: defaults}
}

// bind returns settings reading through another store, e.g. a transaction.
func (s *Settings) bind(store SettingsStore) *Settings {
	return &Settings{store: store, defaults: s.defaults}
}

// OverheadPercent is the current burden percent applied to labor cost.
func (s *Settings) OverheadPercent(ctx context.Context) (decimal.Decimal, error) {
	return s.decimal(ctx, KeyOverheadPercent, s.defaults.OverheadPercent)
}

// ToleranceMinutes is the allowed daily difference against reference totals.
func (s *Settings) ToleranceMinutes(ctx context.Context) (decimal.Decimal, error) {
	return s.decimal(ctx, KeyToleranceMinutes, s.defaults.ToleranceMinutes)
}

// AllowedEmailDomain restricts self-registration; empty means unrestricted.
func (s *Settings) AllowedEmailDomain(ctx context.Context) (string, error) {
	v, ok, err := s.store.GetSetting(ctx, KeyAllowedEmailDomain)
	if err != nil {
		return "", err
	}
	if !ok {
		return s.defaults.AllowedEmailDomain, nil
	}
	return v, nil
}

func (s *Settings) SetOverheadPercent(ctx context.Context, v decimal.Decimal) error {
	if v.IsNegative() {
		return invalid(KeyOverheadPercent, ErrInvalidSetting)
	}
	return s.store.SetSetting(ctx, KeyOverheadPercent, v.String())
}

func (s *Settings) SetToleranceMinutes(ctx context.Context, v decimal.Decimal) error {
	if v.IsNegative() {
		return invalid(KeyToleranceMinutes, ErrInvalidSetting)
	}
	return s.store.SetSetting(ctx, KeyToleranceMinutes, v.String())
}

func (s *Settings) SetAllowedEmailDomain(ctx context.Context, domain string) error {
	return s.store.SetSetting(ctx, KeyAllowedEmailDomain, strings.TrimPrefix(strings.TrimSpace(domain), "@"))
}

// Set validates and writes a setting by key.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	switch key {
	case KeyOverheadPercent, KeyToleranceMinutes:
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return invalid(key, fmt.Errorf("%w: %v", ErrInvalidSetting, err))
		}
		if key == KeyOverheadPercent {
			return s.SetOverheadPercent(ctx, d)
		}
		return s.SetToleranceMinutes(ctx, d)
	case KeyAllowedEmailDomain:
		return s.SetAllowedEmailDomain(ctx, value)
	default:
		return invalid(key, fmt.Errorf("%w: unknown key", ErrInvalidSetting))
	}
}

// Snapshot returns the effective value of every known setting.
func (s *Settings) Snapshot(ctx context.Context) (map[string]string, error) {
	overhead, err := s.OverheadPercent(ctx)
	if err != nil {
		return nil, err
	}
	tolerance, err := s.ToleranceMinutes(ctx)
	if err != nil {
		return nil, err
	}
	domain, err := s.AllowedEmailDomain(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		KeyOverheadPercent:    overhead.String(),
		KeyToleranceMinutes:   tolerance.String(),
		KeyAllowedEmailDomain: domain,
	}, nil
}

func (s *Settings) decimal(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		// Unparsable stored values fall back to the default.
		return fallback, nil
	}
	return d, nil
}
