package simulation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/solarhub/marketplace/internal/model"
)

// ValidationError reports user-correctable problems with a simulation input,
// keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid simulation input: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator, which understands decimal fields.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
			d, ok := v.Interface().(decimal.Decimal)
			if !ok {
				return nil
			}
			f, _ := d.Float64()
			return f
		}, decimal.Decimal{})
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks the input ranges the engine relies on.
func Validate(in model.SimulationInput) error {
	err := Validator().Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "required":
		return "is required"
	default:
		return "failed " + fe.Tag()
	}
}

// ValidateProfile checks that a cost profile holds no negative prices or
// percentages and that its size table is usable.
func ValidateProfile(p model.CostProfile) error {
	out := &ValidationError{Fields: map[string]string{}}
	for name, v := range map[string]decimal.NullDecimal{
		"production_per_kwp":       p.ProductionPerKwp,
		"consumption_per_kwp":      p.ConsumptionPerKwp,
		"min_system_size_kwp":      p.MinSystemSizeKwp,
		"price_per_kwp":            p.PricePerKwp,
		"maintenance_percent":      p.MaintenancePercent,
		"install_discount_percent": p.InstallDiscountPercent,
		"rental_rate_per_kwh":      p.RentalRatePerKwh,
		"rental_factor_percent":    p.RentalFactorPercent,
		"rental_minimum":           p.RentalMinimum,
		"rental_setup_per_kwp":     p.RentalSetupPerKwp,
		"rental_increase_percent":  p.RentalIncreasePercent,
		"rental_discount_percent":  p.RentalDiscountPercent,
	} {
		if v.Valid && v.Decimal.IsNegative() {
			out.Fields[name] = "must be at least 0"
		}
	}
	for name, d := range map[string]decimal.NullDecimal{
		"install_discount_percent": p.InstallDiscountPercent,
		"rental_discount_percent":  p.RentalDiscountPercent,
	} {
		if d.Valid && d.Decimal.GreaterThan(decimal.NewFromInt(100)) {
			out.Fields[name] = "must be at most 100"
		}
	}
	for i, sc := range p.SizeCosts {
		if !sc.SizeKwp.IsPositive() || sc.Cost.IsNegative() {
			out.Fields[fmt.Sprintf("size_costs[%d]", i)] = "size must be positive and cost at least 0"
		}
	}
	for i, li := range p.LineItems {
		switch {
		case strings.TrimSpace(li.Name) == "":
			out.Fields[fmt.Sprintf("line_items[%d]", i)] = "name is required"
		case li.Kind != model.LineItemEquipment && li.Kind != model.LineItemService:
			out.Fields[fmt.Sprintf("line_items[%d]", i)] = "kind must be equipment or service"
		case li.Cost.IsNegative():
			out.Fields[fmt.Sprintf("line_items[%d]", i)] = "cost must be at least 0"
		}
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return out
}
