package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StatValidator checks PriceStat records before they reach storage. The
// "coin" tag is bound to the configured coin set.
type StatValidator struct {
	validate *validator.Validate
}

func NewStatValidator(coins CoinSet) *StatValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("coin", func(fl validator.FieldLevel) bool {
		return coins.Contains(Coin(fl.Field().String()))
	})
	return &StatValidator{validate: v}
}

// Validate returns an error wrapping ErrInvalidStat when stat is unusable.
func (v *StatValidator) Validate(stat *PriceStat) error {
	if stat == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidStat)
	}
	err := v.validate.Struct(stat)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidStat, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidStat, strings.Join(parts, "; "))
}
