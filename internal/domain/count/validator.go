package count

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator - интерфейс для валидации позиций перед записью
type Validator interface {
	ValidateAdd(in AddInput) error
	ValidateEdit(in EditInput) error
	ValidateBatch(b Batch) error
}

type ItemValidator struct {
	v *validator.Validate
}

// NewItemValidator создает новый валидатор
func NewItemValidator() *ItemValidator {
	return &ItemValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateAdd проверяет новую позицию: количество строго больше нуля, себестоимость не отрицательна
func (v *ItemValidator) ValidateAdd(in AddInput) error {
	if err := v.v.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	return checkAmounts(in.Quantity, in.UnitCost)
}

// ValidateEdit проверяет исправление позиции
func (v *ItemValidator) ValidateEdit(in EditInput) error {
	if in.Quantity == nil && in.UnitCost == nil {
		return fmt.Errorf("%w: nothing to change", ErrInvalidInput)
	}
	if in.Quantity != nil && !in.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return ErrInvalidCost
	}
	return nil
}

// ValidateBatch проверяет пакет коллеги целиком до слияния
func (v *ItemValidator) ValidateBatch(b Batch) error {
	if err := v.v.Struct(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	seen := make(map[string]struct{}, len(b.Items))
	for _, it := range b.Items {
		if _, dup := seen[it.TempID]; dup {
			return fmt.Errorf("%w: duplicate temp id %s", ErrInvalidInput, it.TempID)
		}
		seen[it.TempID] = struct{}{}
		if err := checkAmounts(it.Quantity, it.UnitCost); err != nil {
			return fmt.Errorf("item %s: %w", it.TempID, err)
		}
	}
	return nil
}

func checkAmounts(qty, cost decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if cost.IsNegative() {
		return ErrInvalidCost
	}
	return nil
}

func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fe.Field()+":"+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
