package pricelist

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the uploader's options. Field errors are joined into one
// ErrValidation.
func (o Options) Validate() error {
	o.SupplierName = strings.TrimSpace(o.SupplierName)
	o.PriceType = strings.ToLower(strings.TrimSpace(o.PriceType))
	o.Provider = strings.ToLower(strings.TrimSpace(o.Provider))
	if err := validate.Struct(o); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
	}
	return nil
}
