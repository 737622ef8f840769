package pricelist

import (
	"strings"

	"github.com/google/uuid"
)

var productNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("central_pricelist.product"))

// NewProductID derives a stable identifier from the supplier and the product
// key (SKU, or name when no SKU exists). Re-uploading the same list yields
// the same ids so persistence can upsert.
func NewProductID(supplier, key string) string {
	name := normalizeKey(supplier) + "|" + normalizeKey(key)
	id := uuid.NewSHA1(productNamespace, []byte(name))
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "PID_" + strings.ToUpper(hex[:12])
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
