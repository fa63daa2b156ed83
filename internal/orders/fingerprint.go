package orders

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/laggedout/storefront-backend/pkg/enums"
)

// fingerprint identifies an order's contents: source plus each line's
// identity and unit price, order-independent.
func fingerprint(source enums.OrderSource, lines []line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		id := l.item.Spec().Key()
		if l.cartItemID != nil {
			id = l.cartItemID.String() + "@" + id
		}
		parts = append(parts, id+"="+strconv.FormatInt(l.item.UnitPriceCents, 10))
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(string(source) + "\n" + strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
