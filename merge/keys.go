// ABOUTME: Natural keys used to match list items during a merge
// ABOUTME: Emails by address, phones by E.164 number, addresses and custom fields by id
package merge

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is assumed for phone numbers written without a country code.
const DefaultRegion = "US"

// KeyFunc returns the natural key of a list item, or false when it has none.
type KeyFunc func(item map[string]any) (string, bool)

// KeyedLists maps a list field name to the key its items are matched by.
var KeyedLists = map[string]KeyFunc{
	"emails":       fieldKey("email", normalizeEmail),
	"addresses":    fieldKey("addressId", nil),
	"phones":       fieldKey("phoneNumber", NormalizePhone),
	"customFields": fieldKey("customFieldId", nil),
}

func fieldKey(field string, normalize func(string) string) KeyFunc {
	return func(item map[string]any) (string, bool) {
		raw, ok := item[field]
		if !ok || raw == nil {
			return "", false
		}
		key := scalarString(raw)
		if normalize != nil {
			key = normalize(key)
		}
		if key == "" {
			return "", false
		}
		return key, true
	}
}

// scalarString renders JSON numbers without a trailing ".0".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone returns number in E.164 form, or its digits when it cannot
// be parsed.
func NormalizePhone(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	parsed, err := phonenumbers.Parse(number, DefaultRegion)
	if err == nil && phonenumbers.IsPossibleNumber(parsed) {
		return phonenumbers.Format(parsed, phonenumbers.E164)
	}

	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
