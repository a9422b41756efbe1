// ABOUTME: Strips read-only attributes before a merged person is written back
// ABOUTME: The API returns these on read but rejects them on findOrCreate
package merge

// readOnlyFields are top-level attributes only ever returned by the API.
var readOnlyFields = []string{
	"codes",
	"cycles",
	"districts",
	"electionRecords",
	"membershipStatuses",
	"organizationRoles",
	"recordedAddresses",
	"scores",
}

// readOnlyItemFields are read-only attributes of list sub-resources.
var readOnlyItemFields = map[string][]string{
	"emails":    {"dateCreated", "subscriptionStatus"},
	"phones":    {"dateCreated", "isCellStatus"},
	"addresses": {"geoLocation", "displayMode"},
}

// CleanForWrite returns a copy of record without read-only attributes.
func CleanForWrite(record Record) Record {
	out := cloneMap(record)
	if out == nil {
		return nil
	}

	for _, field := range readOnlyFields {
		delete(out, field)
	}

	for field, attrs := range readOnlyItemFields {
		items, ok := out[field].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, attr := range attrs {
				delete(m, attr)
			}
		}
	}
	return out
}
