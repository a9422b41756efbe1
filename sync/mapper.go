// ABOUTME: Maps inbound contacts to the EveryAction person shape
// ABOUTME: Renames fields one to one and splits off codes to apply after the upsert
package sync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hotgluexyz/target-everyaction/merge"
	"github.com/hotgluexyz/target-everyaction/models"
)

// MapContact translates c into a person payload plus its pending codes.
func MapContact(c models.Contact) models.MappedContact {
	person := models.Person{
		VanID:       c.VanID,
		FirstName:   strings.TrimSpace(c.FirstName),
		LastName:    strings.TrimSpace(c.LastName),
		MiddleName:  strings.TrimSpace(c.MiddleName),
		Suffix:      strings.TrimSpace(c.Suffix),
		Salutation:  strings.TrimSpace(c.Salutation),
		JobTitle:    strings.TrimSpace(c.Title),
		Occupation:  strings.TrimSpace(c.Occupation),
		Employer:    strings.TrimSpace(c.Employer),
		DateOfBirth: strings.TrimSpace(c.Birthdate),
		Website:     strings.TrimSpace(c.Website),
	}

	if email := strings.TrimSpace(c.Email); email != "" {
		person.Emails = []models.PersonEmail{{Email: email}}
	}

	// numbers are sent as given; the merge normalises them only to match
	for _, phone := range c.PhoneNumbers {
		number := strings.TrimSpace(phone.Number)
		if number == "" {
			continue
		}
		person.Phones = append(person.Phones, models.PersonPhone{
			PhoneNumber: number,
			PhoneType:   phone.Type,
		})
	}

	for _, addr := range c.Addresses {
		mapped := models.PersonAddress{
			AddressLine1:    addr.Line1,
			AddressLine2:    addr.Line2,
			AddressLine3:    addr.Line3,
			City:            addr.City,
			StateOrProvince: addr.State,
			ZipOrPostalCode: addr.PostalCode,
			CountryCode:     addr.Country,
		}
		if mapped == (models.PersonAddress{}) {
			continue
		}
		person.Addresses = append(person.Addresses, mapped)
	}

	return models.MappedContact{
		Person: person,
		Pending: models.PendingCodes{
			ActivistCodes: cleanNames(c.Lists),
			SourceCode:    strings.TrimSpace(c.LeadSource),
			Tags:          cleanNames(c.Tags),
		},
	}
}

// PersonRecord converts p to the generic record form used by the merge.
func PersonRecord(p models.Person) (merge.Record, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode person: %w", err)
	}
	var record merge.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode person: %w", err)
	}
	return record, nil
}

// cleanNames trims names and drops blanks and case-insensitive repeats.
func cleanNames(names []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
