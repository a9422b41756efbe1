// ABOUTME: Google Contacts as a source of contacts to upsert
// ABOUTME: Pages through the People API connections and converts each person to a Contact
package sync

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hotgluexyz/target-everyaction/models"
	"google.golang.org/api/people/v1"
)

const (
	googleSourceName   = "google"
	googlePageSize     = 1000
	googlePersonFields = "names,emailAddresses,phoneNumbers,addresses,organizations,birthdays,urls"
)

// GoogleSource yields the authenticated user's Google Contacts.
type GoogleSource struct {
	service   *people.Service
	pageToken string
	pending   []models.Contact
	done      bool
	fetched   int
}

func NewGoogleSource(service *people.Service) *GoogleSource {
	return &GoogleSource{service: service}
}

func (g *GoogleSource) Name() string {
	return googleSourceName
}

// Fetched is the number of people read from the API so far, including skipped ones.
func (g *GoogleSource) Fetched() int {
	return g.fetched
}

// Next returns the next contact with both a name and an email, or io.EOF.
func (g *GoogleSource) Next(ctx context.Context) (*models.Contact, error) {
	for len(g.pending) == 0 {
		if g.done {
			return nil, io.EOF
		}
		if err := g.fetchPage(ctx); err != nil {
			return nil, err
		}
	}

	contact := g.pending[0]
	g.pending = g.pending[1:]
	return &contact, nil
}

func (g *GoogleSource) fetchPage(ctx context.Context) error {
	call := g.service.People.Connections.List("people/me").
		PageSize(googlePageSize).
		PersonFields(googlePersonFields).
		Context(ctx)

	if g.pageToken != "" {
		call = call.PageToken(g.pageToken)
	}

	response, err := call.Do()
	if err != nil {
		return fmt.Errorf("failed to fetch contacts: %w", err)
	}

	g.pageToken = ""
	if response != nil {
		g.pageToken = response.NextPageToken
		g.fetched += len(response.Connections)

		for _, person := range response.Connections {
			contact := convertPerson(person)
			// Skip contacts without email or name (both are required)
			if contact.Email == "" || (contact.FirstName == "" && contact.LastName == "") {
				continue
			}
			g.pending = append(g.pending, contact)
		}
	}

	if g.pageToken == "" {
		g.done = true
	}
	return nil
}

// convertPerson converts a People API Person to a Contact.
func convertPerson(person *people.Person) models.Contact {
	contact := models.Contact{ID: person.ResourceName}

	if len(person.Names) > 0 {
		name := person.Names[0]
		contact.FirstName = name.GivenName
		contact.LastName = name.FamilyName
		contact.MiddleName = name.MiddleName
		contact.Salutation = name.HonorificPrefix
		contact.Suffix = name.HonorificSuffix
		if contact.FirstName == "" && contact.LastName == "" {
			contact.FirstName = name.DisplayName
		}
	}

	// Prefer the primary email, otherwise the first available
	for _, email := range person.EmailAddresses {
		if email.Value == "" {
			continue
		}
		if contact.Email == "" {
			contact.Email = email.Value
		}
		if email.Metadata != nil && email.Metadata.Primary {
			contact.Email = email.Value
			break
		}
	}

	for _, phone := range person.PhoneNumbers {
		if phone.Value == "" {
			continue
		}
		contact.PhoneNumbers = append(contact.PhoneNumbers, models.Phone{
			Number: phone.Value,
			Type:   googlePhoneType(phone.Type),
		})
	}

	for _, addr := range person.Addresses {
		contact.Addresses = append(contact.Addresses, models.Address{
			Line1:      addr.StreetAddress,
			Line2:      addr.ExtendedAddress,
			City:       addr.City,
			State:      addr.Region,
			PostalCode: addr.PostalCode,
			Country:    strings.ToUpper(addr.CountryCode),
		})
	}

	if len(person.Organizations) > 0 {
		org := person.Organizations[0]
		contact.Employer = org.Name
		contact.Title = org.Title
	}

	for _, b := range person.Birthdays {
		if b.Date != nil && b.Date.Year > 0 && b.Date.Month > 0 && b.Date.Day > 0 {
			contact.Birthdate = fmt.Sprintf("%04d-%02d-%02d", b.Date.Year, b.Date.Month, b.Date.Day)
			break
		}
	}

	for _, u := range person.Urls {
		if u.Value != "" {
			contact.Website = u.Value
			break
		}
	}

	return contact
}

// googlePhoneType maps Google phone types to EveryAction phone type codes.
func googlePhoneType(t string) string {
	switch strings.ToLower(t) {
	case "mobile":
		return "C"
	case "home":
		return "H"
	case "work":
		return "W"
	case "main":
		return "M"
	case "homefax", "workfax", "otherfax":
		return "F"
	}
	return ""
}
