// ABOUTME: Data models for contacts flowing into EveryAction
// ABOUTME: Defines inbound Contact, wire-shape Person, pending classification codes and upsert results
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Contact is an inbound contact record as produced by the upstream source.
type Contact struct {
	ID           string    `json:"id,omitempty"`
	VanID        *int      `json:"van_id,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	MiddleName   string    `json:"middle_name,omitempty"`
	Suffix       string    `json:"suffix,omitempty"`
	Salutation   string    `json:"salutation,omitempty"`
	Title        string    `json:"title,omitempty"`
	Occupation   string    `json:"occupation,omitempty"`
	Employer     string    `json:"employer,omitempty"`
	Birthdate    string    `json:"birthdate,omitempty"`
	Website      string    `json:"website,omitempty"`
	Email        string    `json:"email,omitempty"`
	PhoneNumbers []Phone   `json:"phone_numbers,omitempty"`
	Addresses    []Address `json:"addresses,omitempty"`
	Lists        []string  `json:"lists,omitempty"`
	LeadSource   string    `json:"lead_source,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

// UnmarshalJSON accepts the VAN ID as "vanId" or "van_id", given either as a
// number or a numeric string. "vanId" wins when both are present.
func (c *Contact) UnmarshalJSON(data []byte) error {
	type plain Contact
	aux := struct {
		*plain
		VanID      json.RawMessage `json:"van_id"`
		VanIDCamel json.RawMessage `json:"vanId"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := aux.VanIDCamel
	if len(raw) == 0 {
		raw = aux.VanID
	}
	vanID, err := parseVanID(raw)
	if err != nil {
		return err
	}
	c.VanID = vanID
	return nil
}

func parseVanID(raw json.RawMessage) (*int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return nil, nil
		}
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid van id %s", raw)
	}
	return &id, nil
}

type Phone struct {
	Number string `json:"number,omitempty"`
	Type   string `json:"type,omitempty"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	Line3      string `json:"line3,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// SourceID returns the identifier used to journal this record.
// Falls back to the email address, then the VAN ID.
func (c *Contact) SourceID() string {
	if c.ID != "" {
		return c.ID
	}
	if c.Email != "" {
		return c.Email
	}
	if c.VanID != nil {
		return "van:" + strconv.Itoa(*c.VanID)
	}
	return ""
}

// Person is the EveryAction wire shape of a contact.
type Person struct {
	VanID       *int            `json:"vanId,omitempty"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	MiddleName  string          `json:"middleName,omitempty"`
	Suffix      string          `json:"suffix,omitempty"`
	Salutation  string          `json:"salutation,omitempty"`
	JobTitle    string          `json:"jobTitle,omitempty"`
	Occupation  string          `json:"occupation,omitempty"`
	Employer    string          `json:"employer,omitempty"`
	DateOfBirth string          `json:"dateOfBirth,omitempty"`
	Website     string          `json:"website,omitempty"`
	Emails      []PersonEmail   `json:"emails,omitempty"`
	Phones      []PersonPhone   `json:"phones,omitempty"`
	Addresses   []PersonAddress `json:"addresses,omitempty"`
}

type PersonEmail struct {
	Email string `json:"email"`
	Type  string `json:"type,omitempty"`
}

type PersonPhone struct {
	PhoneNumber string `json:"phoneNumber"`
	PhoneType   string `json:"phoneType,omitempty"`
}

type PersonAddress struct {
	AddressLine1    string `json:"addressLine1,omitempty"`
	AddressLine2    string `json:"addressLine2,omitempty"`
	AddressLine3    string `json:"addressLine3,omitempty"`
	City            string `json:"city,omitempty"`
	StateOrProvince string `json:"stateOrProvince,omitempty"`
	ZipOrPostalCode string `json:"zipOrPostalCode,omitempty"`
	CountryCode     string `json:"countryCode,omitempty"`
}

// PendingCodes are classification requests that can only be applied once the
// contact's VAN ID is known. The zero value means nothing is pending.
type PendingCodes struct {
	ActivistCodes []string `json:"activist_codes"`
	SourceCode    string   `json:"source_code"`
	Tags          []string `json:"tags"`
}

// Empty reports whether there is nothing to apply.
func (p PendingCodes) Empty() bool {
	return len(p.ActivistCodes) == 0 && p.SourceCode == "" && len(p.Tags) == 0
}

// MappedContact is a Contact translated to the wire shape, together with the
// codes to apply after the upsert.
type MappedContact struct {
	Person  Person
	Pending PendingCodes
}

// Code kinds understood by the generic codes endpoint.
const (
	CodeKindSourceCode = "SourceCode"
	CodeKindTag        = "Tag"
)

// Code is an entry of the EveryAction code or activist code catalog.
type Code struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// UpsertState is the auxiliary state reported for each upserted record.
type UpsertState struct {
	Success      bool     `json:"success"`
	IsUpdated    bool     `json:"is_updated"`
	Merged       bool     `json:"merged"`
	AppliedCodes []string `json:"applied_codes,omitempty"`
	MissingCodes []string `json:"missing_codes,omitempty"`
	FailedCodes  []string `json:"failed_codes,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// UpsertResult is the outcome of upserting one contact.
type UpsertResult struct {
	VanID   *int        `json:"van_id,omitempty"`
	Success bool        `json:"success"`
	State   UpsertState `json:"state"`
}
