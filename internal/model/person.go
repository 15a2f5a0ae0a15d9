// Package model defines domain models and data structures.
package model

import (
	"fmt"
	"strings"
	"time"

	// Embedded zone database so IANA zones resolve in minimal containers.
	_ "time/tzdata"
)

const birthDateLayout = "2006-01-02"

// Person represents a registered person whose birthday is notified.
type Person struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	BirthDate string    `json:"birthday"`
	TimeZone  string    `json:"timezone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName joins first and last name.
func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Normalize trims surrounding whitespace from the stored text fields.
func (p *Person) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.BirthDate = strings.TrimSpace(p.BirthDate)
	p.TimeZone = strings.TrimSpace(p.TimeZone)
}

// Validate checks names, birth date and time zone.
func (p *Person) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return ErrInvalidName
	}

	if _, err := ParseBirthDate(p.BirthDate); err != nil {
		return err
	}

	if _, err := LoadZone(p.TimeZone); err != nil {
		return err
	}

	return nil
}

// BirthDate is a calendar date. Only Month and Day drive recurrence.
type BirthDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseBirthDate parses a YYYY-MM-DD string and rejects impossible dates.
func ParseBirthDate(s string) (BirthDate, error) {
	t, err := time.Parse(birthDateLayout, strings.TrimSpace(s))
	if err != nil {
		return BirthDate{}, fmt.Errorf("%w: %q", ErrInvalidBirthDate, s)
	}

	return BirthDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// IsLeapDay reports whether the date is February 29.
func (d BirthDate) IsLeapDay() bool {
	return d.Month == time.February && d.Day == 29
}

func (d BirthDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// LoadZone resolves an IANA zone name. The empty name and "Local" are
// rejected since neither identifies a civil zone.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, name)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, name)
	}

	return loc, nil
}

// CreatePersonParams represents parameters for registering a new person.
type CreatePersonParams struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthday"`
	TimeZone  string `json:"timezone"`
}

// Validate validates the create person parameters.
func (p *CreatePersonParams) Validate() error {
	person := Person{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		BirthDate: p.BirthDate,
		TimeZone:  p.TimeZone,
	}

	return person.Validate()
}

// UpdatePersonParams carries a partial update. Nil fields keep the stored value.
type UpdatePersonParams struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	BirthDate *string `json:"birthday,omitempty"`
	TimeZone  *string `json:"timezone,omitempty"`
}

// Apply merges the update into a copy of existing.
func (p *UpdatePersonParams) Apply(existing Person) Person {
	merged := existing
	if p.FirstName != nil {
		merged.FirstName = *p.FirstName
	}

	if p.LastName != nil {
		merged.LastName = *p.LastName
	}

	if p.BirthDate != nil {
		merged.BirthDate = *p.BirthDate
	}

	if p.TimeZone != nil {
		merged.TimeZone = *p.TimeZone
	}

	return merged
}
