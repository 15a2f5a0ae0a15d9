package model

import "errors"

var (
	// ErrInvalidName is returned when first or last name is empty.
	ErrInvalidName = errors.New("first and last name are required")
	// ErrInvalidBirthDate is returned when the birth date is not a valid YYYY-MM-DD calendar date.
	ErrInvalidBirthDate = errors.New("birth date must be a valid YYYY-MM-DD date")
	// ErrInvalidTimeZone is returned when the time zone is not a resolvable IANA zone.
	ErrInvalidTimeZone = errors.New("time zone must be a valid IANA zone")
	// ErrInvalidPersonID is returned when an operation needs a person id and none was given.
	ErrInvalidPersonID = errors.New("person id is required")
	// ErrPersonNotFound is returned when person is not found in storage.
	ErrPersonNotFound = errors.New("person not found")
	// ErrPersonExists is returned when creating a person with an id already in use.
	ErrPersonExists = errors.New("person already exists")
	// ErrOccurrenceNotFound is returned when no occurrence matches the given key.
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	// ErrInvalidLimit is returned when a batch limit is not positive.
	ErrInvalidLimit = errors.New("limit must be greater than zero")
)
