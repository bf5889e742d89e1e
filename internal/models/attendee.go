package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned by the lookup helpers when no row matches.
var ErrNotFound = errors.New("record not found")

// Attendee is a row of an event's uploaded attendance roster.
type Attendee struct {
	gorm.Model
	EventID   uint   `json:"event_id" gorm:"not null;uniqueIndex:idx_attendee_event_email"`
	Email     string `json:"email" gorm:"not null;uniqueIndex:idx_attendee_event_email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (a *Attendee) BeforeSave(tx *gorm.DB) (err error) {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	return
}

// GetAttendeeForEvent looks up an attendee of eventID by email, ignoring case.
func GetAttendeeForEvent(db *gorm.DB, eventID uint, email string) (*Attendee, error) {
	var attendee Attendee
	result := db.Where("event_id = ? AND email = ?", eventID, strings.ToLower(strings.TrimSpace(email))).First(&attendee)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &attendee, nil
}

// GetAttendeeByEmail returns the first attendee row registered with email.
func GetAttendeeByEmail(db *gorm.DB, email string) (*Attendee, error) {
	var attendee Attendee
	result := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Order("id").First(&attendee)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &attendee, nil
}
