package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Event struct {
	gorm.Model
	Name string    `json:"name" gorm:"not null" validate:"required"`
	Date time.Time `json:"date"`
}

// Talk is a scheduled session of an event; feedback is rated against it.
type Talk struct {
	gorm.Model
	Title        string `json:"title" gorm:"not null" validate:"required"`
	SpeakerEmail string `json:"speaker_email" gorm:"index"`
	EventID      uint   `json:"event_id" gorm:"not null;index"`
	Event        *Event `json:"event,omitempty"`
}

func GetEventByID(db *gorm.DB, id uint) (*Event, error) {
	var event Event
	result := db.First(&event, id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &event, nil
}

func GetTalkByID(db *gorm.DB, id uint) (*Talk, error) {
	var talk Talk
	result := db.Preload("Event").First(&talk, id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &talk, nil
}
