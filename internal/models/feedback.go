package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// FeedbackEditWindow is how long after creation a feedback stays editable.
const FeedbackEditWindow = 24 * time.Hour

// Feedback from an attendee rating a single talk. At most one row may exist
// per (attendee, session); virtual submissions carry no attendee.
type Feedback struct {
	gorm.Model
	SessionID          uint    `json:"session" gorm:"not null;uniqueIndex:idx_feedback_attendee_session"`
	AttendeeID         *uint   `json:"attendee" gorm:"uniqueIndex:idx_feedback_attendee_session"`
	Engagement         int     `json:"engagement" gorm:"not null" validate:"required,min=1,max=10"`
	Clarity            int     `json:"clarity" gorm:"not null" validate:"required,min=1,max=10"`
	ContentDepth       int     `json:"content_depth" gorm:"not null" validate:"required,min=1,max=10"`
	SpeakerKnowledge   int     `json:"speaker_knowledge" gorm:"not null" validate:"required,min=1,max=10"`
	PracticalRelevance int     `json:"practical_relevance" gorm:"not null" validate:"required,min=1,max=10"`
	OverallRating      int     `json:"overall_rating" gorm:"not null" validate:"required,min=1,max=10"`
	Comments           *string `json:"comments"` // Optional text feedback
	IsAnonymous        bool    `json:"is_anonymous" gorm:"default:false"`
	IsEditable         bool    `json:"is_editable" gorm:"default:true"`
}

// CanEdit reports whether the feedback is still inside its edit window.
func (f *Feedback) CanEdit(now time.Time) bool {
	return f.IsEditable && now.Before(f.CreatedAt.Add(FeedbackEditWindow))
}

func GetFeedbackByID(db *gorm.DB, id uint) (*Feedback, error) {
	var feedback Feedback
	result := db.First(&feedback, id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &feedback, nil
}
