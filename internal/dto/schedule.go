package dto

import "github.com/noah-isme/oncall-board-api/internal/models"

// ScheduleResponse is the grid of a track's window.
type ScheduleResponse struct {
	Track       models.Track                `json:"track"`
	Dates       []string                    `json:"dates"`
	TimeSlots   []string                    `json:"timeSlots"`
	Assignments map[string][]models.UserRef `json:"assignments"`
	OnCall      *string                     `json:"onCall,omitempty"`
	Users       []UserSummary               `json:"users,omitempty"`
}

// OnCallResponse names whoever holds the current live slot.
type OnCallResponse struct {
	Date     string  `json:"date"`
	TimeSlot string  `json:"timeSlot"`
	OnCall   *string `json:"onCall"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
