package dto

// AvailabilityChange is one claim or unclaim intent.
type AvailabilityChange struct {
	Date         string `json:"date" validate:"required"`
	TimeSlot     string `json:"timeSlot" validate:"required"`
	Available    *bool  `json:"available" validate:"required"`
	TargetUserID string `json:"targetUserId,omitempty"`
}

// Claimed reports the requested state of the slot.
func (c AvailabilityChange) Claimed() bool {
	return c.Available != nil && *c.Available
}

// SingleChangeRequest updates one slot for the acting user.
type SingleChangeRequest struct {
	Date      string `json:"date" validate:"required"`
	TimeSlot  string `json:"timeSlot" validate:"required"`
	Available *bool  `json:"available" validate:"required"`
}

// BatchChangeRequest carries ordered intents applied in submission order.
type BatchChangeRequest struct {
	Changes []AvailabilityChange `json:"changes" validate:"required,min=1,max=1000,dive"`
}

// ChangeResult answers the single-change endpoint.
type ChangeResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// RejectedChange reports an intent that was not applied.
type RejectedChange struct {
	Index    int    `json:"index"`
	Date     string `json:"date"`
	TimeSlot string `json:"timeSlot"`
	Reason   string `json:"reason"`
}

// BatchResult answers the batch endpoint. Success stays true when individual
// intents were rejected so clients reload the grid either way.
type BatchResult struct {
	Success  bool             `json:"success"`
	Accepted int              `json:"accepted"`
	Rejected []RejectedChange `json:"rejected"`
}
