package dto

// WindowRequest sets a track's date range. Dates use YYYY-MM-DD.
type WindowRequest struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

// WindowResponse describes a track's date range.
type WindowResponse struct {
	Track string   `json:"track"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Dates []string `json:"dates"`
}

// ClearAssignmentsQuery selects which claims an admin clear removes. With no
// fields set every claim of the track is removed.
type ClearAssignmentsQuery struct {
	Start  string `form:"start" validate:"required_with=End,omitempty,datetime=2006-01-02"`
	End    string `form:"end" validate:"required_with=Start,omitempty,datetime=2006-01-02"`
	UserID string `form:"user_id" validate:"omitempty,max=64"`
}

// ClearResult reports how many claims were removed.
type ClearResult struct {
	Removed int64 `json:"removed"`
}

// UpdateUserRequest edits a user. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=64"`
	FirstName *string `json:"firstName" validate:"omitempty,max=64"`
	LastName  *string `json:"lastName" validate:"omitempty,max=64"`
	Role      *string `json:"role" validate:"omitempty,oneof=user admin"`
	Password  *string `json:"password" validate:"omitempty,min=6,max=72"`
}
