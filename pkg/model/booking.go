package model

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
)

// Booking is a single scheduled appointment. Date and Time are kept as the
// wall-clock strings the stores exchange (YYYY-MM-DD and HH:MM, no timezone);
// CreatedAt/UpdatedAt are RFC3339 and set by whichever store mutates the record.
type Booking struct {
	ID        string `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string `json:"name" bson:"name"`
	Email     string `json:"email" bson:"email"`
	Date      string `json:"date" bson:"date"`
	Time      string `json:"time" bson:"time"`
	Duration  int    `json:"duration" bson:"duration"`
	Notes     string `json:"notes,omitempty" bson:"notes,omitempty"`
	Status    string `json:"status" bson:"status"`
	CreatedAt string `json:"createdAt" bson:"created_at"`
	UpdatedAt string `json:"updatedAt" bson:"updated_at"`
}

// BookingForm carries the user-supplied fields of a new booking.
type BookingForm struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Date     string `json:"date" validate:"required,dateymd"`
	Time     string `json:"time" validate:"required,timehhmm"`
	Duration int    `json:"duration" validate:"required,min=15,max=480"`
	Notes    string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// BookingPatch is a partial update. Nil fields are left untouched.
type BookingPatch struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Date     *string `json:"date,omitempty" validate:"omitempty,dateymd"`
	Time     *string `json:"time,omitempty" validate:"omitempty,timehhmm"`
	Duration *int    `json:"duration,omitempty" validate:"omitempty,min=15,max=480"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=confirmed pending cancelled"`
}

// Apply merges the patch into a copy of the booking and returns it.
// UpdatedAt is the caller's responsibility.
func (p *BookingPatch) Apply(b Booking) Booking {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Email != nil {
		b.Email = *p.Email
	}
	if p.Date != nil {
		b.Date = *p.Date
	}
	if p.Time != nil {
		b.Time = *p.Time
	}
	if p.Duration != nil {
		b.Duration = *p.Duration
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	return b
}

// Empty reports whether the patch changes nothing.
func (p *BookingPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Date == nil && p.Time == nil &&
		p.Duration == nil && p.Notes == nil && p.Status == nil
}
