// Package patient holds hospital patient intake: registration and
// lookup by UHID or mobile number. Pre-authorization requests reference
// patients by UHID.
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UHID      string     `db:"uhid" json:"uhid"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Gender    string     `db:"gender" json:"gender"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Mobile    string     `db:"mobile" json:"mobile"`
	Email     string     `db:"email" json:"email,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	City      *string    `db:"city" json:"city,omitempty"`
	State     *string    `db:"state" json:"state,omitempty"`
	Pincode   *string    `db:"pincode" json:"pincode,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
