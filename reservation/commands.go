package reservation

import (
	"time"

	"github.com/pearleseed/device-hub-sub001/models"
)

type CreateBorrow struct {
	DeviceID string    `validate:"required,max=36"`
	Start    time.Time `validate:"-"`
	End      time.Time `validate:"-"`
	Reason   string    `validate:"max=500"`
	Actor    Actor     `validate:"-"`
}

type SetBorrowStatus struct {
	RequestID string              `validate:"required,max=36"`
	Target    models.BorrowStatus `validate:"required,oneof=pending approved active returned rejected"`
	Actor     Actor               `validate:"-"`
}

type CreateReturn struct {
	BorrowRequestID string                 `validate:"required,max=36"`
	Condition       models.DeviceCondition `validate:"required,oneof=excellent good fair damaged"`
	Notes           string                 `validate:"max=1000"`
	Actor           Actor                  `validate:"-"`
}

// UpdateReturnCondition corrects a recorded return. Notes replaces the stored
// notes when non-nil.
type UpdateReturnCondition struct {
	ReturnRequestID string                 `validate:"required,max=36"`
	Condition       models.DeviceCondition `validate:"required,oneof=excellent good fair damaged"`
	Notes           *string                `validate:"omitempty,max=1000"`
	Actor           Actor                  `validate:"-"`
}

type CreateRenewal struct {
	BorrowRequestID string    `validate:"required,max=36"`
	RequestedEnd    time.Time `validate:"-"`
	Reason          string    `validate:"required,max=500"`
	Actor           Actor     `validate:"-"`
}

type SetRenewalStatus struct {
	RenewalID string               `validate:"required,max=36"`
	Target    models.RenewalStatus `validate:"required,oneof=pending approved rejected"`
	Actor     Actor                `validate:"-"`
}
