// models/requests.go
package models

import "time"

const (
	BorrowTable  = "dh_borrow_requests"
	ReturnTable  = "dh_return_requests"
	RenewalTable = "dh_renewal_requests"
)

type BorrowStatus string

const (
	BorrowPending  BorrowStatus = "pending"
	BorrowApproved BorrowStatus = "approved"
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"
	BorrowRejected BorrowStatus = "rejected"
)

// OpenBorrowStatuses are the statuses that hold a reservation on the device.
var OpenBorrowStatuses = []BorrowStatus{BorrowPending, BorrowApproved, BorrowActive}

func (s BorrowStatus) Open() bool {
	return s == BorrowPending || s == BorrowApproved || s == BorrowActive
}

func (s BorrowStatus) Terminal() bool { return s == BorrowReturned || s == BorrowRejected }

type DeviceCondition string

const (
	ConditionExcellent DeviceCondition = "excellent"
	ConditionGood      DeviceCondition = "good"
	ConditionFair      DeviceCondition = "fair"
	ConditionDamaged   DeviceCondition = "damaged"
)

func (c DeviceCondition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionDamaged:
		return true
	}
	return false
}

type RenewalStatus string

const (
	RenewalPending  RenewalStatus = "pending"
	RenewalApproved RenewalStatus = "approved"
	RenewalRejected RenewalStatus = "rejected"
)

// BorrowRequest is a reservation of one device over [StartDate, EndDate).
type BorrowRequest struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	DeviceID  string       `gorm:"size:36;not null;index:idx_borrow_device_status,priority:1" json:"deviceId"`
	UserID    string       `gorm:"size:36;not null;index" json:"userId"`
	StartDate time.Time    `gorm:"type:date;not null" json:"startDate"`
	EndDate   time.Time    `gorm:"type:date;not null" json:"endDate"`
	Reason    string       `gorm:"size:500" json:"reason,omitempty"`
	Status    BorrowStatus `gorm:"size:20;not null;index:idx_borrow_device_status,priority:2" json:"status"`

	ApprovedBy *string    `gorm:"size:36" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReturnRequest closes an active borrow. At most one exists per borrow.
type ReturnRequest struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	BorrowRequestID string          `gorm:"size:36;not null;uniqueIndex" json:"borrowRequestId"`
	DeviceID        string          `gorm:"size:36;not null;index" json:"deviceId"`
	ReturnDate      time.Time       `gorm:"type:date;not null" json:"returnDate"`
	Condition       DeviceCondition `gorm:"size:20;not null" json:"deviceCondition"`
	Notes           string          `gorm:"size:1000" json:"notes,omitempty"`
	CreatedBy       string          `gorm:"size:36;not null" json:"createdBy"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RenewalRequest asks to push an active borrow's EndDate to RequestedEndDate.
type RenewalRequest struct {
	ID               string        `gorm:"primaryKey;size:36" json:"id"`
	BorrowRequestID  string        `gorm:"size:36;not null;index" json:"borrowRequestId"`
	CurrentEndDate   time.Time     `gorm:"type:date;not null" json:"currentEndDate"`
	RequestedEndDate time.Time     `gorm:"type:date;not null" json:"requestedEndDate"`
	Reason           string        `gorm:"size:500;not null" json:"reason"`
	Status           RenewalStatus `gorm:"size:20;not null" json:"status"`
	RequestedBy      string        `gorm:"size:36;not null" json:"requestedBy"`

	ReviewedBy *string    `gorm:"size:36" json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (BorrowRequest) TableName() string  { return BorrowTable }
func (ReturnRequest) TableName() string  { return ReturnTable }
func (RenewalRequest) TableName() string { return RenewalTable }
