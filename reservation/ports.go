package reservation

import (
	"context"
	"time"

	"github.com/pearleseed/device-hub-sub001/models"
)

// Tx is the transactional view of storage the core works through. Every
// method runs inside the transaction opened by TxRunner.RunInTx. Getters
// return a KindNotFound error when the row is absent.
type Tx interface {
	// LockDevice loads the device and holds a write lock on its row until the
	// transaction ends. All reservation mutations for a device serialize here.
	LockDevice(ctx context.Context, id string) (*models.Device, error)
	SetDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error

	// HasConflict reports whether any pending/approved/active reservation on
	// the device other than excludeID strictly overlaps iv.
	HasConflict(ctx context.Context, deviceID string, iv Interval, excludeID string) (bool, error)
	// CountActive counts active reservations on the device other than excludeID.
	CountActive(ctx context.Context, deviceID, excludeID string) (int64, error)
	// LatestReturn returns the most recent return for the device, or nil.
	LatestReturn(ctx context.Context, deviceID string) (*models.ReturnRequest, error)

	GetBorrow(ctx context.Context, id string) (*models.BorrowRequest, error)
	CreateBorrow(ctx context.Context, b *models.BorrowRequest) error
	UpdateBorrow(ctx context.Context, b *models.BorrowRequest) error
	ListBorrows(ctx context.Context, f BorrowFilter) (*BorrowPage, error)

	GetReturn(ctx context.Context, id string) (*models.ReturnRequest, error)
	// FindReturnByBorrow returns nil, nil when the borrow has no return.
	FindReturnByBorrow(ctx context.Context, borrowID string) (*models.ReturnRequest, error)
	CreateReturn(ctx context.Context, r *models.ReturnRequest) error
	UpdateReturn(ctx context.Context, r *models.ReturnRequest) error

	GetRenewal(ctx context.Context, id string) (*models.RenewalRequest, error)
	CreateRenewal(ctx context.Context, r *models.RenewalRequest) error
	UpdateRenewal(ctx context.Context, r *models.RenewalRequest) error
	ListRenewals(ctx context.Context, borrowID string, statuses ...models.RenewalStatus) ([]models.RenewalRequest, error)
}

// TxRunner opens transactions. RunInTx commits when fn returns nil and rolls
// back otherwise. IsTransient classifies errors worth retrying.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	IsTransient(err error) bool
}

// BorrowFilter selects borrow requests. Zero values mean "any".
type BorrowFilter struct {
	DeviceID string
	UserID   string
	Statuses []models.BorrowStatus
	// From/To keep requests whose interval overlaps [From, To).
	From time.Time
	To   time.Time
	Page int
	Size int
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Normalize applies paging defaults.
func (f BorrowFilter) Normalize() BorrowFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 || f.Size > maxPageSize {
		f.Size = defaultPageSize
	}
	if !f.From.IsZero() {
		f.From = DateOf(f.From)
	}
	if !f.To.IsZero() {
		f.To = DateOf(f.To)
	}
	return f
}

func (f BorrowFilter) Offset() int { return (f.Page - 1) * f.Size }

type BorrowPage struct {
	Total int64                  `json:"total"`
	Items []models.BorrowRequest `json:"items"`
}
