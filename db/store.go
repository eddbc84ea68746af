package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
)

// Store runs reservation units of work in gorm transactions.
type Store struct{ DB *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

func (s *Store) RunInTx(ctx context.Context, fn func(tx reservation.Tx) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{tx: tx})
	})
}

func (s *Store) IsTransient(err error) bool { return IsTransient(err) }

type txStore struct{ tx *gorm.DB }

var _ reservation.Tx = (*txStore)(nil)

// LockDevice is SELECT ... FOR UPDATE on postgres. sqlite has no row locks;
// the connection already holds the database write lock from BEGIN IMMEDIATE.
func (t *txStore) LockDevice(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&d, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "device", id)
	}
	return &d, nil
}

func (t *txStore) SetDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	res := t.tx.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return reservation.NotFound("device", id)
	}
	return nil
}

func (t *txStore) HasConflict(ctx context.Context, deviceID string, iv reservation.Interval, excludeID string) (bool, error) {
	q := t.tx.WithContext(ctx).Model(&models.BorrowRequest{}).
		Where("device_id = ? AND status IN ?", deviceID, models.OpenBorrowStatuses).
		Where("start_date < ? AND end_date > ?", iv.End, iv.Start)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *txStore) CountActive(ctx context.Context, deviceID, excludeID string) (int64, error) {
	q := t.tx.WithContext(ctx).Model(&models.BorrowRequest{}).
		Where("device_id = ? AND status = ?", deviceID, models.BorrowActive)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (t *txStore) LatestReturn(ctx context.Context, deviceID string) (*models.ReturnRequest, error) {
	var rs []models.ReturnRequest
	err := t.tx.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&rs).Error
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

// Borrow requests

func (t *txStore) GetBorrow(ctx context.Context, id string) (*models.BorrowRequest, error) {
	var b models.BorrowRequest
	if err := t.tx.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translate(err, "borrow request", id)
	}
	return &b, nil
}

func (t *txStore) CreateBorrow(ctx context.Context, b *models.BorrowRequest) error {
	return translate(t.tx.WithContext(ctx).Create(b).Error, "borrow request", b.ID)
}

func (t *txStore) UpdateBorrow(ctx context.Context, b *models.BorrowRequest) error {
	return t.tx.WithContext(ctx).Save(b).Error
}

func (t *txStore) ListBorrows(ctx context.Context, f reservation.BorrowFilter) (*reservation.BorrowPage, error) {
	return listBorrows(ctx, t.tx, f)
}

// Returns

func (t *txStore) GetReturn(ctx context.Context, id string) (*models.ReturnRequest, error) {
	var r models.ReturnRequest
	if err := t.tx.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err, "return request", id)
	}
	return &r, nil
}

func (t *txStore) FindReturnByBorrow(ctx context.Context, borrowID string) (*models.ReturnRequest, error) {
	var rs []models.ReturnRequest
	err := t.tx.WithContext(ctx).
		Where("borrow_request_id = ?", borrowID).
		Limit(1).
		Find(&rs).Error
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

func (t *txStore) CreateReturn(ctx context.Context, r *models.ReturnRequest) error {
	return translate(t.tx.WithContext(ctx).Create(r).Error, "return for borrow request", r.BorrowRequestID)
}

func (t *txStore) UpdateReturn(ctx context.Context, r *models.ReturnRequest) error {
	return t.tx.WithContext(ctx).Save(r).Error
}

// Renewals

func (t *txStore) GetRenewal(ctx context.Context, id string) (*models.RenewalRequest, error) {
	var r models.RenewalRequest
	if err := t.tx.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err, "renewal request", id)
	}
	return &r, nil
}

func (t *txStore) CreateRenewal(ctx context.Context, r *models.RenewalRequest) error {
	return translate(t.tx.WithContext(ctx).Create(r).Error, "pending renewal for borrow request", r.BorrowRequestID)
}

func (t *txStore) UpdateRenewal(ctx context.Context, r *models.RenewalRequest) error {
	return translate(t.tx.WithContext(ctx).Save(r).Error, "pending renewal for borrow request", r.BorrowRequestID)
}

func (t *txStore) ListRenewals(ctx context.Context, borrowID string, statuses ...models.RenewalStatus) ([]models.RenewalRequest, error) {
	q := t.tx.WithContext(ctx).Where("borrow_request_id = ?", borrowID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	rs := []models.RenewalRequest{}
	err := q.Order("created_at ASC, id ASC").Find(&rs).Error
	return rs, err
}
