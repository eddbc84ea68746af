package db

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pearleseed/device-hub-sub001/models"
)

func (r *Repo) CreateDevice(ctx context.Context, d *models.Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DeviceAvailable
	}
	return translate(r.DB.WithContext(ctx).Create(d).Error, "device", d.Serial)
}

func (r *Repo) FindDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	if err := r.DB.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translate(err, "device", id)
	}
	return &d, nil
}

// DeviceRow is a device with its current active loan, if any.
type DeviceRow struct {
	ID        string              `json:"id"`
	Serial    string              `json:"serial"`
	Name      string              `json:"name"`
	Status    models.DeviceStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`

	BorrowID            *string    `json:"borrowId,omitempty"`
	BorrowerID          *string    `json:"borrowerId,omitempty"`
	BorrowerUsername    *string    `json:"borrowerUsername,omitempty"`
	BorrowerDisplayName *string    `json:"borrowerDisplayName,omitempty"`
	DueDate             *time.Time `json:"dueDate,omitempty"`
}

type DevicesQuery struct {
	Q      string // matches serial or name
	Status models.DeviceStatus
	Page   int
	Size   int
}

type PagedDevices struct {
	Total int64       `json:"total"`
	Items []DeviceRow `json:"items"`
}

// ListDevices joins each device with its active borrow. The activation guard
// keeps at most one active borrow per device, so the join never fans out.
func (r *Repo) ListDevices(ctx context.Context, q DevicesQuery) (*PagedDevices, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size

	filter := func(tx *gorm.DB) *gorm.DB {
		if s := strings.TrimSpace(q.Q); s != "" {
			pat := "%" + strings.ToLower(s) + "%"
			tx = tx.Where("LOWER(d.serial) LIKE ? OR LOWER(d.name) LIKE ?", pat, pat)
		}
		if q.Status != "" {
			tx = tx.Where("d.status = ?", q.Status)
		}
		return tx
	}

	// filters only touch the device, so count without the joins
	var total int64
	if err := r.DB.WithContext(ctx).
		Table(models.DeviceTable + " d").
		Scopes(filter).
		Count(&total).Error; err != nil {
		return nil, err
	}

	qry := r.DB.WithContext(ctx).
		Table(models.DeviceTable+" d").
		Select(`
			d.id, d.serial, d.name, d.status, d.created_at, d.updated_at,
			b.id           AS borrow_id,
			b.user_id      AS borrower_id,
			b.end_date     AS due_date,
			u.username     AS borrower_username,
			u.display_name AS borrower_display_name
		`).
		Joins("LEFT JOIN "+models.BorrowTable+" b ON b.device_id = d.id AND b.status = ?", models.BorrowActive).
		Joins("LEFT JOIN " + models.UserTable + " u ON u.id = b.user_id").
		Scopes(filter)

	rows := []DeviceRow{}
	if err := qry.
		Order("d.name ASC, d.id ASC").
		Limit(q.Size).
		Offset(offset).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return &PagedDevices{Total: total, Items: rows}, nil
}
