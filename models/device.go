// models/device.go
package models

import "time"

const DeviceTable = "dh_devices"

type DeviceStatus string

const (
	DeviceAvailable   DeviceStatus = "available"
	DeviceBorrowed    DeviceStatus = "borrowed"
	DeviceMaintenance DeviceStatus = "maintenance"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceAvailable, DeviceBorrowed, DeviceMaintenance:
		return true
	}
	return false
}

// Device is owned by inventory management. The reservation engine only reads
// and writes Status, always under a row lock.
type Device struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	Serial    string       `gorm:"size:120;uniqueIndex;not null" json:"serial"`
	Name      string       `gorm:"size:200;not null" json:"name"`
	Status    DeviceStatus `gorm:"size:20;not null;default:'available'" json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (Device) TableName() string { return DeviceTable }
