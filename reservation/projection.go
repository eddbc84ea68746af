package reservation

import "github.com/pearleseed/device-hub-sub001/models"

// Projection holds what the device status depends on at the moment a
// reservation is released or a return is corrected.
type Projection struct {
	Current models.DeviceStatus
	// HasActive is true when another reservation on the device is active.
	HasActive bool
	// Return is the condition of the return that triggered the recompute, or
	// nil when the trigger is a rejection.
	Return *models.DeviceCondition
}

// ProjectDeviceStatus derives the device status:
// borrowed while any reservation is active; after a return, maintenance if it
// reported damage and available otherwise; after a rejection the device keeps
// a maintenance status (only a return correction resets it) and is otherwise
// available.
func ProjectDeviceStatus(p Projection) models.DeviceStatus {
	if p.HasActive {
		return models.DeviceBorrowed
	}
	if p.Return != nil {
		if *p.Return == models.ConditionDamaged {
			return models.DeviceMaintenance
		}
		return models.DeviceAvailable
	}
	if p.Current == models.DeviceMaintenance {
		return models.DeviceMaintenance
	}
	return models.DeviceAvailable
}
