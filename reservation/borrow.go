package reservation

import (
	"context"
	"time"

	"github.com/pearleseed/device-hub-sub001/models"
)

const objBorrow = "borrow_request"

// CreateBorrow reserves a device for [Start, End). The device row is locked
// before the conflict check so two overlapping requests for the same device
// cannot both pass it.
func (s *Service) CreateBorrow(ctx context.Context, cmd CreateBorrow) (*models.BorrowRequest, error) {
	const op = "create borrow"
	if err := s.check(cmd); err != nil {
		return nil, withOp(op, err)
	}
	iv, err := NewInterval(cmd.Start, cmd.End)
	if err != nil {
		return nil, withOp(op, err)
	}
	if today := s.today(); iv.Start.Before(today) {
		return nil, withOp(op, validationErr("start date %s is in the past", dateString(iv.Start)))
	}
	if err := authorizeCreate(RequestBorrow, cmd.Actor, cmd.Actor.ID); err != nil {
		return nil, withOp(op, err)
	}

	var (
		created *models.BorrowRequest
		fx      *effects
	)
	err = s.coord.Execute(ctx, op, func(tx Tx) error {
		dev, err := tx.LockDevice(ctx, cmd.DeviceID)
		if err != nil {
			return err
		}
		if dev.Status == models.DeviceMaintenance {
			return conflictErr("device %s is under maintenance", dev.ID)
		}
		clash, err := tx.HasConflict(ctx, dev.ID, iv, "")
		if err != nil {
			return err
		}
		if clash {
			return conflictErr("device %s is already reserved during %s", dev.ID, iv)
		}

		b := &models.BorrowRequest{
			ID:        newID(),
			DeviceID:  dev.ID,
			UserID:    cmd.Actor.ID,
			StartDate: iv.Start,
			EndDate:   iv.End,
			Reason:    cmd.Reason,
			Status:    models.BorrowPending,
		}
		if err := tx.CreateBorrow(ctx, b); err != nil {
			return err
		}

		now := s.now()
		fx = &effects{}
		fx.audit("create", objBorrow, b.ID, cmd.Actor, nil, *b, now)
		fx.notify(Event{
			Type:             EventBorrowCreated,
			TargetAdmins:     true,
			Title:            "New borrow request",
			Message:          describe("%s requested %s for %s", cmd.Actor.ID, dev.Name, iv),
			RelatedRequestID: b.ID,
			RelatedDeviceID:  dev.ID,
			OccurredAt:       now,
		})
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, op, fx)
	return created, nil
}

// SetBorrowStatus moves a borrow request along its transition table.
// Entering active marks the device borrowed; entering rejected recomputes
// the device status. returned is reachable only through CreateReturn.
func (s *Service) SetBorrowStatus(ctx context.Context, cmd SetBorrowStatus) (*models.BorrowRequest, error) {
	const op = "set borrow status"
	if err := s.check(cmd); err != nil {
		return nil, withOp(op, err)
	}

	var (
		updated *models.BorrowRequest
		fx      *effects
	)
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		b, dev, err := s.lockBorrow(ctx, tx, cmd.RequestID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(RequestBorrow, string(b.Status), string(cmd.Target), cmd.Actor, b.UserID); err != nil {
			return err
		}

		before := *b
		now := s.now()
		ev := Event{
			TargetUserIDs:    []string{b.UserID},
			RelatedRequestID: b.ID,
			RelatedDeviceID:  dev.ID,
			OccurredAt:       now,
		}

		switch cmd.Target {
		case models.BorrowApproved:
			b.ApprovedBy = ptr(cmd.Actor.ID)
			b.ApprovedAt = ptr(now)
			ev.Type, ev.Title = EventBorrowApproved, "Borrow request approved"
			ev.Message = describe("Your request for %s from %s to %s was approved", dev.Name, dateString(b.StartDate), dateString(b.EndDate))

		case models.BorrowActive:
			if dev.Status == models.DeviceMaintenance {
				return conflictErr("device %s is under maintenance", dev.ID)
			}
			n, err := tx.CountActive(ctx, dev.ID, b.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return conflictErr("device %s is still out on another loan", dev.ID)
			}
			ev.Type, ev.Title = EventBorrowActivated, "Device handed over"
			ev.Message = describe("%s is now on loan to you until %s", dev.Name, dateString(b.EndDate))

		case models.BorrowRejected:
			b.ApprovedBy = ptr(cmd.Actor.ID)
			b.ApprovedAt = ptr(now)
			ev.Type, ev.Title = EventBorrowRejected, "Borrow request rejected"
			ev.Message = describe("Your request for %s was rejected", dev.Name)
		}

		b.Status = cmd.Target
		if err := tx.UpdateBorrow(ctx, b); err != nil {
			return err
		}

		fx = &effects{}
		fx.audit("status:"+string(cmd.Target), objBorrow, b.ID, cmd.Actor, before, *b, now)

		next := dev.Status
		switch cmd.Target {
		case models.BorrowActive:
			next = models.DeviceBorrowed
		case models.BorrowRejected:
			n, err := tx.CountActive(ctx, dev.ID, b.ID)
			if err != nil {
				return err
			}
			next = ProjectDeviceStatus(Projection{Current: dev.Status, HasActive: n > 0})
		}
		if err := s.setDeviceStatus(ctx, tx, fx, dev, next, cmd.Actor, now); err != nil {
			return err
		}

		fx.notify(ev)
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, op, fx)
	return updated, nil
}

// lockBorrow loads a borrow, locks its device, and re-reads the borrow under
// the lock. Locks are always taken device first.
func (s *Service) lockBorrow(ctx context.Context, tx Tx, id string) (*models.BorrowRequest, *models.Device, error) {
	b, err := tx.GetBorrow(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	dev, err := tx.LockDevice(ctx, b.DeviceID)
	if err != nil {
		return nil, nil, err
	}
	b, err = tx.GetBorrow(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, dev, nil
}

func (s *Service) setDeviceStatus(ctx context.Context, tx Tx, fx *effects, dev *models.Device, next models.DeviceStatus, actor Actor, now time.Time) error {
	if next == dev.Status {
		return nil
	}
	before := *dev
	if err := tx.SetDeviceStatus(ctx, dev.ID, next); err != nil {
		return err
	}
	dev.Status = next
	fx.audit("status:"+string(next), "device", dev.ID, actor, before, *dev, now)
	return nil
}
