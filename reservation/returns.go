package reservation

import (
	"context"
	"strings"

	"github.com/pearleseed/device-hub-sub001/models"
)

const objReturn = "return_request"

// CreateReturn records a return and, in the same transaction, moves the borrow
// to returned, rejects any pending renewal, and recomputes the device status.
func (s *Service) CreateReturn(ctx context.Context, cmd CreateReturn) (*models.ReturnRequest, error) {
	const op = "create return"
	if err := s.check(cmd); err != nil {
		return nil, withOp(op, err)
	}
	cmd.Notes = strings.TrimSpace(cmd.Notes)
	if cmd.Condition == models.ConditionDamaged && cmd.Notes == "" {
		return nil, withOp(op, validationErr("notes are required when the device is returned damaged"))
	}

	var (
		created *models.ReturnRequest
		fx      *effects
	)
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		b, dev, err := s.lockBorrow(ctx, tx, cmd.BorrowRequestID)
		if err != nil {
			return err
		}
		if err := authorizeCreate(RequestReturn, cmd.Actor, b.UserID); err != nil {
			return err
		}
		existing, err := tx.FindReturnByBorrow(ctx, b.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflictErr("borrow request %s already has return %s", b.ID, existing.ID)
		}
		if b.Status != models.BorrowActive {
			return invalidTransitionErr("borrow request %s is %s, only active loans can be returned", b.ID, b.Status)
		}
		sys := systemActor(cmd.Actor.ID)
		if err := authorizeTransition(RequestBorrow, string(b.Status), string(models.BorrowReturned), sys, b.UserID); err != nil {
			return err
		}

		now := s.now()
		r := &models.ReturnRequest{
			ID:              newID(),
			BorrowRequestID: b.ID,
			DeviceID:        dev.ID,
			ReturnDate:      DateOf(now),
			Condition:       cmd.Condition,
			Notes:           cmd.Notes,
			CreatedBy:       cmd.Actor.ID,
		}
		if err := tx.CreateReturn(ctx, r); err != nil {
			return err
		}

		before := *b
		b.Status = models.BorrowReturned
		if err := tx.UpdateBorrow(ctx, b); err != nil {
			return err
		}

		fx = &effects{}
		fx.audit("create", objReturn, r.ID, cmd.Actor, nil, *r, now)
		fx.audit("status:"+string(models.BorrowReturned), objBorrow, b.ID, sys, before, *b, now)

		if err := s.closePendingRenewals(ctx, tx, fx, b, dev, sys, now); err != nil {
			return err
		}

		n, err := tx.CountActive(ctx, dev.ID, b.ID)
		if err != nil {
			return err
		}
		next := ProjectDeviceStatus(Projection{Current: dev.Status, HasActive: n > 0, Return: &r.Condition})
		if err := s.setDeviceStatus(ctx, tx, fx, dev, next, sys, now); err != nil {
			return err
		}

		msg := describe("%s was returned in %s condition", dev.Name, r.Condition)
		fx.notify(Event{
			Type:             EventBorrowReturned,
			TargetUserIDs:    []string{b.UserID},
			TargetAdmins:     true,
			Title:            "Device returned",
			Message:          msg,
			RelatedRequestID: b.ID,
			RelatedDeviceID:  dev.ID,
			OccurredAt:       now,
		})
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, op, fx)
	return created, nil
}

// UpdateReturnCondition corrects the recorded condition of a return. The
// borrow stays returned; only the device status is recomputed, and only when
// this is the device's most recent return.
func (s *Service) UpdateReturnCondition(ctx context.Context, cmd UpdateReturnCondition) (*models.ReturnRequest, error) {
	const op = "update return condition"
	if err := s.check(cmd); err != nil {
		return nil, withOp(op, err)
	}
	if !permCorrectReturn.Allows(cmd.Actor, "") {
		return nil, withOp(op, permissionErr("correcting a return requires %s", permCorrectReturn))
	}

	var (
		updated *models.ReturnRequest
		fx      *effects
	)
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		r, err := tx.GetReturn(ctx, cmd.ReturnRequestID)
		if err != nil {
			return err
		}
		dev, err := tx.LockDevice(ctx, r.DeviceID)
		if err != nil {
			return err
		}
		if r, err = tx.GetReturn(ctx, cmd.ReturnRequestID); err != nil {
			return err
		}

		before := *r
		if cmd.Notes != nil {
			r.Notes = strings.TrimSpace(*cmd.Notes)
		}
		if cmd.Condition == models.ConditionDamaged && r.Notes == "" {
			return validationErr("notes are required when the device is damaged")
		}
		r.Condition = cmd.Condition
		if err := tx.UpdateReturn(ctx, r); err != nil {
			return err
		}

		now := s.now()
		fx = &effects{}
		fx.audit("update_condition", objReturn, r.ID, cmd.Actor, before, *r, now)

		latest, err := tx.LatestReturn(ctx, dev.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.ID == r.ID {
			n, err := tx.CountActive(ctx, dev.ID, "")
			if err != nil {
				return err
			}
			next := ProjectDeviceStatus(Projection{Current: dev.Status, HasActive: n > 0, Return: &r.Condition})
			if err := s.setDeviceStatus(ctx, tx, fx, dev, next, cmd.Actor, now); err != nil {
				return err
			}
		}

		b, err := tx.GetBorrow(ctx, r.BorrowRequestID)
		if err != nil {
			return err
		}
		fx.notify(Event{
			Type:             EventReturnCorrected,
			TargetUserIDs:    []string{b.UserID},
			Title:            "Return condition updated",
			Message:          describe("The return of %s was recorded as %s", dev.Name, r.Condition),
			RelatedRequestID: b.ID,
			RelatedDeviceID:  dev.ID,
			OccurredAt:       now,
		})
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, op, fx)
	return updated, nil
}
