package reservation

import (
	"context"
	"time"

	"github.com/pearleseed/device-hub-sub001/models"
)

const objRenewal = "renewal_request"

// CreateRenewal asks to extend an active loan. At most one renewal per borrow
// may be pending, and the extended interval must be free when requested.
func (s *Service) CreateRenewal(ctx context.Context, cmd CreateRenewal) (*models.RenewalRequest, error) {
	const op = "create renewal"
	if err := s.check(cmd); err != nil {
		return nil, withOp(op, err)
	}
	if cmd.RequestedEnd.IsZero() {
		return nil, withOp(op, validationErr("requested end date is required"))
	}
	requested := DateOf(cmd.RequestedEnd)

	var (
		created *models.RenewalRequest
		fx      *effects
	)
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		b, dev, err := s.lockBorrow(ctx, tx, cmd.BorrowRequestID)
		if err != nil {
			return err
		}
		if err := authorizeCreate(RequestRenewal, cmd.Actor, b.UserID); err != nil {
			return err
		}
		if b.Status != models.BorrowActive {
			return invalidTransitionErr("borrow request %s is %s, only active loans can be renewed", b.ID, b.Status)
		}
		if !requested.After(b.EndDate) {
			return validationErr("requested end date %s must be after the current end date %s",
				dateString(requested), dateString(b.EndDate))
		}
		pending, err := tx.ListRenewals(ctx, b.ID, models.RenewalPending)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return conflictErr("borrow request %s already has pending renewal %s", b.ID, pending[0].ID)
		}
		iv := Interval{Start: b.StartDate, End: requested}
		clash, err := tx.HasConflict(ctx, dev.ID, iv, b.ID)
		if err != nil {
			return err
		}
		if clash {
			return conflictErr("device %s is reserved by someone else before %s", dev.ID, dateString(requested))
		}

		rn := &models.RenewalRequest{
			ID:               newID(),
			BorrowRequestID:  b.ID,
			CurrentEndDate:   b.EndDate,
			RequestedEndDate: requested,
			Reason:           cmd.Reason,
			Status:           models.RenewalPending,
			RequestedBy:      cmd.Actor.ID,
		}
		if err := tx.CreateRenewal(ctx, rn); err != nil {
			return err
		}

		now := s.now()
		fx = &effects{}
		fx.audit("create", objRenewal, rn.ID, cmd.Actor, nil, *rn, now)
		fx.notify(Event{
			Type:             EventRenewalCreated,
			TargetAdmins:     true,
			Title:            "New renewal request",
			Message:          describe("Extend %s from %s to %s", dev.Name, dateString(b.EndDate), dateString(requested)),
			RelatedRequestID: rn.ID,
			RelatedDeviceID:  dev.ID,
			OccurredAt:       now,
		})
		created = rn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, op, fx)
	return created, nil
}

// SetRenewalStatus approves or rejects a pending renewal. Approval re-runs the
// conflict check for [start, requested end) against reservations made since
// the renewal was filed, then extends the borrow's end date.
func (s *Service) SetRenewalStatus(ctx context.Context, cmd SetRenewalStatus) (*models.RenewalRequest, error) {
	const op = "set renewal status"
	if err := s.check(cmd); err != nil {
		return nil, withOp(op, err)
	}

	var (
		updated *models.RenewalRequest
		fx      *effects
	)
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		rn, err := tx.GetRenewal(ctx, cmd.RenewalID)
		if err != nil {
			return err
		}
		b, dev, err := s.lockBorrow(ctx, tx, rn.BorrowRequestID)
		if err != nil {
			return err
		}
		if rn, err = tx.GetRenewal(ctx, cmd.RenewalID); err != nil {
			return err
		}
		if err := authorizeTransition(RequestRenewal, string(rn.Status), string(cmd.Target), cmd.Actor, b.UserID); err != nil {
			return err
		}

		now := s.now()
		fx = &effects{}
		ev := Event{
			TargetUserIDs:    []string{b.UserID},
			RelatedRequestID: rn.ID,
			RelatedDeviceID:  dev.ID,
			OccurredAt:       now,
		}

		if cmd.Target == models.RenewalApproved {
			if b.Status != models.BorrowActive {
				return invalidTransitionErr("borrow request %s is %s, only active loans can be extended", b.ID, b.Status)
			}
			iv := Interval{Start: b.StartDate, End: rn.RequestedEndDate}
			clash, err := tx.HasConflict(ctx, dev.ID, iv, b.ID)
			if err != nil {
				return err
			}
			if clash {
				return conflictErr("device %s was reserved by someone else before %s", dev.ID, dateString(rn.RequestedEndDate))
			}
			beforeBorrow := *b
			b.EndDate = rn.RequestedEndDate
			if err := tx.UpdateBorrow(ctx, b); err != nil {
				return err
			}
			fx.audit("extend", objBorrow, b.ID, cmd.Actor, beforeBorrow, *b, now)
			ev.Type, ev.Title = EventRenewalApproved, "Renewal approved"
			ev.Message = describe("%s is now yours until %s", dev.Name, dateString(b.EndDate))
		} else {
			ev.Type, ev.Title = EventRenewalRejected, "Renewal rejected"
			ev.Message = describe("%s is still due on %s", dev.Name, dateString(b.EndDate))
		}

		before := *rn
		review(rn, cmd.Target, cmd.Actor, now)
		if err := tx.UpdateRenewal(ctx, rn); err != nil {
			return err
		}
		fx.audit("status:"+string(cmd.Target), objRenewal, rn.ID, cmd.Actor, before, *rn, now)
		fx.notify(ev)
		updated = rn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, op, fx)
	return updated, nil
}

// closePendingRenewals rejects renewals left pending when their borrow ends
// and tells each requester.
func (s *Service) closePendingRenewals(ctx context.Context, tx Tx, fx *effects, b *models.BorrowRequest, dev *models.Device, actor Actor, now time.Time) error {
	pending, err := tx.ListRenewals(ctx, b.ID, models.RenewalPending)
	if err != nil {
		return err
	}
	for i := range pending {
		rn := &pending[i]
		before := *rn
		review(rn, models.RenewalRejected, actor, now)
		if err := tx.UpdateRenewal(ctx, rn); err != nil {
			return err
		}
		fx.audit("status:"+string(models.RenewalRejected), objRenewal, rn.ID, actor, before, *rn, now)
		fx.notify(Event{
			Type:             EventRenewalRejected,
			TargetUserIDs:    []string{rn.RequestedBy},
			Title:            "Renewal rejected",
			Message:          describe("%s was returned before the renewal was reviewed", dev.Name),
			RelatedRequestID: rn.ID,
			RelatedDeviceID:  dev.ID,
			OccurredAt:       now,
		})
	}
	return nil
}

func review(rn *models.RenewalRequest, status models.RenewalStatus, actor Actor, now time.Time) {
	rn.Status = status
	rn.ReviewedBy = ptr(actor.ID)
	rn.ReviewedAt = ptr(now)
}
