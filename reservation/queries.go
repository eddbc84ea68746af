package reservation

import (
	"context"

	"github.com/pearleseed/device-hub-sub001/models"
)

// BorrowDetail is a borrow with its return, if any, and its renewals.
type BorrowDetail struct {
	Borrow   models.BorrowRequest    `json:"borrow"`
	Return   *models.ReturnRequest   `json:"return,omitempty"`
	Renewals []models.RenewalRequest `json:"renewals"`
}

func (s *Service) GetBorrow(ctx context.Context, id string, actor Actor) (*BorrowDetail, error) {
	const op = "get borrow"
	var out *BorrowDetail
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		b, err := s.visibleBorrow(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		r, err := tx.FindReturnByBorrow(ctx, b.ID)
		if err != nil {
			return err
		}
		rns, err := tx.ListRenewals(ctx, b.ID)
		if err != nil {
			return err
		}
		out = &BorrowDetail{Borrow: *b, Return: r, Renewals: rns}
		return nil
	})
	return out, err
}

// ListBorrows pages through borrow requests. Non-admins are restricted to
// their own requests whatever the filter says.
func (s *Service) ListBorrows(ctx context.Context, f BorrowFilter, actor Actor) (*BorrowPage, error) {
	const op = "list borrows"
	if actor.ID == "" {
		return nil, withOp(op, permissionErr("listing requests requires %s", PermAuthenticated))
	}
	if !actor.IsAdmin {
		f.UserID = actor.ID
	}
	f = f.Normalize()
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return nil, withOp(op, validationErr("to %s must be after from %s", dateString(f.To), dateString(f.From)))
	}

	var page *BorrowPage
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		p, err := tx.ListBorrows(ctx, f)
		page = p
		return err
	})
	return page, err
}

func (s *Service) ListRenewals(ctx context.Context, borrowID string, actor Actor) ([]models.RenewalRequest, error) {
	const op = "list renewals"
	var out []models.RenewalRequest
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		b, err := s.visibleBorrow(ctx, tx, borrowID, actor)
		if err != nil {
			return err
		}
		out, err = tx.ListRenewals(ctx, b.ID)
		return err
	})
	return out, err
}

// GetReturnByBorrow returns the borrow's return or a not_found error.
func (s *Service) GetReturnByBorrow(ctx context.Context, borrowID string, actor Actor) (*models.ReturnRequest, error) {
	const op = "get return"
	var out *models.ReturnRequest
	err := s.coord.Execute(ctx, op, func(tx Tx) error {
		b, err := s.visibleBorrow(ctx, tx, borrowID, actor)
		if err != nil {
			return err
		}
		r, err := tx.FindReturnByBorrow(ctx, b.ID)
		if err != nil {
			return err
		}
		if r == nil {
			return NotFound("return for borrow request", b.ID)
		}
		out = r
		return nil
	})
	return out, err
}

func (s *Service) visibleBorrow(ctx context.Context, tx Tx, id string, actor Actor) (*models.BorrowRequest, error) {
	b, err := tx.GetBorrow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !PermOwnerOrAdmin.Allows(actor, b.UserID) {
		return nil, permissionErr("borrow request %s belongs to another user", id)
	}
	return b, nil
}
