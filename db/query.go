package db

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"gorm.io/gorm"

	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
)

// borrowQuery builds the filter with goqu's default dialect: "?" placeholders
// and double-quoted identifiers, which gorm rebinds for postgres and passes
// through unchanged for sqlite. Every value is bound, never interpolated.
func borrowQuery(f reservation.BorrowFilter) *goqu.SelectDataset {
	var where []exp.Expression
	if f.DeviceID != "" {
		where = append(where, goqu.C("device_id").Eq(f.DeviceID))
	}
	if f.UserID != "" {
		where = append(where, goqu.C("user_id").Eq(f.UserID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, goqu.C("status").In(statuses))
	}
	if !f.From.IsZero() {
		where = append(where, goqu.C("end_date").Gt(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, goqu.C("start_date").Lt(f.To))
	}
	return goqu.From(models.BorrowTable).Where(where...).Prepared(true)
}

func listBorrows(ctx context.Context, tx *gorm.DB, f reservation.BorrowFilter) (*reservation.BorrowPage, error) {
	f = f.Normalize()
	ds := borrowQuery(f)

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, err
	}
	page := &reservation.BorrowPage{Items: []models.BorrowRequest{}}
	if err := tx.WithContext(ctx).Raw(countSQL, countArgs...).Scan(&page.Total).Error; err != nil {
		return nil, err
	}
	if page.Total == 0 {
		return page, nil
	}

	listSQL, listArgs, err := ds.
		Order(goqu.C("start_date").Desc(), goqu.C("id").Asc()).
		Limit(uint(f.Size)).
		Offset(uint(f.Offset())).
		ToSQL()
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Raw(listSQL, listArgs...).Scan(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}
