package db

import (
	"context"
	"strings"

	"github.com/pearleseed/device-hub-sub001/models"
)

func (r *Repo) SetUserAdmin(ctx context.Context, userID string, isAdmin bool) error {
	res := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(errNoRows, "user", userID)
	}
	return nil
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("is_admin = ?", true).
		Count(&n).Error
	return n, err
}

// PromoteAdmins grants the admin flag to every existing user whose username
// is in the list. Comparison is case-insensitive.
func (r *Repo) PromoteAdmins(ctx context.Context, usernames []string) (int64, error) {
	lowered := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			lowered = append(lowered, u)
		}
	}
	if len(lowered) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("LOWER(username) IN ? AND is_admin = ?", lowered, false).
		Update("is_admin", true)
	return res.RowsAffected, res.Error
}
