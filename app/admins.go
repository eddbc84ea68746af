package app

import (
	"context"
	"log/slog"
)

type AdminPromoter interface {
	PromoteAdmins(ctx context.Context, usernames []string) (int64, error)
	CountAdmins(ctx context.Context) (int64, error)
}

// SyncAdmins persists the ADMIN_EMAILS list as the users' admin flag so
// listings and exports agree with what the middleware enforces.
func SyncAdmins(ctx context.Context, repo AdminPromoter, cfg Config, log *slog.Logger) error {
	if len(cfg.AdminEmails) > 0 {
		n, err := repo.PromoteAdmins(ctx, cfg.AdminEmails)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("promoted configured admins", "count", n)
		}
	}
	total, err := repo.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if total == 0 {
		log.Warn("no administrator exists yet; set ADMIN_EMAILS to a registered username")
	}
	return nil
}
