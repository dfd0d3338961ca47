package engine

import (
	"context"
	"fmt"

	"github.com/ndmitriev/giftarb/internal/service"
)

const expiredNotice = "⛔ Your subscription has expired. The watcher has been stopped.\nUse /subscribe to renew."

// checkEntitlement decides whether an acquired user should be polled this
// cycle. An entitled user whose watcher is off is switched back on and
// polled, so a paid renewal or admin grant resumes alerts without a /start.
// When a subscription has lapsed under an active watcher, the user is
// deactivated and told exactly once; the persisted Active flag is what keeps
// the notice from repeating.
func (e *Engine) checkEntitlement(ctx context.Context, u *acquiredUser) (bool, error) {
	if service.Entitled(u.prefs, e.now()) {
		if !u.prefs.Active {
			u.prefs.Active = true
			if err := e.prefs.Save(ctx, u.prefs); err != nil {
				return false, fmt.Errorf("engine: reactivate user %d: %w", u.prefs.UserID, err)
			}
			e.log.Info("entitled user re-activated", "user_id", u.prefs.UserID)
		}
		return true, nil
	}
	if !u.prefs.Active {
		return false, nil
	}

	u.prefs.Active = false
	if err := e.prefs.Save(ctx, u.prefs); err != nil {
		return false, fmt.Errorf("engine: deactivate expired user %d: %w", u.prefs.UserID, err)
	}
	e.log.Info("subscription expired, watcher stopped", "user_id", u.prefs.UserID)

	if err := e.messenger.Send(ctx, u.prefs.UserID, expiredNotice); err != nil {
		e.log.Warn("expiry notice delivery failed", "user_id", u.prefs.UserID, "error", err)
	}
	return false, nil
}
