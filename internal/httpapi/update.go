package httpapi

import (
	"context"

	"laplace/internal/lapp"
	"laplace/internal/logging"
)

// applyUpdate performs q against l's settings and, when enabled flips,
// loads or unloads the lapp — spec.md §4.4's update protocol. It returns a
// response carrying only the fields that actually changed, so repeated
// identical applications report nothing further (the idempotence property
// spec.md §8 requires).
func applyUpdate(ctx context.Context, mgr *lapp.Manager, l *lapp.Lapp, q UpdateQuery) (UpdateResponse, error) {
	resp := UpdateResponse{Updated: UpdateQuery{LappName: q.LappName}}

	var enabledChanged, allowChanged, denyChanged bool
	var newEnabled bool
	var allowedPerm, deniedPerm lapp.Permission

	err := mgr.MutateSettings(l, func(s *lapp.Settings) {
		if q.Enabled != nil && s.Enabled != *q.Enabled {
			s.Enabled = *q.Enabled
			enabledChanged = true
			newEnabled = *q.Enabled
		}
		if q.AllowPermission != nil {
			allowedPerm = lapp.Permission(*q.AllowPermission)
			allowChanged = s.Allow(allowedPerm)
		}
		if q.DenyPermission != nil {
			deniedPerm = lapp.Permission(*q.DenyPermission)
			denyChanged = s.Deny(deniedPerm)
		}
	})
	if err != nil {
		return UpdateResponse{}, err
	}

	if enabledChanged {
		b := newEnabled
		resp.Updated.Enabled = &b
	}
	if allowChanged {
		v := string(allowedPerm)
		resp.Updated.AllowPermission = &v
	}
	if denyChanged {
		v := string(deniedPerm)
		resp.Updated.DenyPermission = &v
	}

	if enabledChanged {
		if newEnabled {
			if err := mgr.Load(ctx, l); err != nil {
				logging.WithLapp(l.Name, logging.LevelError, "loading after enable: %v", err)
			}
		} else if l.Loaded() {
			if err := mgr.Unload(ctx, l); err != nil {
				logging.WithLapp(l.Name, logging.LevelError, "unloading after disable: %v", err)
			}
		}
	}

	return resp, nil
}
