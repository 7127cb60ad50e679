// Package httpapi defines the management HTTP API's payload shapes and the
// handlers that serve them, plus the end-user-facing proxy into a lapp's
// process_http/WebSocket/gossip surface. Per spec.md §1 the outer router
// (TLS, cookies, static asset serving, the management UI itself) is an
// external collaborator; this package is the core-facing surface it mounts.
package httpapi

import (
	"time"

	"laplace/internal/lapp"
)

// formatTime renders t as RFC3339, or "" for the zero value.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// LappSettingsView is the wire shape of one lapp's settings returned by the
// management API, spec.md §6. Field names are the JSON the management UI
// consumes; Required/Allowed are sorted string slices rather than
// lapp.PermissionSet so they marshal predictably.
type LappSettingsView struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Loaded  bool   `json:"loaded"`

	// HasAccessToken reports whether one is configured; the token's value
	// itself is never surfaced by the management API.
	HasAccessToken bool `json:"has_access_token"`

	Required []string `json:"required"`
	Allowed  []string `json:"allowed"`

	DatabaseEnabled bool   `json:"database_enabled"`
	DatabasePath    string `json:"database_path,omitempty"`

	HTTPAllowedHosts   []string `json:"http_allowed_hosts"`
	HTTPAllowedMethods []string `json:"http_allowed_methods"`
	HTTPTimeoutMS      int      `json:"http_timeout_ms,omitempty"`

	GossipsubListenAddr string   `json:"gossipsub_listen_addr,omitempty"`
	GossipsubDialPorts  []int    `json:"gossipsub_dial_ports,omitempty"`
	GossipsubTopics     []string `json:"gossipsub_topics,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// LappsListResponse is GET /<admin>/lapps's body and POST /<admin>/lapp/add's
// response after a successful extraction, spec.md §6.
type LappsListResponse struct {
	Lapps []LappSettingsView `json:"lapps"`
}

// UpdateQuery is the idempotent update operation described in spec.md §4.4:
// applying it returns the resulting query with only the fields that
// actually changed set, so a client can observe what took effect. A nil
// pointer field means "leave this alone"; a non-nil one is the requested
// value.
type UpdateQuery struct {
	LappName        string  `json:"lapp_name"`
	Enabled         *bool   `json:"enabled,omitempty"`
	AllowPermission *string `json:"allow_permission,omitempty"`
	DenyPermission  *string `json:"deny_permission,omitempty"`
}

// UpdateResponse wraps the echoed, change-only UpdateQuery per spec.md §6's
// `{ "updated": UpdateQuery }` shape.
type UpdateResponse struct {
	Updated UpdateQuery `json:"updated"`
}

// ErrorResponse is the JSON body of every non-2xx management API response,
// spec.md §7: `{error}` plus a request_id for log correlation (SPEC_FULL.md
// §3's ambient addition, generated with github.com/google/uuid).
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// lappSettingsView builds the wire view of l's current settings.
func lappSettingsView(l *lapp.Lapp) LappSettingsView {
	s := l.Settings()
	return LappSettingsView{
		Name:                s.Name,
		Enabled:             s.Enabled,
		Loaded:              l.Loaded(),
		HasAccessToken:      s.AccessToken != "",
		Required:            s.Required.Strings(),
		Allowed:             s.Allowed.Strings(),
		DatabaseEnabled:     s.DatabaseEnabled,
		DatabasePath:        s.DatabasePath,
		HTTPAllowedHosts:    s.HTTPAllowedHosts,
		HTTPAllowedMethods:  s.HTTPAllowedMethods,
		HTTPTimeoutMS:       s.HTTPTimeoutMS,
		GossipsubListenAddr: s.GossipsubListenAddr,
		GossipsubDialPorts:  s.GossipsubDialPorts,
		GossipsubTopics:     s.GossipsubTopics,
		CreatedAt:           formatTime(s.CreatedAt),
		UpdatedAt:           formatTime(s.UpdatedAt),
	}
}
