package lapp

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"laplace/internal/security"
)

// settingsKey is an optional host-wide key used to encrypt each lapp's
// access_token at rest (SetSettingsKey, typically called once at process
// start from LAPLACE_SETTINGS_KEY). Nil means access tokens are stored in
// plain text, which is the default for local development.
var settingsKey []byte

// SetSettingsKey installs the key used to seal/unseal AccessToken fields in
// config.toml. Pass security.DeriveKey(passphrase)'s result.
func SetSettingsKey(key []byte) { settingsKey = key }

// settingsFileName is the name of the per-lapp settings file inside a
// lapp's working directory, spec.md §3.
const settingsFileName = "config.toml"

// settingsDoc is the on-disk TOML shape of a lapp's settings. Field names
// are chosen to match the table headers a hand-edited config.toml would
// use; PermissionSet's own Strings()/PermissionSetFromStrings() carry the
// array-of-string encoding.
type settingsDoc struct {
	Application applicationDoc `toml:"application"`
	Permissions permissionsDoc `toml:"permissions"`
	Database    databaseDoc    `toml:"database"`
	Network     networkDoc     `toml:"network"`
	ACL         aclDoc         `toml:"acl"`
}

type applicationDoc struct {
	Name        string `toml:"name"`
	Enabled     bool   `toml:"enabled"`
	AccessToken string `toml:"access_token"`
	CreatedAt   string `toml:"created_at"`
	UpdatedAt   string `toml:"updated_at"`
}

type permissionsDoc struct {
	Required []string `toml:"required"`
	Allowed  []string `toml:"allowed"`
}

type databaseDoc struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type networkDoc struct {
	HTTP      httpNetworkDoc      `toml:"http"`
	Gossipsub gossipsubNetworkDoc `toml:"gossipsub"`
}

type httpNetworkDoc struct {
	AllowedHosts   []string `toml:"allowed_hosts"`
	AllowedMethods []string `toml:"allowed_methods"`
	TimeoutMS      int      `toml:"timeout_ms"`
}

type gossipsubNetworkDoc struct {
	ListenAddr string   `toml:"listen_addr"`
	DialPorts  []int    `toml:"dial_ports"`
	Topics     []string `toml:"topics"`
}

// aclDoc is the optional inter-lapp request ACL SPEC_FULL.md §10
// supplements: the set of lapp names permitted to call into this one, and
// the set this one is permitted to call out to. Either permission
// (LappsIncoming/LappsOutgoing) must also be granted for the ACL to have
// any effect — see CanCall in acl.go.
type aclDoc struct {
	AllowedCallers []string `toml:"allowed_callers"`
	AllowedTargets []string `toml:"allowed_targets"`
}

// Settings is a lapp's parsed, in-memory configuration: its declared name,
// enabled flag, required vs. allowed permission sets, and the per-capability
// fine print (outbound HTTP allow-lists, gossip topics) gating the host
// imports in C7.
//
// Per spec.md §4.4, Required is fixed by the lapp's manifest (or its prior
// config.toml) and never grows at runtime; Allowed is the operator-granted
// subset of Required. allow(p) only has an effect when p is already in
// Required — granting a permission a lapp never declared is a no-op.
type Settings struct {
	Name    string
	Enabled bool

	// AccessToken gates end-user access to this lapp (checked by the outer
	// router's cookie middleware, out of this core's scope per spec.md §1);
	// it is persisted sealed under settingsKey when one is configured.
	AccessToken string

	Required PermissionSet
	Allowed  PermissionSet

	DatabaseEnabled bool
	// DatabasePath is the lapp's SQLite file, spec.md §3's "database (path,
	// relative paths resolve under root_dir)". Empty means unset; Manager.Load
	// falls back to data/<name>.db in that case.
	DatabasePath string

	HTTPAllowedHosts   []string
	HTTPAllowedMethods []string
	// HTTPTimeoutMS bounds an outbound invoke_http call, spec.md §3/§4.7. 0
	// means unset; newHTTPHost falls back to its own default in that case.
	HTTPTimeoutMS int

	GossipsubListenAddr string
	GossipsubDialPorts  []int
	GossipsubTopics     []string

	AllowedCallers []string
	AllowedTargets []string

	// CreatedAt/UpdatedAt are operator-visible timestamps (SPEC_FULL.md §3);
	// they carry no invariant and are never validated.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultSettings returns the settings for a freshly discovered lapp that
// has no config.toml yet: disabled, with the given required permission set
// and nothing granted.
func DefaultSettings(name string, required PermissionSet) Settings {
	now := time.Now().UTC()
	return Settings{
		Name:      name,
		Enabled:   false,
		Required:  required,
		Allowed:   NewPermissionSet(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// allow grants p if it is declared in Required, returning whether the
// Allowed set changed. Granting a permission outside Required is a no-op
// and reports no change, per spec.md §4.4's invariant that Allowed is
// always a subset of Required.
func (s *Settings) allow(p Permission) (changed bool) {
	if !s.Required.Has(p) {
		return false
	}
	return s.Allowed.Add(p)
}

// deny revokes p from Allowed, returning whether it changed anything.
// Revocation never changes the running instance's behavior (spec.md §4.4:
// no runtime revocation) — it only takes effect the next time the lapp is
// loaded.
func (s *Settings) deny(p Permission) (changed bool) {
	return s.Allowed.Remove(p)
}

// Allow is the exported form of allow, for callers outside this package
// (internal/httpapi's update handler) that only ever see a *Settings
// through Manager.MutateSettings.
func (s *Settings) Allow(p Permission) (changed bool) { return s.allow(p) }

// Deny is the exported form of deny; see Allow.
func (s *Settings) Deny(p Permission) (changed bool) { return s.deny(p) }

// HasAllowed reports whether p is both required and granted — the check
// every host import in C7 makes before acting.
func (s *Settings) HasAllowed(p Permission) bool {
	return s.Required.Has(p) && s.Allowed.Has(p)
}

func toDoc(s Settings) (settingsDoc, error) {
	token := s.AccessToken
	if settingsKey != nil {
		sealed, err := security.EncryptToken(s.AccessToken, settingsKey)
		if err != nil {
			return settingsDoc{}, fmt.Errorf("lapp: sealing access_token: %w", err)
		}
		token = sealed
	}
	return settingsDoc{
		Application: applicationDoc{
			Name:        s.Name,
			Enabled:     s.Enabled,
			AccessToken: token,
			CreatedAt:   formatRFC3339(s.CreatedAt),
			UpdatedAt:   formatRFC3339(s.UpdatedAt),
		},
		Permissions: permissionsDoc{
			Required: s.Required.Strings(),
			Allowed:  s.Allowed.Strings(),
		},
		Database: databaseDoc{Enabled: s.DatabaseEnabled, Path: s.DatabasePath},
		Network: networkDoc{
			HTTP: httpNetworkDoc{
				AllowedHosts:   s.HTTPAllowedHosts,
				AllowedMethods: s.HTTPAllowedMethods,
				TimeoutMS:      s.HTTPTimeoutMS,
			},
			Gossipsub: gossipsubNetworkDoc{
				ListenAddr: s.GossipsubListenAddr,
				DialPorts:  s.GossipsubDialPorts,
				Topics:     s.GossipsubTopics,
			},
		},
		ACL: aclDoc{
			AllowedCallers: s.AllowedCallers,
			AllowedTargets: s.AllowedTargets,
		},
	}, nil
}

// formatRFC3339 renders t as RFC3339, or "" for the zero value so a
// freshly-defaulted lapp's config.toml doesn't carry a misleading
// "0001-01-01" timestamp.
func formatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// parseRFC3339 is the tolerant inverse of formatRFC3339: a missing or
// malformed timestamp (e.g. a hand-edited config.toml) yields the zero
// value rather than a load failure.
func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fromDoc(d settingsDoc) (Settings, error) {
	required := PermissionSetFromStrings(d.Permissions.Required)
	allowed := PermissionSetFromStrings(d.Permissions.Allowed)
	// Allowed is clamped to Required on load: a config.toml hand-edited (or
	// left over from a prior manifest) to grant more than is required must
	// not smuggle in an ungranted capability.
	for p := range allowed {
		if !required.Has(p) {
			delete(allowed, p)
		}
	}

	token := d.Application.AccessToken
	if settingsKey != nil {
		plain, err := security.DecryptToken(token, settingsKey)
		if err != nil {
			return Settings{}, fmt.Errorf("lapp: unsealing access_token: %w", err)
		}
		token = plain
	}

	return Settings{
		Name:               d.Application.Name,
		Enabled:            d.Application.Enabled,
		AccessToken:        token,
		Required:           required,
		Allowed:            allowed,
		DatabaseEnabled:    d.Database.Enabled,
		DatabasePath:       d.Database.Path,
		HTTPAllowedHosts:   d.Network.HTTP.AllowedHosts,
		HTTPAllowedMethods: d.Network.HTTP.AllowedMethods,
		HTTPTimeoutMS:      d.Network.HTTP.TimeoutMS,

		GossipsubListenAddr: d.Network.Gossipsub.ListenAddr,
		GossipsubDialPorts:  d.Network.Gossipsub.DialPorts,
		GossipsubTopics:     d.Network.Gossipsub.Topics,

		AllowedCallers: d.ACL.AllowedCallers,
		AllowedTargets: d.ACL.AllowedTargets,

		CreatedAt: parseRFC3339(d.Application.CreatedAt),
		UpdatedAt: parseRFC3339(d.Application.UpdatedAt),
	}, nil
}

// LoadSettings reads and parses dir/config.toml. Callers distinguish a
// missing file (os.IsNotExist) from a malformed one so a freshly discovered
// lapp can fall back to DefaultSettings.
func LoadSettings(dir string) (Settings, error) {
	path := filepath.Join(dir, settingsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var doc settingsDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Settings{}, fmt.Errorf("lapp: parsing %s: %w", path, err)
	}
	return fromDoc(doc)
}

// SaveSettings persists s to dir/config.toml atomically: it writes to a
// temp file in the same directory and renames it over the target, so a
// crash mid-write never leaves a truncated config.toml behind.
func SaveSettings(dir string, s Settings) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	doc, err := toDoc(s)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("lapp: encoding settings: %w", err)
	}

	path := filepath.Join(dir, settingsFileName)
	tmp, err := os.CreateTemp(dir, ".config.toml.tmp-*")
	if err != nil {
		return fmt.Errorf("lapp: creating temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("lapp: writing temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("lapp: closing temp settings file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("lapp: renaming settings file into place: %w", err)
	}
	return nil
}
