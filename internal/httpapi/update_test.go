package httpapi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"laplace/internal/lapp"
)

func newTestManager(t *testing.T) (*lapp.Manager, *lapp.Lapp) {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "demo"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mgr := lapp.NewManager(root)
	if err := mgr.InsertLapp("demo"); err != nil {
		t.Fatalf("InsertLapp: %v", err)
	}
	if err := mgr.MutateSettings(mustLapp(t, mgr, "demo"), func(s *lapp.Settings) {
		s.Required.Add(lapp.PermissionHTTP)
	}); err != nil {
		t.Fatalf("MutateSettings: %v", err)
	}
	l := mustLapp(t, mgr, "demo")
	return mgr, l
}

func mustLapp(t *testing.T, mgr *lapp.Manager, name string) *lapp.Lapp {
	t.Helper()
	l, err := mgr.Lapp(name)
	if err != nil {
		t.Fatalf("Lapp(%s): %v", name, err)
	}
	return l
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestApplyUpdateGrantsPermissionAndReportsChange(t *testing.T) {
	mgr, l := newTestManager(t)
	ctx := context.Background()

	resp, err := applyUpdate(ctx, mgr, l, UpdateQuery{
		LappName:        "demo",
		AllowPermission: strPtr(string(lapp.PermissionHTTP)),
	})
	if err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	if resp.Updated.AllowPermission == nil || *resp.Updated.AllowPermission != string(lapp.PermissionHTTP) {
		t.Fatalf("expected AllowPermission to be echoed as changed, got %+v", resp.Updated)
	}
	if !l.Settings().HasAllowed(lapp.PermissionHTTP) {
		t.Fatal("expected http to now be allowed")
	}
}

func TestApplyUpdateIsIdempotent(t *testing.T) {
	mgr, l := newTestManager(t)
	ctx := context.Background()

	first, err := applyUpdate(ctx, mgr, l, UpdateQuery{LappName: "demo", AllowPermission: strPtr("http")})
	if err != nil {
		t.Fatalf("first applyUpdate: %v", err)
	}
	if first.Updated.AllowPermission == nil {
		t.Fatal("expected first application to report a change")
	}

	second, err := applyUpdate(ctx, mgr, l, UpdateQuery{LappName: "demo", AllowPermission: strPtr("http")})
	if err != nil {
		t.Fatalf("second applyUpdate: %v", err)
	}
	if second.Updated.AllowPermission != nil {
		t.Fatalf("expected repeated application to report no change, got %+v", second.Updated)
	}
}

func TestApplyUpdateEnablingLoadsTheLapp(t *testing.T) {
	mgr, l := newTestManager(t)
	ctx := context.Background()

	if _, err := applyUpdate(ctx, mgr, l, UpdateQuery{LappName: "demo", AllowPermission: strPtr("http")}); err != nil {
		t.Fatalf("applyUpdate allow: %v", err)
	}

	resp, err := applyUpdate(ctx, mgr, l, UpdateQuery{LappName: "demo", Enabled: boolPtr(true)})
	if err != nil {
		t.Fatalf("applyUpdate enable: %v", err)
	}
	if resp.Updated.Enabled == nil || !*resp.Updated.Enabled {
		t.Fatalf("expected Enabled to be echoed as changed to true, got %+v", resp.Updated)
	}
	// Loading will fail (no wasm file on disk in this fixture) and is
	// logged rather than returned, since enabling must not fail the whole
	// update merely because the guest module hasn't been uploaded yet.
}
