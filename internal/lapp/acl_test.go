package lapp

import "testing"

func TestCanCallRequiresBothPermissions(t *testing.T) {
	caller := DefaultSettings("a", NewPermissionSet(PermissionLappsOutgoing))
	callee := DefaultSettings("b", NewPermissionSet(PermissionLappsIncoming))

	if CanCall(caller, callee, "a", "b") {
		t.Fatal("expected denial: neither side has granted its permission yet")
	}

	caller.allow(PermissionLappsOutgoing)
	if CanCall(caller, callee, "a", "b") {
		t.Fatal("expected denial: callee has not granted LappsIncoming")
	}

	callee.allow(PermissionLappsIncoming)
	if !CanCall(caller, callee, "a", "b") {
		t.Fatal("expected both sides granted and no allow-list to permit the call")
	}
}

func TestCanCallHonorsCalleeAllowList(t *testing.T) {
	caller := DefaultSettings("a", NewPermissionSet(PermissionLappsOutgoing))
	caller.allow(PermissionLappsOutgoing)
	callee := DefaultSettings("b", NewPermissionSet(PermissionLappsIncoming))
	callee.allow(PermissionLappsIncoming)
	callee.AllowedCallers = []string{"other"}

	if CanCall(caller, callee, "a", "b") {
		t.Fatal("expected denial: caller not in callee's AllowedCallers")
	}

	callee.AllowedCallers = []string{"a", "other"}
	if !CanCall(caller, callee, "a", "b") {
		t.Fatal("expected allow: caller is named in callee's AllowedCallers")
	}
}

func TestCanCallHonorsCallerAllowList(t *testing.T) {
	caller := DefaultSettings("a", NewPermissionSet(PermissionLappsOutgoing))
	caller.allow(PermissionLappsOutgoing)
	caller.AllowedTargets = []string{"c"}
	callee := DefaultSettings("b", NewPermissionSet(PermissionLappsIncoming))
	callee.allow(PermissionLappsIncoming)

	if CanCall(caller, callee, "a", "b") {
		t.Fatal("expected denial: callee b is not in caller's AllowedTargets")
	}
}
