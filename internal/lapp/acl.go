package lapp

// CanCall reports whether a request from the lapp named from is permitted
// to reach the lapp named to, per the optional inter-lapp request ACLs
// spec.md §3 declares in the data model but never operationalizes. Both
// sides must opt in: the caller must hold LappsOutgoing and the callee
// LappsIncoming. Either side's allow-list, when non-empty, narrows the
// default-allow to only the named peers; an empty list imposes no extra
// restriction beyond the permission check itself.
func CanCall(caller, callee Settings, from, to string) bool {
	if !caller.HasAllowed(PermissionLappsOutgoing) {
		return false
	}
	if !callee.HasAllowed(PermissionLappsIncoming) {
		return false
	}
	if len(caller.AllowedTargets) > 0 && !containsName(caller.AllowedTargets, to) {
		return false
	}
	if len(callee.AllowedCallers) > 0 && !containsName(callee.AllowedCallers, from) {
		return false
	}
	return true
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
