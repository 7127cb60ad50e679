package lapp

import (
	"github.com/tetratelabs/wazero/api"

	"laplace/internal/wasmhost"
)

// bridgeFromModule builds a Bridge from a host-import callback's calling
// module. Host functions receive the guest module as their first
// parameter; the Bridge can't be built once at registration time because
// the guest module is not yet instantiated when "env" is assembled.
func bridgeFromModule(mod api.Module) (*wasmhost.Bridge, error) {
	return wasmhost.NewBridge(mod.Memory(), mod.ExportedFunction("alloc"), mod.ExportedFunction("dealloc"))
}

// buildHostImports assembles the hostImports set Instantiate registers
// into the guest's "env" namespace, gated on settings' granted
// permissions. dbh is nil when Database is not granted or not enabled.
func buildHostImports(lappName string, settings Settings, dbh *dbHost) hostImports {
	var imports hostImports

	if settings.HasAllowed(PermissionDatabase) && dbh != nil {
		exec, query, queryRow := dbImports(dbh)
		imports.dbExecute = exec
		imports.dbQuery = query
		imports.dbQueryRow = queryRow
	}

	if settings.HasAllowed(PermissionHTTP) {
		httpHost := newHTTPHost(lappName, settings.HTTPAllowedMethods, settings.HTTPAllowedHosts, settings.HTTPTimeoutMS)
		imports.invokeHTTP = httpImports(httpHost)
	}

	if settings.HasAllowed(PermissionSleep) {
		imports.invokeSleep = sleepImports()
	}

	return imports
}
