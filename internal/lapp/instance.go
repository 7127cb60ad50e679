package lapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"laplace/internal/logging"
	"laplace/internal/wasmhost"
	"laplace/internal/wire"
)

// serverWasmName is the compiled guest's filename inside a lapp's root_dir,
// spec.md §3.
func serverWasmName(lappName string) string {
	return lappName + "_server.wasm"
}

// Instance is the opaque handle wrapping a compiled module, its wazero
// runtime/store, memory bridge, and cached exported functions — spec.md
// §3's "Instance" entity. Owned by exactly one Lapp; Close drops it.
type Instance struct {
	name string

	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	module   api.Module
	bridge   *wasmhost.Bridge

	processHTTP    api.Function
	routeWS        api.Function
	routeGossipsub api.Function
}

// hostImports is the set of C7 host-import closures an Instance wires into
// the guest's "env" namespace; nil entries mean the corresponding
// permission was not granted and the import is omitted entirely rather
// than registered-but-denying, so an unlinkable guest fails to instantiate
// instead of silently no-opping.
type hostImports struct {
	dbExecute   func(ctx context.Context, mod api.Module, slice uint64) uint64
	dbQuery     func(ctx context.Context, mod api.Module, slice uint64) uint64
	dbQueryRow  func(ctx context.Context, mod api.Module, slice uint64) uint64
	invokeHTTP  func(ctx context.Context, mod api.Module, slice uint64) uint64
	invokeSleep func(ctx context.Context, mod api.Module, slice uint64)
}

// Instantiate compiles and instantiates rootDir/<name>_server.wasm,
// conditionally registering host imports per the granted permission set,
// then runs the guest's startup sequence: _initialize(), _start(), init(),
// each only if exported. A host-side Err from init() is a fatal lapp-init
// failure and the Instance is closed before returning.
func Instantiate(ctx context.Context, rootDir string, settings Settings, imports hostImports) (*Instance, error) {
	wasmPath := filepath.Join(rootDir, serverWasmName(settings.Name))
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("lapp: reading %s: %w", wasmPath, err)
	}

	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("lapp: instantiating WASI: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("lapp: compiling %s: %w", wasmPath, err)
	}

	builder := runtime.NewHostModuleBuilder("env")
	registerHostImports(builder, settings.Name, imports)
	if _, err := builder.Instantiate(ctx); err != nil {
		compiled.Close(ctx)
		runtime.Close(ctx)
		return nil, fmt.Errorf("lapp: registering host imports: %w", err)
	}

	modCfg := wazero.NewModuleConfig().WithName(settings.Name).WithStdout(os.Stdout).WithStderr(os.Stderr)
	if settings.HasAllowed(PermissionFileRead) || settings.HasAllowed(PermissionFileWrite) {
		dataDir := filepath.Join(rootDir, "data")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			compiled.Close(ctx)
			runtime.Close(ctx)
			return nil, fmt.Errorf("lapp: creating data dir: %w", err)
		}
		fsCfg := wazero.NewFSConfig().WithDirMount(dataDir, "/data")
		modCfg = modCfg.WithFSConfig(fsCfg)
	}

	module, err := runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		compiled.Close(ctx)
		runtime.Close(ctx)
		return nil, fmt.Errorf("lapp: instantiating module: %w", err)
	}

	bridge, err := wasmhost.NewBridge(module.Memory(), module.ExportedFunction("alloc"), module.ExportedFunction("dealloc"))
	if err != nil {
		module.Close(ctx)
		compiled.Close(ctx)
		runtime.Close(ctx)
		return nil, err
	}

	inst := &Instance{
		name:           settings.Name,
		runtime:        runtime,
		compiled:       compiled,
		module:         module,
		bridge:         bridge,
		processHTTP:    module.ExportedFunction("process_http"),
		routeWS:        module.ExportedFunction("route_ws"),
		routeGossipsub: module.ExportedFunction("route_gossipsub"),
	}

	if err := inst.runStartup(ctx); err != nil {
		inst.Close(ctx)
		return nil, err
	}

	return inst, nil
}

// runStartup calls, in order, each only if exported: _initialize(),
// _start(), init(). init()'s wire-encoded Result<(), String> is decoded;
// a guest Err is a fatal init failure per spec.md §4.3.
func (inst *Instance) runStartup(ctx context.Context) error {
	for _, name := range []string{"_initialize", "_start"} {
		if fn := inst.module.ExportedFunction(name); fn != nil {
			if _, err := fn.Call(ctx); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrLappRuntimeFail, name, err)
			}
		}
	}

	initFn := inst.module.ExportedFunction("init")
	if initFn == nil {
		return nil
	}
	results, err := initFn.Call(ctx)
	if err != nil {
		return fmt.Errorf("%w: init: %v", ErrLappRuntimeFail, err)
	}
	if len(results) == 0 {
		return nil
	}
	slice := wasmhost.Unpack(results[0])
	raw, err := inst.bridge.TakeOut(ctx, slice)
	if err != nil {
		return fmt.Errorf("%w: init result: %v", ErrResultNotParsed, err)
	}
	ok, msg, err := wire.DecodeResultUnit(raw)
	if err != nil {
		return fmt.Errorf("%w: init result: %v", ErrResultNotParsed, err)
	}
	if !ok {
		logging.WithLapp(inst.name, logging.LevelError, "init() failed: %s", msg)
		return fmt.Errorf("%w: %s", ErrLappInitFailed, msg)
	}
	return nil
}

// ProcessHTTP encodes req, hands it to the guest's process_http export, and
// decodes the reply. A trap classifies as LappRuntimeFail; a malformed
// reply classifies as ResultNotParsed.
func (inst *Instance) ProcessHTTP(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if inst.processHTTP == nil {
		return nil, fmt.Errorf("lapp: %s does not export process_http", inst.name)
	}
	reqSlice, err := inst.bridge.BytesToSlice(ctx, wire.EncodeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLappRuntimeFail, err)
	}
	results, err := inst.processHTTP.Call(ctx, reqSlice.Pack())
	if err != nil {
		return nil, fmt.Errorf("%w: process_http: %v", ErrLappRuntimeFail, err)
	}
	raw, err := inst.bridge.TakeOut(ctx, wasmhost.Unpack(results[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultNotParsed, err)
	}
	resp, err := wire.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultNotParsed, err)
	}
	return resp, nil
}

// RouteWS hands an inbound WebSocket frame's payload to the guest's
// route_ws export and decodes the resulting outbound route list.
func (inst *Instance) RouteWS(ctx context.Context, msg []byte) ([]wire.Route, error) {
	return inst.routeGeneric(ctx, inst.routeWS, "route_ws", msg)
}

// RouteGossipsub hands an inbound gossip message to the guest's
// route_gossipsub export and decodes the resulting outbound route list.
func (inst *Instance) RouteGossipsub(ctx context.Context, msg []byte) ([]wire.Route, error) {
	return inst.routeGeneric(ctx, inst.routeGossipsub, "route_gossipsub", msg)
}

func (inst *Instance) routeGeneric(ctx context.Context, fn api.Function, exportName string, msg []byte) ([]wire.Route, error) {
	if fn == nil {
		return nil, fmt.Errorf("lapp: %s does not export %s", inst.name, exportName)
	}
	slice, err := inst.bridge.BytesToSlice(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLappRuntimeFail, err)
	}
	results, err := fn.Call(ctx, slice.Pack())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLappRuntimeFail, exportName, err)
	}
	raw, err := inst.bridge.TakeOut(ctx, wasmhost.Unpack(results[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultNotParsed, err)
	}
	routes, err := wire.DecodeRoutes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultNotParsed, err)
	}
	return routes, nil
}

// Close releases the instance's module, compiled code, and runtime. Safe
// to call on a partially constructed Instance during Instantiate's error
// paths.
func (inst *Instance) Close(ctx context.Context) error {
	var errs []error
	if inst.module != nil {
		errs = append(errs, inst.module.Close(ctx))
	}
	if inst.compiled != nil {
		errs = append(errs, inst.compiled.Close(ctx))
	}
	if inst.runtime != nil {
		errs = append(errs, inst.runtime.Close(ctx))
	}
	return errors.Join(errs...)
}

func registerHostImports(builder wazero.HostModuleBuilder, lappName string, imports hostImports) {
	if imports.dbExecute != nil {
		builder.NewFunctionBuilder().WithFunc(imports.dbExecute).Export("db_execute")
	}
	if imports.dbQuery != nil {
		builder.NewFunctionBuilder().WithFunc(imports.dbQuery).Export("db_query")
	}
	if imports.dbQueryRow != nil {
		builder.NewFunctionBuilder().WithFunc(imports.dbQueryRow).Export("db_query_row")
	}
	if imports.invokeHTTP != nil {
		builder.NewFunctionBuilder().WithFunc(imports.invokeHTTP).Export("invoke_http")
	}
	if imports.invokeSleep != nil {
		builder.NewFunctionBuilder().WithFunc(imports.invokeSleep).Export("invoke_sleep")
	}
}
