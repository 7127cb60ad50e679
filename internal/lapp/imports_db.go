package lapp

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero/api"
	_ "modernc.org/sqlite"

	"laplace/internal/logging"
	"laplace/internal/wasmhost"
	"laplace/internal/wire"
)

// dbHost backs the three C7 database imports with a single SQLite
// connection, held behind a mutex since database/sql's *sql.DB is safe for
// concurrent use but spec.md §4.7 calls for explicit serialization (no
// prepared-statement cache, one connection).
type dbHost struct {
	mu   sync.Mutex
	db   *sql.DB
	lapp string
}

// openDBHost opens (creating if absent) the SQLite database at path,
// relative to rootDir unless already absolute, and pins the connection
// pool to a single connection per spec.md §4.7.
func openDBHost(lapp, rootDir, path string) (*dbHost, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("lapp: opening database for %s: %w", lapp, err)
	}
	db.SetMaxOpenConns(1)
	return &dbHost{db: db, lapp: lapp}, nil
}

func (h *dbHost) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

func sqlValueToWire(v any) wire.Value {
	switch t := v.(type) {
	case nil:
		return wire.NullValue()
	case int64:
		return wire.IntegerValue(t)
	case float64:
		return wire.RealValue(t)
	case string:
		return wire.TextValue(t)
	case []byte:
		return wire.BlobValue(t)
	default:
		return wire.TextValue(fmt.Sprintf("%v", t))
	}
}

func scanRow(rows *sql.Rows) (wire.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return wire.Row{}, err
	}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return wire.Row{}, err
	}
	values := make([]wire.Value, len(cols))
	for i, v := range raw {
		values[i] = sqlValueToWire(v)
	}
	return wire.Row{Values: values}, nil
}

// execute runs sql as a statement and returns the affected-row count.
func (h *dbHost) execute(ctx context.Context, query string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := h.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// query runs sql and collects every resulting row.
func (h *dbHost) query(ctx context.Context, query string) ([]wire.Row, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []wire.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// queryRow runs sql and returns at most its first row.
func (h *dbHost) queryRow(ctx context.Context, query string) (*wire.Row, error) {
	rows, err := h.query(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// dbImports builds the db_execute/db_query/db_query_row closures wired
// into the guest's import table. Each closure builds a fresh Bridge from
// the calling module's own memory and alloc/dealloc exports — at
// registration time the guest module doesn't exist yet, only the "env"
// host module being assembled, so the Bridge can't be captured up front.
func dbImports(host *dbHost) (execFn, queryFn, queryRowFn func(context.Context, api.Module, uint64) uint64) {
	execFn = func(callCtx context.Context, mod api.Module, slice uint64) uint64 {
		bridge, err := bridgeFromModule(mod)
		if err != nil {
			return 0
		}
		query, err := bridge.SliceToString(wasmhost.Unpack(slice))
		if err != nil {
			return packExecuteError(callCtx, bridge, fmt.Sprintf("decode: %v", err))
		}
		affected, err := host.execute(callCtx, query)
		if err != nil {
			logging.WithLapp(host.lapp, logging.LevelWarn, "db_execute failed: %v", err)
			return packExecuteError(callCtx, bridge, err.Error())
		}
		out, err := bridge.BytesToSlice(callCtx, wire.EncodeExecuteResult(affected, "", false))
		if err != nil {
			return 0
		}
		return out.Pack()
	}

	queryFn = func(callCtx context.Context, mod api.Module, slice uint64) uint64 {
		bridge, err := bridgeFromModule(mod)
		if err != nil {
			return 0
		}
		query, err := bridge.SliceToString(wasmhost.Unpack(slice))
		if err != nil {
			return packQueryError(callCtx, bridge, fmt.Sprintf("decode: %v", err))
		}
		rows, err := host.query(callCtx, query)
		if err != nil {
			logging.WithLapp(host.lapp, logging.LevelWarn, "db_query failed: %v", err)
			return packQueryError(callCtx, bridge, err.Error())
		}
		out, err := bridge.BytesToSlice(callCtx, wire.EncodeQueryResult(rows, "", false))
		if err != nil {
			return 0
		}
		return out.Pack()
	}

	queryRowFn = func(callCtx context.Context, mod api.Module, slice uint64) uint64 {
		bridge, err := bridgeFromModule(mod)
		if err != nil {
			return 0
		}
		query, err := bridge.SliceToString(wasmhost.Unpack(slice))
		if err != nil {
			return packQueryRowError(callCtx, bridge, fmt.Sprintf("decode: %v", err))
		}
		row, err := host.queryRow(callCtx, query)
		if err != nil {
			logging.WithLapp(host.lapp, logging.LevelWarn, "db_query_row failed: %v", err)
			return packQueryRowError(callCtx, bridge, err.Error())
		}
		out, err := bridge.BytesToSlice(callCtx, wire.EncodeQueryRowResult(row, "", false))
		if err != nil {
			return 0
		}
		return out.Pack()
	}

	return execFn, queryFn, queryRowFn
}

func packExecuteError(ctx context.Context, bridge *wasmhost.Bridge, msg string) uint64 {
	out, err := bridge.BytesToSlice(ctx, wire.EncodeExecuteResult(0, msg, true))
	if err != nil {
		return 0
	}
	return out.Pack()
}

func packQueryError(ctx context.Context, bridge *wasmhost.Bridge, msg string) uint64 {
	out, err := bridge.BytesToSlice(ctx, wire.EncodeQueryResult(nil, msg, true))
	if err != nil {
		return 0
	}
	return out.Pack()
}

func packQueryRowError(ctx context.Context, bridge *wasmhost.Bridge, msg string) uint64 {
	out, err := bridge.BytesToSlice(ctx, wire.EncodeQueryRowResult(nil, msg, true))
	if err != nil {
		return 0
	}
	return out.Pack()
}
