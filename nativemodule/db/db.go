// Package db registers the native `db` module (spec SPEC_FULL §4.8): a
// thin script-visible wrapper over database/sql, backed by whichever
// driver family the caller names. It exercises the mysql/postgres/sqlite
// driver surface of the retrieval pack the same way the teacher's
// pkg/pdo package wraps database/sql behind a script-facing Conn/Stmt/
// Rows interface, generalized here from PHP's PDO object model to this
// VM's Any-external heap cell (spec §3.1).
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/nativemodule/internal"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/values"
)

// connTypeHash is the type hash db.open's returned Any value carries, so
// scripts can register instance methods on it via
// Context.RegisterInstanceFunction(ConnTypeHash, ...) the same way they
// would on a compiled RTTI type.
var connTypeHash = registry.HashName("nativemodule/db/Conn")

// ConnTypeHash exposes connTypeHash for embedders that want to attach
// further instance methods to the value db.open returns.
func ConnTypeHash() registry.Hash { return connTypeHash }

// driverName maps the script-facing driver identifier onto the
// database/sql driver name registered by each side-effect import above.
func driverName(name string) (string, error) {
	switch name {
	case "mysql":
		return "mysql", nil
	case "postgres", "pgsql", "postgresql":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("db: unknown driver %q", name)
	}
}

var connVTable = &values.AnyVTable{
	Drop: func(obj interface{}) {
		if conn, ok := obj.(*sql.DB); ok {
			_ = conn.Close()
		}
	},
	Display: func(obj interface{}) string {
		return "db.Conn"
	},
}

// Extension bundles the db.open/db.query/db.exec native functions into a
// registry.Extension, installable via registry.Install.
type Extension struct{}

// New constructs the db module extension.
func New() *Extension { return &Extension{} }

func (*Extension) Name() string { return "db" }

func (*Extension) Register(ctx *registry.Context) error {
	ctx.RegisterFunction("db/open", 2, openHandler)
	ctx.RegisterFunction("db/query", 3, queryHandler)
	ctx.RegisterFunction("db/exec", 3, execHandler)
	return nil
}

// openHandler implements db.open(driver, dsn) -> Any(Conn), or returns a
// typed error the driver boundary surfaces to the embedder (spec §6.1:
// "return either success or a typed error").
func openHandler(vmStack interface{}, argc int) error {
	s := vmStack.(*stack.Stack)
	args, store, err := internal.Args(s, argc)
	if err != nil {
		return err
	}
	driverArg, err := internal.AsString(store, args[0])
	if err != nil {
		return err
	}
	dsn, err := internal.AsString(store, args[1])
	if err != nil {
		return err
	}
	sqlDriver, err := driverName(driverArg)
	if err != nil {
		return err
	}
	conn, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return fmt.Errorf("db: open %s: %w", sqlDriver, err)
	}
	h := store.Allocate(&values.AnyData{TypeHash: connTypeHash, Object: conn, VTable: connVTable})
	s.Push(values.NewAnyHandle(h))
	return nil
}

func connFromValue(store *heap.Store, v values.Value) (*sql.DB, error) {
	if v.Kind != values.KindAny {
		return nil, fmt.Errorf("db: expected a db.Conn value, got %s", v.Kind)
	}
	h, _ := v.Handle()
	payload, ok := store.Payload(h)
	if !ok {
		return nil, fmt.Errorf("db: stale connection handle")
	}
	any, ok := payload.(*values.AnyData)
	if !ok || any.TypeHash != connTypeHash {
		return nil, fmt.Errorf("db: value is not a db.Conn")
	}
	return any.Object.(*sql.DB), nil
}

// bindParams converts a Vec of script values into the []interface{}
// database/sql.Query/Exec expect.
func bindParams(store *heap.Store, items []values.Value) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	for i, it := range items {
		switch it.Kind {
		case values.KindInteger:
			n, _ := it.AsInteger()
			out[i] = n
		case values.KindFloat:
			f, _ := it.AsFloat()
			out[i] = f
		case values.KindBool:
			b, _ := it.AsBool()
			out[i] = b
		case values.KindString:
			str, err := internal.AsString(store, it)
			if err != nil {
				return nil, err
			}
			out[i] = str
		case values.KindBytes:
			b, err := internal.AsBytes(store, it)
			if err != nil {
				return nil, err
			}
			out[i] = b
		default:
			return nil, fmt.Errorf("db: unsupported bind parameter type %s", it.Kind)
		}
	}
	return out, nil
}

// queryHandler implements db.query(conn, sql, argsVec) -> Vec<Object>: one
// Object per row, keyed by column name.
func queryHandler(vmStack interface{}, argc int) error {
	s := vmStack.(*stack.Stack)
	args, store, err := internal.Args(s, argc)
	if err != nil {
		return err
	}
	conn, err := connFromValue(store, args[0])
	if err != nil {
		return err
	}
	query, err := internal.AsString(store, args[1])
	if err != nil {
		return err
	}
	rawParams, err := internal.AsVec(store, args[2])
	if err != nil {
		return err
	}
	params, err := bindParams(store, rawParams)
	if err != nil {
		return err
	}

	rows, err := conn.Query(query, params...)
	if err != nil {
		return fmt.Errorf("db: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("db: columns: %w", err)
	}

	var out []values.Value
	scanBuf := make([]interface{}, len(cols))
	scanPtrs := make([]interface{}, len(cols))
	for i := range scanBuf {
		scanPtrs[i] = &scanBuf[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return fmt.Errorf("db: scan: %w", err)
		}
		vals := make([]values.Value, len(cols))
		for i, raw := range scanBuf {
			vals[i] = internal.ToDisplayValue(store, raw)
		}
		rowHandle := store.Allocate(values.NewObjectData(cols, vals))
		out = append(out, values.NewObjectHandle(rowHandle))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("db: rows: %w", err)
	}

	h := store.Allocate(&values.VecData{Items: out})
	s.Push(values.NewVecHandle(h))
	return nil
}

// execHandler implements db.exec(conn, sql, argsVec) -> Tuple(lastInsertId,
// rowsAffected).
func execHandler(vmStack interface{}, argc int) error {
	s := vmStack.(*stack.Stack)
	args, store, err := internal.Args(s, argc)
	if err != nil {
		return err
	}
	conn, err := connFromValue(store, args[0])
	if err != nil {
		return err
	}
	query, err := internal.AsString(store, args[1])
	if err != nil {
		return err
	}
	rawParams, err := internal.AsVec(store, args[2])
	if err != nil {
		return err
	}
	params, err := bindParams(store, rawParams)
	if err != nil {
		return err
	}

	result, err := conn.Exec(query, params...)
	if err != nil {
		return fmt.Errorf("db: exec: %w", err)
	}
	lastID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()

	h := store.Allocate(&values.TupleData{Items: []values.Value{
		values.NewInteger(lastID),
		values.NewInteger(affected),
	}})
	s.Push(values.NewTupleHandle(h))
	return nil
}
