package main

import (
	"fmt"

	"github.com/wudi/rnvm/opcodes"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/unit"
	"github.com/wudi/rnvm/values"
)

// scenario bundles a hand-assembled Unit with the entrypoint name and the
// argument values Execute should push before running it. A real embedder
// gets these from a compiler (out of scope here, per spec §1); the demo
// host stands in for one so the rest of the module has something to run
// end to end.
type scenario struct {
	Name        string
	Description string
	Unit        *unit.Unit
	Entrypoint  string
	Args        []values.Value
}

// scenarios lists every canned program the demo host can run or
// disassemble, in the order "rnvmdemo list" prints them.
func scenarios() []scenario {
	return []scenario{
		addScenario(),
		uuidScenario(),
		signVerifyScenario(),
		dbScenario(),
	}
}

func findScenario(name string) (scenario, error) {
	for _, s := range scenarios() {
		if s.Name == name {
			return s, nil
		}
	}
	return scenario{}, fmt.Errorf("rnvmdemo: no scenario named %q", name)
}

func newFn(name string, offset, arity int) *unit.FunctionDescriptor {
	return &unit.FunctionDescriptor{
		Name:     name,
		Hash:     registry.HashName(name),
		Arity:    arity,
		IsOffset: true,
		Offset:   offset,
		Style:    values.CallDirect,
	}
}

// addScenario exercises plain arithmetic with no native module involved:
// the entrypoint takes two integers and returns their sum.
func addScenario() scenario {
	u := unit.New()
	fn := newFn("demo/add", 0, 2)
	u.FunctionTable[fn.Hash] = fn
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpAdd},
		{Op: opcodes.OpReturn},
	}
	return scenario{
		Name:        "add",
		Description: "adds two integers with no native module calls",
		Unit:        u,
		Entrypoint:  "demo/add",
		Args:        []values.Value{values.NewInteger(17), values.NewInteger(25)},
	}
}

// uuidScenario calls into the ids native module (github.com/google/uuid)
// and returns the minted identifier as a String value.
func uuidScenario() scenario {
	u := unit.New()
	fn := newFn("demo/uuid", 0, 0)
	u.FunctionTable[fn.Hash] = fn
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpCall, Hash: registry.HashName("ids/new"), A: 0},
		{Op: opcodes.OpReturn},
	}
	return scenario{
		Name:        "uuid",
		Description: "mints an identifier via the ids native module",
		Unit:        u,
		Entrypoint:  "demo/uuid",
	}
}

// signVerifyScenario round-trips a message through crypto/public_key,
// crypto/sign and crypto/verify (the edwards25519-backed native module),
// returning the verification result as a Bool.
//
// Stack trace (frame bottom 0, no caller args):
//
//	ip0 Bytes(seed)                    [seed]
//	ip1 Call public_key/1              [pub]
//	ip2 Bytes(message)                 [pub, message]
//	ip3 Bytes(seed)                    [pub, message, seed]
//	ip4 Bytes(message)                 [pub, message, seed, message]
//	ip5 Call sign/2                    [pub, message, sig]
//	ip6 Call verify/3                  [ok]
//	ip7 Return                         halts with Value=ok
func signVerifyScenario() scenario {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i*7 + 1)
	}
	message := []byte("rnvm demo message")

	u := unit.New()
	u.BytePool = [][]byte{seed, message}
	fn := newFn("demo/sign_verify", 0, 0)
	u.FunctionTable[fn.Hash] = fn
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpBytes, A: 0},
		{Op: opcodes.OpCall, Hash: registry.HashName("crypto/public_key"), A: 1},
		{Op: opcodes.OpBytes, A: 1},
		{Op: opcodes.OpBytes, A: 0},
		{Op: opcodes.OpBytes, A: 1},
		{Op: opcodes.OpCall, Hash: registry.HashName("crypto/sign"), A: 2},
		{Op: opcodes.OpCall, Hash: registry.HashName("crypto/verify"), A: 3},
		{Op: opcodes.OpReturn},
	}
	return scenario{
		Name:        "sign_verify",
		Description: "signs and verifies a message via the crypto native module",
		Unit:        u,
		Entrypoint:  "demo/sign_verify",
	}
}

// dbScenario opens an in-memory sqlite connection (modernc.org/sqlite),
// creates a table, inserts one row and queries it back, returning the
// result rows as a Vec<Object>. OpCopy duplicates the connection value
// before each db/* call since db/exec and db/query drain it off the
// operand stack like any other argument.
func dbScenario() scenario {
	u := unit.New()
	u.StringPool = []string{
		"sqlite",                  // 0: driver
		":memory:",                // 1: dsn
		"CREATE TABLE greetings (id INTEGER PRIMARY KEY, message TEXT)", // 2
		"INSERT INTO greetings(message) VALUES(?)",                     // 3
		"hello from rnvm",                                              // 4
		"SELECT id, message FROM greetings",                            // 5
	}
	fn := newFn("demo/db", 0, 0)
	u.FunctionTable[fn.Hash] = fn
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpString, A: 0},                                                 // 0: "sqlite"
		{Op: opcodes.OpString, A: 1},                                                 // 1: ":memory:"
		{Op: opcodes.OpCall, Hash: registry.HashName("db/open"), A: 2},               // 2: conn
		{Op: opcodes.OpCopy, A: 0},                                                   // 3: dup conn
		{Op: opcodes.OpString, A: 2},                                                 // 4: create sql
		{Op: opcodes.OpVec, A: 0},                                                    // 5: empty args
		{Op: opcodes.OpCall, Hash: registry.HashName("db/exec"), A: 3},               // 6: create table
		{Op: opcodes.OpPop},                                                          // 7: drop result tuple
		{Op: opcodes.OpCopy, A: 0},                                                   // 8: dup conn
		{Op: opcodes.OpString, A: 3},                                                 // 9: insert sql
		{Op: opcodes.OpString, A: 4},                                                 // 10: message literal
		{Op: opcodes.OpVec, A: 1},                                                    // 11: args = [message]
		{Op: opcodes.OpCall, Hash: registry.HashName("db/exec"), A: 3},               // 12: insert row
		{Op: opcodes.OpPop},                                                         // 13: drop result tuple
		{Op: opcodes.OpCopy, A: 0},                                                   // 14: dup conn
		{Op: opcodes.OpString, A: 5},                                                 // 15: select sql
		{Op: opcodes.OpVec, A: 0},                                                    // 16: empty args
		{Op: opcodes.OpCall, Hash: registry.HashName("db/query"), A: 3},              // 17: rows
		{Op: opcodes.OpReturn},                                                       // 18: halts with rows
	}
	return scenario{
		Name:        "db",
		Description: "round-trips a row through an in-memory sqlite connection via the db native module",
		Unit:        u,
		Entrypoint:  "demo/db",
	}
}
