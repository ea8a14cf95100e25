package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type command func(ctx context.Context, args []string) error

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context, args []string) error
	Scan(ctx context.Context, args []string) error
	State(ctx context.Context, args []string) error
	Persons(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Stats(ctx context.Context, args []string) error
	Latest(ctx context.Context, args []string) error
	Pending(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
}

func commands(a execIface) map[string]command {
	return map[string]command{
		"register": a.Register,
		"scan":     a.Scan,
		"s":        a.Scan,
		"state":    a.State,
		"persons":  a.Persons,
		"rename":   a.Rename,
		"remove":   a.Remove,
		"history":  a.History,
		"stats":    a.Stats,
		"latest":   a.Latest,
		"pending":  a.Pending,
		"sync":     a.Sync,
		"status":   a.Status,
		"login":    a.Login,
		"logout":   a.Logout,
	}
}

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop exits on EOF or when the user types "exit" or "quit".
//
//	register             create a person (prompts for name and id)
//	scan|s <id>          toggle presence
//	state <id>           show presence
//	persons              list persons
//	rename <id>          correct a name
//	remove <id>          delete a person
//	history <id>         records of one person
//	stats                totals per person
//	latest [n]           most recent records
//	pending              changes waiting for sync
//	sync                 sync now
//	status               device and sync status
//	login | logout       manage the bearer token
//
// Command errors are printed and never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	cmds := commands(a)
	for {
		printlnFn(fmt.Sprintf("garrison %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: register, (s)can, state, persons, rename, remove, history, stats, latest, pending, sync, status, logout, exit")
			} else {
				printlnFn("Available commands: register, (s)can, state, persons, rename, remove, history, stats, latest, pending, status, login, exit")
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		fn, ok := cmds[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if err := fn(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}
