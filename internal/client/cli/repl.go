package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, ref string) error
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context) error
	Search(ctx context.Context, query string) error
	Show(ctx context.Context, ref string) error
	Pin(ctx context.Context, ref string, pinned bool) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

const (
	guestHelp = "Available commands: register, login, whoami, add, edit <id>, delete <id>, (l)ist, search <text>, show <id>, pin <id>, unpin <id>, sync, status, exit"
	userHelp  = "Available commands: logout, whoami, add, edit <id>, delete <id>, (l)ist, search <text>, show <id>, pin <id>, unpin <id>, sync, status, exit"
)

// runREPL starts a simple read–eval–print loop for the gophnotes CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF, when ctx is done, or
// when the user types "exit" or "quit".
//
// Notes are available to guests too. They stay local until the user logs in,
// after which they are uploaded by the next sync.
//
// Errors returned by command handlers are printed on one line and the loop
// continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("gophnotes %s > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		arg := strings.Join(args, " ")

		needArg := func(usage string) bool {
			if arg == "" {
				printlnFn("Usage:", usage)
				return false
			}
			return true
		}

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn(userHelp)
			} else {
				printlnFn(guestHelp)
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "whoami":
			cmdErr = a.Whoami(ctx)

		case "add":
			cmdErr = a.Add(ctx)

		case "edit":
			if needArg("edit <id>") {
				cmdErr = a.Edit(ctx, args[0])
			}

		case "delete", "rm":
			if needArg("delete <id>") {
				cmdErr = a.Delete(ctx, args[0])
			}

		case "l", "list":
			cmdErr = a.List(ctx)

		case "search":
			if needArg("search <text>") {
				cmdErr = a.Search(ctx, arg)
			}

		case "show":
			if needArg("show <id>") {
				cmdErr = a.Show(ctx, args[0])
			}

		case "pin":
			if needArg("pin <id>") {
				cmdErr = a.Pin(ctx, args[0], true)
			}

		case "unpin":
			if needArg("unpin <id>") {
				cmdErr = a.Pin(ctx, args[0], false)
			}

		case "sync":
			cmdErr = a.Sync(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(describeError(cmdErr))
		}
		if err != nil {
			return
		}
	}
}
