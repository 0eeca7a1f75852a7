// Command fcatalogctl is a playground CLI speaking the catalog wire
// protocol directly, for admin and debugging use.
//
// Usage:
//
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb choose
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb ping
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb add-func <name> <comment> <file>
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb similars <file> [k]
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb add-struct <name> <file>
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb get-struct <name>
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb names
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb struct-names
//	fcatalogctl --addr=127.0.0.1:8300 --db=mydb repl
//	fcatalogctl list-catalogs --catalog-dir=/var/lib/fcatalogd
package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/calvinalkan/fcatalogd/internal/frame"
	"github.com/calvinalkan/fcatalogd/internal/registry"
	"github.com/calvinalkan/fcatalogd/internal/wire"
)

const dialTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage())
	}

	// list-catalogs reads a manifest off disk; it never dials the server.
	if args[0] == "list-catalogs" {
		return cmdListCatalogs(args[1:])
	}

	addr, db, cmd, rest, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}

	if cmd == "" {
		return errors.New(usage())
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	c := &client{
		w: frame.NewWriter(conn),
		r: frame.NewReader(conn, 0),
	}

	if err := c.chooseDB(db); err != nil {
		return fmt.Errorf("choose_db %q: %w", db, err)
	}

	switch cmd {
	case "choose":
		fmt.Printf("chose catalog %q\n", db)
		return nil
	case "ping":
		return c.cmdPing()
	case "add-func":
		return c.cmdAddFunc(rest)
	case "similars":
		return c.cmdSimilars(rest)
	case "add-struct":
		return c.cmdAddStruct(rest)
	case "get-struct":
		return c.cmdGetStruct(rest)
	case "names":
		return c.cmdFuncNames()
	case "struct-names":
		return c.cmdStructNames()
	case "repl":
		return c.runREPL(db)
	default:
		return fmt.Errorf("unknown command: %s\n%s", cmd, usage())
	}
}

func usage() string {
	return `fcatalogctl: debug client for the catalog protocol

Global flags (before the subcommand): --addr=host:port --db=name

Commands:
  choose                              Select the catalog and exit
  ping                                 Send SYN, expect ACK
  add-func <name> <comment> <file>     Insert a function record
  similars <file> [k]                  Query similar functions (default k=5)
  add-struct <name> <file>              Insert a structure blob
  get-struct <name>                    Fetch a structure blob
  names                                List function names
  struct-names                        List structure names
  repl                                 Open an interactive session on the chosen catalog
  list-catalogs --catalog-dir=<dir>   List catalogs from the local manifest`
}

// parseGlobalFlags extracts --addr and --db from before the subcommand,
// in the spirit of the teacher's flat --key=value parsing.
func parseGlobalFlags(args []string) (addr, db, cmd string, rest []string, err error) {
	addr = "127.0.0.1:8300"

	i := 0
	for ; i < len(args); i++ {
		arg := args[i]

		if !strings.HasPrefix(arg, "--") {
			break
		}

		key, val, ok := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !ok {
			return "", "", "", nil, fmt.Errorf("invalid flag: %s (use --key=value)", arg)
		}

		switch key {
		case "addr":
			addr = val
		case "db":
			db = val
		default:
			return "", "", "", nil, fmt.Errorf("unknown flag: --%s", key)
		}
	}

	if i >= len(args) {
		return addr, db, "", nil, nil
	}

	if db == "" {
		return "", "", "", nil, errors.New("--db is required")
	}

	return addr, db, args[i], args[i+1:], nil
}

type client struct {
	w *frame.Writer
	r *frame.Reader
}

func (c *client) chooseDB(name string) error {
	return c.w.WriteFrame(byte(wire.MsgChooseDB), wire.ChooseDB{DBName: name}.Encode(nil))
}

func (c *client) cmdPing() error {
	if err := c.w.WriteFrame(byte(wire.MsgSYN), nil); err != nil {
		return err
	}

	typ, _, err := c.r.ReadFrame()
	if err != nil {
		return err
	}

	if wire.MsgType(typ) != wire.MsgACK {
		return fmt.Errorf("unexpected response type %d, want ACK", typ)
	}

	fmt.Println("pong")

	return nil
}

func (c *client) cmdAddFunc(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: add-func <name> <comment> <file>")
	}

	data, err := os.ReadFile(args[2])
	if err != nil {
		return err
	}

	msg := wire.AddFunction{Name: args[0], Comment: args[1], Data: data}

	return c.w.WriteFrame(byte(wire.MsgAddFunction), msg.Encode(nil))
}

func (c *client) cmdSimilars(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: similars <file> [k]")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	k := 5

	if len(args) > 1 {
		k, err = strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid k: %w", err)
		}
	}

	req := wire.RequestSimilars{Data: data, NumSimilars: uint32(k)}
	if err := c.w.WriteFrame(byte(wire.MsgRequestSimilars), req.Encode(nil)); err != nil {
		return err
	}

	typ, payload, err := c.r.ReadFrame()
	if err != nil {
		return err
	}

	if wire.MsgType(typ) != wire.MsgResponseSimilars {
		return fmt.Errorf("unexpected response type %d, want ResponseSimilars", typ)
	}

	resp, err := wire.DecodeResponseSimilars(payload)
	if err != nil {
		return err
	}

	for _, s := range resp.Similars {
		fmt.Printf("%-32s  grade=%-4d  %s\n", s.Name, s.SimGrade, s.Comment)
	}

	return nil
}

func (c *client) cmdAddStruct(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: add-struct <name> <file>")
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	msg := wire.AddStructure{StructName: args[0], StructDump: data}

	return c.w.WriteFrame(byte(wire.MsgAddStructure), msg.Encode(nil))
}

func (c *client) cmdGetStruct(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get-struct <name>")
	}

	req := wire.RequestStruct{StructName: args[0]}
	if err := c.w.WriteFrame(byte(wire.MsgRequestStruct), req.Encode(nil)); err != nil {
		return err
	}

	typ, payload, err := c.r.ReadFrame()
	if err != nil {
		return err
	}

	if wire.MsgType(typ) != wire.MsgResponseStruct {
		return fmt.Errorf("unexpected response type %d, want ResponseStruct", typ)
	}

	if len(payload) == 0 {
		return errors.New("not found")
	}

	_, err = os.Stdout.Write(payload)

	return err
}

func (c *client) cmdFuncNames() error {
	if err := c.w.WriteFrame(byte(wire.MsgRequestFuncNames), nil); err != nil {
		return err
	}

	typ, payload, err := c.r.ReadFrame()
	if err != nil {
		return err
	}

	if wire.MsgType(typ) != wire.MsgResponseFuncNames {
		return fmt.Errorf("unexpected response type %d, want ResponseFuncNames", typ)
	}

	resp, err := wire.DecodeResponseFuncNames(payload)
	if err != nil {
		return err
	}

	for _, n := range resp.Names {
		fmt.Println(n)
	}

	return nil
}

func (c *client) cmdStructNames() error {
	if err := c.w.WriteFrame(byte(wire.MsgRequestStructNames), nil); err != nil {
		return err
	}

	typ, payload, err := c.r.ReadFrame()
	if err != nil {
		return err
	}

	if wire.MsgType(typ) != wire.MsgResponseStructNames {
		return fmt.Errorf("unexpected response type %d, want ResponseStructNames", typ)
	}

	resp, err := wire.DecodeResponseStructNames(payload)
	if err != nil {
		return err
	}

	for _, n := range resp.Names {
		fmt.Println(n)
	}

	return nil
}

// runREPL opens an interactive line-editing session against the already-
// chosen catalog db, dispatching each line to the same client methods the
// single-shot subcommands use. The wire protocol's ChooseDB-once-then-many-
// operations shape is exactly what a REPL is for: one connection, many
// round trips, without redialing per command the way the flat subcommands
// above do.
func (c *client) runREPL(db string) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(replCompleter)

	if f, err := os.Open(replHistoryFile()); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("fcatalogctl repl - catalog %q\n", db)
	fmt.Println("Type 'help' for available commands.")

	for {
		input, err := line.Prompt(fmt.Sprintf("%s> ", db))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			fmt.Println("Bye!")
			break
		}

		if err := c.dispatchREPLCommand(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	if f, err := os.Create(replHistoryFile()); err == nil {
		_, _ = line.WriteHistory(f)
		f.Close()
	}

	return nil
}

// dispatchREPLCommand runs one REPL line's command, reusing the same
// handlers the single-shot subcommands call.
func (c *client) dispatchREPLCommand(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		printREPLHelp()
		return nil
	case "ping":
		return c.cmdPing()
	case "add-func":
		return c.cmdAddFunc(args)
	case "similars":
		return c.cmdSimilars(args)
	case "add-struct":
		return c.cmdAddStruct(args)
	case "get-struct":
		return c.cmdGetStruct(args)
	case "names":
		return c.cmdFuncNames()
	case "struct-names":
		return c.cmdStructNames()
	default:
		fmt.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		return nil
	}
}

func printREPLHelp() {
	fmt.Println("Commands:")
	fmt.Println("  ping                                 Send SYN, expect ACK")
	fmt.Println("  add-func <name> <comment> <file>     Insert a function record")
	fmt.Println("  similars <file> [k]                  Query similar functions (default k=5)")
	fmt.Println("  add-struct <name> <file>              Insert a structure blob")
	fmt.Println("  get-struct <name>                    Fetch a structure blob")
	fmt.Println("  names                                List function names")
	fmt.Println("  struct-names                        List structure names")
	fmt.Println("  help                                 Show this help")
	fmt.Println("  exit / quit / q                      Exit")
}

func replCompleter(line string) []string {
	commands := []string{
		"ping", "add-func", "similars", "add-struct", "get-struct",
		"names", "struct-names", "help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

// replHistoryFile returns the path to the REPL's persisted line history.
func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".fcatalogctl_history")
}

func cmdListCatalogs(args []string) error {
	dir := "/var/lib/fcatalogd"

	for _, arg := range args {
		if val, ok := strings.CutPrefix(arg, "--catalog-dir="); ok {
			dir = val
		}
	}

	entries, err := registry.ReadManifest(dir)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("no catalogs recorded")
		return nil
	}

	fmt.Printf("%-20s  %-6s  %s\n", "NAME", "N", "PATH")

	for _, e := range entries {
		fmt.Printf("%-20s  %-6d  %s\n", e.Name, e.N, e.Path)
	}

	return nil
}
