package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"rn2903-service/internal/command"
)

const shellHelp = `Commands:
  <category> <cmd> [args]   send a command, e.g. "mac get deveui"
  next                      wait for the outcome of radio rx or radio tx
  pull                      read the full configuration
  config                    print the cached configuration
  status                    print the session status
  safe on|off               toggle safe mode
  help [category]           list commands or the commands of a category
  exit                      leave the shell
`

func (c *ctl) shell(ctx context.Context) int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rn2903> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
		Stdin:           c.in,
		Stdout:          c.out,
		Stderr:          c.errOut,
	})
	if err != nil {
		fmt.Fprintf(c.errOut, "failed to create readline: %v\n", err)
		return 1
	}
	defer rl.Close()

	fmt.Fprintf(c.out, "connected to %s (%s)\n", c.radio.Address(), c.radio.Status(ctx).Firmware.Banner)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return 0
		}
		if !c.handleLine(ctx, line, c.out) {
			return 0
		}
	}
}

// handleLine runs one shell line and reports whether the shell should continue
func (c *ctl) handleLine(ctx context.Context, line string, w io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "exit", "quit":
		return false
	case "help":
		writeHelp(w, fields[1:])
	case "next":
		event, err := c.radio.NextEvent(ctx)
		if err != nil {
			fmt.Fprintln(w, err)
			break
		}
		printEvent(w, event)
	case "pull":
		c.withOutput(w, func() { c.pull(ctx) })
	case "config":
		c.withOutput(w, func() { c.showConfig() })
	case "status":
		st := c.radio.Status(ctx)
		line := fmt.Sprintf("state %s safe_mode %t event_pending %t", st.State, st.SafeMode, st.EventPending)
		if st.Summary.SupplyVolts != nil {
			line += " vdd " + st.Summary.SupplyVolts.String() + "V"
		}
		fmt.Fprintln(w, line)
	case "safe":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			fmt.Fprintln(w, "usage: safe on|off")
			break
		}
		c.radio.SetSafeMode(fields[1] == "on")
		fmt.Fprintf(w, "safe mode %s\n", fields[1])
	default:
		result, err := c.radio.Execute(ctx, strings.Join(fields, " "))
		if err != nil {
			fmt.Fprintln(w, err)
			break
		}
		printResult(w, result)
	}
	return true
}

func (c *ctl) withOutput(w io.Writer, fn func()) {
	out, errOut := c.out, c.errOut
	c.out, c.errOut = w, w
	defer func() { c.out, c.errOut = out, errOut }()
	fn()
}

func writeHelp(w io.Writer, args []string) {
	if len(args) == 0 {
		io.WriteString(w, shellHelp)
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(command.Categories(), " "))
		return
	}

	var lines []string
	command.Walk(func(path []string, l *command.Leaf) {
		if path[0] != args[0] {
			return
		}
		line := strings.Join(path, " ")
		for _, p := range l.Params {
			line += " <" + p.Allowed() + ">"
		}
		lines = append(lines, line)
	})
	if len(lines) == 0 {
		fmt.Fprintf(w, "unknown category %q\n", args[0])
		return
	}
	sort.Strings(lines)
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// completer builds tab completion from the command tree
func completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range []string{"next", "pull", "config", "status", "help", "exit"} {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("safe", readline.PcItem("on"), readline.PcItem("off")))
	items = append(items, completionItems(command.Root())...)
	return readline.NewPrefixCompleter(items...)
}

func completionItems(b *command.Branch) []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, key := range b.Keys() {
		child := b.Children[key]
		if sub, ok := child.(*command.Branch); ok {
			items = append(items, readline.PcItem(key, completionItems(sub)...))
			continue
		}
		items = append(items, readline.PcItem(key))
	}
	return items
}
