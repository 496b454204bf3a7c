// Package cli implements the operator console attached to a running server.
// It reads one command per line and prints tables of sessions and streams.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/soumetsu-project/soumetsu/internal/events"
	"github.com/soumetsu-project/soumetsu/internal/geoloc"
	"github.com/soumetsu-project/soumetsu/internal/handlers"
	"github.com/soumetsu-project/soumetsu/internal/session"
)

// Backend is the part of the bancho service the console drives.
type Backend interface {
	Sessions() *session.Registry
	Streams() *session.StreamManager
	Kick(ctx context.Context, token, reason string) bool
	Announce(stream, msg string) (int, bool)
	SetWelcomeMessage(msg string)
}

// CLI provides an interactive command-line interface.
type CLI struct {
	backend  Backend
	eventBus *events.EventBus
	out      io.Writer
}

// NewCLI creates a console that writes to out.
func NewCLI(backend Backend, eventBus *events.EventBus, out io.Writer) *CLI {
	return &CLI{
		backend:  backend,
		eventBus: eventBus,
		out:      out,
	}
}

// Start reads commands from in until EOF, "quit", or ctx is done.
func (c *CLI) Start(ctx context.Context, in io.Reader) {
	fmt.Fprintln(c.out, "\nSoumetsu console ready. Type 'help' for available commands.")
	fmt.Fprintln(c.out, "─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(c.out, "soumetsu> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := c.Execute(ctx, line); quit {
				return
			}
		}
	}
}

// Execute runs one command line and reports whether the console should exit.
func (c *CLI) Execute(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "sessions", "who":
		c.printSessions()
	case "streams", "channels":
		c.printStreams()
	case "kick":
		err = c.cmdKick(ctx, args)
	case "announce", "msg":
		err = c.cmdAnnounce(args)
	case "welcome":
		err = c.cmdWelcome(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down Soumetsu...")
		c.eventBus.Emit(ctx, events.New(events.EventShutdown, "cli", nil))
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return false
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, "\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.out, "║                    Soumetsu Console Commands                 ║")
	fmt.Fprintln(c.out, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(c.out, "║  status               Show online and stream counts          ║")
	fmt.Fprintln(c.out, "║  sessions             List online sessions                   ║")
	fmt.Fprintln(c.out, "║  streams              List streams and their members         ║")
	fmt.Fprintln(c.out, "║  kick <user> [reason] Disconnect a user                      ║")
	fmt.Fprintln(c.out, "║  announce [#chan] msg Send a notification                    ║")
	fmt.Fprintln(c.out, "║  welcome <msg>        Replace the login notification         ║")
	fmt.Fprintln(c.out, "║  quit                 Shutdown Soumetsu                      ║")
	fmt.Fprintln(c.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.out)
}

func (c *CLI) printStatus() {
	online := 0
	if main, ok := c.backend.Streams().Get(handlers.MainStream); ok {
		online = main.Len()
	}
	fmt.Fprintf(c.out, "\n  Sessions: %d\n", c.backend.Sessions().Len())
	fmt.Fprintf(c.out, "  Online:   %d\n", online)
	fmt.Fprintf(c.out, "  Streams:  %d\n\n", len(c.backend.Streams().Names()))
}

// printSessions renders every session as a table row, ordered by user id.
func (c *CLI) printSessions() {
	all := c.backend.Sessions().All()
	sort.Slice(all, func(i, j int) bool { return all[i].UserID() < all[j].UserID() })

	fmt.Fprintln(c.out)
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"User ID", "Username", "Country", "Client", "Pending", "Idle", "Token"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	now := time.Now()
	for _, s := range all {
		opts := s.Options()
		tw.Append([]string{
			fmt.Sprintf("%d", s.UserID()),
			s.Username(),
			geoloc.CountryCode(opts.CountryID),
			opts.ClientVersion,
			fmt.Sprintf("%d", s.Pending()),
			now.Sub(s.LastSeen()).Truncate(time.Second).String(),
			s.Token(),
		})
	}

	tw.Render()
	fmt.Fprintln(c.out)
}

func (c *CLI) printStreams() {
	fmt.Fprintln(c.out)
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Stream", "Members", "Topic"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, name := range c.backend.Streams().Names() {
		st, ok := c.backend.Streams().Get(name)
		if !ok {
			continue
		}
		tw.Append([]string{name, fmt.Sprintf("%d", st.Len()), st.Topic()})
	}

	tw.Render()
	fmt.Fprintln(c.out)
}

// cmdKick accepts a username or a session token.
func (c *CLI) cmdKick(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kick <user> [reason]")
	}

	token := args[0]
	if s, ok := c.backend.Sessions().ByName(args[0]); ok {
		token = s.Token()
	}
	reason := strings.Join(args[1:], " ")

	if !c.backend.Kick(ctx, token, reason) {
		return fmt.Errorf("no session for %q", args[0])
	}
	fmt.Fprintf(c.out, "Kicked %s\n", args[0])
	return nil
}

func (c *CLI) cmdAnnounce(args []string) error {
	stream := handlers.MainStream
	if len(args) > 0 && handlers.IsChannel(args[0]) {
		stream, args = args[0], args[1:]
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: announce [#channel] <message>")
	}

	n, ok := c.backend.Announce(stream, strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("stream %s not found", stream)
	}
	fmt.Fprintf(c.out, "Announcement sent to %d sessions in %s\n", n, stream)
	return nil
}

func (c *CLI) cmdWelcome(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: welcome <message>")
	}
	msg := strings.Join(args, " ")
	c.backend.SetWelcomeMessage(msg)
	fmt.Fprintf(c.out, "Welcome message set: %s\n", msg)
	return nil
}
