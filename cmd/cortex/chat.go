package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	roleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in the terminal",
	Long: `Chat with the agent in the terminal.

Commands:
  /exit            Exit
  /layer <id>      Toggle a knowledge layer
  /mode <mode>     Set the session mode
  /state           Show the agent state`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := chatSessionFor(ctx, a)
		if err != nil {
			return err
		}

		c := &chat{app: a, sess: sess, out: cmd.OutOrStdout(), renderer: newRenderer(100)}
		return c.run(ctx, os.Stdin)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "resume an existing session")
}

func chatSessionFor(ctx context.Context, a *app) (*domain.Session, error) {
	if chatSession != "" {
		return a.store.GetSession(ctx, chatSession)
	}
	sess := &domain.Session{ID: store.NewID(), Name: "chat", Model: a.cfg.Model.Name}
	if err := a.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

type chat struct {
	app      *app
	sess     *domain.Session
	out      io.Writer
	renderer *glamour.TermRenderer
	lastID   string
}

func (c *chat) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, headerStyle.Render("cortex")+" "+dimStyle.Render("session "+c.sess.ID))

	events, err := c.app.store.Events(ctx, c.sess.ID, 0)
	if err != nil {
		return err
	}
	for _, e := range events {
		c.print(e)
	}

	states, cancel := c.app.controller.Runtime(c.sess.ID).Subscribe()
	defer cancel()
	go func() {
		for s := range states {
			if s.Status != domain.AgentIdle && s.Status != domain.AgentError {
				fmt.Fprintln(c.out, dimStyle.Render("… "+strings.ToLower(string(s.Status))))
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, userStyle.Render("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit":
			return nil
		case line == "/state":
			b, _ := json.MarshalIndent(c.app.controller.Runtime(c.sess.ID).State(), "", "  ")
			fmt.Fprintln(c.out, string(b))
			continue
		case strings.HasPrefix(line, "/layer "):
			c.toggleLayer(ctx, strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "/layer "))))
			continue
		case strings.HasPrefix(line, "/mode "):
			c.sess.Mode = strings.TrimSpace(strings.TrimPrefix(line, "/mode "))
			c.update(ctx, "Mode: "+c.sess.Mode)
			continue
		}

		if err := c.app.store.Append(ctx, &domain.Event{
			SessionID: c.sess.ID,
			Kind:      domain.EventUserMessage,
			Content:   line,
		}); err != nil {
			return err
		}
		// The step error is already recorded as an error event.
		_ = c.app.controller.Step(ctx, c.sess.ID)
		if err := c.printNew(ctx); err != nil {
			return err
		}
	}
}

func (c *chat) toggleLayer(ctx context.Context, id string) {
	if _, ok := c.app.catalog.Get(id); !ok {
		fmt.Fprintln(c.out, errorStyle.Render("Unknown layer "+id))
		return
	}
	var layers []string
	found := false
	for _, l := range c.sess.ActiveLayers {
		if l == id {
			found = true
			continue
		}
		layers = append(layers, l)
	}
	if !found {
		layers = append(layers, id)
	}
	c.sess.ActiveLayers = layers
	c.update(ctx, "Active layers: "+strings.Join(layers, ", "))
}

func (c *chat) update(ctx context.Context, msg string) {
	if err := c.app.store.UpdateSession(ctx, c.sess); err != nil {
		fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(c.out, dimStyle.Render(msg))
}

func (c *chat) printNew(ctx context.Context) error {
	var (
		events []domain.Event
		err    error
	)
	if c.lastID == "" {
		events, err = c.app.store.Events(ctx, c.sess.ID, 0)
	} else {
		events, err = c.app.store.EventsAfter(ctx, c.sess.ID, c.lastID)
	}
	if err != nil {
		return err
	}
	for _, e := range events {
		c.print(e)
	}
	return nil
}

func (c *chat) print(e domain.Event) {
	c.lastID = e.ID
	switch e.Kind {
	case domain.EventUserMessage:
		fmt.Fprintln(c.out, userStyle.Render("You: ")+e.Content)
	case domain.EventToolCall:
		fmt.Fprintln(c.out, toolStyle.Render("⚙ "+e.ToolName)+" "+dimStyle.Render(e.Content))
	case domain.EventToolResult:
		var res domain.ToolResult
		if err := json.Unmarshal([]byte(e.Content), &res); err == nil && res.Status == domain.StatusError {
			fmt.Fprintln(c.out, errorStyle.Render("✗ "+res.Error))
		} else {
			fmt.Fprintln(c.out, successStyle.Render("✓ ")+dimStyle.Render(e.Content))
		}
	case domain.EventModelResponse:
		fmt.Fprintln(c.out, roleStyle.Render("Cortex:"))
		fmt.Fprintln(c.out, c.render(e.Content))
	case domain.EventError:
		fmt.Fprintln(c.out, errorStyle.Render("Error: "+e.Content))
	case domain.EventSystemNote:
		fmt.Fprintln(c.out, dimStyle.Render(e.Content))
	}
}

// newRenderer returns nil when glamour cannot be set up; replies are then
// printed as plain text.
func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		slog.Debug("Markdown rendering disabled", "error", err)
		return nil
	}
	return r
}

func (c *chat) render(md string) string {
	if c.renderer == nil {
		return md
	}
	out, err := c.renderer.Render(md)
	if err != nil {
		slog.Debug("Failed to render markdown", "error", err)
		return md
	}
	return strings.TrimRight(out, "\n")
}
