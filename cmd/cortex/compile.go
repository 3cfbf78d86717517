package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

var (
	compileSession string
	compileLayers  []string
	compileMode    string
)

var compileCmd = &cobra.Command{
	Use:   "compile <message>",
	Short: "Print the working context compiled for a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := compileSession
		if sessionID == "" {
			// A scratch session so layers and mode can be set from flags.
			sess := &domain.Session{
				ID:           store.NewID(),
				Name:         "compile",
				Mode:         compileMode,
				ActiveLayers: compileLayers,
			}
			if err := a.store.CreateSession(ctx, sess); err != nil {
				return err
			}
			defer a.store.DeleteSession(ctx, sess.ID)
			sessionID = sess.ID
		}

		res, err := a.controller.Compile(ctx, sessionID, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render("SYSTEM INSTRUCTION"))
		fmt.Fprintln(out, res.SystemInstruction)
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("HISTORY (%d entries)", len(res.History))))
		for _, e := range res.History {
			fmt.Fprintln(out, roleStyle.Render("["+string(e.Role)+"]"))
			fmt.Fprintln(out, e.Content)
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&compileSession, "session", "", "compile as the next turn of this session")
	compileCmd.Flags().StringSliceVar(&compileLayers, "layers", nil, "active layers for a scratch session")
	compileCmd.Flags().StringVar(&compileMode, "mode", "", "mode for a scratch session")
}
