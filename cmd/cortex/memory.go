package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nstogner/cortex/pkg/memory"
)

var (
	memoryTags     []string
	memoryLimit    int
	memorySemantic bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the long-term memory vault",
}

var memoryStoreCmd = &cobra.Command{
	Use:   "store <key> <text>",
	Short: "Store a knowledge fragment",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.memory.Store(cmd.Context(), args[0], strings.Join(args[1:], " "), memory.WithTags(memoryTags...))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Stored "+rec.Key), dimStyle.Render(strings.Join(rec.Tags, ", ")))
		return nil
	},
}

var memoryQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the vault by keyword, or by meaning with --semantic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, memorySemantic)
		if err != nil {
			return err
		}
		defer a.Close()

		q := strings.Join(args, " ")
		var results []string
		if memorySemantic {
			results, err = a.memory.SemanticQuery(cmd.Context(), q, memoryLimit)
		} else {
			results, err = a.memory.Query(cmd.Context(), q, memoryLimit)
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No matching fragments."))
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "%s %s\n", roleStyle.Render(fmt.Sprintf("%d.", i+1)), r)
		}
		return nil
	},
}

var memoryWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every fragment and embedding",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.memory.Wipe(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Memory vault wiped"))
		return nil
	},
}

func init() {
	memoryStoreCmd.Flags().StringSliceVar(&memoryTags, "tags", nil, "tags to attach")
	memoryQueryCmd.Flags().IntVar(&memoryLimit, "limit", 5, "maximum results")
	memoryQueryCmd.Flags().BoolVar(&memorySemantic, "semantic", false, "rank by embedding similarity")
	memoryCmd.AddCommand(memoryStoreCmd, memoryQueryCmd, memoryWipeCmd)
}
