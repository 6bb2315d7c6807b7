package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"github.com/global-bar/bar-web/internal/config"
	"github.com/global-bar/bar-web/internal/errors"
	"github.com/global-bar/bar-web/pkg/session"
)

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show bar.json",
	}
	cmd.AddCommand(configInitCmd(g), configShowCmd(g))
	return cmd
}

func configInitCmd(g *globals) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write bar.json with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configFile()
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New("E140").
					WithDetail(path + " already exists").
					WithSuggestion("Pass --force to overwrite it")
			}
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func configShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after bar.json, the environment and
defaults have been merged, followed by the reconnect schedule it
produces.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.cfg.Validate(); err != nil {
				return err
			}
			data, err := json.MarshalIndent(g.cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))

			backoff, err := g.cfg.Backoff()
			if err != nil {
				return err
			}
			fmt.Println()
			printSchedule(os.Stdout, backoff)
			return nil
		},
	}
}

// printSchedule lists the delay before each reconnect attempt.
func printSchedule(w io.Writer, b session.Backoff) {
	fmt.Fprintf(w, "Reconnect schedule (%d attempts):\n", b.MaxAttempts)
	var total time.Duration
	for k := 0; k < b.MaxAttempts; k++ {
		d := b.Delay(k)
		total += d
		fmt.Fprintf(w, "  %2d  %s\n", k+1, durafmt.Parse(d))
	}
	if b.MaxAttempts > 0 {
		fmt.Fprintf(w, "Gives up after about %s\n", durafmt.Parse(total).LimitFirstN(2))
	}
}
