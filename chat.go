package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	logx "github.com/appliance-router/server/pkg/logger"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the router in the terminal",
	Long:  `Runs an interactive session against the router. Each run uses a fresh session key unless --session is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		key, _ := cmd.Flags().GetString("session")
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg, err := loadConfig(envFile)
		if err != nil {
			return err
		}
		if verbose {
			logx.Init(logx.LoggerOpts{Environment: cfg.Environment})
		} else {
			logx.Disable()
		}
		if key == "" {
			key = uuid.NewString()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session %s. Type 'exit' to quit.\n", key)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				continue
			case line == "exit" || line == "quit":
				return nil
			}
			fmt.Fprintln(out, a.controller.HandleTurn(ctx, key, line))
			if ctx.Err() != nil {
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session key to continue")
	chatCmd.Flags().BoolP("verbose", "v", false, "Log to stderr while chatting")
}
