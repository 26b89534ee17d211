package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/joelkehle/kontrata/internal/dialogue"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the engine from the terminal",
		Long:  "Reads one message per line and prints each reply. Type exit or quit to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runChat(cmd.Context(), a.tracker, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "cli", "session id")
	return cmd
}

type messenger interface {
	ProcessMessage(ctx context.Context, text, sessionID string) (dialogue.Response, error)
}

func runChat(ctx context.Context, m messenger, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "KontrataPH chat. Type exit to quit.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		resp, err := m.ProcessMessage(ctx, line, sessionID)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, resp.Text)
		if resp.ContractID != "" {
			fmt.Fprintf(out, "[contract %s saved]\n", resp.ContractID)
		}
	}
}
