package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-agent/internal/mcpserver"
	"github.com/capitalize-ai/scheduling-agent/internal/middleware"
	"github.com/capitalize-ai/scheduling-agent/internal/timeutil"
	"github.com/capitalize-ai/scheduling-agent/internal/tools"
)

func newMCPCmd() *cobra.Command {
	var (
		userID   string
		timezone string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the calendar tools over MCP stdio",
		Long: `Serve check_availability, book_meeting and cancel_meetings as MCP tools
over stdin/stdout for a single user. The MCP client's own model drives the
tools, so no LLM provider key is needed.

Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = strings.TrimSpace(userID)
			if userID == "" {
				return errors.New("--user is required")
			}
			if err := middleware.ValidateUserID(userID); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if timezone == "" {
				timezone = cfg.Timezone
			}
			loc, err := timeutil.LoadZone(timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone: %w", err)
			}

			log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, _, reg, err := openCalendar(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			log.Info("serving MCP over stdio",
				zap.String("user_id", userID),
				zap.String("timezone", loc.String()),
				zap.Strings("tools", reg.Names()),
			)

			srv := mcpserver.New(reg, tools.Session{UserID: userID, Location: loc}, version)
			return mcpserver.ServeStdio(srv)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User whose calendar the tools operate on (required)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone for the session (defaults to SCHEDULER_TIMEZONE)")
	return cmd
}
