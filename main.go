package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanpawarit/construction-support-assistant/agent/httpapi"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
	configx "github.com/tanpawarit/construction-support-assistant/pkg/config"
	logx "github.com/tanpawarit/construction-support-assistant/pkg/logger"
	_ "github.com/tanpawarit/construction-support-assistant/pkg/logger/autoload"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Construction-equipment support chatbot backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default ./.env when present)")

	root.AddCommand(newServeCmd(), newAskCmd(), newInboxCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := logx.Component("server")
			ctx = logger.WithContext(ctx)

			a, err := buildApp(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("startup failed")
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn().Err(err).Msg("close resources")
				}
			}()

			srv, err := httpapi.NewServer(a.chat, httpapi.Options{
				Addr:      a.cfg.Addr,
				StaticDir: a.cfg.StaticDir,
			})
			if err != nil {
				return err
			}
			if err := srv.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
				return err
			}
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run a single chat turn from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logx.Component("cli")
			ctx := logger.WithContext(cmd.Context())

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sessionID, err := a.chat.Login(ctx, a.cfg.LoginUser, a.cfg.LoginPassword)
			if err != nil {
				return err
			}
			defer a.chat.Finish(context.WithoutCancel(ctx), sessionID)

			if userID != "" {
				if _, err := a.chat.SelectUser(ctx, sessionID, userID); err != nil {
					return err
				}
			}

			result, err := a.chat.Chat(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "customer user id to select before asking")
	return cmd
}

func newInboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox [staffId]",
		Short: "Print the notifications stored for a staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logx.Component("cli")
			ctx := logger.WithContext(cmd.Context())

			a, inbox, err := openInboxOnly(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			messages, err := inbox.List(ctx, args[0])
			if err != nil {
				return err
			}
			if messages == nil {
				messages = []records.InboxMessage{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(messages)
		},
	}
}
