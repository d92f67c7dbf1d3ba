package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/internal/api"
	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/format"
	"taskboard/internal/logging"
	"taskboard/internal/model"
	"taskboard/internal/session"
	"taskboard/internal/store"
	"taskboard/internal/tui"
)

type App struct {
	ConfigPath string
	Dotenv     string

	Cfg *config.Config
	Log *logrus.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Task board client: kanban and daily focus boards over the task REST API",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Interactive board
  taskboard

  # Move a card and print the result
  taskboard board move 103 --to "In Progress"

  # What can I start right now?
  taskboard deps ready

  # Local backend for trying things out
  taskboard dev-server --addr 127.0.0.1:8787
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTUI(cmd, app, board.Kanban)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{Path: app.ConfigPath, Dotenv: app.Dotenv})
		if err != nil {
			return writeErr(cmd, err)
		}
		if err := config.ApplyFlags(cfg, cmd.Flags()); err != nil {
			return writeErr(cmd, err)
		}
		app.Cfg = cfg
		app.Log = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: cmd.ErrOrStderr()})
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.ConfigPath, "config", "", "Config file (default: $"+config.EnvConfig+" or the user config dir)")
	pf.StringVar(&app.Dotenv, "env-file", "", "Dotenv file (default: ./.env)")
	config.BindFlags(pf)

	cmd.AddCommand(newStatusesCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newFocusCmd(app))
	cmd.AddCommand(newDepsCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newDevServerCmd(app))
	return cmd
}

func newTUICmd(app *App) *cobra.Command {
	var focus bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := board.Kanban
			if focus {
				v = board.Focus
			}
			return runTUI(cmd, app, v)
		},
	}
	cmd.Flags().BoolVar(&focus, "focus", false, "Start on the daily focus board")
	return cmd
}

func runTUI(cmd *cobra.Command, app *App, variant board.Variant) error {
	sess, closeFn, err := openSession(cmd.Context(), app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer closeFn()
	return tui.Run(cmd.Context(), sess, variant)
}

// openSession builds the API client and the local order store from config. A broken
// order store only costs local card order.
func openSession(ctx context.Context, app *App) (*session.Session, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := app.Cfg
	client, err := api.New(cfg.APIURL,
		api.WithToken(cfg.Token),
		api.WithUserID(model.ID(cfg.UserID)),
		api.WithTimeout(cfg.Timeout),
		api.WithLogger(logging.Component(app.Log, "api")),
	)
	if err != nil {
		return nil, nil, err
	}
	opts := []session.Option{
		session.WithRules(cfg.Rules()),
		session.WithProject(model.ID(cfg.ProjectID)),
		session.WithUser(model.ID(cfg.UserID)),
		session.WithLogger(logging.Component(app.Log, "session")),
	}
	closeFn := func() {}
	order, err := store.OpenOrderStore(ctx, cfg.StateDir)
	if err != nil {
		app.Log.WithError(err).Warn("local order store unavailable")
	} else {
		opts = append(opts, session.WithOrderStore(order))
		closeFn = func() { _ = order.Close() }
	}
	return session.New(client, opts...), closeFn, nil
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Cfg.Output.Format, app.Cfg.Output.Pretty)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
