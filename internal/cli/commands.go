package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/aggregator"
	"fintrack/internal/amqp"
	"fintrack/internal/clock"
	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/scheduler"
)

// DefaultCommandTimeout bounds every command except alerts tail.
const DefaultCommandTimeout = 60 * time.Second

// AlertConsumer streams published alert messages.
type AlertConsumer interface {
	ConsumeAlerts(ctx context.Context, handler func(*amqp.AlertMessage) error) error
	Close() error
}

// Env is what the commands need from the outside world.
type Env struct {
	Totals      aggregator.Source
	Obligations scheduler.Store
	// OpenAlerts is nil when no broker is configured.
	OpenAlerts func(ctx context.Context) (AlertConsumer, error)
	Clock      clock.Clock
	Close      func() error
}

// Options contain configuration for the CLI. Setup is called once per
// command run, so help output never touches a backend.
type Options struct {
	Output  io.Writer
	Setup   func(ctx context.Context) (*Env, error)
	Timeout time.Duration
}

// CLI represents the command-line interface
type CLI struct {
	opts    Options
	rootCmd *cobra.Command
	jsonOut bool
	asOf    string
	overdue bool
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCommandTimeout
	}
	cli := &CLI{opts: opts}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Run executes the command line args under ctx.
func (cli *CLI) Run(ctx context.Context, args []string) error {
	cli.rootCmd.SetArgs(args)
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fintrack",
		Short:         "Financial state monitor and recurring obligation scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.opts.Output)
	cmd.PersistentFlags().BoolVar(&cli.jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(cli.newTotalsCmd())
	cmd.AddCommand(cli.newNotificationsCmd())
	cmd.AddCommand(cli.newObligationsCmd())
	cmd.AddCommand(cli.newAlertsCmd())
	return cmd
}

func (cli *CLI) newTotalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Fetch and print the current financial totals",
		Args:  cobra.NoArgs,
		RunE: cli.withEnv(func(ctx context.Context, env *Env, _ []string) error {
			totals, err := env.Totals.Totals(ctx)
			if err != nil {
				return err
			}
			return cli.reporter().Totals(totals, notify.Evaluate(totals))
		}),
	}
}

func (cli *CLI) newNotificationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Evaluate the threshold rules and overdue obligations",
		Args:  cobra.NoArgs,
		RunE: cli.withEnv(func(ctx context.Context, env *Env, _ []string) error {
			totals, err := env.Totals.Totals(ctx)
			if err != nil {
				return err
			}
			notes := notify.Evaluate(totals)

			if env.Obligations != nil {
				sched := scheduler.New(env.Obligations, scheduler.WithClock(env.Clock))
				if _, err := sched.Load(ctx); err != nil {
					return err
				}
				overdue := sched.Overdue(core.DateOf(env.Clock.Now()))
				if n, ok := notify.OverdueRule(len(overdue)); ok {
					notes = append(notes, n)
				}
			}
			return cli.reporter().Notifications(notes)
		}),
	}
}

func (cli *CLI) newObligationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "obligations",
		Aliases: []string{"recurring"},
		Short:   "List and manage recurring obligations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List obligations by due date",
		Args:  cobra.NoArgs,
		RunE: cli.withScheduler(func(ctx context.Context, env *Env, sched *scheduler.Scheduler, _ []string) error {
			asOf, err := cli.asOfDate(env)
			if err != nil {
				return err
			}
			items := sched.List()
			if cli.overdue {
				items = sched.Overdue(asOf)
			}
			return cli.reporter().Obligations(items, asOf)
		}),
	}
	list.Flags().BoolVar(&cli.overdue, "overdue", false, "Only show obligations due before --as-of")
	list.Flags().StringVar(&cli.asOf, "as-of", "", "Reference date (YYYY-MM-DD), default today")

	reschedule := &cobra.Command{
		Use:   "reschedule ID YYYY-MM-DD",
		Short: "Set a new due date",
		Args:  cobra.ExactArgs(2),
		RunE: cli.withScheduler(func(ctx context.Context, env *Env, sched *scheduler.Scheduler, args []string) error {
			updated, err := sched.Reschedule(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return cli.reporter().Obligation(updated, core.DateOf(env.Clock.Now()))
		}),
	}

	advance := &cobra.Command{
		Use:   "advance ID",
		Short: "Move the due date forward by one interval",
		Args:  cobra.ExactArgs(1),
		RunE: cli.withScheduler(func(ctx context.Context, env *Env, sched *scheduler.Scheduler, args []string) error {
			updated, err := sched.Advance(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.reporter().Obligation(updated, core.DateOf(env.Clock.Now()))
		}),
	}

	remove := &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete an obligation",
		Args:    cobra.ExactArgs(1),
		RunE: cli.withScheduler(func(ctx context.Context, env *Env, sched *scheduler.Scheduler, args []string) error {
			if err := sched.Remove(ctx, args[0]); err != nil {
				return err
			}
			cli.reporter().Message("Removed %s", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, reschedule, advance, remove)
	return cmd
}

func (cli *CLI) newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Alert fan-out tools",
	}
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print alerts published by the monitor until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := cli.opts.Setup(ctx)
			if err != nil {
				return err
			}
			defer closeEnv(env)

			if env.OpenAlerts == nil {
				return errors.New("AMQP_URL is not configured")
			}
			consumer, err := env.OpenAlerts(ctx)
			if err != nil {
				return fmt.Errorf("connect to broker: %w", err)
			}
			defer consumer.Close()

			reporter := cli.reporter()
			err = consumer.ConsumeAlerts(ctx, reporter.Alert)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.AddCommand(tail)
	return cmd
}

func (cli *CLI) reporter() *Reporter {
	return NewReporter(cli.opts.Output, cli.jsonOut)
}

func (cli *CLI) asOfDate(env *Env) (core.Date, error) {
	if cli.asOf == "" {
		return core.DateOf(env.Clock.Now()), nil
	}
	d, err := core.ParseDate(cli.asOf)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: --as-of %q is not a calendar date", core.ErrValidation, cli.asOf)
	}
	return d, nil
}

type envFunc func(ctx context.Context, env *Env, args []string) error

// withEnv builds the environment and bounds the run by the command timeout.
func (cli *CLI) withEnv(fn envFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cli.opts.Timeout)
		defer cancel()

		env, err := cli.opts.Setup(ctx)
		if err != nil {
			return err
		}
		defer closeEnv(env)
		if env.Clock == nil {
			env.Clock = clock.System{}
		}
		return fn(ctx, env, args)
	}
}

// withScheduler loads the obligation list before running fn.
func (cli *CLI) withScheduler(fn func(ctx context.Context, env *Env, sched *scheduler.Scheduler, args []string) error) func(*cobra.Command, []string) error {
	return cli.withEnv(func(ctx context.Context, env *Env, args []string) error {
		if env.Obligations == nil {
			return errors.New("recurring obligations are not available for this backend")
		}
		sched := scheduler.New(env.Obligations, scheduler.WithClock(env.Clock))
		if _, err := sched.Load(ctx); err != nil {
			return err
		}
		return fn(ctx, env, sched, args)
	})
}

func closeEnv(env *Env) {
	if env != nil && env.Close != nil {
		_ = env.Close()
	}
}
