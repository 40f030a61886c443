// Package app builds the caffe command with Cobra, Viper and Pflag.
//
// Configuration is read from, in increasing precedence: a YAML file
// (caffe.yaml in ., ./configs, $HOME/.caffe or /etc/caffe, or --config),
// CAFFE_ environment variables (CAFFE_RATE_LIMIT for rate.limit) and flags.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const name = "caffe"

// App is the caffe command.
type App struct {
	opts *Options
	v    *viper.Viper
	cmd  *cobra.Command

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// Option configures an App.
type Option func(*App)

// WithIO replaces the standard streams. The stdio transport reads in and
// writes out; logs go to errOut.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
		a.errOut = errOut
	}
}

// NewApp creates the command.
func NewApp(opts ...Option) *App {
	a := &App{
		opts:   NewOptions(),
		v:      viper.New(),
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:   name,
		Short: "Serve a demo middleware pipeline",
		Long: `caffe composes a demo pipeline (request id, logging, recovery,
telemetry, timeout, rate limiting, body limit and CORS) and serves it over
HTTP, WebSocket or newline-delimited JSON on stdio.`,
		Args:         cobra.NoArgs,
		RunE:         a.runCommand,
		SilenceUsage: true,
	}

	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)
	cmd.Flags().SortFlags = true

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	a.opts.AddFlags(cmd.Flags())

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	if err := a.opts.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, a.opts, a.in, a.out, a.errOut)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loadConfig merges the config file, environment and flags into the options.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.v

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+name))
		v.AddConfigPath("/etc/" + name)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		key := f.Name
		if k, ok := flagKeys[key]; ok {
			key = k
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	if err := v.Unmarshal(a.opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// Run executes the command and exits on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Options returns the options the command was configured with.
func (a *App) Options() *Options {
	return a.opts
}
