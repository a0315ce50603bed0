// Package cli is the loractl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lora-control/internal/config"
	"lora-control/internal/controller"
	"lora-control/internal/lora"
	"lora-control/internal/output"
	"lora-control/internal/push"
	"lora-control/internal/storage"
)

// Version is overridden by the main package.
var Version = "dev"

type globalFlags struct {
	configFile string
	api        string
	transport  string
	json       bool
	plain      bool
	quiet      bool
	verbose    bool
	noColor    bool
	noInput    bool
	debug      bool
}

// app is what every command shares once the root pre-run has loaded config.
type app struct {
	flags globalFlags

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	isTTY  func() bool
	now    func() time.Time

	cfg    config.Config
	out    *output.Output
	logger *slog.Logger
	client *lora.Client
}

func newApp() *app {
	return &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		isTTY:  func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		now:    time.Now,
	}
}

// ExecuteArgs runs the command tree against args until ctx is done.
func ExecuteArgs(ctx context.Context, args []string) error {
	root := newRootCommand(newApp())
	root.SetArgs(args)
	return asUsage(root.ExecuteContext(ctx))
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "loractl",
		Short:         "Monitor and control a fleet of Lora actuators",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return UsageError{Msg: err.Error() + "\n(run with --help for usage)"}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "Config file (default ~/.config/lora-control/config.yaml)")
	pf.StringVar(&a.flags.api, "api", "", "Backend base URL (overrides api_url)")
	pf.StringVar(&a.flags.transport, "transport", "", "Push transport: socketio, mqtt, nats, poll")
	pf.BoolVar(&a.flags.json, "json", false, "Output machine-readable JSON")
	pf.BoolVar(&a.flags.plain, "plain", false, "Disable decorative formatting")
	pf.BoolVarP(&a.flags.quiet, "quiet", "q", false, "Suppress non-essential output")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable verbose diagnostics")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&a.flags.noInput, "no-input", false, "Disable stdin reads and prompts")
	pf.BoolVar(&a.flags.debug, "debug", false, "Log debug diagnostics to stderr")

	root.AddCommand(
		newDevicesCommand(a),
		newDeviceCommand(a),
		newActionCommand(a, "on", lora.ActionPowerOn, "Turn a Lora's motor on"),
		newActionCommand(a, "off", lora.ActionPowerOff, "Turn a Lora's motor off"),
		newActionCommand(a, "restart", lora.ActionRestartGateway, "Restart a Lora's gateway"),
		newWatchCommand(a),
		newMapCommand(a),
		newGroupsCommand(a),
		newSchedulesCommand(a),
		newHistoryCommand(a),
		newServeCommand(a),
		newVersionCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configFile)
	if err != nil {
		return err
	}
	if a.flags.api != "" {
		api := strings.TrimRight(a.flags.api, "/")
		if cfg.Push.URL == cfg.APIURL {
			cfg.Push.URL = api
		}
		cfg.APIURL = api
	}
	if a.flags.transport != "" {
		cfg.Push.Transport = a.flags.transport
	}
	a.cfg = cfg

	a.out = output.New(output.Options{
		JSON:    a.flags.json,
		Plain:   a.flags.plain,
		Quiet:   a.flags.quiet,
		Verbose: a.flags.verbose,
		NoColor: a.flags.noColor || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb",
		Stdout:  a.stdout,
		Stderr:  a.stderr,
	})
	if a.flags.debug {
		a.logger = enableDebugLoggingTo(a.stderr)
	} else {
		a.logger = discardLogger()
	}
	a.client = lora.NewClient(cfg.APIURL)
	if cfg.File != "" {
		a.out.Debug("config: " + cfg.File)
	}
	a.out.Debug(fmt.Sprintf("backend: %s (%s)", cfg.APIURL, cmd.CommandPath()))
	return nil
}

func (a *app) pushConfig() push.Config {
	return push.Config{
		Transport:      a.cfg.Push.Transport,
		URL:            a.cfg.Push.URL,
		Event:          a.cfg.Push.Event,
		MQTTBroker:     a.cfg.MQTT.Broker,
		MQTTTopic:      a.cfg.MQTT.Topic,
		MQTTUser:       a.cfg.MQTT.User,
		MQTTPassword:   a.cfg.MQTT.Password,
		NATSURL:        a.cfg.NATS.URL,
		NATSSubject:    a.cfg.NATS.Subject,
		PollInterval:   a.cfg.PollInterval,
		ReconnectDelay: a.cfg.ReconnectDelay,
	}
}

type session struct {
	ctl     *controller.Controller
	journal *storage.Journal
}

func (s *session) Close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
}

type sessionOptions struct {
	devices bool
	push    bool
}

// open builds the controller. With devices set the registry is loaded first;
// with push set a subscriber is attached for Start.
func (a *app) open(ctx context.Context, so sessionOptions) (*session, error) {
	opts := controller.Options{
		Backend:          a.client,
		Notifier:         a.out,
		Locale:           a.cfg.Locale,
		CompanyID:        a.cfg.CompanyID,
		CommandTimeout:   a.cfg.CommandTimeout,
		PendingTTL:       a.cfg.PendingTTL,
		GroupCacheTTL:    a.cfg.GroupCacheTTL,
		GroupConcurrency: a.cfg.GroupConcurrency,
		Logger:           a.logger,
	}
	s := &session{}
	if a.cfg.JournalPath != "" {
		j, err := storage.Open(a.cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		s.journal = j
		opts.Journal = j
	}
	if so.push {
		sub, err := push.New(a.pushConfig(), a.client, a.logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts.Subscriber = sub
	}
	s.ctl = controller.New(opts)

	if so.devices {
		if err := s.ctl.Load(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("backend %s: %w", a.cfg.APIURL, err)
		}
		a.rememberAliases(s.ctl)
	}
	return s, nil
}

func (a *app) rememberAliases(ctl *controller.Controller) {
	var aliases []string
	for _, d := range ctl.Registry().All() {
		if d.Alias != "" {
			aliases = append(aliases, d.Alias)
		}
	}
	cache, err := openAliasCache()
	if err == nil {
		err = cache.Store(a.cfg.APIURL, a.now(), aliases)
	}
	if err != nil {
		a.logger.Debug("alias cache not written", "err", err)
	}
}

// completeDeviceRefs offers aliases for the first positional argument.
func (a *app) completeDeviceRefs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if a.out == nil {
		if err := a.setup(cmd); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
	}
	cache, err := openAliasCache()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	aliases, ok := cache.Lookup(a.cfg.APIURL, a.now())
	if !ok {
		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()
		devices, err := a.client.ListActuators(ctx)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		for _, d := range devices {
			if d.Alias != "" {
				aliases = append(aliases, d.Alias)
			}
		}
		_ = cache.Store(a.cfg.APIURL, a.now(), aliases)
	}
	var out []string
	for _, alias := range aliases {
		if strings.HasPrefix(strings.ToLower(alias), strings.ToLower(toComplete)) {
			out = append(out, alias)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
