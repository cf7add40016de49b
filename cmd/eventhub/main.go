package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"eventhub/internal/api"
	"eventhub/internal/app"
	"eventhub/internal/config"
	appLog "eventhub/internal/log"
	"eventhub/internal/metrics"
	"eventhub/internal/notify"
	"eventhub/internal/session"
	"eventhub/internal/store"
)

const version = "0.1.0"

// flagConfig holds the global flags that precede the subcommand.
type flagConfig struct {
	configPath string
	envFile    string
	debug      bool
}

// env is what every subcommand works with.
type env struct {
	cfg     *config.Config
	ctrl    *app.Controller
	metrics *metrics.Registry
	queue   *notify.Queue
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"register":   {"register -username U -email E -password P", cmdRegister},
	"login":      {"login -email E -password P", cmdLogin},
	"logout":     {"logout", cmdLogout},
	"whoami":     {"whoami", cmdWhoami},
	"list":       {"list [-category C] [-remote]", cmdList},
	"upcoming":   {"upcoming", cmdUpcoming},
	"categories": {"categories", cmdCategories},
	"mine":       {"mine", cmdMine},
	"show":       {"show ID", cmdShow},
	"create":     {"create -name N -date YYYY-MM-DD -time HH:MM -location L -description D -category C", cmdCreate},
	"update":     {"update ID [-name N] [-date ...] [-time ...] [-location ...] [-description ...] [-category ...]", cmdUpdate},
	"delete":     {"delete ID", cmdDelete},
	"export":     {"export [-o FILE]", cmdExport},
	"import":     {"import [-category C] [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-max N] FILE|URL", cmdImport},
	"serve":      {"serve [-listen ADDR]", cmdServe},
	"snapshot":   {"snapshot [-url URL] [-o FILE]", cmdSnapshot},
}

func main() {
	flags := parseFlags()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "env_file", flags.envFile)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Debug("effective config",
		"version", version,
		"api", conf.API.BaseURL,
		"session_path", conf.SessionPath,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	e := newEnv(conf)
	if err := cmd.run(ctx, e, args[1:]); err != nil {
		if errors.Is(err, app.ErrNotSignedIn) {
			fmt.Fprintln(os.Stderr, "not signed in; run `eventhub login` first")
		} else if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "usage: eventhub %s\n", cmd.usage)
		} else {
			appLog.Debug("command failed", "command", args[0], "err", err)
		}
		os.Exit(1)
	}
}

// newEnv wires the session file, the gateway, the collection store and the
// notifiers. Notifications go to stderr and, for the dashboard, to a queue.
func newEnv(conf *config.Config) *env {
	reg := metrics.New()
	sess := session.New(session.NewFileStorage(conf.SessionPath))
	queue := notify.NewQueue(0)

	client := api.New(api.Options{
		BaseURL:    conf.API.BaseURL,
		Timeout:    conf.API.Timeout,
		UserAgent:  conf.API.UserAgent,
		AuthScheme: conf.API.AuthScheme,
		Tokens:     sess,
		Metrics:    reg,
	})
	ctrl := app.New(app.Options{
		Gateway: client,
		Session: sess,
		Events:  store.New(),
		Notifier: notify.Counting{
			Next:    notify.Multi{notify.NewWriter(os.Stderr), queue},
			Metrics: reg,
		},
		Metrics: reg,
	})
	return &env{cfg: conf, ctrl: ctrl, metrics: reg, queue: queue}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", config.DefaultPath(), "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional dotenv file with EVENTHUB_* overrides")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "eventhub %s\n\nusage: eventhub [flags] <command> [args]\n\ncommands:\n", version)
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s\n", commands[name].usage)
		}
		fmt.Fprintln(out, "\nflags:")
		flag.PrintDefaults()
	}

	flag.Parse()

	return cfg
}
