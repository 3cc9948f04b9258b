package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DavidGamba/go-getoptions"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/sirupsen/logrus"

	"github.com/nhle/subsidy-console/internal/app"
	"github.com/nhle/subsidy-console/internal/credential"
	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/source/console"
	"github.com/nhle/subsidy-console/internal/store"
	appsync "github.com/nhle/subsidy-console/internal/sync"
)

// commandLineOptionValues holds the values passed on the command line.
type commandLineOptionValues struct {
	Config string
	Role   string
}

func parseCommandLine() *commandLineOptionValues {
	optionValues := &commandLineOptionValues{}
	opt := getoptions.New()

	opt.Bool("help", false, opt.Alias("h", "?"))
	opt.StringVar(&optionValues.Config, "config", model.DefaultConfigPath(),
		opt.Alias("c"),
		opt.Description("the path to the configuration file"))
	opt.StringVar(&optionValues.Role, "role", "",
		opt.Alias("r"),
		opt.Description("the role to sign in as ("+strings.Join(model.Roles, ", ")+")"))

	_, err := opt.Parse(os.Args[1:])
	if opt.Called("help") {
		fmt.Fprint(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		fmt.Fprint(os.Stderr, opt.Help(getoptions.HelpSynopsis))
		os.Exit(1)
	}

	return optionValues
}

func main() {
	os.Exit(run(parseCommandLine()))
}

// run wires the console and blocks until the UI exits. It returns the
// process exit code so deferred cleanup runs before exiting.
func run(optionValues *commandLineOptionValues) int {
	cfg, err := model.LoadConfig(optionValues.Config)
	if err != nil {
		return fail(err)
	}

	logFile, err := initLogging(cfg)
	if err != nil {
		return fail(err)
	}
	defer logFile.Close()
	log := logrus.NewEntry(logrus.StandardLogger())

	role, err := chooseRole(optionValues.Role, cfg.Role)
	if err != nil {
		return fail(err)
	}

	durable, err := openDurable(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Error("opening durable storage")
		return fail(err)
	}
	defer durable.Close()

	session := store.NewSessionPartition(cfg.Session.Dir, cfg.Session.ID)
	bridge := store.NewBridge(session, durable, log)

	tokens, err := credential.Open()
	if err != nil {
		return fail(err)
	}

	settings, err := appsync.SettingsFromConfig(cfg)
	if err != nil {
		return fail(err)
	}

	manager := appsync.NewManager(bridge, console.NewClient(cfg.API.BaseURL), settings, tokens.Token, log)
	defer manager.Close()

	if _, err := manager.SwitchRole(context.Background(), role); err != nil {
		if !errors.Is(err, credential.ErrNoToken) {
			return fail(err)
		}
		if err := promptToken(tokens, role); err != nil {
			return fail(err)
		}
		if _, err := manager.SwitchRole(context.Background(), role); err != nil {
			return fail(err)
		}
	}

	if cfg.Role != role {
		cfg.Role = role
		if err := model.SaveConfig(optionValues.Config, cfg); err != nil {
			log.WithError(err).Warn("remembering role")
		}
	}

	m := app.New(app.Options{
		Manager:    manager,
		Config:     cfg,
		ConfigPath: optionValues.Config,
		Tokens:     tokens,
		Log:        log,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		log.WithError(err).Error("program exited")
		return fail(err)
	}
	return 0
}

// initLogging sends logs to cfg.LogFile because the terminal belongs to
// the UI.
func initLogging(cfg *model.AppConfig) (io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	logrus.SetOutput(f)
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return f, nil
}

// durablePartition is a store.Partition holding an open connection.
type durablePartition interface {
	store.Partition
	io.Closer
}

// openDurable opens the durable partition selected by durable.backend.
func openDurable(ctx context.Context, cfg *model.AppConfig) (durablePartition, error) {
	switch cfg.Durable.Backend {
	case "redis":
		return store.NewRedisPartition(ctx, cfg.Durable.RedisAddr, cfg.Durable.RedisDB, redisNamespace)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Durable.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return store.NewSQLitePartition(cfg.Durable.SQLitePath)
	}
}

// chooseRole returns the flag value, then the remembered role, and asks
// otherwise.
func chooseRole(flagRole, configured string) (string, error) {
	for _, role := range []string{flagRole, configured} {
		if role == "" {
			continue
		}
		for _, known := range model.Roles {
			if role == known {
				return role, nil
			}
		}
		return "", fmt.Errorf("unknown role %q (want one of %s)", role, strings.Join(model.Roles, ", "))
	}

	var role string
	options := make([]huh.Option[string], len(model.Roles))
	for i, r := range model.Roles {
		options[i] = huh.NewOption(r, r)
	}
	err := huh.NewSelect[string]().
		Title("Sign in as").
		Options(options...).
		Value(&role).
		Run()
	if err != nil {
		return "", fmt.Errorf("choosing role: %w", err)
	}
	return role, nil
}

// promptToken asks for the API token of role and stores it.
func promptToken(tokens *credential.Store, role string) error {
	var token string
	err := huh.NewInput().
		Title(fmt.Sprintf("API token for %s", role)).
		Description("Stored in the system keyring").
		EchoMode(huh.EchoModePassword).
		Value(&token).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("API token is required")
			}
			return nil
		}).
		Run()
	if err != nil {
		return fmt.Errorf("reading API token: %w", err)
	}
	return tokens.SetToken(role, strings.TrimSpace(token))
}

// redisNamespace prefixes every durable key in a shared Redis.
const redisNamespace = "subsidy-console:"

// fail reports err and returns the failure exit code.
func fail(err error) int {
	fmt.Fprintf(os.Stderr, "subsidy-notify: %v\n", err)
	return 1
}
