package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/playground"
	"github.com/livetemplate/syntaxstudio/internal/storage"
)

// Overridden in tests.
var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

// flags holds the options shared by every command plus the serve-only ones.
type flags struct {
	configPath string
	db         string
	port       string
	host       string
	syncDir    string
	api        bool
	debug      bool
	args       []string
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	value := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		var err error
		switch arg {
		case "--config", "-c":
			f.configPath, err = value(&i, arg)
		case "--db":
			f.db, err = value(&i, arg)
		case "--port", "-p":
			f.port, err = value(&i, arg)
		case "--host":
			f.host, err = value(&i, arg)
		case "--sync":
			f.syncDir, err = value(&i, arg)
		case "--api":
			f.api = true
		case "--debug":
			f.debug = true
		default:
			if arg != "-" && strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			f.args = append(f.args, arg)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// loadConfig reads the config file, then applies --db.
func (f *flags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch {
	case f.db == "":
	case f.db == "memory":
		cfg.Storage.Driver = "memory"
	case strings.HasPrefix(f.db, "postgres://"), strings.HasPrefix(f.db, "postgresql://"):
		cfg.Storage.Driver = "postgres"
		cfg.Storage.DSN = f.db
	default:
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = f.db
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.GetDriver(), err)
	}
	return store, nil
}

func playgroundOptions(cfg *config.Config) []playground.Option {
	opts := []playground.Option{
		playground.WithPrefix(cfg.Storage.GetPrefix()),
		playground.WithDelay(cfg.Editor.GetDebounceDelay()),
	}
	if cfg.Storage.FallbackOnCorrupt() {
		opts = append(opts, playground.WithFallbackOnCorrupt())
	}
	return opts
}

// writeOptions is playgroundOptions for commands that only write: a
// corrupt slot is replaced instead of failing the command.
func writeOptions(cfg *config.Config) []playground.Option {
	return append(playgroundOptions(cfg), playground.WithFallbackOnCorrupt())
}

// withStore parses args, opens the configured store and runs fn.
func withStore(args []string, fn func(f *flags, cfg *config.Config, store storage.Store) error) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(f, cfg, store)
}
