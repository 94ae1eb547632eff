package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

// FormatType selects the log record encoding.
type FormatType string

const (
	FormatText     FormatType = "text"
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

var formats = []FormatType{FormatText, FormatTerminal, FormatLogFmt, FormatJSON}

func (f FormatType) Valid() bool {
	for _, v := range formats {
		if v == f {
			return true
		}
	}
	return false
}

var levels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
	"crit":  log.LevelCrit,
}

// ParseLevel accepts the geth level names, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	lvl, ok := levels[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unrecognized log level: %q", s)
	}
	return lvl, nil
}

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output",
			Value:   "info",
			EnvVars: []string{envPrefix + "_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    FormatFlagName,
			Usage:   fmt.Sprintf("Format the log output. Supported formats: %v", formats),
			Value:   string(FormatText),
			EnvVars: []string{envPrefix + "_LOG_FORMAT"},
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: []string{envPrefix + "_LOG_COLOR"},
		},
	}
}

type CLIConfig struct {
	Level  slog.Level
	Color  bool
	Format FormatType
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LevelInfo,
		Format: FormatText,
		Color:  term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func ReadCLIConfig(ctx *cli.Context) (CLIConfig, error) {
	cfg := DefaultCLIConfig()
	if ctx.IsSet(LevelFlagName) {
		lvl, err := ParseLevel(ctx.String(LevelFlagName))
		if err != nil {
			return cfg, err
		}
		cfg.Level = lvl
	}
	if ctx.IsSet(FormatFlagName) {
		cfg.Format = FormatType(ctx.String(FormatFlagName))
		if !cfg.Format.Valid() {
			return cfg, fmt.Errorf("unrecognized log format: %q", cfg.Format)
		}
	}
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg, nil
}

// NewHandler builds the slog handler for the configured format.
func NewHandler(wr io.Writer, cfg CLIConfig) slog.Handler {
	switch cfg.Format {
	case FormatJSON:
		return JSONMsHandler(wr, cfg.Level)
	case FormatLogFmt:
		return LogfmtMsHandler(wr, cfg.Level)
	case FormatTerminal:
		return log.NewTerminalHandlerWithLevel(wr, cfg.Level, cfg.Color)
	default:
		return log.NewTerminalHandlerWithLevel(wr, cfg.Level, false)
	}
}

func NewLogger(wr io.Writer, cfg CLIConfig) log.Logger {
	return log.NewLogger(NewHandler(wr, cfg))
}

// SetupDefaults builds the logger from cli flags and installs it as the geth root logger.
func SetupDefaults(ctx *cli.Context) (log.Logger, error) {
	cfg, err := ReadCLIConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(os.Stdout, cfg)
	log.SetDefault(logger)
	return logger, nil
}
