// Command toolboxd runs the toolbox daemon in the foreground. It is the same
// runtime as `toolbox daemon run`, packaged for service managers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"toolbox/internal/config"
	"toolbox/internal/daemonrun"
)

type options struct {
	configPath  string
	logLevel    string
	development bool
	envFiles    []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("toolboxd", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	fs.BoolVar(&opts.development, "development", false, "Enable development logging (source locations)")
	fs.StringSliceVar(&opts.envFiles, "env-file", nil, "Extra .env files to load before reading config")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func loadEnvFiles(extra []string) error {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	if err := godotenv.Load(extra...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if err := loadEnvFiles(opts.envFiles); err != nil {
		log.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		resolved = ""
	}

	err = daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		ConfigPath:  resolved,
		LogLevel:    opts.logLevel,
		Development: opts.development,
	})
	if err != nil {
		log.Fatalf("toolboxd: %v", err)
	}
}
