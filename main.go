package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"msftool/pkg/config"
	"msftool/pkg/core"
	"msftool/pkg/logger"
	"msftool/pkg/progress"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "msftool",
		Usage:     "Pack a directory tree into an MSF archive, or unpack one",
		UsageText: "msftool pack|unpack <msf> <path>\nmsftool list <msf>",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_ = cli.ShowAppHelp(cmd)
			return errors.New("missing command")
		},
		Commands: []*cli.Command{
			packCmd(stderr),
			unpackCmd(stderr),
			listCmd(stdout, stderr),
		},
	}
}

// globalFlags are accepted before or after the subcommand name.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to config.yaml (default: user config dir)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format (pretty, json, text)",
			Value: "pretty",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "log throughput while copying file data",
		},
	}
}

func packCmd(stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Pack a directory tree into a single .msf file",
		ArgsUsage: "<archive_path> <source_dir>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "sort", Usage: "visit directory entries by name for reproducible archives"},
			&cli.BoolFlag{Name: "allow-empty", Usage: "write an empty archive instead of failing when there is nothing to pack"},
			&cli.BoolFlag{Name: "normalize-names", Usage: "store entry names in Unicode NFC"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			archive, src, err := twoArgs(cmd)
			if err != nil {
				return err
			}
			ctx, cfg, err := setup(ctx, cmd, stderr)
			if err != nil {
				return err
			}

			opts := core.Options{
				Sort:           boolOpt(cmd, "sort", cfg.Sort),
				AllowEmpty:     boolOpt(cmd, "allow-empty", cfg.AllowEmpty),
				NormalizeNames: boolOpt(cmd, "normalize-names", cfg.NormalizeNames),
				Progress:       boolOpt(cmd, "progress", cfg.Progress),
			}
			res, err := core.Pack(ctx, archive, src, opts)
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}
			logger.FromContext(ctx).Info("packed", "archive", archive, "files", res.Files, "data", progress.FormatSize(res.Bytes))
			return nil
		},
	}
}

func unpackCmd(stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "unpack",
		Usage:     "Extract every file of an .msf archive into a directory",
		ArgsUsage: "<archive_path> <dest_dir>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Usage: "number of files extracted concurrently", Value: 1},
			&cli.BoolFlag{Name: "allow-traversal", Usage: "accept absolute entry names and '..' components"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			archive, dest, err := twoArgs(cmd)
			if err != nil {
				return err
			}
			ctx, cfg, err := setup(ctx, cmd, stderr)
			if err != nil {
				return err
			}

			workers := cmd.Int("workers")
			if !cmd.IsSet("workers") && cfg.Workers != nil {
				workers = *cfg.Workers
			}
			opts := core.Options{
				Workers:        workers,
				AllowTraversal: boolOpt(cmd, "allow-traversal", cfg.AllowTraversal),
				Progress:       boolOpt(cmd, "progress", cfg.Progress),
			}
			res, err := core.Unpack(ctx, archive, dest, opts)
			if err != nil {
				return fmt.Errorf("unpack: %w", err)
			}
			logger.FromContext(ctx).Info("unpacked", "dest", dest, "files", res.Files, "data", progress.FormatSize(res.Bytes))
			return nil
		},
	}
}

func listCmd(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "Print the entry table of an .msf archive",
		ArgsUsage: "<archive_path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the table as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				_ = cli.ShowSubcommandHelp(cmd)
				return fmt.Errorf("%s: expected %s", cmd.Name, cmd.ArgsUsage)
			}
			ctx, _, err := setup(ctx, cmd, stderr)
			if err != nil {
				return err
			}

			entries, err := core.List(ctx, cmd.Args().First())
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			if cmd.Bool("json") {
				out, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("encode table: %w", err)
				}
				_, err = fmt.Fprintln(stdout, string(out))
				return err
			}
			for _, e := range entries {
				if _, err := fmt.Fprintf(stdout, "%10d %10d %s\n", e.Offset, e.Length, e.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// twoArgs returns the two positional arguments, printing usage when they are
// missing.
func twoArgs(cmd *cli.Command) (string, string, error) {
	if cmd.Args().Len() != 2 {
		_ = cli.ShowSubcommandHelp(cmd)
		return "", "", fmt.Errorf("%s: expected %s", cmd.Name, cmd.ArgsUsage)
	}
	return cmd.Args().Get(0), cmd.Args().Get(1), nil
}

// setup loads the config file and installs the logger in ctx.
func setup(ctx context.Context, cmd *cli.Command, stderr io.Writer) (context.Context, config.Config, error) {
	path, explicit := config.DefaultPath(), false
	if cmd.IsSet("config") {
		path, explicit = cmd.String("config"), true
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return ctx, cfg, err
	}

	level := cmd.String("log-level")
	if !cmd.IsSet("log-level") && cfg.LogLevel != "" {
		level = cfg.LogLevel
	}
	format := cmd.String("log-format")
	if !cmd.IsSet("log-format") && cfg.LogFormat != "" {
		format = cfg.LogFormat
	}
	log, err := logger.ForFormat(format, stderr, logger.ParseLevel(level))
	if err != nil {
		return ctx, cfg, err
	}
	return logger.WithContext(ctx, log), cfg, nil
}

// boolOpt returns the flag value when it was given, else the config value.
func boolOpt(cmd *cli.Command, name string, fromConfig *bool) bool {
	if cmd.IsSet(name) || fromConfig == nil {
		return cmd.Bool(name)
	}
	return *fromConfig
}
