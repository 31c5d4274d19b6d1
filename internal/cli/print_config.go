package cli

import (
	"context"

	"github.com/calvinalkan/shmtable/internal/config"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, sess.cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg config.Config) error {
	io.Println(config.Format(cfg))

	io.Println()
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Field("global_config", cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Field("project_config", cfg.Sources.Project)
		}
	}

	return nil
}
