package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/face-register/internal/logging"
)

// Version is the tool version.
const Version = "0.1.0"

// Options holds flags shared by subcommands.
type Options struct {
	CascadePath  string
	DetectorAddr string
	LogLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &Options{}
	var logger *zap.Logger

	root := &cobra.Command{
		Use:          "portrait",
		Short:        "Normalize photos into 250x250 face portraits",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.NewLogger(opts.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.CascadePath, "cascade", "haarcascade_frontalface_default.xml", "Haar cascade definition used for local detection")
	flags.StringVar(&opts.DetectorAddr, "detector-addr", "", "Address of a remote face detector; overrides --cascade")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newCropCmd(opts, func() *zap.Logger { return logger }))
	return root
}
