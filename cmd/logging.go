package cmd

import (
	"io"
	"os"

	"github.com/achilleasa/voxelgi/gi"
	"github.com/achilleasa/voxelgi/log"
	"github.com/urfave/cli"
)

var logger = log.New("voxelgi")

// Configure log level and an optional rotating log file. The returned closer
// must be closed when the command completes.
func setupLogging(ctx *cli.Context, opts gi.LogOptions) io.Closer {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	if file := ctx.GlobalString("log-file"); file != "" {
		opts.File = file
	}
	if opts.File == "" {
		return fileSink{}
	}
	return fileSink{log.SetFileSink(opts.File, opts.MaxSizeMB, opts.MaxAgeDays)}
}

// Closing a fileSink restores terminal-only logging.
type fileSink struct {
	rotator io.Closer
}

func (s fileSink) Close() error {
	if s.rotator == nil {
		return nil
	}
	log.SetSink(os.Stdout)
	return s.rotator.Close()
}
