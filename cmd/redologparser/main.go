// Command redologparser replays a flat redo-log file end to end: assemble
// blocks into LWNs, decode vectors, route to transactions, checkpoint, and
// hand finalized transactions to a logging Builder.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/leengari/redologparser/internal/block"
	"github.com/leengari/redologparser/internal/builder"
	"github.com/leengari/redologparser/internal/config"
	"github.com/leengari/redologparser/internal/corelog"
	"github.com/leengari/redologparser/internal/logging"
	"github.com/leengari/redologparser/internal/parser"
)

func main() {
	var (
		path       = flag.String("file", "", "path to a flat redo-log file")
		blockSize  = flag.Int("block-size", 512, "redo block size in bytes (512, 1024, or 4096)")
		conID      = flag.Uint("con-id", 0, "restrict processing to a single PDB (0 = all)")
		schemaless = flag.Bool("schemaless", false, "skip the schema-object filter")
		trackDDL   = flag.Bool("track-ddl", false, "decode DDL marker vectors")
		ignoreErrs = flag.Bool("ignore-data-errors", false, "continue past malformed vectors instead of aborting")
		sizeMax    = flag.Uint64("txn-size-max", 0, "drop a transaction once its buffered payload exceeds this many bytes (0 = unbounded)")
		seqURL     = flag.String("seq-url", "", "optional Seq ingestion URL for structured log shipping")
	)
	flag.Parse()

	logger, closeLogger := logging.SetupLogger(*seqURL)
	defer closeLogger()
	log := logging.ToLogr(logger)

	if *path == "" {
		logger.Error("missing required -file flag")
		os.Exit(2)
	}

	cfg := config.Default()
	cfg.BlockSize = *blockSize
	cfg.ConID = uint32(*conID)
	cfg.TransactionSizeMax = *sizeMax
	if *schemaless {
		cfg.Flags |= config.FlagSchemaless
	}
	if *trackDDL {
		cfg.Flags |= config.FlagTrackDDL
	}
	if *ignoreErrs {
		cfg.Flags |= config.FlagIgnoreDataErrors
	}

	reader, err := block.NewFileReader(*path, cfg.BlockSize, 0, 0)
	if err != nil {
		logger.Error("opening redo file", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	zapLog, err := zap.NewProduction()
	if err != nil {
		logger.Error("building hot-path logger", "error", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	hotLog := corelog.NewZapSugared(zapLog.Sugar())

	b := builder.NewLoggingBuilder(log)
	p := parser.New(cfg, log, hotLog, reader, b, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("parser run failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if ignored := p.IgnoredErrors(); ignored != nil {
		logger.Warn("completed with ignored data errors", "errors", ignored)
	}
}
