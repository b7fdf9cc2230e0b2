// Package parser wires RecordAssembler -> VectorDecoder -> TransactionRouter
// -> CheckpointEngine -> Builder into the single-threaded core pipeline
// described in spec.md §2 and §5, owning the soft-shutdown flag and the
// wait for a live reader to deliver more blocks. It has no builder
// backpressure wait: Builder calls are made synchronously.
package parser

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/leengari/redologparser/internal/assembler"
	"github.com/leengari/redologparser/internal/block"
	"github.com/leengari/redologparser/internal/builder"
	"github.com/leengari/redologparser/internal/checkpoint"
	"github.com/leengari/redologparser/internal/config"
	"github.com/leengari/redologparser/internal/router"
	"github.com/leengari/redologparser/internal/schema"
	"github.com/leengari/redologparser/internal/vector"
)

// pollInterval bounds how long Run waits between retries when the reader
// has no new blocks yet but has not signalled a final status.
const pollInterval = 50 * time.Millisecond

// Parser is the top-level orchestrator (spec.md §2's five components wired
// together). Concurrency stays at the Reader/Builder boundary only; the
// core loop below is single-threaded (spec.md §5).
type Parser struct {
	cfg config.Config
	log logr.Logger

	reader block.Reader
	asm    *assembler.RecordAssembler
	dec    *vector.VectorDecoder
	rtr    *router.Router
	ckpt   *checkpoint.Engine
	dict   *schema.Dictionary

	softShutdown atomic.Bool

	// ignoredErrs aggregates every decode error swallowed under
	// FlagIgnoreDataErrors (spec.md §7) so a caller can inspect the full
	// set at shutdown instead of only the last one logged.
	ignoredErrs error

	// last* track the most recently processed LWN's position, so the
	// final log-switch checkpoint (spec.md §4.5, scenario S6) has
	// something to report even though the reader signals RedoFinished
	// outside the per-LWN loop.
	lastSCN       uint64
	lastTimestamp uint64
	lastSeq       uint32
	lastOffset    uint64
}

// New builds a Parser over an already-open block.Reader. hotLog backs the
// VectorDecoder's per-vector logging, which runs on the hot decode path;
// callers typically pass a zap-backed logr.Logger there (via
// internal/corelog.NewZapSugared) and a slower, structured one for log,
// which only sees per-LWN and per-transaction events.
func New(cfg config.Config, log, hotLog logr.Logger, r block.Reader, b builder.Builder, store checkpoint.Store) *Parser {
	dict := schema.NewDictionary()
	ck := checkpoint.New(log, b, store, cfg.FirstDataSCN)
	rt := router.New(cfg, log, dict, ck)

	return &Parser{
		cfg:    cfg,
		log:    log.WithName("parser"),
		reader: r,
		asm:    assembler.New(r, log),
		dec:    vector.New(cfg, hotLog),
		rtr:    rt,
		ckpt:   ck,
		dict:   dict,
	}
}

// Dictionary exposes the schema dictionary so a caller can seed it before
// Run starts (spec.md §4.3's schema filter).
func (p *Parser) Dictionary() *schema.Dictionary { return p.dict }

// RequestShutdown sets the soft-shutdown flag; Run exits at the next LWN
// boundary once it observes it (spec.md §5).
func (p *Parser) RequestShutdown() { p.softShutdown.Store(true) }

// IgnoredErrors returns every decode error swallowed under
// FlagIgnoreDataErrors during this run, combined via multierr, or nil if
// none occurred.
func (p *Parser) IgnoredErrors() error { return p.ignoredErrs }

// Run drives the core loop until soft-shutdown is requested, the context
// is cancelled, or the reader reports no more data (spec.md §2, §5).
func (p *Parser) Run(ctx context.Context) error {
	for {
		if p.softShutdown.Load() {
			return p.ckpt.Flush()
		}
		select {
		case <-ctx.Done():
			_ = p.ckpt.Flush()
			return ctx.Err()
		default:
		}

		lwn, err := p.asm.Next()
		if err == block.ErrNoMoreData {
			// Suspension point 1 (spec.md §5): a finished reader (e.g. a
			// closed archived log) means clean end of stream; a live
			// reader means wait and retry once more data is written.
			if ret, final := p.reader.GetRet(); final && ret == block.RedoFinished {
				// Log switch (spec.md §4.5, scenario S6): if the last LWN
				// processed is still past the data cutoff, report its
				// position once more, this time with switch_redo set,
				// before the core loop exits.
				if p.lastSCN > p.cfg.FirstDataSCN {
					if err := p.ckpt.ProcessCheckpoint(p.lastSCN, p.lastTimestamp, p.lastSeq, p.lastOffset, true); err != nil {
						return err
					}
				}
				return p.ckpt.LogSwitch(p.asm.NextBlock())
			}
			if err := p.waitForMoreData(ctx); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		for _, m := range lwn.Members {
			pairs, err := p.dec.Decode(m.Block, m.Offset, m.Data)
			if err != nil {
				if p.cfg.Has(config.FlagIgnoreDataErrors) {
					p.ignoredErrs = multierr.Append(p.ignoredErrs, err)
					p.log.Info("ignoring decode error", "error", err.Error())
					continue
				}
				return err
			}
			for _, pr := range pairs {
				if err := p.rtr.Route(pr); err != nil {
					return err
				}
			}
		}

		p.lastSCN, p.lastTimestamp, p.lastSeq, p.lastOffset = lwn.SCN, lwn.Timestamp, lwn.Sequence, lwn.Offset
		if err := p.ckpt.ProcessCheckpoint(lwn.SCN, lwn.Timestamp, lwn.Sequence, lwn.Offset, false); err != nil {
			return err
		}

		if err := p.ckpt.Flush(); err != nil {
			return err
		}
	}
}

// waitForMoreData is suspension point 1 from spec.md §5: block briefly so
// the core loop doesn't busy-spin while a live Reader catches up, without
// introducing a second goroutine into the single-threaded core.
func (p *Parser) waitForMoreData(ctx context.Context) error {
	t := time.NewTimer(pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
