// Package tail drives one Reader to completion against a Sink, watching its
// log directory for rotation/write events and periodically persisting read
// progress until ctx is canceled.
package tail

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"

	"tailtrack/internal/reader"
	"tailtrack/internal/sink"
)

// Processor continuously drains one Reader, writing every line to a Sink
// and committing position on a fixed cadence.
type Processor struct {
	name         string
	logPath      string
	reader       *reader.Reader
	sink         sink.Sink
	logger       *pterm.Logger
	pollInterval time.Duration
	commitPeriod time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor builds a Processor for one source. logPath is the tailed
// log's path, watched via fsnotify (directory-level, since rotation
// replaces the inode) to wake the poll loop promptly instead of waiting
// out the full pollInterval.
func NewProcessor(name string, logPath string, r *reader.Reader, s sink.Sink, logger *pterm.Logger, pollInterval time.Duration) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		name:         name,
		logPath:      logPath,
		reader:       r,
		sink:         s,
		logger:       logger,
		pollInterval: pollInterval,
		commitPeriod: 500 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the processing loop in a goroutine.
func (p *Processor) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop signals the loop to exit, waits for it, commits a final position,
// and closes the reader. It does not close the sink, which may be shared
// across processors.
func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Processor) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	commitTicker := time.NewTicker(p.commitPeriod)
	defer commitTicker.Stop()

	watcher, watchEvents := p.watchLogDir()
	var watchErrors chan error
	if watcher != nil {
		defer watcher.Close()
		watchErrors = watcher.Errors
	}

	for {
		select {
		case <-p.ctx.Done():
			p.drain()
			if err := p.reader.Commit(nil); err != nil {
				p.logger.Error("final commit failed", p.logger.Args("source", p.name, "error", err))
			}
			if err := p.reader.Close(); err != nil {
				p.logger.Warn("reader close failed", p.logger.Args("source", p.name, "error", err))
			}
			return

		case <-commitTicker.C:
			if err := p.reader.Commit(nil); err != nil {
				p.logger.Warn("periodic commit failed", p.logger.Args("source", p.name, "error", err))
			}

		case <-ticker.C:
			p.drain()

		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				p.drain()
			}

		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			p.logger.Warn("fsnotify watch error", p.logger.Args("source", p.name, "error", err))
		}
	}
}

// watchLogDir watches the tailed log's directory for writes and rotation
// creates so the loop can react immediately instead of waiting out
// pollInterval. It returns a nil watcher and nil channel on failure, in
// which case the ticker alone drives reads.
func (p *Processor) watchLogDir() (*fsnotify.Watcher, chan fsnotify.Event) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Debug("fsnotify unavailable, falling back to polling only", p.logger.Args("source", p.name, "error", err))
		return nil, nil
	}
	dir := filepath.Dir(p.logPath)
	if err := watcher.Add(dir); err != nil {
		p.logger.Debug("fsnotify watch failed, falling back to polling only", p.logger.Args("source", p.name, "dir", dir, "error", err))
		watcher.Close()
		return nil, nil
	}
	return watcher, watcher.Events
}

// drain reads every currently available line and hands each to the sink,
// stopping at the first None result or filter/IO error.
func (p *Processor) drain() {
	for {
		line, ok, err := p.reader.Read()
		if err != nil {
			p.logger.Error("read failed", p.logger.Args("source", p.name, "error", err))
			return
		}
		if !ok {
			return
		}

		rec, perr := p.reader.Position()
		if perr != nil {
			p.logger.Warn("position snapshot failed", p.logger.Args("source", p.name, "error", perr))
		}

		var offset int64
		if rec.Offset != nil {
			offset = *rec.Offset
		}

		sinkRec := sink.Record{
			SourceName: p.name,
			Line:       line,
			Offset:     offset,
			LogNumber:  p.reader.LogNumber(),
			ReadAtUnix: time.Now().Unix(),
		}
		if err := p.sink.Write(p.ctx, sinkRec); err != nil {
			p.logger.Error("sink write failed", p.logger.Args("source", p.name, "error", err))
		}
	}
}
