package engine

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/parser"
)

const defaultBatchSize = 1024

type Options struct {
	// Workers > 1 fans line batches out to a worker pool.
	Workers int
	// SkipMalformed drops version 2 lines with a non-numeric port or
	// protocol instead of failing the run.
	SkipMalformed bool
	BatchSize     int
}

type Stats struct {
	Lines     uint64
	Valid     uint64
	Skipped   uint64
	Malformed uint64
}

func (s *Stats) merge(other Stats) {
	s.Lines += other.Lines
	s.Valid += other.Valid
	s.Skipped += other.Skipped
	s.Malformed += other.Malformed
}

type Counts struct {
	Tags          model.TagCounts
	PortProtocols model.PortProtocolCounts
}

func NewCounts() Counts {
	return Counts{
		Tags:          make(model.TagCounts),
		PortProtocols: make(model.PortProtocolCounts),
	}
}

// Add folds one classified record into the counts. Untagged records only
// count towards the tag table.
func (c Counts) Add(cl model.Classification) {
	c.Tags[cl.Tag]++
	if cl.Tagged() {
		c.PortProtocols[cl.Key]++
	}
}

func (c Counts) Merge(other Counts) {
	for tag, n := range other.Tags {
		c.Tags[tag] += n
	}
	for key, n := range other.PortProtocols {
		c.PortProtocols[key] += n
	}
}

// AggregateFile opens the flow log at path and aggregates it.
func AggregateFile(path string, table model.LookupTable, opts Options) (Counts, Stats, error) {
	f, err := parser.OpenInput(path)
	if err != nil {
		return Counts{}, Stats{}, err
	}
	defer f.Close()
	return Aggregate(f, table, opts)
}

// Aggregate classifies every version 2 record in r and counts them per tag
// and per tagged port/protocol key in a single pass.
func Aggregate(r io.Reader, table model.LookupTable, opts Options) (Counts, Stats, error) {
	classifier := NewClassifier(table)
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers > 1 {
		return aggregateParallel(r, classifier, opts)
	}

	f := newFolder(classifier, opts.SkipMalformed)
	lines := newLineReader(r)
	lineNo := 0
	for lines.Scan() {
		lineNo++
		if err := f.fold(lines.Text(), lineNo); err != nil {
			return Counts{}, Stats{}, err
		}
	}
	if err := lines.Err(); err != nil {
		return Counts{}, Stats{}, err
	}
	return f.counts, f.stats, nil
}

type lineBatch struct {
	start int
	lines []string
}

func aggregateParallel(r io.Reader, classifier *Classifier, opts Options) (Counts, Stats, error) {
	batches := make(chan lineBatch, opts.Workers*2)
	done := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(done) }) }

	folders := make([]*folder, opts.Workers)
	var wg sync.WaitGroup
	slog.Debug("Starting aggregation workers", "count", opts.Workers)
	for i := range folders {
		folders[i] = newFolder(classifier, opts.SkipMalformed)
		wg.Add(1)
		go func(f *folder, id int) {
			defer wg.Done()
			for b := range batches {
				if err := f.foldBatch(b); err != nil {
					stop()
					return
				}
			}
			slog.Debug("Worker finished", "id", id)
		}(folders[i], i+1)
	}

	scanErr := produceBatches(r, opts.BatchSize, batches, done)
	close(batches)
	wg.Wait()

	if scanErr != nil {
		return Counts{}, Stats{}, scanErr
	}

	// Report the earliest failing line any worker saw.
	var firstErr *folder
	for _, f := range folders {
		if f.err != nil && (firstErr == nil || f.errLine < firstErr.errLine) {
			firstErr = f
		}
	}
	if firstErr != nil {
		return Counts{}, Stats{}, firstErr.err
	}

	counts := NewCounts()
	var stats Stats
	for _, f := range folders {
		counts.Merge(f.counts)
		stats.merge(f.stats)
	}
	return counts, stats, nil
}

func produceBatches(r io.Reader, size int, batches chan<- lineBatch, done <-chan struct{}) error {
	lines := newLineReader(r)
	lineNo := 0
	b := lineBatch{start: 1, lines: make([]string, 0, size)}
	send := func() bool {
		select {
		case batches <- b:
			return true
		case <-done:
			return false
		}
	}

	for lines.Scan() {
		lineNo++
		b.lines = append(b.lines, lines.Text())
		if len(b.lines) == size {
			if !send() {
				return nil
			}
			b = lineBatch{start: lineNo + 1, lines: make([]string, 0, size)}
		}
	}
	if err := lines.Err(); err != nil {
		return err
	}
	if len(b.lines) > 0 {
		send()
	}
	return nil
}

// folder accumulates counts and stats for the lines it is given.
type folder struct {
	classifier    *Classifier
	skipMalformed bool

	counts  Counts
	stats   Stats
	err     error
	errLine int
}

func newFolder(classifier *Classifier, skipMalformed bool) *folder {
	return &folder{
		classifier:    classifier,
		skipMalformed: skipMalformed,
		counts:        NewCounts(),
	}
}

func (f *folder) foldBatch(b lineBatch) error {
	for i, line := range b.lines {
		if err := f.fold(line, b.start+i); err != nil {
			return err
		}
	}
	return nil
}

func (f *folder) fold(line string, lineNo int) error {
	f.stats.Lines++
	rec, ok, err := parser.ParseFlowRecord(line, lineNo)
	if err != nil {
		if f.skipMalformed && errors.Is(err, parser.ErrMalformedRecord) {
			f.stats.Malformed++
			slog.Debug("Skipping malformed flow record", "line", lineNo, "error", err)
			return nil
		}
		f.err = err
		f.errLine = lineNo
		return err
	}
	if !ok {
		f.stats.Skipped++
		return nil
	}
	f.stats.Valid++
	f.counts.Add(f.classifier.Classify(rec))
	return nil
}
