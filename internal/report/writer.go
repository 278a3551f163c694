// Package report writes aggregated flow counts as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/parser"
)

var (
	TagCountsHeader          = []string{"Tag", "Count"}
	PortProtocolCountsHeader = []string{"Port", "Protocol", "Count"}
)

// WriteTagCounts writes one row per tag, sorted by tag.
func WriteTagCounts(w io.Writer, counts model.TagCounts) error {
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	cw := csv.NewWriter(w)
	if err := cw.Write(TagCountsHeader); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := cw.Write([]string{tag, strconv.FormatUint(counts[tag], 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePortProtocolCounts writes one row per port/protocol key, sorted by
// port and then protocol.
func WritePortProtocolCounts(w io.Writer, counts model.PortProtocolCounts) error {
	keys := make([]model.LookupKey, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Port != keys[j].Port {
			return keys[i].Port < keys[j].Port
		}
		return keys[i].Protocol < keys[j].Protocol
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(PortProtocolCountsHeader); err != nil {
		return err
	}
	for _, key := range keys {
		record := []string{
			strconv.Itoa(key.Port),
			string(key.Protocol),
			strconv.FormatUint(counts[key], 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile runs write against a temporary file next to path and renames it
// into place once write succeeds. An existing file at path is replaced; on
// failure it is left untouched. An unusable destination is reported as
// parser.ErrFileNotFound.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create output file %s: %w", parser.ErrFileNotFound, path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Chmod(0644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: failed to replace output file %s: %w", parser.ErrFileNotFound, path, err)
	}
	return nil
}
