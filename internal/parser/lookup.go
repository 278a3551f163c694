package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/utils"
)

const (
	colDstPort  = "dstport"
	colProtocol = "protocol"
	colTag      = "tag"
)

// LoadLookupFile reads the lookup CSV at path.
func LoadLookupFile(path string) (model.LookupTable, error) {
	f, err := OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := ParseLookupTable(f)
	if err != nil {
		return nil, fmt.Errorf("error parsing lookup file %s: %w", path, err)
	}
	return table, nil
}

// ParseLookupTable builds a lookup table from CSV with dstport, protocol and
// tag columns. Rows are applied in order, so a later row replaces an earlier
// row with the same port and protocol. The first row with a bad port aborts
// the load.
func ParseLookupTable(r io.Reader) (model.LookupTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: could not read header: %v", ErrSchema, err)
	}

	colMap := make(map[string]int)
	for i, colName := range header {
		if i == 0 {
			colName = strings.TrimPrefix(colName, "\ufeff")
		}
		colMap[strings.ToLower(strings.TrimSpace(colName))] = i
	}

	var cols [3]int
	for i, name := range []string{colDstPort, colProtocol, colTag} {
		idx, ok := colMap[name]
		if !ok {
			return nil, fmt.Errorf("%w: could not find '%s' column in lookup file", ErrSchema, name)
		}
		cols[i] = idx
	}
	portCol, protoCol, tagCol := cols[0], cols[1], cols[2]
	width := max(portCol, protoCol, tagCol) + 1

	table := make(model.LookupTable)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedLookupRow, perr.StartLine, perr.Err)
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedLookupRow, err)
		}
		row, _ := reader.FieldPos(0)
		if len(record) < width {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected at least %d", ErrMalformedLookupRow, row, len(record), width)
		}

		port, err := utils.ParsePort(record[portCol])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedLookupRow, row, err)
		}
		key := model.LookupKey{
			Port:     port,
			Protocol: model.Protocol(strings.ToLower(strings.TrimSpace(record[protoCol]))),
		}
		table[key] = record[tagCol]
	}
	return table, nil
}
