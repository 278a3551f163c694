package engine

import (
	"bufio"
	"io"
	"strings"
)

// lineReader splits input on \n, \r\n or a bare \r and has no limit on line
// length. Its Scan/Text/Err methods follow bufio.Scanner.
type lineReader struct {
	r       *bufio.Reader
	pending []string
	line    string
	err     error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (lr *lineReader) Scan() bool {
	for len(lr.pending) == 0 {
		if lr.err != nil {
			return false
		}
		chunk, err := lr.r.ReadString('\n')
		if err != nil {
			lr.err = err
		}
		if chunk == "" {
			continue
		}
		chunk = strings.TrimSuffix(chunk, "\n")
		chunk = strings.TrimSuffix(chunk, "\r")
		lr.pending = strings.Split(chunk, "\r")
	}
	lr.line = lr.pending[0]
	lr.pending = lr.pending[1:]
	return true
}

func (lr *lineReader) Text() string {
	return lr.line
}

func (lr *lineReader) Err() error {
	if lr.err == io.EOF {
		return nil
	}
	return lr.err
}
