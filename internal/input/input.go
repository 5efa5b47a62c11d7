// Package input opens documents for segmentation: a named file or the
// process's standard input, one document per line.
package input

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Stdin is the path token that selects standard input.
const Stdin = "-"

var (
	// ErrIO wraps failures to open or read the input.
	ErrIO = errors.New("input: i/o error")

	// ErrUnknownEncoding is returned for encoding names that cannot be resolved.
	ErrUnknownEncoding = errors.New("input: unknown encoding")
)

// LookupEncoding resolves an encoding name such as "utf-8", "latin-1" or
// "utf-16". UTF-8 resolves to nil: input is passed through undecoded.
func LookupEncoding(name string) (encoding.Encoding, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "", "utf-8", "utf8":
		return nil, nil
	case "utf-8-sig", "utf8-sig":
		return unicode.UTF8BOM, nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "latin-1", "latin1", "iso-8859-1":
		// htmlindex maps these to windows-1252, which differs in 0x80-0x9f
		return ianaindex.IANA.Encoding("ISO-8859-1")
	}

	if enc, err := htmlindex.Get(normalized); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// Resolver opens input paths. Stdin is the borrowed stream used for the
// "-" path; it is never closed.
type Resolver struct {
	Stdin    io.Reader
	Encoding string
}

// Open returns a reader of UTF-8 text for path. Closing the result closes
// the underlying file exactly once; for "-" it is a no-op.
func (r Resolver) Open(path string) (io.ReadCloser, error) {
	enc, err := LookupEncoding(r.Encoding)
	if err != nil {
		return nil, err
	}

	if path == Stdin {
		stdin := r.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.NopCloser(decode(stdin, enc)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return &file{Reader: decode(f, enc), f: f}, nil
}

// CountLines returns the number of lines in path using the same line
// definition as LineReader. For "-" it reports known=false without
// reading anything.
func (r Resolver) CountLines(path string) (n int64, known bool, err error) {
	if path == Stdin {
		return 0, false, nil
	}

	rc, err := r.Open(path)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = rc.Close() }()

	n, err = countLines(rc)
	if err != nil {
		return 0, false, fmt.Errorf("%w: counting lines in %s: %w", ErrIO, path, err)
	}
	return n, true, nil
}

func countLines(r io.Reader) (int64, error) {
	sc := newScanner(r)
	var n int64
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}

func decode(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return r
	}
	return enc.NewDecoder().Reader(r)
}

type file struct {
	io.Reader
	f    *os.File
	once sync.Once
	err  error
}

func (f *file) Close() error {
	f.once.Do(func() { f.err = f.f.Close() })
	return f.err
}

// maxLineSize caps a single document.
const maxLineSize = 256 << 20

// LineReader yields the lines of a reader without their line terminator.
// "\n", "\r\n" and a lone "\r" each end a line. A final line without a
// terminator is still a line.
type LineReader struct {
	sc *bufio.Scanner
}

// NewLineReader returns a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{sc: newScanner(r)}
}

// Next returns the next line, or io.EOF after the last one.
func (l *LineReader) Next() (string, error) {
	if l.sc.Scan() {
		return l.sc.Text(), nil
	}
	if err := l.sc.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	return "", io.EOF
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	sc.Split(scanLines)
	return sc
}

// scanLines is bufio.ScanLines with a lone '\r' also ending a line.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// A '\r' at the end of the buffer may start "\r\n".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
