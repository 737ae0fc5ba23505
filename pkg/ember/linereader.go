package ember

import (
	"bufio"
	"errors"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// iso88591Decoder decodes the ISO-8859-1 control-plane bytes of a request
// line, status line, or header line into a Go string (spec §4.1). Using
// golang.org/x/text's charmap instead of a naive byte-to-rune cast keeps
// the mapping correct for the full 0x80-0xFF range and matches how the
// broader retrieval pack (WhileEndless-go-rawhttp, MiraiMindz-watt/bolt)
// already depends on golang.org/x/text.
var iso88591Decoder = charmap.ISO8859_1.NewDecoder()

// DecodeISO88591 decodes b as ISO-8859-1 text.
func DecodeISO88591(b []byte) (string, error) {
	out, err := iso88591Decoder.Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// LineReader reads delimiter-terminated tokens from a buffered stream,
// bounded by a caller-supplied maximum length (spec §4.1). Grounded on
// andycostintoma-go-httpx/internal/netx/crflreader.go's ReadLine: bounded
// accumulation over bufio.Reader.ReadSlice, CR-before-LF stripping, EOF
// handling tunable by the caller.
type LineReader struct {
	br *bufio.Reader
}

// NewLineReader wraps r in a buffered LineReader. If r is already a
// *bufio.Reader it is reused directly.
func NewLineReader(r io.Reader) *LineReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &LineReader{br: br}
}

// ReadToken reads bytes up to and including delim (or, when any is true,
// simply until the reader is exhausted), returning everything before the
// delimiter. If delim is '\n' and the preceding byte is '\r', the '\r' is
// stripped (spec §4.1). Fails with ErrTokenTooLarge if the accumulated
// length would exceed max. EOF before delim is an error unless any is true.
func (r *LineReader) ReadToken(delim byte, any bool, max int) ([]byte, error) {
	if any {
		buf := make([]byte, 0, 256)
		tmp := make([]byte, 4096)
		for {
			n, err := r.br.Read(tmp)
			if n > 0 {
				if len(buf)+n > max {
					return nil, ErrTokenTooLarge
				}
				buf = append(buf, tmp[:n]...)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return buf, nil
				}
				return nil, err
			}
		}
	}

	var buf []byte
	for {
		part, err := r.br.ReadSlice(delim)
		if len(buf)+len(part) > max {
			return nil, ErrTokenTooLarge
		}
		buf = append(buf, part...)

		switch {
		case err == nil:
			n := len(buf) - 1 // drop the delimiter itself
			if delim == '\n' && n > 0 && buf[n-1] == '\r' {
				n--
			}
			return buf[:n], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil, ErrUnexpectedEOF
		default:
			return nil, err
		}
	}
}

// ReadTokenString is ReadToken decoded through charset, which must be one
// of "iso-8859-1" or "utf-8" (spec §4.1: "ISO-8859-1 for request/status/
// header lines, UTF-8 for form bodies").
func (r *LineReader) ReadTokenString(delim byte, any bool, max int, charset string) (string, error) {
	b, err := r.ReadToken(delim, any, max)
	if err != nil {
		return "", err
	}
	if charset == "utf-8" {
		return string(b), nil
	}
	return DecodeISO88591(b)
}
