package ember

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

// ChunkedReader decodes a chunked transfer-coded body (RFC 7230 §4.1, spec
// §4.3). Grounded on the teacher's original ChunkedReader: incremental,
// unbuffered chunk-at-a-time reads that surface io.EOF on the last chunk,
// with chunk extensions discarded rather than parsed (smuggling surface).
// Reworked here to fix the teacher's trailer/final-CRLF double-consumption
// and to route every malformed-framing path through the engine's own
// sentinel errors instead of one catch-all.
type ChunkedReader struct {
	r             *bufio.Reader
	remaining     int64
	err           error
	eof           bool
	maxChunkSize  int64
	totalRead     int64
	maxBodySize   int64
	trailer       *Headers
	keepTrailers  bool
}

// NewChunkedReader wraps r to decode a chunked body with a 16 MiB per-chunk
// ceiling and no overall body cap.
func NewChunkedReader(r io.Reader) *ChunkedReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ChunkedReader{r: br, maxChunkSize: 16 << 20}
}

// NewChunkedReaderWithLimits is NewChunkedReader with explicit per-chunk
// (0 keeps the 16 MiB default) and total-body (0 = unlimited) ceilings.
func NewChunkedReaderWithLimits(r io.Reader, maxChunkSize, maxBodySize int64) *ChunkedReader {
	cr := NewChunkedReader(r)
	if maxChunkSize > 0 {
		cr.maxChunkSize = maxChunkSize
	}
	cr.maxBodySize = maxBodySize
	return cr
}

// KeepTrailers enables capture of trailer field-lines following the final
// chunk into a Headers collection retrievable via Trailer after EOF.
func (cr *ChunkedReader) KeepTrailers() *ChunkedReader {
	cr.keepTrailers = true
	cr.trailer = NewHeaders()
	return cr
}

// Trailer returns the trailer fields captured after the last chunk, or nil
// if KeepTrailers was never called or EOF has not yet been reached.
func (cr *ChunkedReader) Trailer() *Headers {
	if !cr.eof {
		return nil
	}
	return cr.trailer
}

func (cr *ChunkedReader) Read(p []byte) (int, error) {
	if cr.err != nil {
		return 0, cr.err
	}
	if cr.eof {
		return 0, io.EOF
	}

	if cr.remaining == 0 {
		if err := cr.readChunkHeader(); err != nil {
			cr.err = err
			return 0, err
		}
		if cr.remaining == 0 {
			if err := cr.readTrailer(); err != nil {
				cr.err = err
				return 0, err
			}
			cr.eof = true
			return 0, io.EOF
		}
	}

	toRead := int64(len(p))
	if toRead > cr.remaining {
		toRead = cr.remaining
	}

	n, err := cr.r.Read(p[:toRead])
	cr.remaining -= int64(n)
	cr.totalRead += int64(n)

	if cr.maxBodySize > 0 && cr.totalRead > cr.maxBodySize {
		cr.err = ErrFormBodyTooLarge
		return n, cr.err
	}

	if err != nil {
		if err == io.EOF {
			err = ErrChunkedTruncated
		}
		cr.err = err
		return n, err
	}

	if cr.remaining == 0 {
		if err := cr.readCRLF(); err != nil {
			cr.err = err
			return n, err
		}
	}
	return n, nil
}

// readChunkHeader reads "chunk-size [; chunk-ext] CRLF". Extensions are
// discarded unread; only the hex size is parsed.
func (cr *ChunkedReader) readChunkHeader() error {
	line, err := cr.r.ReadSlice('\n')
	if err != nil {
		if err == io.EOF {
			return ErrChunkedTruncated
		}
		return err
	}
	if len(line) < 2 || line[len(line)-1] != '\n' || line[len(line)-2] != '\r' {
		return ErrChunkedMalformedSize
	}
	line = line[:len(line)-2]

	if idx := bytes.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 || len(line) > 16 {
		return ErrChunkedMalformedSize
	}

	size, err := strconv.ParseInt(string(line), 16, 64)
	if err != nil || size < 0 || size > cr.maxChunkSize {
		return ErrChunkedMalformedSize
	}
	cr.remaining = size
	return nil
}

func (cr *ChunkedReader) readCRLF() error {
	var b [2]byte
	if _, err := io.ReadFull(cr.r, b[:]); err != nil {
		if err == io.EOF {
			return ErrChunkedTruncated
		}
		return err
	}
	if b[0] != '\r' || b[1] != '\n' {
		return ErrChunkedMalformedSize
	}
	return nil
}

// readTrailer consumes trailer field-lines up to and including the blank
// line that ends them. Unlike the teacher's version, the blank line IS the
// terminator and is never re-read by a caller afterward.
func (cr *ChunkedReader) readTrailer() error {
	lr := NewLineReader(cr.r)
	for {
		line, err := lr.ReadToken('\n', false, MaxHeaderLineSize)
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
		if cr.keepTrailers {
			if idx := bytes.IndexByte(line, ':'); idx >= 0 {
				name := bytes.TrimSpace(line[:idx])
				value := bytes.TrimSpace(line[idx+1:])
				cr.trailer.AddRaw(string(name), string(value))
			}
		}
	}
}

// ChunkedWriter encodes writes as chunked transfer-coded output (spec
// §4.4). Grounded on the same teacher file's reader half, written as its
// mirror image: each Write becomes one chunk, Close emits the
// zero-length final chunk and any trailer set beforehand.
type ChunkedWriter struct {
	w       io.Writer
	closed  bool
	trailer *Headers
}

// NewChunkedWriter wraps w to emit a chunked-encoded stream.
func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

// SetTrailer attaches trailer fields to be emitted after the final chunk
// by Close.
func (cw *ChunkedWriter) SetTrailer(h *Headers) {
	cw.trailer = h
}

func (cw *ChunkedWriter) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, ErrChunkedClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := io.WriteString(cw.w, strconv.FormatInt(int64(len(p)), 16)); err != nil {
		return 0, err
	}
	if _, err := cw.w.Write(crlf); err != nil {
		return 0, err
	}
	n, err := cw.w.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := cw.w.Write(crlf); err != nil {
		return n, err
	}
	return n, nil
}

// Close emits the terminating zero-length chunk, any trailer fields, and
// the final CRLF. Further writes fail with ErrChunkedClosed.
func (cw *ChunkedWriter) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	if _, err := io.WriteString(cw.w, "0\r\n"); err != nil {
		return err
	}
	if cw.trailer != nil {
		for _, h := range cw.trailer.All() {
			if _, err := io.WriteString(cw.w, h.Name+": "+h.Value+"\r\n"); err != nil {
				return err
			}
		}
	}
	_, err := cw.w.Write(crlf)
	return err
}
