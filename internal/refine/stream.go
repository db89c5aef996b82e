package refine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
)

// maxControlResponseBytes caps buffered control responses (token fetch,
// apply, delete, models). Tabular payloads are bounded separately by the
// configured maximum.
const maxControlResponseBytes int64 = 1 << 20

// errLimitExceeded signals that a capped buffer refused a write.
var errLimitExceeded = errors.New("size limit exceeded")

// cappedBuffer accumulates writes in memory up to a fixed limit. A write
// that would push the total past the limit is refused whole, so the buffer
// never holds more than limit bytes. A limit of zero means unbounded.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int64
}

// Write implements io.Writer. Returns errLimitExceeded when the write would
// exceed the limit.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && int64(b.buf.Len())+int64(len(p)) > b.limit {
		return 0, errLimitExceeded
	}
	return b.buf.Write(p)
}

// Bytes returns the accumulated contents.
func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// Len returns the number of bytes in the buffer.
func (b *cappedBuffer) Len() int {
	return b.buf.Len()
}

// readAllBounded drains r into a capped buffer in bounded chunks, checking
// the guard on every chunk. It returns the data read, the cumulative byte
// count at the point of return, and errLimitExceeded when the stream exceeds
// the limit. Partial data is not returned on failure.
func readAllBounded(r io.Reader, limit int64) ([]byte, int64, error) {
	dst := &cappedBuffer{limit: limit}
	chunk := make([]byte, 32*1024)
	var n int64
	for {
		m, rerr := r.Read(chunk)
		if m > 0 {
			n += int64(m)
			if _, werr := dst.Write(chunk[:m]); werr != nil {
				return nil, n, werr
			}
		}
		if rerr == io.EOF {
			return dst.Bytes(), n, nil
		}
		if rerr != nil {
			return nil, n, rerr
		}
	}
}

// payloadTooLarge builds the PayloadTooLarge error carrying the limit and
// the amount read before the abort.
func payloadTooLarge(limit, read int64) apperrors.Error {
	return ErrPayloadTooLarge.Msg(fmt.Sprintf("limit %d bytes exceeded after reading %d bytes", limit, read))
}
