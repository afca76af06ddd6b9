package recordio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Reader decodes RecordIO-framed records from an underlying stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for RecordIO decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadRecord blocks until a complete record has been read, the stream ends
// (io.EOF), or an error occurs. It reads byte-by-byte up to the first '\n',
// parses the preceding digits as the record length N, then reads exactly N
// further bytes from the same bufio.Reader and returns them.
//
// Because the length and the payload are read from one bufio.Reader
// instance, any payload bytes the underlying read already buffered past the
// '\n' delimiter are consumed by the following io.ReadFull rather than
// re-read from the socket.
func (r *Reader) ReadRecord() ([]byte, error) {
	lengthLine, err := r.br.ReadString('\n')
	if err != nil {
		if err == io.EOF && lengthLine == "" {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("recordio: reading length prefix: %w", err)
	}

	lengthLine = lengthLine[:len(lengthLine)-1] // trim '\n'
	n, err := strconv.Atoi(lengthLine)
	if err != nil {
		return nil, fmt.Errorf("recordio: invalid length prefix %q: %w", lengthLine, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("recordio: negative length prefix %d", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return nil, fmt.Errorf("recordio: reading %d-byte payload: %w", n, err)
	}

	return payload, nil
}
