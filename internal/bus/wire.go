package bus

import (
	"encoding/binary"
	"io"
)

// writeFrame writes f to w as a length-prefixed multipart message: a
// uint32 part count, then for each part a uint32 length and its bytes.
func writeFrame(w io.Writer, f Frame) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(f)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	for _, part := range f {
		binary.BigEndian.PutUint32(header[:], uint32(len(part)))
		if _, err := w.Write(header[:]); err != nil {
			return err
		}
		if len(part) > 0 {
			if _, err := w.Write(part); err != nil {
				return err
			}
		}
	}
	return nil
}

// readFrame reads one writeFrame-encoded message from r.
func readFrame(r io.Reader) (Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])

	parts := make(Frame, n)
	for i := range parts {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		l := binary.BigEndian.Uint32(header[:])
		buf := make([]byte, l)
		if l > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
		}
		parts[i] = buf
	}
	return parts, nil
}
