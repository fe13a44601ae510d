package bus

import "bytes"

// fakeConn is a bytes.Buffer usable as both io.Reader and io.Writer for
// exercising writeFrame/readFrame without a real net.Conn.
type fakeConn struct {
	bytes.Buffer
}
