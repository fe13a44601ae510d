package loop

import (
	"encoding/binary"
	"math"
)

// uint32Frame renders v as a 4-byte big-endian frame, the concrete
// "serialize(n)" spec §6 asks for HEARTBEAT_CODE and DRAINED_CODE.
func uint32Frame(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// HeartbeatCode is the opaque frame sent in reply to a heartbeat message
// (spec §4.7 step 3, §6: HEARTBEAT_CODE=serialize(2^32-1)).
var HeartbeatCode = uint32Frame(math.MaxUint32)

// DrainedCode is the opaque frame sent when a drained Manager is expired
// (spec §4.7 step 6, §6: DRAINED_CODE=serialize(2^32-2)).
var DrainedCode = uint32Frame(math.MaxUint32 - 1)
