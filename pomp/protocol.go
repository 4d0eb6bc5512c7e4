package pomp

import (
	"encoding/binary"

	"github.com/op/go-logging"
)

// frameState is the Framer's internal state, exactly the
// IDLE -> MAGIC0 -> MAGIC1 -> MAGIC2 -> MAGIC3 -> HEADER -> PAYLOAD -> IDLE
// machine of spec.md §4.4.
type frameState int

const (
	stateIdle frameState = iota
	stateMagic0
	stateMagic1
	stateMagic2
	stateMagic3
	stateHeader
	statePayload
)

var magicBytes = [4]byte{0x50, 0x4F, 0x4D, 0x50} // "POMP"

// Protocol is the streaming framing state machine: it consumes
// arbitrary byte slices and returns zero or more fully-formed Messages,
// resynchronizing on the magic signature after corruption. One
// Protocol instance owns exactly one in-progress header buffer and one
// in-progress Message at a time; it exposes no other internal buffers.
//
// MaxMessageSize bounds the accepted "size" header field; 0 (the
// default) leaves it unbounded, matching spec.md's original behavior.
// See DESIGN.md Open Question #3.
type Protocol struct {
	MaxMessageSize uint32

	log *logging.Logger

	state   frameState
	header  [headerSize]byte
	headerN int
	msg     *Message
}

// NewProtocol returns an idle Protocol. log may be nil, in which case a
// package-level logger is used for framing warnings (spec.md §7:
// FramingWarning is logged and absorbed, never returned to the caller).
func NewProtocol(log *logging.Logger) *Protocol {
	if log == nil {
		log = packageLogger
	}
	return &Protocol{log: log}
}

// Decode consumes buf[offset:], advancing the state machine one byte at
// a time, and returns the new offset and at most one completed Message.
// Callers must loop Decode over a chunk until the offset stops
// advancing or the chunk is exhausted, delivering each returned Message
// before the next call (spec.md §4.4).
func (p *Protocol) Decode(buf []byte, offset int) (int, *Message) {
	for offset < len(buf) {
		b := buf[offset]
		switch p.state {
		case stateIdle:
			p.headerN = 0
			p.state = stateMagic0
			// fall through to MAGIC0 without consuming a byte: IDLE's
			// transition is "on entry with a byte available", MAGIC0
			// then consumes it below.
			continue
		case stateMagic0, stateMagic1, stateMagic2, stateMagic3:
			offset++
			expectIdx := int(p.state - stateMagic0)
			p.header[p.headerN] = b
			p.headerN++
			if b != magicBytes[expectIdx] {
				p.log.Warningf("%s, resynchronizing", ErrBadMagic)
				p.state = stateMagic0
				p.headerN = 0
				continue
			}
			if p.state == stateMagic3 {
				p.state = stateHeader
			} else {
				p.state++
			}
		case stateHeader:
			offset++
			p.header[p.headerN] = b
			p.headerN++
			if p.headerN < headerSize {
				continue
			}
			msgid := binary.LittleEndian.Uint32(p.header[4:8])
			size := binary.LittleEndian.Uint32(p.header[8:12])
			if size < headerSize {
				p.log.Warningf("%s, resynchronizing", ErrShortHeader)
				p.state = stateMagic0
				p.headerN = 0
				continue
			}
			if p.MaxMessageSize != 0 && size > p.MaxMessageSize {
				p.log.Warningf("%s, resynchronizing", ErrMessageTooLarge)
				p.state = stateMagic0
				p.headerN = 0
				continue
			}
			p.msg = &Message{id: msgid, buf: NewBuffer()}
			_ = p.msg.buf.Write(p.header[:])
			p.state = statePayload
		case statePayload:
			need := int(binary.LittleEndian.Uint32(p.header[8:12])) - p.msg.buf.Len()
			take := len(buf) - offset
			if take > need {
				take = need
			}
			_ = p.msg.buf.Write(buf[offset : offset+take])
			offset += take
			if p.msg.buf.Len() < int(binary.LittleEndian.Uint32(p.header[8:12])) {
				continue
			}
			p.msg.buf.Latch()
			p.msg.finished = true
			completed := p.msg
			p.msg = nil
			p.state = stateIdle
			return offset, completed
		}
	}
	return offset, nil
}
