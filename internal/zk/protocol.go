// Package zk implements the client side of the ZK time-clock protocol over TCP.
//
// Every TCP frame starts with the magic words 0x5050 0x7d82 followed by the
// little-endian length of the packet. A packet is an 8-byte header
// (command, checksum, session, reply counter) and an optional payload.
package zk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Command codes understood by the terminal.
const (
	CmdConnect     uint16 = 1000
	CmdExit        uint16 = 1001
	CmdPrepareData uint16 = 1500
	CmdData        uint16 = 1501
	CmdFreeData    uint16 = 1502
	CmdDataWRRQ    uint16 = 1503
	CmdDataRdy     uint16 = 1504
	CmdAckOK       uint16 = 2000
	CmdAckError    uint16 = 2001
	CmdAckUnauth   uint16 = 2005

	CmdUserTempRRQ uint16 = 9
	CmdAttLogRRQ   uint16 = 13
)

// FctUser selects the user table in a CmdUserTempRRQ buffered read.
const FctUser = 5

const (
	magic1 uint16 = 0x5050
	magic2 uint16 = 0x7d82

	ushrtMax = 65535

	tcpPrefixSize = 8
	headerSize    = 8

	// maxPacketSize bounds a single frame; real terminals never send more than a chunk.
	maxPacketSize = 1 << 20

	// MaxChunk is the largest slice requested with CmdDataRdy.
	MaxChunk = 0xFFC0

	// AttendanceRecordSize is the length of one attendance entry in a buffered read.
	AttendanceRecordSize = 40
	// UserRecordSize is the length of one user entry in a buffered read.
	UserRecordSize = 72
)

// Protocol errors.
var (
	ErrBadMagic     = errors.New("zk: bad frame magic")
	ErrFrameTooBig  = errors.New("zk: frame exceeds maximum size")
	ErrShortPacket  = errors.New("zk: packet shorter than header")
	ErrUnauthorized = errors.New("zk: terminal requires a communication key")
)

// ReplyError is returned when the terminal answers with an unexpected command.
type ReplyError struct {
	Request uint16
	Reply   uint16
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("zk: unexpected reply %d to command %d", e.Reply, e.Request)
}

// Packet is a decoded protocol packet.
type Packet struct {
	Command  uint16
	Checksum uint16
	Session  uint16
	Reply    uint16
	Payload  []byte
}

// Checksum computes the 16-bit checksum over a header (with a zero checksum field)
// and payload.
func Checksum(buf []byte) uint16 {
	var sum uint32
	for i := 0; i < len(buf); i += 2 {
		if i == len(buf)-1 {
			sum += uint32(buf[i])
		} else {
			sum += uint32(binary.LittleEndian.Uint16(buf[i:]))
		}
		sum %= ushrtMax
	}
	return uint16(ushrtMax - sum - 1)
}

// NextReply advances the reply counter, wrapping below 0xFFFF.
func NextReply(reply uint16) uint16 {
	return uint16((uint32(reply) + 1) % ushrtMax)
}

// EncodeRequest builds a request packet. The checksum covers the header with the
// current reply counter; the counter written on the wire is the advanced one.
func EncodeRequest(command, session, reply uint16, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:], command)
	binary.LittleEndian.PutUint16(buf[4:], session)
	binary.LittleEndian.PutUint16(buf[6:], reply)
	copy(buf[headerSize:], payload)

	binary.LittleEndian.PutUint16(buf[2:], Checksum(buf))
	binary.LittleEndian.PutUint16(buf[6:], NextReply(reply))
	return buf
}

// EncodePacket serialises p as-is, computing its checksum.
func EncodePacket(p Packet) []byte {
	buf := make([]byte, headerSize+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:], p.Command)
	binary.LittleEndian.PutUint16(buf[4:], p.Session)
	binary.LittleEndian.PutUint16(buf[6:], p.Reply)
	copy(buf[headerSize:], p.Payload)
	binary.LittleEndian.PutUint16(buf[2:], Checksum(buf))
	return buf
}

// WriteFrame writes packet bytes wrapped in the TCP prefix.
func WriteFrame(w io.Writer, packet []byte) error {
	frame := make([]byte, tcpPrefixSize+len(packet))
	binary.LittleEndian.PutUint16(frame[0:], magic1)
	binary.LittleEndian.PutUint16(frame[2:], magic2)
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(packet)))
	copy(frame[tcpPrefixSize:], packet)

	_, err := w.Write(frame)
	return err
}

// ReadPacket reads one TCP frame and decodes its packet.
func ReadPacket(r io.Reader) (Packet, error) {
	var prefix [tcpPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Packet{}, err
	}
	if binary.LittleEndian.Uint16(prefix[0:]) != magic1 || binary.LittleEndian.Uint16(prefix[2:]) != magic2 {
		return Packet{}, ErrBadMagic
	}

	size := binary.LittleEndian.Uint32(prefix[4:])
	if size > maxPacketSize {
		return Packet{}, ErrFrameTooBig
	}
	if size < headerSize {
		return Packet{}, ErrShortPacket
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Packet{}, fmt.Errorf("zk: read packet body: %w", err)
	}

	return Packet{
		Command:  binary.LittleEndian.Uint16(buf[0:]),
		Checksum: binary.LittleEndian.Uint16(buf[2:]),
		Session:  binary.LittleEndian.Uint16(buf[4:]),
		Reply:    binary.LittleEndian.Uint16(buf[6:]),
		Payload:  buf[headerSize:],
	}, nil
}

// DecodeTime converts the terminal's packed timestamp into a time in loc.
func DecodeTime(packed uint32, loc *time.Location) time.Time {
	t := int(packed)
	second := t % 60
	t /= 60
	minute := t % 60
	t /= 60
	hour := t % 24
	t /= 24
	day := t%31 + 1
	t /= 31
	month := t%12 + 1
	t /= 12
	year := t + 2000

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
}

// EncodeTime packs t (interpreted in its own location) into the terminal format.
func EncodeTime(t time.Time) uint32 {
	days := ((t.Year()-2000)*12*31 + (int(t.Month())-1)*31 + t.Day() - 1)
	return uint32(days*24*60*60 + (t.Hour()*60+t.Minute())*60 + t.Second())
}
