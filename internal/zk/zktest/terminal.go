// Package zktest provides an in-process fake time-clock terminal for tests.
package zktest

import (
	"encoding/binary"
	"net"
	"sync/atomic"
	"testing"

	"github.com/clockbridge/clockbridge/internal/model"
	"github.com/clockbridge/clockbridge/internal/zk"
)

// SessionID is the session id the fake terminal hands out.
const SessionID uint16 = 0x2a

// Terminal answers the subset of the protocol the client speaks.
// Fields must not be modified once the terminal is serving.
type Terminal struct {
	Attendances []model.AttendanceRecord
	Users       []model.UserRecord

	// Chunked makes buffered reads announce a size and deliver data via CmdDataRdy.
	Chunked bool
	// PacketSize splits chunked data into several CmdData packets. Defaults to 512.
	PacketSize int
	// RequireAuth answers the handshake with CmdAckUnauth.
	RequireAuth bool
	// FailCommand, when non-zero, is answered with CmdAckError.
	FailCommand uint16

	connects atomic.Int32
	exits    atomic.Int32
}

// Connects returns the number of handshakes received.
func (t *Terminal) Connects() int { return int(t.connects.Load()) }

// Exits returns the number of exit commands received.
func (t *Terminal) Exits() int { return int(t.exits.Load()) }

// Listen serves the terminal on a loopback TCP port until the test ends.
func (t *Terminal) Listen(tb testing.TB) string {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}
	tb.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go t.ServeConn(conn)
		}
	}()

	return ln.Addr().String()
}

// Pipe returns the client end of an in-memory connection served by the terminal.
func (t *Terminal) Pipe() net.Conn {
	client, server := net.Pipe()
	go t.ServeConn(server)
	return client
}

// ServeConn handles requests on conn until the client exits or the connection drops.
func (t *Terminal) ServeConn(conn net.Conn) {
	defer conn.Close()

	var pending []byte
	for {
		req, err := zk.ReadPacket(conn)
		if err != nil {
			return
		}

		if t.FailCommand != 0 && req.Command == t.FailCommand {
			if t.reply(conn, req, zk.CmdAckError, nil) != nil {
				return
			}
			continue
		}

		switch req.Command {
		case zk.CmdConnect:
			t.connects.Add(1)
			cmd := zk.CmdAckOK
			if t.RequireAuth {
				cmd = zk.CmdAckUnauth
			}
			err = t.reply(conn, req, cmd, nil)

		case zk.CmdDataWRRQ:
			data := t.table(binary.LittleEndian.Uint16(req.Payload[1:]))
			if !t.Chunked {
				err = t.reply(conn, req, zk.CmdData, data)
				break
			}
			pending = data
			announce := make([]byte, 5)
			binary.LittleEndian.PutUint32(announce[1:], uint32(len(data)))
			err = t.reply(conn, req, zk.CmdAckOK, announce)

		case zk.CmdDataRdy:
			start := binary.LittleEndian.Uint32(req.Payload[0:])
			size := binary.LittleEndian.Uint32(req.Payload[4:])
			err = t.sendChunk(conn, req, pending[start:start+size])

		case zk.CmdFreeData:
			pending = nil
			err = t.reply(conn, req, zk.CmdAckOK, nil)

		case zk.CmdExit:
			t.exits.Add(1)
			_ = t.reply(conn, req, zk.CmdAckOK, nil)
			return

		default:
			err = t.reply(conn, req, zk.CmdAckError, nil)
		}

		if err != nil {
			return
		}
	}
}

func (t *Terminal) sendChunk(conn net.Conn, req zk.Packet, chunk []byte) error {
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(chunk)))
	if err := t.reply(conn, req, zk.CmdPrepareData, size); err != nil {
		return err
	}

	step := t.PacketSize
	if step <= 0 {
		step = 512
	}
	for len(chunk) > 0 {
		n := min(step, len(chunk))
		if err := t.reply(conn, req, zk.CmdData, chunk[:n]); err != nil {
			return err
		}
		chunk = chunk[n:]
	}

	return t.reply(conn, req, zk.CmdAckOK, nil)
}

func (t *Terminal) table(command uint16) []byte {
	var body []byte
	switch command {
	case zk.CmdAttLogRRQ:
		for _, rec := range t.Attendances {
			body = append(body, zk.EncodeAttendance(rec)...)
		}
	case zk.CmdUserTempRRQ:
		for _, u := range t.Users {
			body = append(body, zk.EncodeUser(u)...)
		}
	}
	return zk.WithSizePrefix(body)
}

func (t *Terminal) reply(conn net.Conn, req zk.Packet, command uint16, payload []byte) error {
	return zk.WriteFrame(conn, zk.EncodePacket(zk.Packet{
		Command: command,
		Session: SessionID,
		Reply:   req.Reply,
		Payload: payload,
	}))
}
