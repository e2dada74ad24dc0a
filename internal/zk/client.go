package zk

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/clockbridge/clockbridge/internal/model"
)

// DefaultTimeout bounds a single request/response exchange when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	// Timeout bounds dialing and every request/response exchange.
	Timeout time.Duration
	// Location is the zone terminal timestamps are interpreted in. Defaults to time.Local.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Client is a session with one terminal. It is not safe for concurrent use.
type Client struct {
	conn    net.Conn
	opts    Options
	host    string
	session uint16
	reply   uint16
}

// Dial opens a TCP connection to addr and performs the connect handshake.
// The connection is closed again if the handshake fails.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	d := net.Dialer{Timeout: opts.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("zk: dial %s: %w", addr, err)
	}

	c := NewClient(conn, opts)
	if err := c.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an established connection. Call Connect before issuing queries.
func NewClient(conn net.Conn, opts Options) *Client {
	var host string
	if addr := conn.RemoteAddr(); addr != nil {
		host, _, _ = net.SplitHostPort(addr.String())
	}
	return &Client{
		conn: conn,
		opts: opts.withDefaults(),
		host: host,
	}
}

// Connect performs the handshake and stores the session id assigned by the terminal.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.exchange(ctx, CmdConnect, nil)
	if err != nil {
		return fmt.Errorf("zk: connect: %w", err)
	}

	switch resp.Command {
	case CmdAckOK:
		c.session = resp.Session
		return nil
	case CmdAckUnauth:
		return ErrUnauthorized
	default:
		return &ReplyError{Request: CmdConnect, Reply: resp.Command}
	}
}

// Attendances reads the complete attendance log.
func (c *Client) Attendances(ctx context.Context) ([]model.AttendanceRecord, error) {
	data, err := c.readWithBuffer(ctx, CmdAttLogRRQ, 0)
	if err != nil {
		return nil, fmt.Errorf("zk: read attendance log: %w", err)
	}
	return DecodeAttendances(data, c.host, c.opts.Location), nil
}

// Users reads the complete user table.
func (c *Client) Users(ctx context.Context) ([]model.UserRecord, error) {
	data, err := c.readWithBuffer(ctx, CmdUserTempRRQ, FctUser)
	if err != nil {
		return nil, fmt.Errorf("zk: read users: %w", err)
	}
	return DecodeUsers(data), nil
}

// Disconnect ends the session and closes the connection.
// The connection is closed even if the terminal does not acknowledge the exit.
func (c *Client) Disconnect(ctx context.Context) error {
	resp, exitErr := c.exchange(ctx, CmdExit, nil)
	if exitErr == nil && resp.Command != CmdAckOK {
		exitErr = &ReplyError{Request: CmdExit, Reply: resp.Command}
	}
	if exitErr != nil {
		exitErr = fmt.Errorf("zk: exit: %w", exitErr)
	}

	return errors.Join(exitErr, c.conn.Close())
}

// readWithBuffer issues a buffered read for command and returns the raw table.
func (c *Client) readWithBuffer(ctx context.Context, command uint16, fct uint32) ([]byte, error) {
	req := make([]byte, 11)
	req[0] = 1
	binary.LittleEndian.PutUint16(req[1:], command)
	binary.LittleEndian.PutUint32(req[3:], fct)

	resp, err := c.exchange(ctx, CmdDataWRRQ, req)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch resp.Command {
	case CmdData:
		data = resp.Payload
	case CmdAckOK, CmdPrepareData:
		if len(resp.Payload) < 5 {
			return nil, fmt.Errorf("buffer size reply too short: %d bytes", len(resp.Payload))
		}
		size := binary.LittleEndian.Uint32(resp.Payload[1:])
		data = make([]byte, 0, size)
		for start := uint32(0); start < size; start += MaxChunk {
			chunk, err := c.readChunk(ctx, start, min(MaxChunk, size-start))
			if err != nil {
				return nil, err
			}
			data = append(data, chunk...)
		}
	default:
		return nil, &ReplyError{Request: CmdDataWRRQ, Reply: resp.Command}
	}

	if err := c.freeData(ctx); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) readChunk(ctx context.Context, start, size uint32) ([]byte, error) {
	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:], start)
	binary.LittleEndian.PutUint32(req[4:], size)

	resp, err := c.exchange(ctx, CmdDataRdy, req)
	if err != nil {
		return nil, err
	}

	switch resp.Command {
	case CmdData:
		return resp.Payload, nil
	case CmdPrepareData:
		buf := make([]byte, 0, size)
		for {
			p, err := c.readPacket(ctx)
			if err != nil {
				return nil, err
			}
			switch p.Command {
			case CmdData:
				buf = append(buf, p.Payload...)
			case CmdAckOK:
				return buf, nil
			default:
				return nil, &ReplyError{Request: CmdDataRdy, Reply: p.Command}
			}
		}
	default:
		return nil, &ReplyError{Request: CmdDataRdy, Reply: resp.Command}
	}
}

func (c *Client) freeData(ctx context.Context) error {
	resp, err := c.exchange(ctx, CmdFreeData, nil)
	if err != nil {
		return err
	}
	if resp.Command != CmdAckOK {
		return &ReplyError{Request: CmdFreeData, Reply: resp.Command}
	}
	return nil
}

// exchange sends one request and waits for the matching reply.
func (c *Client) exchange(ctx context.Context, command uint16, payload []byte) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}
	if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
		return Packet{}, err
	}

	req := EncodeRequest(command, c.session, c.reply, payload)
	c.reply = NextReply(c.reply)
	if err := WriteFrame(c.conn, req); err != nil {
		return Packet{}, err
	}

	return c.readPacket(ctx)
}

func (c *Client) readPacket(ctx context.Context) (Packet, error) {
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return Packet{}, err
	}
	return ReadPacket(c.conn)
}

// deadline is the earlier of the per-exchange timeout and the context deadline.
func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.opts.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}
