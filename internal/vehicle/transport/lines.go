package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/autopeer-io/drivelink/pkg/wire"
)

// maxLineLength bounds a partial line; longer garbage is discarded.
const maxLineLength = 4096

// lineConn splits an io.ReadWriteCloser into lines on a background reader so
// ReceiveLine can honour its context even while a read is blocked.
type lineConn struct {
	rwc       io.ReadWriteCloser
	isTimeout func(error) bool

	lines chan string
	done  chan struct{}
	once  sync.Once
	wmu   sync.Mutex

	// err is written before lines is closed.
	err error
}

func newLineConn(rwc io.ReadWriteCloser, isTimeout func(error) bool) *lineConn {
	if isTimeout == nil {
		isTimeout = func(error) bool { return false }
	}
	c := &lineConn{
		rwc:       rwc,
		isTimeout: isTimeout,
		lines:     make(chan string, 16),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *lineConn) readLoop() {
	defer close(c.lines)

	buf := make([]byte, 512)
	var pending []byte
	for {
		n, err := c.rwc.Read(buf)
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := strings.TrimRight(string(pending[:i]), "\r")
			pending = pending[i+1:]
			select {
			case c.lines <- line:
			case <-c.done:
				c.err = ErrClosed
				return
			}
		}
		if len(pending) > maxLineLength {
			pending = pending[:0]
		}

		if err != nil {
			if c.isTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) || c.closed() {
				c.err = ErrClosed
			} else {
				c.err = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return
		}
	}
}

func (c *lineConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *lineConn) receive(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", c.err
		}
		return line, nil
	}
}

func (c *lineConn) send(cmd wire.Command) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := io.WriteString(c.rwc, wire.FormatCommand(cmd))
	return err
}

func (c *lineConn) close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.rwc.Close()
	})
	return err
}
