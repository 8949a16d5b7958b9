// Package console implements line-buffered terminal input on top of a
// UART: characters arrive one at a time from the interrupt handler,
// backspace and kill-line editing happen as they arrive, and a blocked
// reader wakes once a full line (or end-of-file) has accumulated.
package console

import (
	"errors"

	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
)

/// controlKey maps a letter to its control-code value, e.g. controlKey('U')
/// is ^U (0x15).
func controlKey(c byte) byte { return c - '@' }

const inputBufSize = 128

/// ErrKilled is returned by File.Read when the calling process was
/// killed while blocked waiting for input.
var ErrKilled = errors.New("console: process killed")

/// Writer sends a single byte to the physical console synchronously,
/// e.g. uart.UART.PutCharSync, for echoing input -- it must not block
/// the interrupt path the way the buffered output path can.
type Writer func(c byte)

/// BufferedWriter queues a byte for interrupt-driven transmission, e.g.
/// uart.UART.PutChar, for a process's own console_write output, which is
/// allowed to block its caller if the transmit buffer is full.
type BufferedWriter func(p *proc.Proc, hart int, c byte)

/// Dumper prints the process table, invoked on ^P the way xv6 wires
/// procdump to the console.
type Dumper func()

/// Console is a 128-byte circular input buffer with three indices: r
/// (next unread), w (end of the last complete line), e (next byte to be
/// written by the interrupt handler) -- matching cons.r/w/e exactly, the
/// gap between w and e holding a line still being edited.
type Console struct {
	lock *spinlock.Lock_t
	tbl  *proc.Table

	write     Writer
	bufferedW BufferedWriter
	dump      Dumper

	buf     [inputBufSize]byte
	r, w, e uint
}

/// New builds a console that echoes through write, sends a process's
/// own output through bufferedW, and invokes dump on ^P.
func New(tbl *proc.Table, write Writer, bufferedW BufferedWriter, dump Dumper) *Console {
	return &Console{
		lock:      spinlock.MkLock("cons"),
		tbl:       tbl,
		write:     write,
		bufferedW: bufferedW,
		dump:      dump,
	}
}

func (c *Console) putc(b int) {
	if b == 0x100 { // backspace
		c.write('\b')
		c.write(' ')
		c.write('\b')
		return
	}
	c.write(byte(b))
}

/// Intr processes one byte received from the UART: editing control
/// characters, ^P's process dump, or an ordinary character appended to
/// the line in progress. Implements uart.Console.
//
// UART interrupts are only ever enabled on hart 0 (PLIC.Enable is called
// once, at boot), so Intr always runs as hart 0 here rather than taking
// a hart parameter it would otherwise have to thread through uart.Console.
func (c *Console) Intr(b byte) {
	c.lock.Acquire(0)
	defer c.lock.Release(0)

	switch b {
	case controlKey('P'):
		if c.dump != nil {
			c.dump()
		}

	case controlKey('U'):
		for c.e != c.w && c.buf[(c.e-1)%inputBufSize] != '\n' {
			c.e--
			c.putc(0x100)
		}

	case controlKey('H'), 0x7f: // backspace / delete
		if c.e != c.w {
			c.e--
			c.putc(0x100)
		}

	default:
		if b != 0 && c.e-c.r < inputBufSize {
			if b == '\r' {
				b = '\n'
			}
			c.putc(int(b))
			c.buf[c.e%inputBufSize] = b
			c.e++
			if b == '\n' || b == controlKey('D') || c.e-c.r == inputBufSize {
				c.w = c.e
				c.tbl.Wakeup(&c.r, 0)
			}
		}
	}
}

/// Read blocks until a full line (or end-of-file) is available, then
/// copies up to len(dst) bytes of it into dst, stopping at the first
/// newline. It returns the number of bytes read, or -1 if p was killed
/// while waiting. It assumes one reader at a time: pushing a ^D back for
/// the next read decrements r, which is only sound when no other reader
/// is consuming the buffer.
func (c *Console) Read(p *proc.Proc, hart int, dst []byte) int {
	requested := len(dst)
	n := len(dst)

	c.lock.Acquire(hart)
	defer c.lock.Release(hart)

	for n > 0 {
		for c.r == c.w {
			if c.tbl.Killed(p, hart) {
				return -1
			}
			c.tbl.Sleep(p, &c.r, c.lock, hart)
		}

		ch := c.buf[c.r%inputBufSize]
		c.r++

		if ch == controlKey('D') {
			if n < requested {
				c.r--
			}
			break
		}

		dst[requested-n] = ch
		n--

		if ch == '\n' {
			break
		}
	}

	return requested - n
}

/// Write sends n bytes from src to the console through the buffered,
/// interrupt-driven output path, one byte at a time -- matching
/// console_write's byte-at-a-time forwarding to uart_put_char. It
/// returns the number of bytes accepted.
func (c *Console) Write(p *proc.Proc, hart int, src []byte) int {
	n := 0
	for _, b := range src {
		c.bufferedW(p, hart, b)
		n++
	}
	return n
}

/// File adapts Console to fdops.Fdops_i so it can back a process's open
/// file descriptor. Reopen/Close are no-ops: the console is a singleton
/// device with no per-descriptor state to release.
type File struct {
	console *Console
}

/// File returns an fdops.Fdops_i backed by this console.
func (c *Console) File() *File { return &File{console: c} }

func (f *File) Read(p *proc.Proc, hart int, dst []byte) (int, error) {
	n := f.console.Read(p, hart, dst)
	if n < 0 {
		return 0, ErrKilled
	}
	return n, nil
}

func (f *File) Write(p *proc.Proc, hart int, src []byte) (int, error) {
	return f.console.Write(p, hart, src), nil
}

func (f *File) Reopen() error { return nil }
func (f *File) Close() error  { return nil }
