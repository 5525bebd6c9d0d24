// Package console implements the line protocol between the accelerometer
// firmware and a host.
//
// Requests and replies are ASCII lines terminated by '\n'. A request is an
// operation followed by hexadecimal operands:
//
//	ID            OK <devid_ad> <devid_mst> <partid>
//	R <reg>       OK <val>
//	W <reg> <val> OK
//	A             OK <x> <y> <z>        signed decimal
//	T             OK <temp>             signed decimal
//	S             OK <status>
//	F <n>         OK <word>...          up to n FIFO words
//	RST           OK
//	ST <0|1>      OK
//
// Failures reply ERR followed by a message.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Terminator ends every line.
const Terminator = '\n'

// MaxLine bounds a request or reply line, terminator included.
const MaxLine = 192

// MaxFIFOWords bounds the words returned by one F request.
const MaxFIFOWords = 32

// Op is a request operation.
type Op string

const (
	OpID       Op = "ID"
	OpRead     Op = "R"
	OpWrite    Op = "W"
	OpAccel    Op = "A"
	OpTemp     Op = "T"
	OpStatus   Op = "S"
	OpFIFO     Op = "F"
	OpReset    Op = "RST"
	OpSelfTest Op = "ST"
)

var arity = map[Op]int{
	OpID: 0, OpRead: 1, OpWrite: 2, OpAccel: 0, OpTemp: 0,
	OpStatus: 0, OpFIFO: 1, OpReset: 0, OpSelfTest: 1,
}

var (
	// ErrUnknownOp is returned for an operation outside the protocol.
	ErrUnknownOp = errors.New("unknown operation")
	// ErrArgs is returned for a wrong number of operands or a bad operand.
	ErrArgs = errors.New("bad operands")
	// ErrLineTooLong is returned for lines longer than MaxLine.
	ErrLineTooLong = errors.New("line too long")
)

// Request is one parsed request line.
type Request struct {
	Op   Op
	Args []byte
}

// ParseRequest parses a request line, with or without its terminator.
func ParseRequest(line string) (Request, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return Request{}, ErrUnknownOp
	}
	op := Op(strings.ToUpper(f[0]))
	n, ok := arity[op]
	if !ok {
		return Request{}, fmt.Errorf("%w %q", ErrUnknownOp, f[0])
	}
	if len(f)-1 != n {
		return Request{}, fmt.Errorf("%w: %s takes %d", ErrArgs, op, n)
	}
	req := Request{Op: op, Args: make([]byte, n)}
	for i, s := range f[1:] {
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %q", ErrArgs, s)
		}
		req.Args[i] = byte(v)
	}
	return req, nil
}

// String formats r as a request line without the terminator.
func (r Request) String() string {
	var b strings.Builder
	b.WriteString(string(r.Op))
	for _, a := range r.Args {
		b.WriteByte(' ')
		b.WriteString(hex8(a))
	}
	return b.String()
}

func hex8(v byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[v>>4], digits[v&0x0F]})
}

// CommandError is an ERR reply.
type CommandError struct {
	Request string
	Msg     string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("console: %s: %s", e.Request, e.Msg)
}

// appendOK appends an OK reply with fields.
func appendOK(dst []byte, fields ...string) []byte {
	dst = append(dst, "OK"...)
	for _, f := range fields {
		dst = append(dst, ' ')
		dst = append(dst, f...)
	}
	return append(dst, Terminator)
}

// appendErr appends an ERR reply. Line breaks in msg are flattened.
func appendErr(dst []byte, msg string) []byte {
	dst = append(dst, "ERR "...)
	for i := 0; i < len(msg) && len(dst) < MaxLine-1; i++ {
		c := msg[i]
		if c == '\n' || c == '\r' {
			c = ' '
		}
		dst = append(dst, c)
	}
	return append(dst, Terminator)
}

// ParseReply splits an OK reply into its fields or returns a *CommandError
// for ERR replies.
func ParseReply(req, line string) ([]string, error) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == "OK":
		return nil, nil
	case strings.HasPrefix(line, "OK "):
		return strings.Fields(line[3:]), nil
	case strings.HasPrefix(line, "ERR"):
		return nil, &CommandError{Request: req, Msg: strings.TrimSpace(line[3:])}
	}
	return nil, fmt.Errorf("console: %s: malformed reply %q", req, line)
}
