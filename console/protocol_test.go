package console

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("w 2c 95\n")
	require.NoError(t, err)
	assert.Equal(t, OpWrite, req.Op)
	assert.Equal(t, []byte{0x2C, 0x95}, req.Args)
	assert.Equal(t, "W 2C 95", req.String())

	req, err = ParseRequest("RST")
	require.NoError(t, err)
	assert.Equal(t, OpReset, req.Op)
	assert.Empty(t, req.Args)

	for line, want := range map[string]error{
		"":         ErrUnknownOp,
		"\n":       ErrUnknownOp,
		"X 01":     ErrUnknownOp,
		"R":        ErrArgs,
		"R 1 2":    ErrArgs,
		"R 100":    ErrArgs,
		"W 2C zz":  ErrArgs,
		"ST 0 0 0": ErrArgs,
	} {
		_, err := ParseRequest(line)
		assert.ErrorIs(t, err, want, "line %q", line)
	}
}

func TestParseReply(t *testing.T) {
	f, err := ParseReply("ID", "OK AD 1D F2\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"AD", "1D", "F2"}, f)

	f, err = ParseReply("W 2C 95", "OK\r\n")
	require.NoError(t, err)
	assert.Empty(t, f)

	_, err = ParseReply("A", "ERR not measuring\n")
	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "A", ce.Request)
	assert.Equal(t, "not measuring", ce.Msg)

	_, err = ParseReply("A", "hello\n")
	assert.Error(t, err)
	assert.False(t, errors.As(err, &ce))
}

func TestAppendReplies(t *testing.T) {
	assert.Equal(t, "OK 1 -2\n", string(appendOK(nil, "1", "-2")))
	assert.Equal(t, "OK\n", string(appendOK(nil)))
	assert.Equal(t, "ERR a b\n", string(appendErr(nil, "a\nb")))

	long := make([]byte, 2*MaxLine)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, appendErr(nil, string(long)), MaxLine)
}
