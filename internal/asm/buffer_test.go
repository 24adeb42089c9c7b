package asm_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riscv-android-src/platform-art/internal/asm"
)

func TestCodeBufferZeroValue(t *testing.T) {
	var buf asm.CodeBuffer
	require.Equal(t, 0, buf.Len())
	require.Equal(t, 0, len(buf.Bytes()))
	require.Equal(t, asm.WriterState{Mode: asm.Appending}, buf.State())
}

func TestCodeBufferEmitUint32(t *testing.T) {
	buf := asm.NewCodeBuffer(0)
	words := []uint32{0x00000013, 0xdeadbeef, 0x01234567}
	for i, w := range words {
		buf.EmitUint32(w)
		require.Equal(t, (i+1)*4, buf.Len())
	}
	require.Equal(t, "13000000efbeadde67452301", hex.EncodeToString(buf.Bytes()))
	require.Equal(t, uint32(0xdeadbeef), buf.Load32(4))
}

func TestCodeBufferOverwrite(t *testing.T) {
	buf := asm.NewCodeBuffer(16)
	for i := 0; i < 4; i++ {
		buf.EmitUint32(uint32(i))
	}

	buf.SetState(asm.Overwrite(4))
	buf.EmitUint32(0xaaaaaaaa)
	buf.EmitUint32(0xbbbbbbbb)
	require.Equal(t, asm.Overwrite(12), buf.State())
	require.Equal(t, 16, buf.Len())
	require.Equal(t, uint32(0), buf.Load32(0))
	require.Equal(t, uint32(0xaaaaaaaa), buf.Load32(4))
	require.Equal(t, uint32(0xbbbbbbbb), buf.Load32(8))
	require.Equal(t, uint32(3), buf.Load32(12))

	buf.EmitUint32(0xcccccccc)
	require.Panics(t, func() { buf.EmitUint32(0) })
	require.Panics(t, func() { buf.AppendBytes([]byte{1}) })
	require.Panics(t, func() { buf.Resize(4) })

	buf.SetState(asm.WriterState{Mode: asm.Appending})
	buf.EmitUint32(4)
	require.Equal(t, 20, buf.Len())
}

func TestCodeBufferSetState_invalid(t *testing.T) {
	buf := asm.NewCodeBuffer(0)
	buf.EmitUint32(1)
	for _, tc := range []struct {
		name  string
		state asm.WriterState
	}{
		{name: "negative", state: asm.Overwrite(-4)},
		{name: "past end", state: asm.Overwrite(8)},
		{name: "misaligned", state: asm.Overwrite(2)},
		{name: "unknown mode", state: asm.WriterState{Mode: 5}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Panics(t, func() { buf.SetState(tc.state) })
		})
	}
}

func TestCodeBufferResize(t *testing.T) {
	buf := asm.NewCodeBuffer(4)
	buf.AppendBytes([]byte{1, 2, 3, 4})
	buf.Resize(8)
	require.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0}, buf.Bytes())
	buf.Resize(-8)
	require.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes())
	// Regrowing inside the capacity must not resurrect stale bytes.
	buf.Store32(0, 0xffffffff)
	buf.Resize(-4)
	buf.Resize(4)
	require.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes())
	require.Panics(t, func() { buf.Resize(-8) })
}

func TestCodeBufferMove(t *testing.T) {
	for _, tc := range []struct {
		name        string
		dst, src, n int
		expected    []byte
	}{
		{name: "forward overlap", dst: 2, src: 0, n: 4, expected: []byte{0, 1, 0, 1, 2, 3, 6, 7}},
		{name: "backward overlap", dst: 0, src: 2, n: 4, expected: []byte{2, 3, 4, 5, 4, 5, 6, 7}},
		{name: "empty", dst: 0, src: 4, n: 0, expected: []byte{0, 1, 2, 3, 4, 5, 6, 7}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			buf := asm.NewCodeBuffer(8)
			buf.AppendBytes([]byte{0, 1, 2, 3, 4, 5, 6, 7})
			buf.Move(tc.dst, tc.src, tc.n)
			require.Equal(t, tc.expected, buf.Bytes())
		})
	}

	buf := asm.NewCodeBuffer(8)
	buf.AppendBytes(make([]byte, 8))
	require.Panics(t, func() { buf.Move(6, 0, 4) })
}

func TestCodeBufferReset(t *testing.T) {
	buf := asm.NewCodeBuffer(0)
	buf.EmitUint32(1)
	buf.SetState(asm.Overwrite(0))
	buf.Reset()
	require.Equal(t, 0, buf.Len())
	require.Equal(t, asm.Appending, buf.State().Mode)
}
