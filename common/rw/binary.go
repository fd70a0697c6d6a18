package rw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ReaderWriter is a little-endian binary cursor over an in-memory buffer.
// Reads past the end set a sticky error instead of panicking; check Err once
// after a batch of reads.
type ReaderWriter struct {
	order   binary.ByteOrder
	dataBuf []byte
	rw      bytes.Buffer
	err     error
}

func NewWriter() *ReaderWriter {
	return &ReaderWriter{order: binary.LittleEndian, dataBuf: make([]byte, 8)}
}

func NewReader(data []byte) *ReaderWriter {
	d := &ReaderWriter{order: binary.LittleEndian, dataBuf: make([]byte, 8)}
	d.rw.Write(data)
	return d
}

func (w *ReaderWriter) Err() error {
	return w.err
}

func (w *ReaderWriter) read(n int) []byte {
	if w.err != nil {
		return nil
	}
	if _, err := io.ReadFull(&w.rw, w.dataBuf[:n]); err != nil {
		w.err = fmt.Errorf("read %d bytes: %w", n, io.ErrUnexpectedEOF)
		return nil
	}
	return w.dataBuf[:n]
}

func (w *ReaderWriter) ReadUInt32() uint32 {
	b := w.read(4)
	if b == nil {
		return 0
	}
	return w.order.Uint32(b)
}

func (w *ReaderWriter) ReadUInt32s(value []uint32) {
	for i := range value {
		value[i] = w.ReadUInt32()
	}
}

func (w *ReaderWriter) ReadFloat32() float32 {
	return math.Float32frombits(w.ReadUInt32())
}

func (w *ReaderWriter) ReadFloat32s(value []float32) {
	for i := range value {
		value[i] = w.ReadFloat32()
	}
}

// ReadBytes reads a uint32 length prefix followed by that many bytes.
func (w *ReaderWriter) ReadBytes() []byte {
	n := int(w.ReadUInt32())
	if w.err != nil {
		return nil
	}
	if n > w.rw.Len() {
		w.err = fmt.Errorf("byte block of %d exceeds remaining %d: %w", n, w.rw.Len(), io.ErrUnexpectedEOF)
		return nil
	}
	res := make([]byte, n)
	copy(res, w.rw.Next(n))
	return res
}

func (w *ReaderWriter) WriteInt32(v interface{}) {
	switch value := v.(type) {
	case int:
		w.order.PutUint32(w.dataBuf, uint32(value))
	case uint32:
		w.order.PutUint32(w.dataBuf, value)
	default:
		panic(fmt.Sprintf("rw: WriteInt32 of %T", v))
	}
	w.rw.Write(w.dataBuf[:4])
}

func (w *ReaderWriter) WriteInt32s(v interface{}) {
	switch value := v.(type) {
	case []uint32:
		for _, tmp := range value {
			w.WriteInt32(tmp)
		}
	default:
		panic(fmt.Sprintf("rw: WriteInt32s of %T", v))
	}
}

func (w *ReaderWriter) WriteFloat32(v interface{}) {
	switch value := v.(type) {
	case float32:
		w.order.PutUint32(w.dataBuf, math.Float32bits(value))
	default:
		panic(fmt.Sprintf("rw: WriteFloat32 of %T", v))
	}
	w.rw.Write(w.dataBuf[:4])
}

func (w *ReaderWriter) WriteFloat32s(v interface{}) {
	switch value := v.(type) {
	case []float32:
		for _, tmp := range value {
			w.WriteFloat32(tmp)
		}
	default:
		panic(fmt.Sprintf("rw: WriteFloat32s of %T", v))
	}
}

// WriteBytes writes a uint32 length prefix and the bytes.
func (w *ReaderWriter) WriteBytes(b []byte) {
	w.WriteInt32(uint32(len(b)))
	w.rw.Write(b)
}

func (w *ReaderWriter) GetWriteBytes() (res []byte) {
	res = w.rw.Bytes()
	return res
}

func (w *ReaderWriter) Size() int {
	return w.rw.Len()
}
