package fitfile

import (
	"encoding/binary"
	"fmt"
)

const (
	headerSize      = 14
	protocolVersion = 0x20 // 2.0
	profileVersion  = 2000 // 20.00
	crcSize         = 2
	dataType        = ".FIT"
)

// writer packs definition and data messages into a message stream and wraps
// it in a header and trailer.
type writer struct {
	data []byte
	defs map[byte]MessageDef
}

func newWriter() *writer {
	return &writer{defs: make(map[byte]MessageDef)}
}

// define emits a definition message and makes it current for its local type.
func (w *writer) define(m MessageDef) {
	w.defs[m.Local] = m
	w.data = append(w.data, 0x40|m.Local, 0x00, 0x00) // header, reserved, little endian
	w.data = binary.LittleEndian.AppendUint16(w.data, m.Global)
	w.data = append(w.data, byte(len(m.Fields)))
	for _, f := range m.Fields {
		w.data = append(w.data, f.Num, f.Size, byte(f.Type))
	}
}

// write emits a data message for local. Values are packed little endian at
// the sizes of the current definition; missing values are written as 0.
func (w *writer) write(local byte, values ...int64) {
	m, ok := w.defs[local]
	if !ok {
		panic(fmt.Sprintf("fitfile: no definition for local message %d", local))
	}
	w.data = append(w.data, local)
	for i, f := range m.Fields {
		var v int64
		if i < len(values) {
			v = values[i]
		}
		for b := 0; b < int(f.Size); b++ {
			w.data = append(w.data, byte(v>>(8*b)))
		}
	}
}

// bytes returns header, message stream and trailer CRC.
func (w *writer) bytes() []byte {
	out := make([]byte, 0, headerSize+len(w.data)+crcSize)

	out = append(out, headerSize, protocolVersion)
	out = binary.LittleEndian.AppendUint16(out, profileVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(w.data)))
	out = append(out, dataType...)
	out = binary.LittleEndian.AppendUint16(out, CRC16(out))

	out = append(out, w.data...)
	return binary.LittleEndian.AppendUint16(out, CRC16(w.data))
}

// Verify checks the header signature, the declared data size and both
// checksums of an encoded file.
func Verify(file []byte) error {
	if len(file) < headerSize+crcSize {
		return fmt.Errorf("fit file too short: %d bytes", len(file))
	}
	if file[0] != headerSize {
		return fmt.Errorf("unexpected header size: %d", file[0])
	}
	if string(file[8:12]) != dataType {
		return fmt.Errorf("invalid data type in header: %q", file[8:12])
	}
	if stored, computed := binary.LittleEndian.Uint16(file[12:14]), CRC16(file[:12]); stored != computed {
		return fmt.Errorf("header crc mismatch: stored 0x%04X, computed 0x%04X", stored, computed)
	}

	size := int(binary.LittleEndian.Uint32(file[4:8]))
	if want := headerSize + size + crcSize; len(file) != want {
		return fmt.Errorf("fit file length %d does not match header data size (want %d)", len(file), want)
	}
	stream := file[headerSize : headerSize+size]
	if stored, computed := binary.LittleEndian.Uint16(file[headerSize+size:]), CRC16(stream); stored != computed {
		return fmt.Errorf("data crc mismatch: stored 0x%04X, computed 0x%04X", stored, computed)
	}
	return nil
}
