package suites

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"

	"harness/internal/check"
	"harness/internal/suite"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func registerPNG(reg *suite.Registry) {
	_ = reg.Register("png/uint32", pngUint32)
	_ = reg.Register("png/signature", pngSignatureCheck)
	_ = reg.Register("png/chunk", pngChunk)
}

var errShortChunk = errors.New("short chunk")

type chunk struct {
	Kind string
	Data []byte
}

// readChunk parses one length-type-data-crc chunk.
func readChunk(b []byte) (chunk, int, error) {
	if len(b) < 12 {
		return chunk{}, 0, errShortChunk
	}
	n := binary.BigEndian.Uint32(b[:4])
	if uint64(n) > uint64(len(b)-12) {
		return chunk{}, 0, errShortChunk
	}
	end := 8 + int(n)
	want := binary.BigEndian.Uint32(b[end : end+4])
	if got := crc32.ChecksumIEEE(b[4:end]); got != want {
		return chunk{}, 0, errors.New("crc mismatch")
	}
	return chunk{Kind: string(b[4:8]), Data: b[8:end]}, end + 4, nil
}

func writeChunk(kind string, data []byte) []byte {
	out := make([]byte, 0, 12+len(data))
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, kind...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[4:]))
}

func pngUint32(r *check.Recorder) {
	r.AssertEqual(binary.BigEndian.Uint32([]byte{0, 0, 0, 13}), uint32(13), "IHDR length")
	r.AssertEqual(binary.BigEndian.Uint32([]byte{0xff, 0xff, 0xff, 0xff}), uint32(0xffffffff), "max value")
	r.AssertEqual(binary.BigEndian.Uint32([]byte{0x12, 0x34, 0x56, 0x78}), uint32(0x12345678), "byte order")
}

func pngSignatureCheck(r *check.Recorder) {
	file := append(append([]byte{}, pngSignature...), writeChunk("IEND", nil)...)
	r.AssertTrue(bytes.HasPrefix(file, pngSignature), "signature present")
	r.AssertFalse(bytes.HasPrefix([]byte("GIF89a.."), pngSignature), "GIF is not PNG")
}

func pngChunk(r *check.Recorder) {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], 640)
	binary.BigEndian.PutUint32(ihdr[4:], 480)
	raw := writeChunk("IHDR", ihdr)

	c, n, err := readChunk(raw)
	r.AssertNoError(err, "read IHDR")
	r.AssertEqual(n, len(raw), "consumed whole chunk")
	r.AssertEqual(c.Kind, "IHDR", "chunk type")
	r.AssertEqual(binary.BigEndian.Uint32(c.Data[0:4]), uint32(640), "width")

	_, _, err = readChunk(raw[:len(raw)-1])
	r.AssertError(err, "truncated chunk rejected")

	raw[len(raw)-1] ^= 1
	_, _, err = readChunk(raw)
	r.AssertError(err, "bad crc rejected")
}
