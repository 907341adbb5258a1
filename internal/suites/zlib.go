package suites

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"harness/internal/check"
	"harness/internal/isolate"
	"harness/internal/suite"
)

func registerZlib(reg *suite.Registry) {
	_ = reg.Register("zlib/roundtrip", zlibRoundTrip)
	_ = reg.Register("zlib/empty", zlibEmpty)
	_ = reg.Register("zlib/corrupt", zlibCorrupt)
	_ = reg.Register("zlib/levels", zlibLevels)
	_ = reg.Register("zlib/truncated_abort", zlibTruncatedAbort, suite.Expect(suite.Signal()))
}

func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func zlibRoundTrip(r *check.Recorder) {
	src := bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), 64)
	packed, err := deflate(src, zlib.DefaultCompression)
	r.AssertNoError(err, "deflate")
	r.AssertTrue(len(packed) < len(src), "repetitive input shrinks")

	out, err := inflate(packed)
	r.AssertNoError(err, "inflate")
	r.AssertEqual(out, src, "inflate(deflate(b)) == b")
}

func zlibEmpty(r *check.Recorder) {
	packed, err := deflate(nil, zlib.BestSpeed)
	r.AssertNoError(err, "deflate empty")
	r.AssertTrue(len(packed) > 0, "empty input still has a header")

	out, err := inflate(packed)
	r.AssertNoError(err, "inflate empty")
	r.AssertEqual(len(out), 0, "empty round trip")
}

func zlibCorrupt(r *check.Recorder) {
	_, err := inflate([]byte{0x00, 0x01, 0x02, 0x03})
	r.AssertError(err, "bad header is rejected")

	packed, err := deflate([]byte("checksum me"), zlib.DefaultCompression)
	r.AssertNoError(err, "deflate")
	if len(packed) == 0 {
		return
	}
	packed[len(packed)-1] ^= 0xff
	_, err = inflate(packed)
	r.AssertError(err, "adler32 mismatch is rejected")
}

func zlibLevels(r *check.Recorder) {
	src := bytes.Repeat([]byte{0xab, 0xcd}, 4096)
	for _, level := range []int{zlib.NoCompression, zlib.BestSpeed, zlib.DefaultCompression, zlib.BestCompression} {
		packed, err := deflate(src, level)
		r.AssertNoError(err, "deflate at level")
		out, err := inflate(packed)
		r.AssertNoError(err, "inflate at level")
		r.AssertTrue(bytes.Equal(out, src), "round trip at level")
	}
	_, err := zlib.NewWriterLevel(io.Discard, 42)
	r.AssertError(err, "level 42 is rejected")
}

// zlibTruncatedAbort treats a truncated stream as fatal, like a C caller that
// asserts on Z_DATA_ERROR. It must die by SIGABRT.
func zlibTruncatedAbort(r *check.Recorder) {
	packed, err := deflate(bytes.Repeat([]byte("abc"), 100), zlib.DefaultCompression)
	r.AssertNoError(err, "deflate")
	if _, err := inflate(packed[:len(packed)/2]); err != nil {
		isolate.Abort()
	}
	r.Failf("truncated stream was accepted")
}
