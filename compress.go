package pkzip

import (
	"compress/flate"
	"errors"
	"hash/crc32"
	"io"
)

// DefaultBufferSize is the chunk size used by the compression pipeline and
// the copy-through remover when no explicit size is requested. Tunables in
// this package are named constants, not runtime configuration.
const DefaultBufferSize = 16 * 1024

// CompressionMethod is the two-member closed set this package understands:
// store and deflate. bzip2, LZMA, and other APPNOTE method codes are not
// implemented.
type CompressionMethod uint16

const (
	MethodStore   CompressionMethod = 0
	MethodDeflate CompressionMethod = 8
)

func (m CompressionMethod) String() string {
	switch m {
	case MethodStore:
		return "stored"
	case MethodDeflate:
		return "deflated"
	default:
		return "unknown"
	}
}

func checkCancelled(operation string, p *Progress) *Error {
	if p.IsCancelled() {
		return newError(operation, ErrCancelled, errors.New("operation cancelled"))
	}
	return nil
}

// mapDeflateError classifies a compress/flate error into this package's
// closed error-kind set, since the standard library's DEFLATE
// implementation doesn't itself expose zlib-style return codes.
func mapDeflateError(operation string, err error) *Error {
	if err == nil {
		return nil
	}
	var corrupt flate.CorruptInputError
	switch {
	case errors.As(err, &corrupt):
		return newError(operation, ErrGzipData, err).withContext("code", "Z_DATA_ERROR")
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return newError(operation, ErrGzipBuffer, err).withContext("code", "Z_BUF_ERROR")
	default:
		return newError(operation, ErrGzipStream, err).withContext("code", "Z_STREAM_ERROR")
	}
}

// storeCopy implements the Store compression mode: chunked passthrough
// copy with streaming CRC32 accumulation, cancellable between chunks.
func storeCopy(dst io.Writer, src io.Reader, bufferSize int, progress *Progress) (written int64, checksum uint32, zerr *Error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	buf := make([]byte, bufferSize)
	crc := crc32.NewIEEE()
	for {
		if zerr = checkCancelled("store", progress); zerr != nil {
			return written, crc.Sum32(), zerr
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, crc.Sum32(), newError("store", ErrUnknown, werr)
			}
			crc.Write(buf[:n])
			written += int64(n)
			progress.Advance(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, crc.Sum32(), newError("store", ErrUnknown, rerr)
		}
	}
	return written, crc.Sum32(), nil
}

// deflateCopy implements the Deflate (write) mode: CRC32 is computed over
// the uncompressed stream (as the ZIP format requires) and the payload is
// streamed chunk-by-chunk through compress/flate rather than buffered
// whole into memory.
func deflateCopy(dst io.Writer, src io.Reader, bufferSize int, progress *Progress) (uncompressedSize, compressedSize int64, checksum uint32, zerr *Error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	counting := &countingWriter{w: dst}
	fw, err := flate.NewWriter(counting, flate.DefaultCompression)
	if err != nil {
		return 0, 0, 0, mapDeflateError("deflate", err)
	}

	buf := make([]byte, bufferSize)
	crc := crc32.NewIEEE()
	for {
		if zerr = checkCancelled("deflate", progress); zerr != nil {
			return uncompressedSize, counting.n, crc.Sum32(), zerr
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := fw.Write(buf[:n]); werr != nil {
				return uncompressedSize, counting.n, crc.Sum32(), mapDeflateError("deflate", werr)
			}
			crc.Write(buf[:n])
			uncompressedSize += int64(n)
			progress.Advance(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return uncompressedSize, counting.n, crc.Sum32(), newError("deflate", ErrUnknown, rerr)
		}
	}
	if err := fw.Close(); err != nil {
		return uncompressedSize, counting.n, crc.Sum32(), mapDeflateError("deflate", err)
	}
	return uncompressedSize, counting.n, crc.Sum32(), nil
}

// inflateAll implements the Inflate (read) mode: decompress exactly
// compressedSize bytes from src and return the reconstructed buffer plus
// its CRC32.
func inflateAll(src io.Reader, compressedSize int64, bufferSize int, progress *Progress) (data []byte, checksum uint32, zerr *Error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	limited := io.LimitReader(src, compressedSize)
	fr := flate.NewReader(limited)
	defer fr.Close()

	buf := make([]byte, bufferSize)
	crc := crc32.NewIEEE()
	var out []byte
	for {
		if zerr = checkCancelled("inflate", progress); zerr != nil {
			return out, crc.Sum32(), zerr
		}
		n, rerr := fr.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			crc.Write(buf[:n])
			progress.Advance(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return out, crc.Sum32(), mapDeflateError("inflate", rerr)
		}
	}
	return out, crc.Sum32(), nil
}

// countingWriter tracks the number of bytes written to w, used to learn a
// deflate stream's compressed size without a second pass.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
