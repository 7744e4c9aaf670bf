// Package codec compresses evaluation cache shards at rest.
package codec

import "io"

// Codec wraps shard readers and writers with a compression format.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it. Closing the writer
	// flushes it but does not close w.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file extension without dot, such as "zst".
	// Uncompressed shards have no extension.
	Extension() string
}
