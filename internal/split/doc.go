// Package split cuts oversized media files into delivery-sized parts with
// ffmpeg stream copy. Parts are cut by accumulated byte size, never by
// re-encoding, so the operation is fast and lossless.
package split
