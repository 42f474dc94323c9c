// Package media holds the value types shared by the transcoding core and its
// codec backends: rational time bases, the run mode, media types and the
// input-to-output stream mapping.
//
// Nothing in this package touches libav; it is safe to use from tests that
// run without cgo.
package media
