// Package transcode drives a single pass over a capture file: it demuxes the
// input, decodes every video stream, either burns a watermark into each frame
// or recovers the burned-in clock from it, re-encodes to intra-only VP8 and
// muxes the result into an IVF file next to the input.
//
// Containers, codecs, filters and text recognition are reached through the
// collaborator interfaces in backend.go so the core can run against fakes.
package transcode
