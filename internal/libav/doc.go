// Package libav implements the container, codec, filter and scaler
// collaborators of package transcode on top of FFmpeg's libraries through
// go-astiav.
package libav
