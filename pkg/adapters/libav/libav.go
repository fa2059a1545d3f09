// Package libav implements the decode capability in-process on FFmpeg's
// libraries through go-astiav. It is only compiled with the libav build
// tag, since it needs the FFmpeg development libraries and cgo:
//
//	go build -tags libav ./...
//
// Without the tag, Available reports false and Open fails with ErrNotCompiled.
package libav

import "errors"

var (
	// ErrNotCompiled is returned when the binary was built without the libav tag.
	ErrNotCompiled = errors.New("libav: built without libav support")

	// ErrNoDecoder is returned when libavcodec has no decoder for the stream.
	ErrNoDecoder = errors.New("libav: no decoder for codec")
)
