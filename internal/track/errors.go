// SPDX-License-Identifier: MIT
package track

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed load errors through errors.Is.
var (
	ErrDecode            = errors.New("audio decode failed")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrFileTooLarge      = errors.New("audio file too large")
)

// DecodeError reports that the bytes could not be decoded into PCM.
type DecodeError struct {
	MediaType string
	Err       error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode %s: failed", e.MediaType)
	}
	return fmt.Sprintf("decode %s: %v", e.MediaType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// UnsupportedFormatError reports a media type outside the accepted set.
type UnsupportedFormatError struct {
	MediaType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported media type %q: expected MP3, WAV or M4A", e.MediaType)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// FileTooLargeError reports input above the loader ceiling.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file is %d bytes, maximum is %d", e.Size, e.Limit)
}

func (e *FileTooLargeError) Is(target error) bool { return target == ErrFileTooLarge }
