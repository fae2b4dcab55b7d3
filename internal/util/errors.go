package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a folder, file, tag, group or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotADirectory indicates a project path points at a regular file
	ErrNotADirectory = errors.New("not a directory")

	// ErrEmpty indicates a folder holds no supported images, or a scope is empty
	ErrEmpty = errors.New("no images")

	// ErrConflict indicates a destination filename is already taken
	ErrConflict = errors.New("destination conflict")

	// ErrCorrupt indicates an image could not be decoded
	ErrCorrupt = errors.New("corrupt image")

	// ErrTooSmall indicates an image is below the minimum training size
	ErrTooSmall = errors.New("image too small")

	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidArgument indicates a caller supplied an unusable value
	ErrInvalidArgument = errors.New("invalid argument")
)
