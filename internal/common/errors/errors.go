package errors

import (
	"errors"
)

var (
	// General Errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRunInProgress   = errors.New("a batch run is already in progress")
	ErrMissingToken    = errors.New("API token is required")

	// Schema Inference Errors
	ErrInferenceFailed = errors.New("could not infer schema from sample")
	ErrNoPayload       = errors.New("no JSON data argument found in request sample")
	ErrInvalidSchema   = errors.New("invalid column schema")

	// Project Errors
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectInvalid  = errors.New("invalid project configuration")

	// Table Errors
	ErrRowOutOfRange   = errors.New("row index out of range")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrTableReadError  = errors.New("error reading table file")
	ErrTableWriteError = errors.New("error writing table file")

	// Relay Errors
	ErrRelayFailed       = errors.New("workflow relay call failed")
	ErrRelayUnauthorized = errors.New("missing or rejected authorization")

	// Asset Errors
	ErrUploadFailed   = errors.New("failed to upload file")
	ErrNoUploadURL    = errors.New("storage did not return a file URL")
	ErrDownloadFailed = errors.New("failed to download file")
	ErrNotFileColumn  = errors.New("column does not hold files")
	ErrInvalidURL     = errors.New("invalid URL")

	// File & Directory Errors
	ErrFileNotFound    = errors.New("file not found")
	ErrFileReadError   = errors.New("error reading file")
	ErrFileWriteError  = errors.New("error writing to file")
	ErrDirNotFound     = errors.New("directory not found")
	ErrUnsupportedFile = errors.New("unsupported file format")

	// Compression Errors
	ErrCompressionFailed      = errors.New("compression failed")
	ErrUnsupportedCompression = errors.New("unsupported compression format")

	// Snapshot Errors
	ErrSnapshotNotFound = errors.New("no snapshot stored for project")
	ErrSnapshotCorrupt  = errors.New("snapshot is corrupt")
)
