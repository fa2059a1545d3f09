package ports

// FileSystem abstracts the file writes done when exporting frames.
type FileSystem interface {
	// WriteFile writes data to path, creating parent directories.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parents.
	MkdirAll(path string) error

	// Exists reports whether path exists.
	Exists(path string) (bool, error)
}
