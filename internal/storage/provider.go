// Package storage keeps export documents in a flat directory. It backs the
// import inbox and the backup folder.
package storage

import "github.com/starford/feedwise/internal/models"

// Provider is a directory of *.json export documents addressed by base name.
type Provider interface {
	// List describes the documents in the directory, ordered by name.
	List() ([]models.FileMeta, error)
	Read(name string) ([]byte, error)
	// Put replaces name atomically and describes the stored document.
	Put(name string, data []byte) (models.FileMeta, error)
	// Archive moves name into the bucket subdirectory, prefixed with stamp,
	// and returns its new path relative to the directory.
	Archive(name, bucket, stamp string) (string, error)
	// Prune keeps the keep documents that sort last and removes the rest.
	Prune(keep int) ([]string, error)
}
