package storage

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DocumentType namespaces stored documents
type DocumentType string

const (
	DocumentTypeTemplate   DocumentType = "template"
	DocumentTypeDocument   DocumentType = "document"
	DocumentTypeAuditTrail DocumentType = "audit_trail"
)

// Default file permissions
const (
	DefaultDirPerm  = 0o750
	DefaultFilePerm = 0o640
)

// ErrNotFound is returned when no document is stored under a key
var ErrNotFound = errors.New("document not found")

// Key addresses one stored blob
type Key struct {
	Type DocumentType `json:"type"`
	ID   string       `json:"id"`
}

// String returns the key as type/id
func (k Key) String() string {
	return string(k.Type) + "/" + k.ID
}

// Validate rejects keys that could escape the store root
func (k Key) Validate() error {
	if k.Type == "" || k.ID == "" {
		return fmt.Errorf("storage key %q: type and id are required", k.String())
	}
	for _, part := range []string{string(k.Type), k.ID} {
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return fmt.Errorf("storage key %q: invalid path component", k.String())
		}
	}
	return nil
}

// Store is the opaque blob store documents round-trip through
type Store interface {
	ReadDocument(key Key) ([]byte, error)
	SaveDocument(key Key, data []byte) error
	// ReadImagesInRange returns count page images starting at index start
	ReadImagesInRange(key Key, start, count int) ([][]byte, error)
	// CreateImagesFromBytes replaces the stored page images of a document
	CreateImagesFromBytes(key Key, images [][]byte) error
	DeleteAllDocumentData(key Key) error
}

// FSStore is a Store over an afero filesystem laid out as
// <root>/<type>/<id>/document.pdf and <root>/<type>/<id>/images/NNNNNN.img
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore creates a store rooted at root on fs
func NewFSStore(fs afero.Fs, root string) *FSStore {
	return &FSStore{fs: fs, root: root}
}

// NewOsStore creates a store on the operating system filesystem
func NewOsStore(root string) *FSStore {
	return NewFSStore(afero.NewOsFs(), root)
}

func (s *FSStore) dir(key Key) string {
	return path.Join(s.root, string(key.Type), key.ID)
}

func (s *FSStore) documentPath(key Key) string {
	return path.Join(s.dir(key), "document.pdf")
}

func (s *FSStore) imagesDir(key Key) string {
	return path.Join(s.dir(key), "images")
}

// ReadDocument reads the stored document bytes
func (s *FSStore) ReadDocument(key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.documentPath(key))
	if err != nil {
		if errors.Is(err, afero.ErrFileNotFound) || isNotExist(s.fs, s.documentPath(key)) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", key, err)
	}
	return data, nil
}

// SaveDocument writes the document bytes, replacing any previous version
func (s *FSStore) SaveDocument(key Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir(key), DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create document directory %s: %w", key, err)
	}
	tmp := s.documentPath(key) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	if err := s.fs.Rename(tmp, s.documentPath(key)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to commit document %s: %w", key, err)
	}
	return nil
}

// ReadImagesInRange returns up to count images starting at start
func (s *FSStore) ReadImagesInRange(key Key, start, count int) ([][]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("invalid image range start=%d count=%d", start, count)
	}
	names, err := s.imageNames(key)
	if err != nil {
		return nil, err
	}
	if start >= len(names) {
		return [][]byte{}, nil
	}
	end := start + min(count, len(names)-start)

	images := make([][]byte, 0, end-start)
	for _, name := range names[start:end] {
		data, err := afero.ReadFile(s.fs, path.Join(s.imagesDir(key), name))
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s of %s: %w", name, key, err)
		}
		images = append(images, data)
	}
	return images, nil
}

// CreateImagesFromBytes stores page images in order, replacing existing ones
func (s *FSStore) CreateImagesFromBytes(key Key, images [][]byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	dir := s.imagesDir(key)
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear images of %s: %w", key, err)
	}
	if err := s.fs.MkdirAll(dir, DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create image directory %s: %w", key, err)
	}
	for i, img := range images {
		name := fmt.Sprintf("%06d.img", i)
		if err := afero.WriteFile(s.fs, path.Join(dir, name), img, DefaultFilePerm); err != nil {
			return fmt.Errorf("failed to write image %d of %s: %w", i, key, err)
		}
	}
	return nil
}

// DeleteAllDocumentData removes the document and its images
func (s *FSStore) DeleteAllDocumentData(key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.fs.RemoveAll(s.dir(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) imageNames(key Key) ([]string, error) {
	dir := s.imagesDir(key)
	exists, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image directory of %s: %w", key, err)
	}
	if !exists {
		return nil, nil
	}
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images of %s: %w", key, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".img") {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func isNotExist(fs afero.Fs, name string) bool {
	exists, err := afero.Exists(fs, name)
	return err == nil && !exists
}
