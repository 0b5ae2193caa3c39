package newsapi

// FileKind is the server-declared type of a manifest entry.
type FileKind string

const (
	// FileKindDocument is a single issue document (a json payload).
	FileKindDocument FileKind = "json"
	// FileKindImages is a directory of image members.
	FileKindImages FileKind = "images"
)

// FileDescriptor is one entry of the server manifest. Name doubles as the
// relative path under the cache root. MD5 is present for documents and
// typically absent for directories.
type FileDescriptor struct {
	Name string   `json:"name"`
	Kind FileKind `json:"type"`
	MD5  string   `json:"md5,omitempty"`
}

// IsDocument reports whether the descriptor declares a single document.
func (d *FileDescriptor) IsDocument() bool {
	return d.Kind == FileKindDocument
}

// IsImages reports whether the descriptor declares an image directory.
func (d *FileDescriptor) IsImages() bool {
	return d.Kind == FileKindImages
}

// ManifestSnapshot is the server's full declared state at a point in time.
// It is fetched fresh on every sync pass and never cached across passes.
type ManifestSnapshot struct {
	Version string            `json:"version"`
	Files   []*FileDescriptor `json:"files"`
}
