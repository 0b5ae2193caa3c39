package cache

import (
	"strings"
)

// Cache naming convention. The server publishes issue documents as
// "onews_<id>.json" and their image directories as "news_images_<id>". Only
// names matching the convention are managed: staleness deletion never touches
// anything else sharing the cache root.
const (
	documentPrefix = "onews_"
	documentSuffix = ".json"
	imageDirPrefix = "news_images_"
)

// IsManagedName reports whether name belongs to the cache's own naming scheme.
func IsManagedName(name string) bool {
	return IsDocumentName(name) || IsImageDirName(name)
}

// IsDocumentName reports whether name is a managed issue document.
func IsDocumentName(name string) bool {
	return strings.HasPrefix(name, documentPrefix) &&
		strings.HasSuffix(name, documentSuffix) &&
		len(name) > len(documentPrefix)+len(documentSuffix)
}

// IsImageDirName reports whether name is a managed image directory.
func IsImageDirName(name string) bool {
	return strings.HasPrefix(name, imageDirPrefix) &&
		len(name) > len(imageDirPrefix) &&
		!strings.Contains(name, "/")
}

// DocumentID extracts the issue id embedded in a managed document name.
func DocumentID(name string) (string, bool) {
	if !IsDocumentName(name) {
		return "", false
	}
	return name[len(documentPrefix) : len(name)-len(documentSuffix)], true
}

// ImageDirForDocument derives the image directory name paired with a managed
// document by substituting its issue id into the directory template.
func ImageDirForDocument(docName string) (string, bool) {
	id, ok := DocumentID(docName)
	if !ok {
		return "", false
	}
	return imageDirPrefix + id, true
}
