// Package formats holds the fixed e-book format catalog and the helpers that
// work on file names: extension detection, output naming and upload filtering.
package formats

import (
	"strings"

	"github.com/samber/lo"
)

type Format struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	MediaType   string `json:"media_type"`
	Description string `json:"description"`
}

const (
	EPUB = "epub"
	MOBI = "mobi"
	PDF  = "pdf"
	TXT  = "txt"
	FB2  = "fb2"
)

var catalog = []Format{
	{ID: EPUB, Name: "EPUB", Extension: ".epub", MediaType: "application/epub+zip", Description: "Open e-book standard"},
	{ID: MOBI, Name: "MOBI", Extension: ".mobi", MediaType: "application/x-mobipocket-ebook", Description: "Kindle format"},
	{ID: PDF, Name: "PDF", Extension: ".pdf", MediaType: "application/pdf", Description: "Portable document"},
	{ID: TXT, Name: "TXT", Extension: ".txt", MediaType: "text/plain", Description: "Plain text"},
	{ID: FB2, Name: "FB2", Extension: ".fb2", MediaType: "application/xml", Description: "FictionBook"},
}

// Catalog returns the supported formats in display order. The returned slice
// is a copy.
func Catalog() []Format {
	out := make([]Format, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id string) (Format, bool) {
	return lo.Find(catalog, func(f Format) bool { return f.ID == id })
}

func IsKnown(id string) bool {
	_, ok := Lookup(id)
	return ok
}

func IDs() []string {
	return lo.Map(catalog, func(f Format, _ int) string { return f.ID })
}

func AcceptedMediaTypes() []string {
	return lo.Uniq(lo.Map(catalog, func(f Format, _ int) string { return f.MediaType }))
}

// AcceptAttribute is the value for an <input type="file" accept="..."> that
// advertises every catalog media type and extension.
func AcceptAttribute() string {
	parts := AcceptedMediaTypes()
	parts = append(parts, lo.Map(catalog, func(f Format, _ int) string { return f.Extension })...)
	return strings.Join(parts, ",")
}

// ArtifactMediaType is the media type a converted artifact is tagged with.
func ArtifactMediaType(id string) string {
	return "application/" + id
}
