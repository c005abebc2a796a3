// Package extract holds the source-kind taxonomy, the classifier, and one
// extractor strategy per kind. A strategy is a pure step: reference in,
// normalized content record out, or a classified failure.
package extract

import "context"

// SourceKind is the classified category of a reference. The set is closed;
// dispatch goes through a fixed table keyed by kind.
type SourceKind string

const (
	SourceVideo      SourceKind = "video"
	SourceArticle    SourceKind = "article"
	SourceThread     SourceKind = "thread"
	SourceRepository SourceKind = "repository"
	SourceFile       SourceKind = "file"
)

// Reference identifies the input of one extraction: either a remote URL or
// a locally stored upload.
type Reference struct {
	URL      string
	Path     string
	Filename string
}

// Result is the normalized output of a successful extraction.
type Result struct {
	Title    string
	Content  string
	Metadata map[string]any
}

type Extractor interface {
	Extract(ctx context.Context, ref Reference) (*Result, error)
}

// Registry maps every source kind to its strategy. Built once at startup.
type Registry map[SourceKind]Extractor

func NewRegistry(article, video, thread, repository, file Extractor) Registry {
	return Registry{
		SourceArticle:    article,
		SourceVideo:      video,
		SourceThread:     thread,
		SourceRepository: repository,
		SourceFile:       file,
	}
}
