package extract

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Recognized upload extensions, grouped by how the file strategy handles
// them. Keys are lowercase including the dot.
var (
	documentExts = map[string]bool{
		".txt": true, ".md": true, ".markdown": true, ".json": true,
		".csv": true, ".tsv": true, ".pdf": true, ".xlsx": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".wav": true, ".m4a": true, ".flac": true, ".ogg": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".webm": true, ".mkv": true, ".avi": true, ".mov": true,
	}
)

// Classify assigns a source kind to a reference. It is pure and total: any
// input gets a kind. The file kind is reserved for local references (uploads
// and paths); a fetchable URL matching no specialized platform is assumed to
// be a readable web page, so article is the fallback default even when its
// path ends in a document or media extension.
func Classify(rawURL string) SourceKind {
	var host, path, scheme string
	if u, err := url.Parse(rawURL); err == nil {
		host = strings.ToLower(u.Hostname())
		path = u.Path
		scheme = strings.ToLower(u.Scheme)
	}

	switch {
	case isVideoHost(host):
		return SourceVideo
	case isThreadHost(host):
		return SourceThread
	case isRepositoryHost(host):
		return SourceRepository
	case scheme != "http" && scheme != "https" && KnownFileExt(filepath.Ext(path)):
		return SourceFile
	default:
		return SourceArticle
	}
}

// KnownFileExt reports whether ext is a recognized document, audio, or video
// extension. Callers use it to reject unknown uploads at the boundary before
// a job is created.
func KnownFileExt(ext string) bool {
	ext = strings.ToLower(ext)
	return documentExts[ext] || audioExts[ext] || videoExts[ext]
}

// IsAudioExt reports whether ext is a bare audio format.
func IsAudioExt(ext string) bool {
	return audioExts[strings.ToLower(ext)]
}

// IsVideoExt reports whether ext is a video container format.
func IsVideoExt(ext string) bool {
	return videoExts[strings.ToLower(ext)]
}

func isVideoHost(host string) bool {
	return host == "youtube.com" || host == "www.youtube.com" ||
		host == "m.youtube.com" || host == "youtu.be"
}

func isThreadHost(host string) bool {
	return host == "reddit.com" || strings.HasSuffix(host, ".reddit.com")
}

func isRepositoryHost(host string) bool {
	return host == "github.com" || host == "www.github.com"
}
