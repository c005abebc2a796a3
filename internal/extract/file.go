package extract

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

const maxTableRows = 100

// AudioDemuxer strips the audio track out of a video container into a
// standalone audio file.
type AudioDemuxer interface {
	Demux(ctx context.Context, videoPath, audioPath string) error
}

// FileExtractor handles uploaded files, branching on extension: document
// formats extract text directly; audio and video route through the
// transcription controller with the captions tier skipped.
type FileExtractor struct {
	transcriber Transcriber
	demuxer     AudioDemuxer
}

func NewFileExtractor(transcriber Transcriber, demuxer AudioDemuxer) *FileExtractor {
	return &FileExtractor{transcriber: transcriber, demuxer: demuxer}
}

func (e *FileExtractor) Extract(ctx context.Context, ref Reference) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(ref.Filename))

	switch {
	case ext == ".txt" || ext == ".md" || ext == ".markdown":
		return e.extractText(ref)
	case ext == ".json":
		return e.extractJSON(ref)
	case ext == ".csv" || ext == ".tsv":
		return e.extractCSV(ref, ext)
	case ext == ".pdf":
		return e.extractPDF(ref)
	case ext == ".xlsx":
		return e.extractXLSX(ref)
	case IsAudioExt(ext):
		return e.transcribeAudio(ctx, ref, ref.Path, "audio")
	case IsVideoExt(ext):
		return e.extractVideo(ctx, ref)
	default:
		// Unknown extensions get one chance as plain text.
		if res, err := e.extractText(ref); err == nil {
			return res, nil
		}
		return nil, Failf(KindUnsupported, "unsupported file type: %s", ext)
	}
}

func (e *FileExtractor) extractText(ref Reference) (*Result, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, Wrap(KindCorrupt, "read file", err)
	}
	if !utf8.Valid(data) {
		return nil, Failf(KindCorrupt, "file %s is not valid text", ref.Filename)
	}
	content := string(data)
	return &Result{
		Title:   ref.Filename,
		Content: content,
		Metadata: map[string]any{
			"file_type":  "text",
			"file_size":  len(data),
			"word_count": len(strings.Fields(content)),
		},
	}, nil
}

func (e *FileExtractor) extractJSON(ref Reference) (*Result, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, Wrap(KindCorrupt, "read file", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, Wrap(KindCorrupt, "decode JSON file", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, Wrap(KindCorrupt, "re-encode JSON file", err)
	}
	return &Result{
		Title:   ref.Filename,
		Content: string(pretty),
		Metadata: map[string]any{
			"file_type": "json",
			"file_size": len(data),
		},
	}, nil
}

func (e *FileExtractor) extractCSV(ref Reference, ext string) (*Result, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		return nil, Wrap(KindCorrupt, "open file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if ext == ".tsv" {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, Wrap(KindCorrupt, "parse delimited file", err)
	}

	content := "(empty file)"
	columns := 0
	if len(rows) > 0 {
		columns = len(rows[0])
		content = markdownTable(rows)
	}

	info, _ := os.Stat(ref.Path)
	var size int64
	if info != nil {
		size = info.Size()
	}

	return &Result{
		Title:   ref.Filename,
		Content: content,
		Metadata: map[string]any{
			"file_type": strings.TrimPrefix(ext, "."),
			"file_size": size,
			"rows":      len(rows),
			"columns":   columns,
		},
	}, nil
}

func (e *FileExtractor) extractPDF(ref Reference) (*Result, error) {
	f, reader, err := pdf.Open(ref.Path)
	if err != nil {
		return nil, Wrap(KindCorrupt, "open PDF", err)
	}
	defer f.Close()

	var sb strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n%s", i, text)
	}

	if sb.Len() == 0 {
		return nil, Failf(KindEmptyContent, "no extractable text in %s", ref.Filename)
	}

	info, _ := os.Stat(ref.Path)
	var size int64
	if info != nil {
		size = info.Size()
	}

	return &Result{
		Title:   ref.Filename,
		Content: sb.String(),
		Metadata: map[string]any{
			"file_type": "pdf",
			"pages":     pages,
			"file_size": size,
		},
	}, nil
}

func (e *FileExtractor) extractXLSX(ref Reference) (*Result, error) {
	f, err := excelize.OpenFile(ref.Path)
	if err != nil {
		return nil, Wrap(KindCorrupt, "open spreadsheet", err)
	}
	defer f.Close()

	var sb strings.Builder
	totalRows := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## %s\n\n%s", sheet, markdownTable(rows))
		totalRows += len(rows)
	}

	if sb.Len() == 0 {
		return nil, Failf(KindEmptyContent, "no data in %s", ref.Filename)
	}

	return &Result{
		Title:   ref.Filename,
		Content: sb.String(),
		Metadata: map[string]any{
			"file_type": "xlsx",
			"sheets":    len(f.GetSheetList()),
			"rows":      totalRows,
		},
	}, nil
}

func (e *FileExtractor) extractVideo(ctx context.Context, ref Reference) (*Result, error) {
	audio, err := os.CreateTemp("", "extract-audio-*.mp3")
	if err != nil {
		return nil, Wrap(KindInternal, "create temp audio file", err)
	}
	audioPath := audio.Name()
	audio.Close()
	// The demuxed track is scoped to this attempt.
	defer os.Remove(audioPath)

	if err := e.demuxer.Demux(ctx, ref.Path, audioPath); err != nil {
		return nil, Wrap(KindCorrupt, "extract audio track", err)
	}

	res, err := e.transcribeAudio(ctx, ref, audioPath, "video")
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *FileExtractor) transcribeAudio(ctx context.Context, ref Reference, audioPath, fileType string) (*Result, error) {
	// Uploaded media has no captions tier; the controller starts at local
	// speech-to-text.
	text, err := e.transcriber.Transcribe(ctx, MediaSource{AudioPath: audioPath}, false)
	if err != nil {
		return nil, Wrap(KindTranscriptionFailed, "transcribe media", err)
	}

	info, _ := os.Stat(ref.Path)
	var size int64
	if info != nil {
		size = info.Size()
	}

	return &Result{
		Title:   ref.Filename,
		Content: text,
		Metadata: map[string]any{
			"file_type": fileType,
			"file_size": size,
		},
	}, nil
}

func markdownTable(rows [][]string) string {
	var sb strings.Builder
	headers := rows[0]
	sb.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")

	limit := len(rows)
	if limit > maxTableRows+1 {
		limit = maxTableRows + 1
	}
	for _, row := range rows[1:limit] {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	if len(rows) > maxTableRows+1 {
		fmt.Fprintf(&sb, "\n... and %d more rows", len(rows)-maxTableRows-1)
	}
	return sb.String()
}
