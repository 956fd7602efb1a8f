// Package inbox imports Markdown files dropped into a folder as notes.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/noteservice"
	"github.com/starford/neuralos/internal/parser"
	"github.com/starford/neuralos/internal/storage"
)

// Subdirectories of the inbox root that are never scanned.
const (
	ImportedDir = "imported"
	FailedDir   = "failed"
)

// NoteCreator creates notes. *noteservice.Service satisfies it.
type NoteCreator interface {
	Create(ctx context.Context, in noteservice.CreateInput) (*models.Note, error)
}

// Importer turns inbox files into notes owned by one user.
type Importer struct {
	files  storage.Provider
	notes  NoteCreator
	userID string
	logger *slog.Logger
}

// NewImporter creates an importer for the inbox behind files.
func NewImporter(files storage.Provider, notes NoteCreator, userID string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{files: files, notes: notes, userID: userID, logger: logger}
}

// Scan imports every pending file and reports how many notes were created.
// A file that cannot be imported is moved to the failed directory next to
// an .error.txt describing the cause; the scan continues with the rest.
func (im *Importer) Scan(ctx context.Context) (int, error) {
	files, err := im.files.List("", ImportedDir, FailedDir)
	if err != nil {
		return 0, fmt.Errorf("inbox: list: %w", err)
	}

	imported := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		note, err := im.importFile(ctx, f.Path)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return imported, err
			}
			im.logger.Warn("inbox: import failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			im.quarantine(f.Path, err)
			continue
		}
		imported++
		im.logger.Info("inbox: imported", slog.String("path", f.Path), slog.String("note_id", note.ID))
	}
	return imported, nil
}

func (im *Importer) importFile(ctx context.Context, p string) (*models.Note, error) {
	data, err := im.files.Read(p)
	if err != nil {
		return nil, err
	}
	res := parser.Parse(data)
	note, err := im.notes.Create(ctx, noteservice.CreateInput{
		UserID:     im.userID,
		Title:      res.Title,
		Content:    res.Body,
		Tags:       res.Tags,
		IsFavorite: res.Favorite,
	})
	if err != nil {
		return nil, err
	}
	if _, err := im.files.Move(p, path.Join(ImportedDir, p)); err != nil {
		// The note exists; leaving the file would import it twice.
		im.logger.Error("inbox: move to imported failed", slog.String("path", p), slog.String("error", err.Error()))
	}
	return note, nil
}

func (im *Importer) quarantine(p string, cause error) {
	dst, err := im.files.Move(p, path.Join(FailedDir, p))
	if err != nil {
		im.logger.Error("inbox: move to failed", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	if err := im.files.Write(dst+".error.txt", []byte(cause.Error()+"\n")); err != nil {
		im.logger.Warn("inbox: write error report", slog.String("path", dst), slog.String("error", err.Error()))
	}
}
