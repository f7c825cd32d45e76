package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/giftapi/internal/logging"
)

// fallbackExtension is used when an upload name carries no extension.
const fallbackExtension = ".tmp"

// StagedFile is an upload copied to durable temporary storage.
type StagedFile struct {
	Path      string // Location of the staged copy
	FileName  string // Name supplied by the uploader
	Extension string // Extension derived from FileName
	Size      int64  // Bytes written
}

// ImportStager copies upload streams to temporary files so the request
// buffer can be released before the import runs.
type ImportStager struct {
	dir string
}

// NewImportStager stages into dir, or the OS temp dir when dir is empty.
func NewImportStager(dir string) *ImportStager {
	return &ImportStager{dir: dir}
}

// Stage writes r to a new temporary file and syncs it to disk before
// returning. On failure the partial file is removed and an *ImportError
// naming fileName is returned.
func (s *ImportStager) Stage(ctx context.Context, r io.Reader, fileName string) (StagedFile, error) {
	ext := stagedExtension(fileName)

	f, err := os.CreateTemp(s.dir, "kids-"+uuid.NewString()+"-*"+ext)
	if err != nil {
		return StagedFile{}, &ImportError{FileName: fileName, Err: fmt.Errorf("create staged file: %w", err)}
	}

	n, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return StagedFile{}, &ImportError{FileName: fileName, Err: fmt.Errorf("write staged file: %w", err)}
	}

	logging.FromContext(ctx).Debug("upload staged",
		"file", fileName,
		"path", f.Name(),
		"bytes", n,
	)

	return StagedFile{
		Path:      f.Name(),
		FileName:  fileName,
		Extension: ext,
		Size:      n,
	}, nil
}

// stagedExtension returns the text from the last dot of the base name,
// or fallbackExtension when there is none.
func stagedExtension(fileName string) string {
	if fileName == "" {
		return fallbackExtension
	}
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return fallbackExtension
	}
	ext := base[i:]
	// CreateTemp treats the last '*' in the pattern as the random part.
	if strings.Contains(ext, "*") {
		return fallbackExtension
	}
	return ext
}
