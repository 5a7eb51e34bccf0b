package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"glass/internal/services"
)

var timelineNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("glass/timeline"))

var timelineIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// DeriveTimelineID maps a video file to a stable id built from its absolute
// path, size and modification time.
func DeriveTimelineID(path string) (string, error) {
	abs, info, err := statSource(path)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano())
	return strings.ReplaceAll(uuid.NewSHA1(timelineNamespace, []byte(key)).String(), "-", ""), nil
}

// ValidateTimelineID reports whether id is usable as a timeline id. Ids name
// working directories and lock files, so path characters are rejected.
func ValidateTimelineID(id string) error {
	if !timelineIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return services.Wrap(services.ErrValidation, "ingestion", "Validate timeline id", fmt.Sprintf("invalid timeline id %q", id), nil)
	}
	return nil
}

func statSource(path string) (string, os.FileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil, services.Wrap(services.ErrValidation, "ingestion", "Resolve source", "source path required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, services.Wrap(services.ErrValidation, "ingestion", "Resolve source", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, services.Wrap(services.ErrNotFound, "ingestion", "Resolve source", "video not found: "+abs, err)
		}
		return "", nil, services.Wrap(services.ErrValidation, "ingestion", "Resolve source", abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, services.Wrap(services.ErrValidation, "ingestion", "Resolve source", abs+" is not a regular file", nil)
	}
	return abs, info, nil
}
