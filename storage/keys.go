package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Folder selects the key prefix of a stored object.
type Folder string

const (
	FolderUserDocument     Folder = "user-document"
	FolderGeneratedMonthly Folder = "generated-monthly-user"
	FolderUserAvatar       Folder = "user-avatar"
	FolderLegalCorpus      Folder = "legal-corpus-raw"
)

// Prefix returns the key prefix for folder. Per-user folders need userID.
func Prefix(folder Folder, userID string, now time.Time) (string, error) {
	switch folder {
	case FolderLegalCorpus:
		return "legal-corpus/original-docs/", nil
	case FolderUserDocument:
		if userID == "" {
			return "user-data/anonymous/documents/", nil
		}
		return fmt.Sprintf("user-data/%s/documents/", userID), nil
	case FolderGeneratedMonthly:
		if userID == "" {
			return "", fmt.Errorf("folder %s requires a user id", folder)
		}
		return fmt.Sprintf("user-data/%s/generated-templates/%04d/%02d/", userID, now.Year(), int(now.Month())), nil
	case FolderUserAvatar:
		if userID == "" {
			return "misc/avatar/", nil
		}
		return fmt.Sprintf("user-data/%s/avatar/", userID), nil
	default:
		return "misc/", nil
	}
}

// BuildKey returns a unique key: prefix, upload millis, a short random id and the file name.
func BuildKey(folder Folder, userID, fileName string, now time.Time) (string, error) {
	prefix, err := Prefix(folder, userID, now)
	if err != nil {
		return "", err
	}
	name := strings.ReplaceAll(strings.TrimSpace(fileName), "/", "_")
	if name == "" {
		name = "file"
	}
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d_%s_%s", prefix, now.UnixMilli(), short, name), nil
}
