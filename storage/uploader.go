package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader хранит приложенные к результатам матчей фотографии счёта.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// EvidenceKey строит ключ объекта для фото-подтверждения результата матча.
// Метка времени исключает перезапись при повторной подаче счёта.
func EvidenceKey(matchID int, filename string) string {
	return fmt.Sprintf("matches/%d/evidence/%d%s", matchID, time.Now().UnixNano(), path.Ext(filename))
}
