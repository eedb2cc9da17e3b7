package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/port"
)

// AttachmentArchiver copies downloaded attachments to object storage. Failures
// are logged and never interrupt extraction.
type AttachmentArchiver struct {
	storage port.ObjectStorage
	bucket  string
	prefix  string
	logger  *zap.Logger
}

// NewAttachmentArchiver creates an archiver writing to bucket under prefix.
func NewAttachmentArchiver(storage port.ObjectStorage, bucket, prefix string, logger *zap.Logger) *AttachmentArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentArchiver{
		storage: storage,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		logger:  logger,
	}
}

// ArchiveKey returns <prefix>/<message-id>/<index>-<name>.
func (a *AttachmentArchiver) ArchiveKey(messageID uuid.UUID, index int, name string) string {
	file := fmt.Sprintf("%d-%s", index, sanitizeObjectName(name))
	if a.prefix == "" {
		return path.Join(messageID.String(), file)
	}
	return path.Join(a.prefix, messageID.String(), file)
}

// Archive uploads one attachment.
func (a *AttachmentArchiver) Archive(ctx context.Context, messageID uuid.UUID, index int, att domain.AttachmentDescriptor, data []byte) {
	key := a.ArchiveKey(messageID, index, att.Name)
	contentType := att.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	out, err := a.storage.Upload(ctx, port.UploadInput{
		Bucket:      a.bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: contentType,
		Size:        int64(len(data)),
	})
	if err != nil {
		a.logger.Warn("attachmentArchiver.Archive: upload failed",
			zap.String("message_id", messageID.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	a.logger.Debug("attachmentArchiver.Archive: attachment archived",
		zap.String("key", key),
		zap.String("location", out.Location),
	)
}

func sanitizeObjectName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "attachment"
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}
