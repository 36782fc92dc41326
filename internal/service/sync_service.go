package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/offline"
	"go-fundo-ops/internal/repository"

	"go.uber.org/zap"
)

// SyncService receives flushed device queues. Each queue id names a
// journal, and a flush is written as one batch or not at all.
type SyncService struct {
	gw     repository.Gateway
	logger *zap.Logger
}

var _ offline.Acceptor = (*SyncService)(nil)

func NewSyncService(gw repository.Gateway, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{gw: gw, logger: logger}
}

// Accept decodes every record before writing anything. Records without a
// row_id get one derived from their queue position, so a retried flush of
// the same queue collides instead of duplicating.
func (s *SyncService) Accept(ctx context.Context, queueID string, records []offline.PendingRecord) (int, error) {
	kind, ok := model.ParseJournalKind(queueID)
	if !ok {
		return 0, apperr.NotFound("queue", queueID)
	}
	if len(records) == 0 {
		return 0, nil
	}

	batch := make(repository.Batch, 0, len(records))
	for i, rec := range records {
		var entry JournalEntry
		dec := json.NewDecoder(bytes.NewReader(rec.Payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&entry); err != nil {
			return 0, apperr.Validation("record %d (seq %d): %s", i, rec.Seq, err.Error())
		}
		rowID := entry.RowID
		if rowID == "" {
			rowID = fmt.Sprintf("%s-%d-%d", queueID, rec.CreatedAt.UnixNano(), rec.Seq)
		}
		base, err := buildJournalRow(kind, entry, rowID, "sync:"+queueID)
		if err != nil {
			return 0, apperr.Validation("record %d (seq %d): %s", i, rec.Seq, err.Error())
		}
		row, err := model.NewJournalRow(kind, base)
		if err != nil {
			return 0, err
		}
		batch = append(batch, repository.Insert(row))
	}

	if err := s.gw.Write(ctx, batch); err != nil {
		s.logger.Warn("sync batch rejected",
			zap.String("queue_id", queueID),
			zap.Int("records", len(records)),
			zap.Error(err))
		return 0, err
	}
	s.logger.Info("sync batch accepted", zap.String("queue_id", queueID), zap.Int("records", len(records)))
	return len(records), nil
}
