package propsage

import (
	"context"

	"github.com/google/uuid"
)

// UploadStore persists processed spreadsheet uploads.
type UploadStore interface {
	Save(ctx context.Context, upload *Upload) error
	Get(ctx context.Context, id uuid.UUID) (*Upload, error)
	LatestBySession(ctx context.Context, sessionID string) (*Upload, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Upload, error)
}

// ResultStore persists filtered query results.
type ResultStore interface {
	Save(ctx context.Context, result *FilteredResult) error
	Get(ctx context.Context, id uuid.UUID) (*FilteredResult, error)
}

// ConversationStore persists chat turns.
type ConversationStore interface {
	Save(ctx context.Context, conv *Conversation) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*Conversation, error)
}

// QueryLogStore persists query analytics records.
type QueryLogStore interface {
	Save(ctx context.Context, entry *QueryLog) error
}
