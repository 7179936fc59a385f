package propsage

import (
	"time"

	"github.com/google/uuid"
)

// Upload is one processed spreadsheet upload, scoped to a chat session.
// Rows carry the parsed records (blanks normalized to ""), Columns the
// declared column order from the source file.
type Upload struct {
	ID         uuid.UUID `json:"id"`
	SessionID  string    `json:"session_id"`
	FileName   string    `json:"file_name"`
	Columns    []string  `json:"columns"`
	Rows       []Record  `json:"-"`
	RowCount   int       `json:"row_count"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Dataset rebuilds the in-memory columnar view from the stored upload.
// Construction is per request; nothing is cached across requests.
func (u *Upload) Dataset() *Dataset {
	return NewDatasetWithColumns(u.Columns, u.Rows)
}

// FilteredResult is a persisted outcome of one filter application.
type FilteredResult struct {
	ID        uuid.UUID      `json:"id"`
	UploadID  uuid.UUID      `json:"upload_id"`
	QueryID   string         `json:"query_id"`
	Criteria  FilterCriteria `json:"criteria"`
	Columns   []string       `json:"columns"`
	Rows      []Record       `json:"-"`
	RowCount  int            `json:"row_count"`
	CreatedAt time.Time      `json:"created_at"`
}

// Conversation is one persisted chat turn, with the optional chart series
// the extractor attached to the answer.
type Conversation struct {
	ID          uuid.UUID    `json:"id"`
	SessionID   string       `json:"session_id"`
	UserMessage string       `json:"user_message"`
	BotResponse string       `json:"bot_response"`
	Location    string       `json:"location,omitempty"`
	Chart       *ChartSeries `json:"chart,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// QueryLog is one analytics record of a user query.
type QueryLog struct {
	ID           uuid.UUID `json:"id"`
	QueryText    string    `json:"query_text"`
	QueryType    QueryType `json:"query_type"`
	Location     string    `json:"location,omitempty"`
	ResponseTime float64   `json:"response_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// FilterRequest is the parsed body of a filter-apply call.
type FilterRequest struct {
	UploadID uuid.UUID      `json:"data_upload_id"`
	Criteria FilterCriteria `json:"filter_criteria"`
}

// ChartGenerateRequest is the parsed body of a chart-generate call.
type ChartGenerateRequest struct {
	UploadID uuid.UUID `json:"data_upload_id"`
	ChartRequest
}

// ChatRequest is the parsed body of a chat call.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Location  string `json:"location,omitempty"`
	Context   string `json:"context,omitempty"`
}

// ChatResponse is the chat answer with the optional data snippets the
// extractor attached.
type ChatResponse struct {
	Response  string       `json:"response"`
	Location  string       `json:"location,omitempty"`
	Chart     *ChartSeries `json:"chart,omitempty"`
	Table     []Record     `json:"table,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
