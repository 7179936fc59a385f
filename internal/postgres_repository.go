package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/propsage/propsage"
)

// dbPool is the narrow slice of pgxpool.Pool the repositories need; pgxmock
// satisfies it in tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsureSchema creates the backing tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool dbPool, tables propsage.TableNames) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			session_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			columns JSONB NOT NULL,
			rows JSONB NOT NULL,
			row_count INTEGER NOT NULL,
			archive_key TEXT,
			uploaded_at TIMESTAMPTZ NOT NULL
		)`, tables.Uploads),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_session ON %s (session_id, uploaded_at DESC)`,
			tables.Uploads, tables.Uploads),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			upload_id UUID NOT NULL,
			query_id TEXT NOT NULL,
			criteria JSONB NOT NULL,
			columns JSONB NOT NULL,
			rows JSONB NOT NULL,
			row_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, tables.Results),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			session_id TEXT,
			user_message TEXT NOT NULL,
			bot_response TEXT NOT NULL,
			location TEXT,
			chart JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`, tables.Conversations),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			query_text TEXT NOT NULL,
			query_type TEXT NOT NULL,
			location TEXT,
			response_time DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, tables.QueryLogs),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UploadRepository persists processed spreadsheet uploads. Row payloads are
// stored as JSONB.
type UploadRepository struct {
	pool   dbPool
	table  string
	logger *zap.SugaredLogger
}

func NewUploadRepository(pool dbPool, table string) *UploadRepository {
	return &UploadRepository{
		pool:   pool,
		table:  table,
		logger: zap.S().Named("uploads"),
	}
}

func (r *UploadRepository) Save(ctx context.Context, upload *propsage.Upload) error {
	columnsJSON, err := json.Marshal(upload.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(upload.Rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, session_id, file_name, columns, rows, row_count, archive_key, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table)
	_, err = r.pool.Exec(ctx, query,
		upload.ID, upload.SessionID, upload.FileName,
		columnsJSON, rowsJSON, upload.RowCount, upload.ArchiveKey, upload.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	r.logger.Infow("upload saved",
		"id", upload.ID, "session", upload.SessionID, "rows", upload.RowCount)
	return nil
}

func (r *UploadRepository) Get(ctx context.Context, id uuid.UUID) (*propsage.Upload, error) {
	query := fmt.Sprintf(`SELECT id, session_id, file_name, columns, rows, row_count,
		COALESCE(archive_key, ''), uploaded_at
		FROM %s WHERE id = $1`, r.table)
	return scanUpload(r.pool.QueryRow(ctx, query, id))
}

func (r *UploadRepository) LatestBySession(ctx context.Context, sessionID string) (*propsage.Upload, error) {
	query := fmt.Sprintf(`SELECT id, session_id, file_name, columns, rows, row_count,
		COALESCE(archive_key, ''), uploaded_at
		FROM %s WHERE session_id = $1
		ORDER BY uploaded_at DESC LIMIT 1`, r.table)
	return scanUpload(r.pool.QueryRow(ctx, query, sessionID))
}

func (r *UploadRepository) ListBySession(ctx context.Context, sessionID string) ([]*propsage.Upload, error) {
	query := fmt.Sprintf(`SELECT id, session_id, file_name, columns, rows, row_count,
		COALESCE(archive_key, ''), uploaded_at
		FROM %s WHERE session_id = $1
		ORDER BY uploaded_at DESC`, r.table)
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*propsage.Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

func scanUpload(row pgx.Row) (*propsage.Upload, error) {
	var (
		upload      propsage.Upload
		columnsJSON []byte
		rowsJSON    []byte
	)
	err := row.Scan(&upload.ID, &upload.SessionID, &upload.FileName,
		&columnsJSON, &rowsJSON, &upload.RowCount, &upload.ArchiveKey, &upload.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, propsage.NewError(propsage.ErrorTypeNotFound,
			propsage.ErrCodeUploadNotFound, "upload not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan upload: %w", err)
	}
	if err := json.Unmarshal(columnsJSON, &upload.Columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &upload.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	return &upload, nil
}

// ResultRepository persists filtered query results.
type ResultRepository struct {
	pool  dbPool
	table string
}

func NewResultRepository(pool dbPool, table string) *ResultRepository {
	return &ResultRepository{pool: pool, table: table}
}

func (r *ResultRepository) Save(ctx context.Context, result *propsage.FilteredResult) error {
	criteriaJSON, err := json.Marshal(result.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	columnsJSON, err := json.Marshal(result.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(result.Rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, upload_id, query_id, criteria, columns, rows, row_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table)
	_, err = r.pool.Exec(ctx, query,
		result.ID, result.UploadID, result.QueryID,
		criteriaJSON, columnsJSON, rowsJSON, result.RowCount, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *ResultRepository) Get(ctx context.Context, id uuid.UUID) (*propsage.FilteredResult, error) {
	query := fmt.Sprintf(`SELECT id, upload_id, query_id, criteria, columns, rows, row_count, created_at
		FROM %s WHERE id = $1`, r.table)

	var (
		result       propsage.FilteredResult
		criteriaJSON []byte
		columnsJSON  []byte
		rowsJSON     []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&result.ID, &result.UploadID, &result.QueryID,
		&criteriaJSON, &columnsJSON, &rowsJSON, &result.RowCount, &result.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, propsage.NewError(propsage.ErrorTypeNotFound,
			propsage.ErrCodeResultNotFound, "filtered result not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal(criteriaJSON, &result.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if err := json.Unmarshal(columnsJSON, &result.Columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &result.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	return &result, nil
}

// ConversationRepository persists chat turns. The chart series is stored as
// nullable JSONB.
type ConversationRepository struct {
	pool  dbPool
	table string
}

func NewConversationRepository(pool dbPool, table string) *ConversationRepository {
	return &ConversationRepository{pool: pool, table: table}
}

func (r *ConversationRepository) Save(ctx context.Context, conv *propsage.Conversation) error {
	var chartJSON []byte
	if conv.Chart != nil {
		var err error
		chartJSON, err = json.Marshal(conv.Chart)
		if err != nil {
			return fmt.Errorf("marshal chart: %w", err)
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, session_id, user_message, bot_response, location, chart, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.table)
	_, err := r.pool.Exec(ctx, query,
		conv.ID, conv.SessionID, conv.UserMessage, conv.BotResponse,
		conv.Location, chartJSON, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*propsage.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, session_id, user_message, bot_response,
		COALESCE(location, ''), chart, created_at
		FROM %s WHERE session_id = $1
		ORDER BY created_at DESC LIMIT $2`, r.table)
	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []*propsage.Conversation
	for rows.Next() {
		var (
			conv      propsage.Conversation
			chartJSON []byte
		)
		if err := rows.Scan(&conv.ID, &conv.SessionID, &conv.UserMessage,
			&conv.BotResponse, &conv.Location, &chartJSON, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if len(chartJSON) > 0 {
			conv.Chart = &propsage.ChartSeries{}
			if err := json.Unmarshal(chartJSON, conv.Chart); err != nil {
				return nil, fmt.Errorf("unmarshal chart: %w", err)
			}
		}
		convs = append(convs, &conv)
	}
	return convs, rows.Err()
}

// QueryLogRepository persists query analytics records.
type QueryLogRepository struct {
	pool  dbPool
	table string
}

func NewQueryLogRepository(pool dbPool, table string) *QueryLogRepository {
	return &QueryLogRepository{pool: pool, table: table}
}

func (r *QueryLogRepository) Save(ctx context.Context, entry *propsage.QueryLog) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(id, query_text, query_type, location, response_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, r.table)
	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.QueryText, string(entry.QueryType),
		entry.Location, entry.ResponseTime, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}
