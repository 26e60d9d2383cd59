package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"voltstock/internal/core/id"
	"voltstock/internal/domain/audit"
)

// CompressionAlgo names how the changes column was stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are compressed.
// Proof images routinely exceed it.
const DefaultCompressThreshold = 8 * 1024

// auditRow is one row of sys_audit.
type auditRow struct {
	ID                string          `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          string          `db:"entity_id"`
	Action            string          `db:"action"`
	ActorID           string          `db:"actor_id"`
	ActorRole         string          `db:"actor_role"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditRecorder writes audit entries into sys_audit in the caller's transaction.
type AuditRecorder struct {
	txManager *TxManager
	codec     *auditCodec
}

var (
	_ audit.Recorder = (*AuditRecorder)(nil)
	_ audit.Reader   = (*AuditRecorder)(nil)
)

// NewAuditRecorder creates a recorder that compresses payloads over threshold bytes.
func NewAuditRecorder(txManager *TxManager, threshold int) (*AuditRecorder, error) {
	codec, err := newAuditCodec(threshold)
	if err != nil {
		return nil, err
	}
	return &AuditRecorder{txManager: txManager, codec: codec}, nil
}

// Record implements audit.Recorder.
func (r *AuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	row, err := r.codec.encode(entry)
	if err != nil {
		return err
	}

	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, actor_id, actor_role,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		row.ID, row.EntityType, row.EntityID, row.Action, row.ActorID, row.ActorRole,
		nullableJSON(row.Changes), row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History implements audit.Reader. Entries come newest first.
func (r *AuditRecorder) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Entry, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, actor_id, actor_role,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var row auditRow
		if err := rows.Scan(
			&row.ID, &row.EntityType, &row.EntityID, &row.Action, &row.ActorID, &row.ActorRole,
			&row.Changes, &row.ChangesCompressed, &row.CompressionAlgo, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry, err := r.codec.decode(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// auditCodec converts between audit entries and rows.
type auditCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

func newAuditCodec(threshold int) (*auditCodec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &auditCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

func (c *auditCodec) encode(entry audit.Entry) (auditRow, error) {
	row := auditRow{
		ID:              id.NewString(),
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		Action:          string(entry.Action),
		ActorID:         entry.ActorID,
		ActorRole:       entry.ActorRole,
		CompressionAlgo: CompressionNone,
		CreatedAt:       entry.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if len(entry.Changes) == 0 {
		return row, nil
	}

	payload, err := json.Marshal(entry.Changes)
	if err != nil {
		return row, fmt.Errorf("marshal audit changes: %w", err)
	}
	if len(payload) > c.threshold {
		row.ChangesCompressed = c.encoder.EncodeAll(payload, nil)
		row.CompressionAlgo = CompressionZstd
		return row, nil
	}
	row.Changes = payload
	return row, nil
}

func (c *auditCodec) decode(row auditRow) (audit.Entry, error) {
	entry := audit.Entry{
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		Action:     audit.Action(row.Action),
		ActorID:    row.ActorID,
		ActorRole:  row.ActorRole,
		CreatedAt:  row.CreatedAt,
	}

	payload := []byte(row.Changes)
	if row.CompressionAlgo == CompressionZstd && len(row.ChangesCompressed) > 0 {
		decompressed, err := c.decoder.DecodeAll(row.ChangesCompressed, nil)
		if err != nil {
			return entry, fmt.Errorf("decompress audit changes: %w", err)
		}
		payload = decompressed
	}
	if len(payload) == 0 {
		return entry, nil
	}
	if err := json.Unmarshal(payload, &entry.Changes); err != nil {
		return entry, fmt.Errorf("unmarshal audit changes: %w", err)
	}
	return entry, nil
}
