package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// RegulationStore persists processed regulations in the regulations table.
// The natural_key unique constraint makes Upsert idempotent across reruns.
type RegulationStore struct {
	pool dbPool
}

// NewRegulationStore creates a Postgres-backed RegulationStore.
func NewRegulationStore(ctx context.Context, cfg PoolConfig) (*RegulationStore, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RegulationStore{pool: pool}, nil
}

// NewRegulationStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRegulationStoreWithPool(pool dbPool) (*RegulationStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RegulationStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RegulationStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert inserts or refreshes the regulation row and returns its ID.
func (s *RegulationStore) Upsert(ctx context.Context, doc regwatch.RegulationDocument) (string, error) {
	key := doc.NaturalKey()
	if key == "" {
		return "", fmt.Errorf("natural key is required")
	}
	metadata, err := json.Marshal(doc.RegulationMetadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	relations := doc.Relations
	if relations == nil {
		relations = []regwatch.Relation{}
	}
	relationsJSON, err := json.Marshal(relations)
	if err != nil {
		return "", fmt.Errorf("marshal relations: %w", err)
	}

	query := `
INSERT INTO regulations (
	natural_key,
	jenis,
	nomor,
	tahun,
	judul,
	status,
	content_hash,
	pdf_storage_path,
	txt_storage_path,
	pdf_blob_uri,
	txt_blob_uri,
	detail_url,
	metadata,
	relations,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now()
)
ON CONFLICT (natural_key) DO UPDATE SET
	judul = EXCLUDED.judul,
	status = EXCLUDED.status,
	content_hash = EXCLUDED.content_hash,
	pdf_storage_path = EXCLUDED.pdf_storage_path,
	txt_storage_path = EXCLUDED.txt_storage_path,
	pdf_blob_uri = EXCLUDED.pdf_blob_uri,
	txt_blob_uri = EXCLUDED.txt_blob_uri,
	detail_url = EXCLUDED.detail_url,
	metadata = EXCLUDED.metadata,
	relations = EXCLUDED.relations,
	updated_at = now()
RETURNING id`

	var id string
	err = s.pool.QueryRow(ctx, query,
		key,
		doc.Jenis,
		doc.Nomor,
		doc.Tahun,
		doc.Judul,
		doc.Status,
		doc.ContentHash,
		doc.PDFStoragePath,
		doc.TextStoragePath,
		doc.PDFBlobURI,
		doc.TextBlobURI,
		doc.DetailURL,
		metadata,
		relationsJSON,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert regulation: %w", err)
	}
	return id, nil
}

// Exists reports whether a regulation with the natural key is persisted.
func (s *RegulationStore) Exists(ctx context.Context, naturalKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM regulations WHERE natural_key = $1)`,
		naturalKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check natural key: %w", err)
	}
	return exists, nil
}

// ExistsContent reports whether any persisted regulation has the content hash.
func (s *RegulationStore) ExistsContent(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM regulations WHERE content_hash = $1)`,
		contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return exists, nil
}
