package document

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jdamiba/sandstone-project/common"
)

// PostgresConfig tunes the connection pool.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DefaultPostgresConfig returns pool settings suitable for a single
// service instance.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns:    100,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	}
}

// PostgresStore implements Store on PostgreSQL via gorm. The document row
// update with its `version = version + 1` clause is the serialization
// point for all concurrent body writers.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore opens the connection pool and optionally migrates the
// schema.
func NewPostgresStore(dsn string, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, mapPostgresError(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, mapPostgresError(err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&Document{}, &Collaborator{}, &Operation{}, &AnalyticsEvent{}); err != nil {
			return nil, mapPostgresError(err)
		}
	}

	return &PostgresStore{db: db}, nil
}

// CreateDocument inserts the document and its owner binding in one
// transaction.
func (s *PostgresStore) CreateDocument(ctx context.Context, doc *Document) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		owner := &Collaborator{
			DocumentID: doc.ID,
			UserID:     doc.OwnerID,
			Permission: PermissionOwner,
			IsActive:   true,
		}
		return tx.Create(owner).Error
	})
	return mapPostgresError(err)
}

// GetDocument returns the document or NotFound.
func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, mapPostgresError(err)
	}
	return &doc, nil
}

// UpdateDocument applies a partial metadata update.
func (s *PostgresStore) UpdateDocument(ctx context.Context, id string, fields map[string]interface{}) (*Document, error) {
	// A body change always bumps the version in the same statement.
	if _, ok := fields["content"]; ok {
		fields["version"] = gorm.Expr("version + 1")
		fields["last_edited_at"] = time.Now()
	}

	var doc Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Document{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&doc, "id = ?", id).Error
	})
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return &doc, nil
}

// DeleteDocument hard-deletes the document and its dependent rows.
func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Document{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Delete(&Collaborator{}, "document_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Operation{}, "document_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&AnalyticsEvent{}, "document_id = ?", id).Error
	})
	return mapPostgresError(err)
}

// ListDocuments returns the documents visible to q.UserID, newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context, q ListQuery) ([]Document, error) {
	bindings := s.db.Model(&Collaborator{}).
		Select("document_id").
		Where("user_id = ? AND is_active = ?", q.UserID, true)

	query := s.db.WithContext(ctx).Model(&Document{}).
		Where("is_public = ? OR owner_id = ? OR id IN (?)", true, q.UserID, bindings)

	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if q.Public != nil {
		query = query.Where("is_public = ?", *q.Public)
	}

	var docs []Document
	err := query.Order("updated_at DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&docs).Error
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return docs, nil
}

// GetCollaborator returns the active binding, or (nil, nil) when absent.
func (s *PostgresStore) GetCollaborator(ctx context.Context, docID, userID string) (*Collaborator, error) {
	var collab Collaborator
	err := s.db.WithContext(ctx).
		First(&collab, "document_id = ? AND user_id = ? AND is_active = ?", docID, userID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return &collab, nil
}

// AddCollaborator inserts a binding; a duplicate pair maps to Conflict via
// the unique index.
func (s *PostgresStore) AddCollaborator(ctx context.Context, collab *Collaborator) error {
	return mapPostgresError(s.db.WithContext(ctx).Create(collab).Error)
}

// RemoveCollaborator deletes the binding if present.
func (s *PostgresStore) RemoveCollaborator(ctx context.Context, docID, userID string) error {
	err := s.db.WithContext(ctx).
		Delete(&Collaborator{}, "document_id = ? AND user_id = ?", docID, userID).Error
	return mapPostgresError(err)
}

// ListCollaborators returns all bindings for a document.
func (s *PostgresStore) ListCollaborators(ctx context.Context, docID string) ([]Collaborator, error) {
	var collabs []Collaborator
	err := s.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("created_at ASC").
		Find(&collabs).Error
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return collabs, nil
}

// ApplyChange commits a change-engine result atomically. The body update
// runs first so the row lock it takes serializes the max-sequence read
// against concurrent changers of the same document.
func (s *PostgresStore) ApplyChange(ctx context.Context, docID, newBody, userID string, ops []AppliedOp, summary ChangeSummary) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpBody(tx, docID, newBody); err != nil {
			return err
		}

		var maxSeq int64
		err := tx.Model(&Operation{}).
			Where("document_id = ?", docID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return err
		}

		for i, op := range ops {
			record := &Operation{
				DocumentID: docID,
				Sequence:   maxSeq + int64(i) + 1,
				Kind:       op.Kind,
				Position:   op.Position,
				Length:     op.Length,
				Content:    op.Content,
				UserID:     userID,
			}
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}

		event := &AnalyticsEvent{
			DocumentID: docID,
			UserID:     userID,
			EventType:  summary.EventType,
			Metadata:   summary.Metadata,
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		return tx.First(&doc, "id = ?", docID).Error
	})
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return &doc, nil
}

// UpdateBody commits a realtime content broadcast atomically.
func (s *PostgresStore) UpdateBody(ctx context.Context, docID, newBody, userID string) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpBody(tx, docID, newBody); err != nil {
			return err
		}

		event := &AnalyticsEvent{
			DocumentID: docID,
			UserID:     userID,
			EventType:  "realtime_update",
			Metadata:   JSONMap{"contentLength": len(newBody)},
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		return tx.First(&doc, "id = ?", docID).Error
	})
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return &doc, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// bumpBody replaces the body and advances the revision counter in a
// single row update. The row lock it acquires lives until commit.
func bumpBody(tx *gorm.DB, docID, newBody string) error {
	now := time.Now()
	res := tx.Model(&Document{}).Where("id = ?", docID).Updates(map[string]interface{}{
		"content":        newBody,
		"version":        gorm.Expr("version + 1"),
		"last_edited_at": now,
		"updated_at":     now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// mapPostgresError translates driver and gorm errors into the service
// error taxonomy. Unique violations map to Conflict, foreign-key
// violations to BadRequest, not-null and check violations to Validation,
// connection failures to ServiceUnavailable, and schema errors to
// Internal.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFound("document not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return common.Conflict("resource already exists").WithDetails("constraint", pgErr.ConstraintName)
		case pgErr.Code == "23503":
			return common.BadRequest("referenced resource does not exist").WithDetails("constraint", pgErr.ConstraintName)
		case pgErr.Code == "23502" || pgErr.Code == "23514":
			return common.Validation("field constraint violated").WithDetails("constraint", pgErr.ConstraintName)
		case strings.HasPrefix(pgErr.Code, "08"):
			return common.Unavailable("database unreachable")
		case strings.HasPrefix(pgErr.Code, "42"):
			return common.Internal("database schema error")
		}
	}

	return common.Internal("database error")
}
