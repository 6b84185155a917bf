package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentModel is the GORM model backing GormStore. Every collection shares
// the documents table, keyed by (collection, id).
type DocumentModel struct {
	Collection  string         `gorm:"type:varchar(100);primaryKey"`
	ID          string         `gorm:"type:varchar(64);primaryKey"`
	Data        datatypes.JSON `gorm:"type:jsonb;not null"`
	LastUpdated time.Time      `gorm:"column:updated_at;not null;index"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// GormStore implements Store on PostgreSQL JSONB through GORM.
type GormStore struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string

	mu   sync.Mutex
	last time.Time
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *GormStore) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var model DocumentModel
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return model.toDocument(), nil
}

func (s *GormStore) Put(ctx context.Context, collection, id string, data []byte) (Document, error) {
	if err := validateBody(data); err != nil {
		return Document{}, err
	}
	ts := s.nextTimestamp()

	if id == "" {
		model := DocumentModel{
			Collection:  collection,
			ID:          s.newID(),
			Data:        datatypes.JSON(data),
			LastUpdated: ts,
		}
		if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
			return Document{}, err
		}
		return model.toDocument(), nil
	}

	result := s.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("collection = ? AND id = ?", collection, id).
		Updates(map[string]any{
			"data":       datatypes.JSON(data),
			"updated_at": ts,
		})
	if result.Error != nil {
		return Document{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneBytes(data), UpdatedAt: ts}, nil
}

func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	return s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&DocumentModel{}).Error
}

func (s *GormStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Where("collection = ?", collection)
	for _, f := range q.Filters {
		tx = tx.Where(fmt.Sprintf("%s %s ?", columnExpr(f.Field, f.Value), sqlOperator(f.Op)), f.Value)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", columnExpr(q.OrderBy, ""), dir))
	}
	tx = tx.Order("id ASC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var models []DocumentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	docs := make([]Document, len(models))
	for i := range models {
		docs[i] = models[i].toDocument()
	}
	return docs, nil
}

// columnExpr renders the SQL expression selecting a field. Field paths are
// validated against fieldPathPattern before they reach this point.
func columnExpr(field string, value any) string {
	if field == FieldUpdatedAt {
		return "updated_at"
	}
	path := "'{" + strings.ReplaceAll(field, ".", ",") + "}'"
	switch value.(type) {
	case int, int64, float64:
		return "(data #>> " + path + ")::numeric"
	}
	return "(data #>> " + path + `) COLLATE "C"`
}

func sqlOperator(op Op) string {
	if op == OpEq {
		return "="
	}
	return string(op)
}

func (m DocumentModel) toDocument() Document {
	return Document{
		ID:        m.ID,
		Data:      cloneBytes(m.Data),
		UpdatedAt: m.LastUpdated.UTC(),
	}
}
