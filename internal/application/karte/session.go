package karte

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// SessionContext identifies one editing session and its user. It is passed
// to every session explicitly and carried into its log lines.
type SessionContext struct {
	SessionID string
	Author    string
}

// ImageEncoder converts an uploaded comment image into its stored encoding
type ImageEncoder interface {
	Encode(raw []byte) (string, error)
}

// Session owns the record currently open in one editor. All reads return
// detached snapshots. Store round trips run without holding the lock; a
// response that arrives after the session moved on to another record is
// discarded and reported as shared.ErrSuperseded.
type Session struct {
	sctx    SessionContext
	repo    karte.Repository
	numbers *karte.NumberGenerator
	images  ImageEncoder
	logger  *zap.Logger
	metrics Metrics
	now     func() time.Time
	opts    []karte.Option

	mu      sync.Mutex
	current *karte.Karte
	// generation changes whenever current is replaced
	generation uint64
	// token identifies the latest load or create request
	token uint64

	watchers    map[int]chan karte.Snapshot
	nextWatcher int

	// saveMu serializes saves so a new record is never created twice
	saveMu sync.Mutex
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithClock sets the time source for record numbers
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithKarteOptions sets options applied to every record the session creates
func WithKarteOptions(opts ...karte.Option) SessionOption {
	return func(s *Session) { s.opts = append(s.opts, opts...) }
}

// NewSession creates a session holding an empty record
func NewSession(
	sctx SessionContext,
	repo karte.Repository,
	numbers *karte.NumberGenerator,
	images ImageEncoder,
	log *zap.Logger,
	opts ...SessionOption,
) *Session {
	s := &Session{
		sctx:     sctx,
		repo:     repo,
		numbers:  numbers,
		images:   images,
		logger:   log.With(zap.String("session_id", sctx.SessionID)),
		metrics:  nopMetrics{},
		now:      time.Now,
		watchers: make(map[int]chan karte.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current = karte.New(s.opts...)
	return s
}

// Context returns the session identity
func (s *Session) Context() SessionContext {
	return s.sctx
}

// Snapshot returns a copy of the open record
func (s *Session) Snapshot() karte.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Snapshot()
}

// Summary returns the financial roll-up of the open record
func (s *Session) Summary() karte.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.CalculateSummary()
}

// ResetToEmpty replaces the open record with a fresh empty one. The reset
// is applied before ResetToEmpty returns, so the next read observes it.
// Watchers are notified asynchronously.
func (s *Session) ResetToEmpty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() uint64 {
	s.current = karte.New(s.opts...)
	s.generation++
	s.token++
	s.logger.Debug("Session reset to empty record", zap.Uint64("generation", s.generation))
	s.notifyLocked()
	return s.token
}

// CreateNew resets the session and assigns a freshly generated record
// number. A numbering failure is logged and the fallback number is used.
// A number already assigned by a save that finished in the meantime is kept.
func (s *Session) CreateNew(ctx context.Context) (karte.Snapshot, error) {
	s.mu.Lock()
	tok := s.resetLocked()
	travelType := s.current.Fields().TravelType
	s.mu.Unlock()

	number := s.generateNumber(ctx, travelType)

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.token {
		return karte.Snapshot{}, shared.ErrSuperseded
	}
	if s.current.RecordNumber() == "" {
		s.current.AssignRecordNumber(number)
	}
	s.notifyLocked()

	logger.WithLogger(ctx, s.logger).Info("New karte created",
		zap.String("record_number", s.current.RecordNumber()),
	)
	return s.current.Snapshot(), nil
}

func (s *Session) generateNumber(ctx context.Context, travelType karte.TravelType) string {
	number, err := s.numbers.Generate(ctx, travelType, s.now())
	if err != nil {
		s.metrics.RecordNumberingFallback(ctx)
		logger.WithLogger(ctx, s.logger).Warn("Record numbering degraded, using fallback serial",
			zap.String("record_number", number),
			zap.Error(err),
		)
	}
	return number
}

// Load replaces the open record with the stored record id. The open record
// is kept when loading fails.
func (s *Session) Load(ctx context.Context, id string) (karte.Snapshot, error) {
	s.mu.Lock()
	s.token++
	tok := s.token
	s.mu.Unlock()

	start := time.Now()
	snap, err := s.repo.FindByID(ctx, id)
	s.metrics.RecordOperation(ctx, OpLoad, time.Since(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.token {
		logger.WithLogger(ctx, s.logger).Debug("Discarding superseded load", zap.String("id", id))
		return karte.Snapshot{}, shared.ErrSuperseded
	}
	if err != nil {
		s.logFailure(ctx, "Failed to load karte", id, err)
		return karte.Snapshot{}, err
	}

	s.current = karte.Rehydrate(snap, s.opts...)
	s.generation++
	s.notifyLocked()

	logger.WithLogger(ctx, s.logger).Info("Karte loaded",
		zap.String("id", id),
		zap.String("record_number", snap.RecordNumber),
	)
	return s.current.Snapshot(), nil
}

// Save writes the open record as it is when the save starts. A record
// that has no number yet gets one first. Edits made while the write is in
// flight keep the record modified. On failure the in-memory record is left
// untouched so no edits are lost.
func (s *Session) Save(ctx context.Context) (karte.Snapshot, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	k := s.current
	gen := s.generation
	snap := k.Snapshot()
	s.mu.Unlock()

	if snap.IsNew() && snap.RecordNumber == "" {
		number := s.generateNumber(ctx, snap.Fields.TravelType)
		snap.RecordNumber = karte.RewritePrefix(number, snap.Fields.TravelType)

		s.mu.Lock()
		if k.RecordNumber() == "" {
			k.AssignRecordNumber(number)
		}
		s.mu.Unlock()
	}

	start := time.Now()
	res, err := s.repo.Save(ctx, snap)
	s.metrics.RecordOperation(ctx, OpSave, time.Since(start), err)
	if err != nil {
		s.logFailure(ctx, "Failed to save karte", snap.ID, err)
		return karte.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The aggregate keeps the id even when the session has moved on, so a
	// reopened pointer never creates a duplicate document.
	k.MarkSaved(res.ID, res.SavedAt, snap.Revision)
	if gen != s.generation {
		logger.WithLogger(ctx, s.logger).Debug("Save completed for a record no longer open",
			zap.String("id", res.ID),
		)
		return karte.Snapshot{}, shared.ErrSuperseded
	}
	s.notifyLocked()

	logger.WithLogger(ctx, s.logger).Info("Karte saved",
		zap.String("id", res.ID),
		zap.String("record_number", snap.RecordNumber),
		zap.Bool("created", res.Created),
	)
	return k.Snapshot(), nil
}

// Delete removes the stored record id. When it is the open record the
// session starts a new record. If that fails the error is returned but the
// delete stands.
func (s *Session) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.repo.Delete(ctx, id)
	s.metrics.RecordOperation(ctx, OpDelete, time.Since(start), err)
	if err != nil {
		s.logFailure(ctx, "Failed to delete karte", id, err)
		return err
	}
	logger.WithLogger(ctx, s.logger).Info("Karte deleted", zap.String("id", id))

	s.mu.Lock()
	isCurrent := s.current.ID() == id
	s.mu.Unlock()
	if !isCurrent {
		return nil
	}

	if _, err := s.CreateNew(ctx); err != nil {
		return fmt.Errorf("karte %s deleted but a new record could not be started: %w", id, err)
	}
	return nil
}

// List returns the summary projections of stored records
func (s *Session) List(ctx context.Context, opts karte.ListOptions) ([]karte.ListEntry, error) {
	start := time.Now()
	entries, err := s.repo.List(ctx, opts)
	s.metrics.RecordOperation(ctx, OpList, time.Since(start), err)
	if err != nil {
		s.logFailure(ctx, "Failed to list karte", "", err)
		return nil, err
	}
	return entries, nil
}

// UpdateField sets one scalar field of the open record
func (s *Session) UpdateField(name karte.Field, value string) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error {
		return k.UpdateField(name, value)
	})
}

// AddPayment appends a payment to the open record
func (s *Session) AddPayment(p karte.Payment) (karte.Payment, error) {
	var added karte.Payment
	_, err := s.mutate(func(k *karte.Karte) error {
		added = k.AddPayment(p)
		return nil
	})
	return added, err
}

// UpdatePayment replaces a payment of the open record
func (s *Session) UpdatePayment(p karte.Payment) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error { return k.UpdatePayment(p) })
}

// DeletePayment removes a payment from the open record
func (s *Session) DeletePayment(id string) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error { return k.DeletePayment(id) })
}

// AddExpense appends an expense to the open record
func (s *Session) AddExpense(e karte.Expense) (karte.Expense, error) {
	var added karte.Expense
	_, err := s.mutate(func(k *karte.Karte) error {
		var err error
		added, err = k.AddExpense(e)
		return err
	})
	return added, err
}

// UpdateExpense replaces an expense of the open record
func (s *Session) UpdateExpense(e karte.Expense) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error { return k.UpdateExpense(e) })
}

// DeleteExpense removes an expense from the open record
func (s *Session) DeleteExpense(id string) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error { return k.DeleteExpense(id) })
}

// AddComment encodes the images and inserts the comment at the head of
// the open record's comments, authored by the session user.
func (s *Session) AddComment(text string, images [][]byte) (karte.Comment, error) {
	encoded := make([]string, 0, len(images))
	for i, raw := range images {
		img, err := s.images.Encode(raw)
		if err != nil {
			return karte.Comment{}, shared.NewValidationError("INVALID_IMAGE",
				fmt.Sprintf("image %d could not be processed: %v", i+1, err))
		}
		encoded = append(encoded, img)
	}

	var added karte.Comment
	_, err := s.mutate(func(k *karte.Karte) error {
		var err error
		added, err = k.AddComment(text, encoded, s.sctx.Author)
		return err
	})
	return added, err
}

// DeleteComment removes a comment from the open record
func (s *Session) DeleteComment(id string) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error { return k.DeleteComment(id) })
}

// UpdateSalesDetails replaces all sales lines and the memo
func (s *Session) UpdateSalesDetails(d karte.SalesDetails) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error { return k.UpdateSalesDetails(d) })
}

// AddSalesItem appends a sales line
func (s *Session) AddSalesItem(item karte.SalesItem) (karte.SalesItem, error) {
	var added karte.SalesItem
	_, err := s.mutate(func(k *karte.Karte) error {
		var err error
		added, err = k.AddSalesItem(item)
		return err
	})
	return added, err
}

// UpdateSalesItem sets one field of a sales line
func (s *Session) UpdateSalesItem(id string, field karte.SalesItemField, value string) (karte.SalesItem, error) {
	var updated karte.SalesItem
	_, err := s.mutate(func(k *karte.Karte) error {
		var err error
		updated, err = k.UpdateSalesItem(id, field, value)
		return err
	})
	return updated, err
}

// DeleteSalesItem removes a sales line
func (s *Session) DeleteSalesItem(id string) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error { return k.DeleteSalesItem(id) })
}

// SetSalesMemo sets the sales memo
func (s *Session) SetSalesMemo(memo string) (karte.Snapshot, error) {
	return s.mutate(func(k *karte.Karte) error {
		k.SetSalesMemo(memo)
		return nil
	})
}

func (s *Session) mutate(fn func(k *karte.Karte) error) (karte.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.current); err != nil {
		return karte.Snapshot{}, err
	}
	s.notifyLocked()
	return s.current.Snapshot(), nil
}

// Watch returns a channel that receives the latest snapshot after every
// change. Slow readers only see the most recent value. The channel is
// closed when ctx is done.
func (s *Session) Watch(ctx context.Context) <-chan karte.Snapshot {
	ch := make(chan karte.Snapshot, 1)

	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
		close(ch)
	}()
	return ch
}

// notifyLocked must be called with mu held. Senders only run under mu and
// drain the buffer first, so the send never blocks.
func (s *Session) notifyLocked() {
	if len(s.watchers) == 0 {
		return
	}
	snap := s.current.Snapshot()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Session) logFailure(ctx context.Context, msg, id string, err error) {
	l := logger.WithLogger(ctx, s.logger)
	fields := []zap.Field{zap.String("id", id), zap.Error(err)}
	switch {
	case errors.Is(err, shared.ErrNotFound), shared.IsKind(err, shared.KindValidation):
		l.Info(msg, fields...)
	default:
		l.Error(msg, fields...)
	}
}
