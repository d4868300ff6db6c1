// Package lock сериализует запись в календарь одного мастера.
package lock

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StaffLocker берёт блокировки мастеров внутри транзакции tx.
// release вызывается после завершения транзакции (commit или rollback).
type StaffLocker interface {
	Hold(ctx context.Context, tx *gorm.DB, staffIDs ...uuid.UUID) (release func(), err error)
}

// normalize убирает дубли и сортирует id, чтобы порядок взятия блокировок
// был одинаковым у всех транзакций.
func normalize(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// PostgresLocker — транзакционные advisory-блокировки Postgres.
// Снимаются самим Postgres при commit/rollback, release ничего не делает.
type PostgresLocker struct{}

func NewPostgresLocker() *PostgresLocker {
	return &PostgresLocker{}
}

func (PostgresLocker) Hold(ctx context.Context, tx *gorm.DB, staffIDs ...uuid.UUID) (func(), error) {
	for _, id := range normalize(staffIDs) {
		if err := tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", id.String()).Error; err != nil {
			return nil, fmt.Errorf("advisory lock %s: %w", id, err)
		}
	}
	return func() {}, nil
}

// LocalLocker — блокировки в памяти процесса (sqlite, локальная разработка).
// На каждого мастера свой семафор-канал ёмкостью 1.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[uuid.UUID]chan struct{})}
}

func (l *LocalLocker) slot(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

func (l *LocalLocker) Hold(ctx context.Context, _ *gorm.DB, staffIDs ...uuid.UUID) (func(), error) {
	ids := normalize(staffIDs)
	held := make([]chan struct{}, 0, len(ids))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range ids {
		ch := l.slot(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
