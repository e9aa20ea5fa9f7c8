// Package memory はプロセス内に状態を保持するリポジトリ実装です。
// 読み書きトランザクションは一度に一つだけ実行され、状態の複製に対して書き込み、コミット時に差し替えます。
// そのため読み手がコミット前の部分的な更新を観測することはありません。
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
)

var errReadOnly = fmt.Errorf("memory: %w", company.ErrReadOnlyTransaction)

type subKey struct {
	userID    string
	companyID string
}

type state struct {
	companies  map[string]*company.Record
	codeIndex  map[string]string
	users      map[string]*user.User
	emailIndex map[string]string
	subs       map[subKey]*subscription.Subscription
	subOrder   []subKey
}

func newState() *state {
	return &state{
		companies:  make(map[string]*company.Record),
		codeIndex:  make(map[string]string),
		users:      make(map[string]*user.User),
		emailIndex: make(map[string]string),
		subs:       make(map[subKey]*subscription.Subscription),
	}
}

// clone は map を複製します。値は書き込み時に必ず新しいポインタへ差し替えるため共有して構いません。
func (s *state) clone() *state {
	c := &state{
		companies:  make(map[string]*company.Record, len(s.companies)),
		codeIndex:  make(map[string]string, len(s.codeIndex)),
		users:      make(map[string]*user.User, len(s.users)),
		emailIndex: make(map[string]string, len(s.emailIndex)),
		subs:       make(map[subKey]*subscription.Subscription, len(s.subs)),
		subOrder:   append([]subKey(nil), s.subOrder...),
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.codeIndex {
		c.codeIndex[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.emailIndex {
		c.emailIndex[k] = v
	}
	for k, v := range s.subs {
		c.subs[k] = v
	}
	return c
}

type txContextKey struct{}

type txState struct {
	store    *Store
	st       *state
	writable bool
}

// Store はメモリ上のレコードストアです。
type Store struct {
	mu        sync.RWMutex
	writer    sync.Mutex
	committed *state
	newID     func() string
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{committed: newState(), newID: uuid.NewString}
}

// TransactionManager は company.TransactionManager を満たす Store のトランザクション制御です。
func (s *Store) TransactionManager() *TransactionManager {
	return &TransactionManager{store: s}
}

// Companies は company.Repository 実装を返します。
func (s *Store) Companies() *CompanyRepository {
	return &CompanyRepository{store: s}
}

// Users は user.Repository 実装を返します。
func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

// Subscriptions は subscription.Repository 実装を返します。
func (s *Store) Subscriptions() *SubscriptionRepository {
	return &SubscriptionRepository{store: s}
}

// TransactionManager は Store 上のトランザクションを制御します。
type TransactionManager struct {
	store *Store
}

// WithinReadOnly はコミット済み状態のスナップショットに対して fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction function is required")
	}
	if _, ok := m.store.txFromContext(ctx); ok {
		return fn(ctx)
	}
	return fn(context.WithValue(ctx, txContextKey{}, &txState{store: m.store, st: m.store.snapshot()}))
}

// WithinReadWrite は書き込みを直列化し、fn が成功した場合のみ変更をコミットします。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction function is required")
	}
	if tx, ok := m.store.txFromContext(ctx); ok {
		if !tx.writable {
			return errReadOnly
		}
		return fn(ctx)
	}
	return m.store.readWrite(ctx, fn)
}

func (s *Store) readWrite(ctx context.Context, fn func(context.Context) error) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.snapshot().clone()
	if err := fn(context.WithValue(ctx, txContextKey{}, &txState{store: s, st: working, writable: true})); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = working
	s.mu.Unlock()
	return nil
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

func (s *Store) txFromContext(ctx context.Context) (*txState, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*txState)
	if !ok || tx.store != s {
		return nil, false
	}
	return tx, true
}

// read はトランザクション内ならその状態を、そうでなければコミット済み状態を返します。
func (s *Store) read(ctx context.Context) *state {
	if tx, ok := s.txFromContext(ctx); ok {
		return tx.st
	}
	return s.snapshot()
}

// write はトランザクション内ならその状態に、そうでなければ単独のトランザクションとして fn を適用します。
func (s *Store) write(ctx context.Context, fn func(*state) error) error {
	if tx, ok := s.txFromContext(ctx); ok {
		if !tx.writable {
			return errReadOnly
		}
		return fn(tx.st)
	}
	return s.readWrite(ctx, func(txCtx context.Context) error {
		tx, _ := s.txFromContext(txCtx)
		return fn(tx.st)
	})
}
