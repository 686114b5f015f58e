package config

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const timeoutStateKey = "agroph:statement_timeout"

type unboundedKey struct{}

// WithoutStatementTimeout marks ctx so statements run under it are not bounded. Used by migrations.
func WithoutStatementTimeout(ctx context.Context) context.Context {
	return context.WithValue(ctx, unboundedKey{}, true)
}

type timeoutState struct {
	parent context.Context
	cancel context.CancelFunc
}

// registrar is the part of gorm's callback builder the plugin needs.
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// StatementTimeout bounds every create/query/update/delete/raw statement, including the wait for a
// free pool connection, so an exhausted pool surfaces context.DeadlineExceeded instead of stalling
// until the client disconnects. Row streams (Rows, Scan) keep the caller's context.
type StatementTimeout struct {
	Timeout time.Duration
}

// Name implements gorm.Plugin.
func (StatementTimeout) Name() string { return "agroph:statement_timeout" }

// Initialize implements gorm.Plugin.
func (p StatementTimeout) Initialize(db *gorm.DB) error {
	if p.Timeout <= 0 {
		return nil
	}
	cb := db.Callback()
	pairs := [][2]registrar{
		{cb.Create().Before("gorm:begin_transaction"), cb.Create().After("gorm:commit_or_rollback_transaction")},
		{cb.Query().Before("gorm:query"), cb.Query().After("gorm:after_query")},
		{cb.Update().Before("gorm:begin_transaction"), cb.Update().After("gorm:commit_or_rollback_transaction")},
		{cb.Delete().Before("gorm:begin_transaction"), cb.Delete().After("gorm:commit_or_rollback_transaction")},
		{cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}
	for _, pair := range pairs {
		if err := pair[0].Register("agroph:timeout_start", p.start); err != nil {
			return err
		}
		if err := pair[1].Register("agroph:timeout_end", p.end); err != nil {
			return err
		}
	}
	return nil
}

func (p StatementTimeout) start(db *gorm.DB) {
	parent := db.Statement.Context
	if parent == nil {
		parent = context.Background()
	}
	if unbounded, _ := parent.Value(unboundedKey{}).(bool); unbounded {
		return
	}
	if deadline, ok := parent.Deadline(); ok && time.Until(deadline) <= p.Timeout {
		return
	}
	ctx, cancel := context.WithTimeout(parent, p.Timeout)
	db.Statement.Context = ctx
	db.InstanceSet(timeoutStateKey, &timeoutState{parent: parent, cancel: cancel})
}

func (p StatementTimeout) end(db *gorm.DB) {
	v, ok := db.InstanceGet(timeoutStateKey)
	if !ok {
		return
	}
	state, ok := v.(*timeoutState)
	if !ok || state == nil {
		return
	}
	state.cancel()
	// a reused chain must not inherit the finished statement's deadline
	db.Statement.Context = state.parent
	db.InstanceSet(timeoutStateKey, (*timeoutState)(nil))
}
