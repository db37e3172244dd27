package interceptor

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sqlaug"
)

// Interceptor observes writes of one table. A hook that returns an error
// aborts the surrounding unit of work.
type Interceptor interface {
	BeforeEntityInsert(ctx context.Context, e record.Entity) error
	AfterEntityInsert(ctx context.Context, e record.Entity) error
	BeforeEntityUpdate(ctx context.Context, e record.Entity) error
	AfterEntityUpdate(ctx context.Context, e record.Entity) error
	BeforeEntityDelete(ctx context.Context, e record.Entity) error
	AfterEntityDelete(ctx context.Context, e record.Entity) error

	BeforeDynamicInsert(ctx context.Context, rec *record.Record) error
	AfterDynamicInsert(ctx context.Context, rec *record.Record) error
	BeforeDynamicUpdate(ctx context.Context, rec *record.Record) error
	AfterDynamicUpdate(ctx context.Context, rec *record.Record) error
	BeforeDynamicDelete(ctx context.Context, rec *record.Record) error
	AfterDynamicDelete(ctx context.Context, rec *record.Record) error
}

// Gateway is the persistence surface handed to interceptors. Calls made
// with the hook's ctx join the transaction of the intercepted write.
type Gateway interface {
	Execute(ctx context.Context, sql string, params map[string]any) (int64, error)
	ExecuteScalar(ctx context.Context, sql string, params map[string]any) (any, error)
	Query(ctx context.Context, sql string, params map[string]any, opts ...sqlaug.Option) ([]*record.Record, error)
	GetByFid(ctx context.Context, table, fid string, opts ...sqlaug.Option) (*record.Record, error)
	InsertDynamic(ctx context.Context, rec *record.Record) (int64, error)
	UpdateDynamic(ctx context.Context, rec *record.Record) error
}

// Nop implements every hook as a no-op. Embed it and override what you need.
type Nop struct{}

func (Nop) BeforeEntityInsert(context.Context, record.Entity) error { return nil }
func (Nop) AfterEntityInsert(context.Context, record.Entity) error  { return nil }
func (Nop) BeforeEntityUpdate(context.Context, record.Entity) error { return nil }
func (Nop) AfterEntityUpdate(context.Context, record.Entity) error  { return nil }
func (Nop) BeforeEntityDelete(context.Context, record.Entity) error { return nil }
func (Nop) AfterEntityDelete(context.Context, record.Entity) error  { return nil }

func (Nop) BeforeDynamicInsert(context.Context, *record.Record) error { return nil }
func (Nop) AfterDynamicInsert(context.Context, *record.Record) error  { return nil }
func (Nop) BeforeDynamicUpdate(context.Context, *record.Record) error { return nil }
func (Nop) AfterDynamicUpdate(context.Context, *record.Record) error  { return nil }
func (Nop) BeforeDynamicDelete(context.Context, *record.Record) error { return nil }
func (Nop) AfterDynamicDelete(context.Context, *record.Record) error  { return nil }
