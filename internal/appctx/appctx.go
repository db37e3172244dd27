package appctx

import "context"

// Context is the identity of the caller on whose behalf rows are written.
type Context struct {
	EmpUid   string
	EmpName  string
	UserUid  string
	DeptUid  string
	DeptCode string
	OrgUid   string
	GroupUid string
	// HistoryDateTime replays queries as of this instant when set.
	HistoryDateTime string
}

type ctxKey struct{}

// With returns a child context carrying ac.
func With(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// From returns the application context of ctx, or an empty one.
func From(ctx context.Context) *Context {
	if ac, ok := ctx.Value(ctxKey{}).(*Context); ok && ac != nil {
		return ac
	}
	return &Context{}
}

// AsOf returns a child context that replays history at dateTime.
func AsOf(ctx context.Context, dateTime string) context.Context {
	ac := *From(ctx)
	ac.HistoryDateTime = dateTime
	return With(ctx, &ac)
}
