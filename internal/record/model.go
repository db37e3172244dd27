package record

import "reflect"

// BaseModel holds the system columns shared by every typed entity.
// Embed it and the entity satisfies Entity.
type BaseModel struct {
	Id          int64  `db:"Id" json:"Id"`
	Fid         string `db:"Fid" json:"Fid"`
	CreateDate  string `db:"CreateDate" json:"CreateDate"`
	UpdateDate  string `db:"UpdateDate" json:"UpdateDate"`
	EnableDate  string `db:"EnableDate" json:"EnableDate"`
	DisableDate string `db:"DisableDate" json:"DisableDate"`
	Ts          int64  `db:"Ts" json:"Ts"`
	Dr          int    `db:"Dr" json:"Dr"`
	CreateBy    string `db:"CreateBy" json:"CreateBy"`
	CreateName  string `db:"CreateName" json:"CreateName"`
	UpdateBy    string `db:"UpdateBy" json:"UpdateBy"`
	UpdateName  string `db:"UpdateName" json:"UpdateName"`
	OrgUid      string `db:"OrgUid" json:"OrgUid"`
	GroupUid    string `db:"GroupUid" json:"GroupUid"`
}

// SystemFields exposes the embedded system columns.
func (b *BaseModel) SystemFields() *BaseModel { return b }

// Entity is any typed row carrying system columns.
type Entity interface {
	SystemFields() *BaseModel
}

// Tabler lets an entity name its table; otherwise the type name is used.
type Tabler interface {
	TableName() string
}

// TableNameOf resolves the table an entity maps to.
func TableNameOf(e any) string {
	if t, ok := e.(Tabler); ok {
		return t.TableName()
	}
	rt := reflect.TypeOf(e)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil {
		return ""
	}
	return rt.Name()
}
