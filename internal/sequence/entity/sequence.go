package entity

// CfgSequenceRule is one persisted counter.
type CfgSequenceRule struct {
	Id        int64  `db:"Id" json:"id"`
	SeqName   string `db:"SeqName" json:"seqName"`
	CurrValue int    `db:"CurrValue" json:"currValue"`
	MinValue  int    `db:"MinValue" json:"minValue"`
	StepBy    int    `db:"StepBy" json:"stepBy"`
}

// TableName is the storage table of sequence rows.
func (CfgSequenceRule) TableName() string { return "CfgSequenceRule" }
