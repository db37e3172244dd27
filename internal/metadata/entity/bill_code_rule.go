package entity

// Reset conditions for bill sequences.
const (
	ResetYear  = "year"
	ResetMonth = "month"
	ResetDay   = "day"
)

// CfgBillCodeRule describes how one field of a bill table is numbered.
type CfgBillCodeRule struct {
	BillEntity     string `yaml:"bill_entity" json:"billEntity" db:"BillEntity"`
	FieldName      string `yaml:"field_name" json:"fieldName" db:"FieldName"`
	Prefix         string `yaml:"prefix" json:"prefix" db:"Prefix"`
	DateFormat     string `yaml:"date_format" json:"dateFormat" db:"DateFormat"`
	ResetCondition string `yaml:"reset_condition" json:"resetCondition" db:"ResetCondition"`
	SequenceLen    int    `yaml:"sequence_len" json:"sequenceLen" db:"SequenceLen"`
	Symbol         string `yaml:"symbol" json:"symbol" db:"Symbol"`
}
