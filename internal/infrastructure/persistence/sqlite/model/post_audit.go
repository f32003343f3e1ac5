package model

type PostAudit struct {
	AuditID   uint64 `gorm:"column:audit_id;primaryKey;autoIncrement"`
	Action    string `gorm:"column:action;type:text;not null"`
	Message   string `gorm:"column:message;type:text;not null"`
	TxID      string `gorm:"column:tx_id;type:text;not null;index"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
}

func (PostAudit) TableName() string {
	return "post_audits"
}
