package model

type Post struct {
	PostID    uint64 `gorm:"column:post_id;primaryKey;autoIncrement"`
	Message   string `gorm:"column:message;type:text;not null;index"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
}

func (Post) TableName() string {
	return "posts"
}
