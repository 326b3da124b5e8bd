package entity

// Musical 音乐剧目录实体，推荐模型的训练与参照数据源
type Musical struct {
	ID          string  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string  `json:"title" gorm:"type:varchar(512);index"`
	Place       string  `json:"place" gorm:"type:varchar(255)"`
	Cast        string  `json:"cast" gorm:"type:text"`
	Genre       string  `json:"genre" gorm:"type:varchar(128)"`
	TicketPrice string  `json:"ticket_price" gorm:"type:varchar(512)"`
	Poster      string  `json:"poster" gorm:"type:text"`
	StartDate   string  `json:"start_date" gorm:"type:varchar(32)"`
	EndDate     string  `json:"end_date" gorm:"type:varchar(32)"`
	Time        string  `json:"time" gorm:"type:varchar(128)"`
	Percentage  float64 `json:"percentage" gorm:"default:0"`
}

// TableName 指定表名
func (Musical) TableName() string {
	return "musicals"
}
