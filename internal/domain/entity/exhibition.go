// Package entity 定义领域实体
package entity

// Exhibition 展览元数据实体
// 字段命名沿用采集层的 E_ 前缀约定，JSON 形态直接对外暴露
type Exhibition struct {
	ID         string `json:"id" gorm:"type:varchar(64);primaryKey"`
	Title      string `json:"E_title" gorm:"column:e_title;type:varchar(512)"`
	Context    string `json:"E_context" gorm:"column:e_context;type:text"`
	Poster     string `json:"E_poster" gorm:"column:e_poster;type:text"`
	Price      string `json:"E_price" gorm:"column:e_price;type:varchar(255)"`
	Place      string `json:"E_place" gorm:"column:e_place;type:varchar(255)"`
	Date       string `json:"E_date" gorm:"column:e_date;type:varchar(128)"`
	Link       string `json:"E_link" gorm:"column:e_link;type:text"`
	TicketCast int64  `json:"E_ticketcast" gorm:"column:e_ticketcast;default:0"`
}

// TableName 指定表名
func (Exhibition) TableName() string {
	return "exhibitions"
}

// Popularity 返回人气值（预매량）
func (e *Exhibition) Popularity() int64 {
	if e == nil {
		return 0
	}
	return e.TicketCast
}
