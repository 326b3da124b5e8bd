// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChatSession 对话会话
type ChatSession struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title     string    `json:"title" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func NewChatSession(id string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ChatTurn 会话中的一轮消息，按 CreatedAt 追加，不做更新
type ChatTurn struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID string          `json:"session_id" gorm:"type:uuid;index;not null"`
	Role      Role            `json:"role" gorm:"type:varchar(16);not null"`
	Content   string          `json:"content" gorm:"type:text;not null"`
	Metadata  json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}

func NewChatTurn(sessionID string, role Role, content string) *ChatTurn {
	return &ChatTurn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// FormatChatHistory 把历史轮次渲染成提示词可用的 "User: ...\nAssistant: ..." 文本
func FormatChatHistory(turns []*ChatTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		if t == nil {
			continue
		}
		label := "User"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, t.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
