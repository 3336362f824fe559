package chat

import (
	"strings"

	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"github.com/bhumika-maharjan/Chat-Application/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

// 入站帧的判别类型。text/file 产生一条消息，read 是已读确认。
const (
	FrameText = "text"
	FrameFile = "file"
	FrameRead = "read"
)

type Inbound struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Filename  string `json:"filename"`
	Mimetype  string `json:"mimetype"`
	Data      string `json:"data"`
	MessageID uint   `json:"message_id"`
}

// StatusUpdate 是私聊里发给双方的结构化负载，同一形态也用于
// 历史回放（Type 为 message_history）。
type StatusUpdate struct {
	Type      string  `json:"type"`
	MessageID uint    `json:"message_id"`
	Timestamp string  `json:"timestamp"`
	Sender    string  `json:"sender"`
	Content   *string `json:"content"`
	FileURL   *string `json:"file_url"`
	Status    string  `json:"status"`
}

func NewStatusUpdate(m *models.Message, sender string) StatusUpdate {
	return StatusUpdate{
		Type:      "status_update",
		MessageID: m.ID,
		Timestamp: m.SentAt.Format(timeLayout),
		Sender:    sender,
		Content:   m.Content,
		FileURL:   m.FileURL,
		Status:    m.Status,
	}
}

func NewHistoryEntry(m *models.Message, sender string) StatusUpdate {
	su := NewStatusUpdate(m, sender)
	su.Type = "message_history"
	return su
}

// FormatLine 组装房间广播行：时间戳、发送者展示名，然后是消息内容
// 或文件引用。文件引用带 [image]/[file] 标记，客户端据此决定内联
// 渲染还是展示为下载项。
func FormatLine(m *models.Message, sender string) string {
	var b strings.Builder
	b.WriteString(m.SentAt.Format(timeLayout))
	b.WriteString(" ")
	b.WriteString(sender)
	b.WriteString(": ")
	if m.FileURL != nil {
		tag := "[file]"
		if storage.IsInline(*m.FileURL) {
			tag = "[image]"
		}
		b.WriteString(tag)
		b.WriteString(" ")
		b.WriteString(*m.FileURL)
		if m.Content != nil && *m.Content != "" {
			b.WriteString(" ")
			b.WriteString(*m.Content)
		}
	} else if m.Content != nil {
		b.WriteString(*m.Content)
	}
	return b.String()
}
