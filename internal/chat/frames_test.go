package chat

import (
	"testing"
	"time"

	"github.com/bhumika-maharjan/Chat-Application/internal/models"
)

func TestFormatLine_Text(t *testing.T) {
	text := "hello world"
	m := &models.Message{
		Content: &text,
		SentAt:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	got := FormatLine(m, "Alice Smith")
	want := "2026-03-01 12:30:00 Alice Smith: hello world"
	if got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestFormatLine_Image(t *testing.T) {
	url := "/uploads/abc_cat.png"
	m := &models.Message{
		FileURL: &url,
		SentAt:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	got := FormatLine(m, "Alice Smith")
	want := "2026-03-01 12:30:00 Alice Smith: [image] /uploads/abc_cat.png"
	if got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestFormatLine_FileWithCaption(t *testing.T) {
	url := "/uploads/abc_report.pdf"
	caption := "quarterly numbers"
	m := &models.Message{
		FileURL: &url,
		Content: &caption,
		SentAt:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	got := FormatLine(m, "Alice Smith")
	want := "2026-03-01 12:30:00 Alice Smith: [file] /uploads/abc_report.pdf quarterly numbers"
	if got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestNewStatusUpdate(t *testing.T) {
	text := "hi"
	receiver := uint(2)
	m := &models.Message{
		ID:         7,
		Content:    &text,
		SenderID:   1,
		ReceiverID: &receiver,
		Status:     models.StatusSent,
		SentAt:     time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	su := NewStatusUpdate(m, "Alice Smith")
	if su.Type != "status_update" {
		t.Errorf("Type = %q, want status_update", su.Type)
	}
	if su.MessageID != 7 {
		t.Errorf("MessageID = %d, want 7", su.MessageID)
	}
	if su.Timestamp != "2026-03-01 12:30:00" {
		t.Errorf("Timestamp = %q, want 2026-03-01 12:30:00", su.Timestamp)
	}
	if su.Status != models.StatusSent {
		t.Errorf("Status = %q, want %q", su.Status, models.StatusSent)
	}
}

func TestNewHistoryEntry(t *testing.T) {
	m := &models.Message{ID: 1, SentAt: time.Now()}
	if got := NewHistoryEntry(m, "Alice Smith").Type; got != "message_history" {
		t.Errorf("Type = %q, want message_history", got)
	}
}
