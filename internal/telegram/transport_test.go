package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

type fakeSender struct {
	sent       []tgbotapi.Chattable
	requested  []tgbotapi.Chattable
	sendErr    error
	requestErr error
	nextID     int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestSendMessage_WithButtons(t *testing.T) {
	sender := &fakeSender{nextID: 10}
	transport := NewTransport(sender, nil)

	ref, err := transport.SendMessage(context.Background(), 42, "Download?", []model.Button{
		{Text: "Yes", Data: "confirm:t"},
		{Text: "No", Data: "cancel:t"},
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if ref != (model.MessageRef{ChatID: 42, MessageID: 11}) {
		t.Errorf("Unexpected ref %+v", ref)
	}

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("Expected MessageConfig, got %T", sender.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "Download?" {
		t.Errorf("Unexpected message %+v", msg)
	}
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("Expected inline keyboard, got %T", msg.ReplyMarkup)
	}
	row := markup.InlineKeyboard[0]
	if len(row) != 2 || *row[0].CallbackData != "confirm:t" || *row[1].CallbackData != "cancel:t" {
		t.Errorf("Unexpected keyboard %+v", row)
	}
}

func TestSendMessage_Error(t *testing.T) {
	transport := NewTransport(&fakeSender{sendErr: errors.New("Forbidden")}, nil)
	if _, err := transport.SendMessage(context.Background(), 1, "x", nil); err == nil {
		t.Error("Expected error")
	}
}

func TestSendMessage_CancelledContext(t *testing.T) {
	sender := &fakeSender{}
	transport := NewTransport(sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := transport.SendMessage(ctx, 1, "x", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Error("Expected nothing sent")
	}
}

func TestEditMessage(t *testing.T) {
	sender := &fakeSender{}
	transport := NewTransport(sender, nil)
	ref := model.MessageRef{ChatID: 42, MessageID: 7}

	if err := transport.EditMessage(context.Background(), ref, "13% [██░░]", nil); err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	edit, ok := sender.requested[0].(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("Expected EditMessageTextConfig, got %T", sender.requested[0])
	}
	if edit.ChatID != 42 || edit.MessageID != 7 || edit.Text != "13% [██░░]" || edit.ReplyMarkup != nil {
		t.Errorf("Unexpected edit %+v", edit)
	}

	if err := transport.EditMessage(context.Background(), ref, "again", []model.Button{{Text: "a", Data: "b"}}); err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	edit = sender.requested[1].(tgbotapi.EditMessageTextConfig)
	if edit.ReplyMarkup == nil {
		t.Error("Expected markup on edit with buttons")
	}
}

func TestEditMessage_NotModifiedIgnored(t *testing.T) {
	sender := &fakeSender{requestErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}}
	transport := NewTransport(sender, nil)

	if err := transport.EditMessage(context.Background(), model.MessageRef{ChatID: 1, MessageID: 1}, "x", nil); err != nil {
		t.Errorf("Expected not-modified to be ignored, got %v", err)
	}

	sender.requestErr = &tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"}
	if err := transport.EditMessage(context.Background(), model.MessageRef{ChatID: 1, MessageID: 1}, "x", nil); err == nil {
		t.Error("Expected error for missing message")
	}
}

func TestSendFile(t *testing.T) {
	sender := &fakeSender{}
	transport := NewTransport(sender, nil)

	if err := transport.SendFile(context.Background(), 42, "/work/job-1/part000.mp4"); err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}
	doc, ok := sender.sent[0].(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("Expected DocumentConfig, got %T", sender.sent[0])
	}
	if doc.ChatID != 42 {
		t.Errorf("Unexpected chat %d", doc.ChatID)
	}
	if path, ok := doc.File.(tgbotapi.FilePath); !ok || string(path) != "/work/job-1/part000.mp4" {
		t.Errorf("Unexpected file %#v", doc.File)
	}
}

func TestAnswerCallback(t *testing.T) {
	sender := &fakeSender{}
	transport := NewTransport(sender, nil)

	if err := transport.AnswerCallback(context.Background(), "cb-1", "denied"); err != nil {
		t.Fatalf("AnswerCallback failed: %v", err)
	}
	cb, ok := sender.requested[0].(tgbotapi.CallbackConfig)
	if !ok || cb.CallbackQueryID != "cb-1" || cb.Text != "denied" {
		t.Errorf("Unexpected callback %#v", sender.requested[0])
	}
}
