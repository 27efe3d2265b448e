package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	logx "macromon/pkg/logx"
)

type fakeChannel struct {
	name string
	err  error
	sent []Message
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestFanOutContinuesPastFailure(t *testing.T) {
	t.Parallel()
	bad := &fakeChannel{name: "bad", err: errors.New("boom")}
	good := &fakeChannel{name: "good"}
	svc := New(logx.Nop(), bad, good)

	err := svc.Send(context.Background(), Message{Subject: "s", Text: "t"})
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("err = %v, want wrapped channel name", err)
	}
	if len(good.sent) != 1 {
		t.Fatalf("good channel got %d messages, want 1", len(good.sent))
	}
}

func TestBuildMIMEMultipart(t *testing.T) {
	t.Parallel()
	msg := Message{Subject: "Daily Update", Text: "plain body", HTML: "<p>html body</p>"}
	raw := string(buildMIME("bot@example.com", []string{"a@example.com", "b@example.com"}, msg))

	for _, want := range []string{
		"From: bot@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Daily Update\r\n",
		"multipart/alternative",
		"text/plain; charset=utf-8",
		"plain body",
		"text/html; charset=utf-8",
		"<p>html body</p>",
		"--" + mimeBoundary + "--",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("MIME missing %q", want)
		}
	}

	// Plain text comes before HTML so clients prefer the richer part.
	if strings.Index(raw, "plain body") > strings.Index(raw, "<p>html body</p>") {
		t.Error("text part should precede html part")
	}
}

func TestEmailChannelValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewEmailChannel(EmailConfig{Sender: "a@b", Recipients: []string{"c@d"}}); err == nil {
		t.Error("missing host accepted")
	}
	if _, err := NewEmailChannel(EmailConfig{Host: "smtp.example.com", Recipients: []string{"c@d"}}); err == nil {
		t.Error("missing sender accepted")
	}
	if _, err := NewEmailChannel(EmailConfig{Host: "smtp.example.com", Sender: "a@b"}); err == nil {
		t.Error("missing recipients accepted")
	}
}

func TestEmailChannelSend(t *testing.T) {
	t.Parallel()
	ch, err := NewEmailChannel(EmailConfig{
		Host:       "smtp.example.com",
		Sender:     "bot@example.com",
		Recipients: []string{"dest@example.com"},
	})
	if err != nil {
		t.Fatalf("NewEmailChannel: %v", err)
	}

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	ch.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	if err := ch.Send(context.Background(), Message{Subject: "s", Text: "body"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("addr = %q, want default port 587", gotAddr)
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 1 || gotTo[0] != "dest@example.com" {
		t.Fatalf("envelope = %q -> %v", gotFrom, gotTo)
	}
	if !strings.Contains(string(gotBody), "body") {
		t.Fatal("body not carried")
	}
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, what.(string))
	return &tele.Message{}, nil
}

func TestTelegramChunking(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	ch := &TelegramChannel{bot: fs, chatID: 42}

	long := strings.Repeat("line of report text\n", 400) // ~8000 bytes
	if err := ch.Send(context.Background(), Message{Text: long}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fs.sent) < 2 {
		t.Fatalf("sent %d chunks, want >= 2", len(fs.sent))
	}
	for i, c := range fs.sent {
		if len(c) > telegramMessageLimit {
			t.Fatalf("chunk %d has %d bytes, exceeds limit", i, len(c))
		}
	}
}

func TestSplitMessageShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitMessage("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}
