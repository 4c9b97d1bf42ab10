package models

import (
	"strings"
	"testing"
)

func TestOutboundMessageValidate(t *testing.T) {
	m := OutboundMessage{Text: "hello world"}
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m = OutboundMessage{}
	if err := m.Validate(); err != ErrEmptyText {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	m = OutboundMessage{Text: strings.Repeat("a", MaxPostLength+1)}
	if err := m.Validate(); err != ErrTextTooLong {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}
}

func TestOutboundMessageValidateRuneLimit(t *testing.T) {
	// 280 multi-byte runes are within the limit even though the byte count
	// is far larger.
	m := OutboundMessage{Text: strings.Repeat("é", MaxPostLength)}
	if err := m.Validate(); err != nil {
		t.Errorf("expected 280 runes to pass, got %v", err)
	}
}

func TestIsReply(t *testing.T) {
	if (OutboundMessage{Text: "x"}).IsReply() {
		t.Error("message without target should not be a reply")
	}
	if !(OutboundMessage{Text: "x", ReplyTargetID: "123"}).IsReply() {
		t.Error("message with target should be a reply")
	}
}
