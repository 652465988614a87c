package providers

import (
	"context"
	"strings"
	"testing"
	"time"
)

func init() {
	retryBaseDelay = time.Millisecond
}

func collect(ctx context.Context, b Backend, msgs []Message) (string, error) {
	var sb strings.Builder
	for tok, err := range b.StreamChat(ctx, msgs, DefaultSampling()) {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(tok)
	}
	return sb.String(), nil
}

func testMessages() []Message {
	return []Message{
		{Role: RoleSystem, Content: "review"},
		{Role: RoleUser, Content: "diff"},
	}
}

func mustNotFail(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
