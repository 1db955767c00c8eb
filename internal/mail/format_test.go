package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessage_Headers(t *testing.T) {
	raw := string(formatMessage("noreply@example.com", Message{
		To:      []string{"rep@example.com"},
		Subject: "Goal \"Q4\r\nBcc: attacker@example.com\" reached 50%",
		Body:    "line one\nline two",
	}))

	head, body, found := strings.Cut(raw, "\r\n\r\n")
	assert.True(t, found)

	headers := strings.Split(head, "\r\n")
	assert.Len(t, headers, 5)
	for _, h := range headers {
		assert.False(t, strings.HasPrefix(h, "Bcc:"), h)
	}
	assert.Equal(t, `Subject: Goal "Q4 Bcc: attacker@example.com" reached 50%`, headers[2])
	assert.Equal(t, "line one\r\nline two", body)
}
