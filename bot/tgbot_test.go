package bot

import (
	"FunnelRouter/entity"
	"errors"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, `a\.b \(c\) \_d\_`, sanitize("a.b (c) _d_", false))
	assert.Equal(t, `[x](y)`, sanitize("[x](y)", true))
	assert.Equal(t, "*bold*", sanitize("*bold*", false))
	assert.Empty(t, sanitize("", false))
}

func TestAlertText(t *testing.T) {
	text := alertText(entity.PipelineEvent{
		Key:       "whatsapp:123:wamid.A",
		Platform:  "whatsapp",
		ChannelID: "123",
		UserID:    "5511",
		Kind:      "not_found",
	}, errors.New("channel mapping missing"))

	assert.Contains(t, text, "kind: not_found")
	assert.Contains(t, text, "channel: 123")
	assert.Contains(t, text, "user: 5511")
	assert.Contains(t, text, "key: whatsapp:123:wamid.A")
	assert.Contains(t, text, "error: channel mapping missing")
	assert.NotContains(t, text, "\n\n")
}
