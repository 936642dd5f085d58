package infra

import (
	"testing"

	"washly/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestParseRecipients(t *testing.T) {
	got := ParseRecipients(" caja@washly.test,, Gerencia <gerencia@washly.test>, not an address ,")
	assert.Equal(t, []string{"caja@washly.test", "gerencia@washly.test"}, got)
	assert.Empty(t, ParseRecipients(""))
}

func TestMailer_Unconfigured(t *testing.T) {
	m := NewMailer(&config.Config{SMTPPort: 587})
	assert.False(t, m.Configured())
	assert.ErrorIs(t, m.Send(Mail{To: []string{"caja@washly.test"}, Subject: "x"}), ErrMailerDisabled)
}

func TestMailer_RequiresRecipients(t *testing.T) {
	m := NewMailer(&config.Config{SMTPHost: "smtp.washly.test", SMTPPort: 587, SMTPUser: "caja@washly.test"})
	assert.True(t, m.Configured())
	assert.Error(t, m.Send(Mail{Subject: "x"}))
}
