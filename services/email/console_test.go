package emailsvc_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/fs"
	"github.com/myschool/backend/services/email"
	"github.com/myschool/backend/testutil"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	svc := emailsvc.NewConsoleServiceMock(conf, logger)

	emailsvc.ResetSentMessages()
	_, ok := emailsvc.LastSentMessage()
	assert.False(t, ok)

	to := []mail.Address{{Name: "Ada", Address: "ada@school.com"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "plain", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{To: to, Subject: "bad data", TemplateName: "welcome", TemplateData: map[string]string{}},
	)

	// only deliverable messages are recorded
	require.Len(t, emailsvc.SentMessages, 1)
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "plain", msg.Subject)
	assert.Equal(t, "hello", msg.TextContent)
}
