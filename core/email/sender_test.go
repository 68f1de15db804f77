package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/email"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{
		To:       []string{"owner@example.com", "admin@example.com"},
		Subject:  "Job failed",
		BodyHTML: "<p>details</p>",
	}

	t.Run("valid params", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, valid.Validate())
	})

	t.Run("no recipients", func(t *testing.T) {
		t.Parallel()
		p := valid
		p.To = nil
		assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
	})

	t.Run("malformed recipient", func(t *testing.T) {
		t.Parallel()
		p := valid
		p.To = []string{"owner@example.com", "not-an-address"}
		assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
	})

	t.Run("blank subject", func(t *testing.T) {
		t.Parallel()
		p := valid
		p.Subject = "   "
		assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
	})

	t.Run("blank body", func(t *testing.T) {
		t.Parallel()
		p := valid
		p.BodyHTML = ""
		assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
	})
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	params := email.SendEmailParams{
		To:       []string{"owner@example.com", "admin@example.com"},
		Subject:  "Renewal failed for shop.example.com",
		BodyHTML: "<h1>Renewal failed</h1>",
		Tag:      "dlq_escalation",
	}
	require.NoError(t, sender.SendEmail(context.Background(), params))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = filepath.Join(dir, e.Name())
		case ".json":
			jsonFile = filepath.Join(dir, e.Name())
		}
	}
	require.NotEmpty(t, htmlFile)
	require.NotEmpty(t, jsonFile)
	assert.True(t, strings.Contains(filepath.Base(htmlFile), "dlq_escalation"))

	body, err := os.ReadFile(htmlFile)
	require.NoError(t, err)
	assert.Equal(t, params.BodyHTML, string(body))

	meta, err := os.ReadFile(jsonFile)
	require.NoError(t, err)
	var decoded struct {
		SendTo  []string `json:"send_to"`
		Subject string   `json:"subject"`
		Tag     string   `json:"tag"`
	}
	require.NoError(t, json.Unmarshal(meta, &decoded))
	assert.Equal(t, params.To, decoded.SendTo)
	assert.Equal(t, params.Subject, decoded.Subject)
	assert.Equal(t, params.Tag, decoded.Tag)
}

func TestDevSender_RejectsInvalidParams(t *testing.T) {
	t.Parallel()

	sender := email.NewDevSender(t.TempDir())
	err := sender.SendEmail(context.Background(), email.SendEmailParams{Subject: "x"})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
}
