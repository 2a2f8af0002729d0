package email

import (
	"testing"
	"time"

	"github.com/nashr-app/nashr/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	to, subject, body string
}

func newTestService(t *testing.T, enabled bool) (*NotificationService, *[]sentEmail) {
	t.Helper()
	n, err := New(&config.EmailConfig{Enabled: enabled}, "https://nashr.example")
	require.NoError(t, err)

	var sent []sentEmail
	n.send = func(to, subject, body string) error {
		sent = append(sent, sentEmail{to, subject, body})
		return nil
	}
	return n, &sent
}

func testNotification() PurchaseNotification {
	return PurchaseNotification{
		UserEmail:      "reader@example.com",
		UserName:       "Sara",
		FileTitle:      "Go in Practice",
		ReferenceCode:  "NSH-ABC123",
		OriginalPrice:  150_000,
		DiscountAmount: 15_000,
		FinalPrice:     135_000,
		CreatedAt:      time.Date(2024, 3, 20, 10, 30, 0, 0, time.UTC),
	}
}

func TestSendPurchaseCreated(t *testing.T) {
	n, sent := newTestService(t, true)

	require.NoError(t, n.SendPurchaseCreated(testNotification()))
	require.Len(t, *sent, 1)

	msg := (*sent)[0]
	assert.Equal(t, "reader@example.com", msg.to)
	assert.Contains(t, msg.subject, "NSH-ABC123")
	assert.Contains(t, msg.body, "Go in Practice")
	assert.Contains(t, msg.body, "150,000")
	assert.Contains(t, msg.body, "135,000")
	assert.Contains(t, msg.body, "2024-03-20 10:30")
	assert.Contains(t, msg.body, "https://nashr.example")
}

func TestSendPurchaseRejected(t *testing.T) {
	n, sent := newTestService(t, true)

	notification := testNotification()
	notification.Reason = "transfer not found"
	require.NoError(t, n.SendPurchaseRejected(notification))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].body, "transfer not found")
}

func TestSendPurchaseApproved(t *testing.T) {
	n, sent := newTestService(t, true)

	require.NoError(t, n.SendPurchaseApproved(testNotification()))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].body, "Go in Practice")
}

func TestNotify_Skips(t *testing.T) {
	disabled, sent := newTestService(t, false)
	require.NoError(t, disabled.SendPurchaseCreated(testNotification()))
	assert.Empty(t, *sent)

	enabled, sent := newTestService(t, true)
	notification := testNotification()
	notification.UserEmail = ""
	require.NoError(t, enabled.SendPurchaseApproved(notification))
	assert.Empty(t, *sent)
}
