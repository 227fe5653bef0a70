package notificator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

type fakeTelegram struct {
	mu       sync.Mutex
	messages []string
	chats    []string
	fail     bool
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"alerts","username":"alerts_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.fail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"internal"}`))
			return
		}
		_ = r.ParseMultipartForm(1 << 20)
		f.mu.Lock()
		f.messages = append(f.messages, r.FormValue("text"))
		f.chats = append(f.chats, r.FormValue("chat_id"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100123,"type":"group"},"text":"ok"}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"not found"}`))
	}
}

func (f *fakeTelegram) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type fakeSendGrid struct {
	mu       sync.Mutex
	auth     string
	subjects []string
	html     []string
	status   int
}

func (f *fakeSendGrid) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != sendPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var body struct {
		Subject string `json:"subject"`
		Content []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.auth = r.Header.Get("Authorization")
	f.subjects = append(f.subjects, body.Subject)
	for _, c := range body.Content {
		if c.Type == "text/html" {
			f.html = append(f.html, c.Value)
		}
	}
	f.mu.Unlock()

	w.WriteHeader(f.status)
	if f.status >= 400 {
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}
}

func newTelegram(t *testing.T, fake *fakeTelegram) *TelegramNotificator {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tel, err := NewTelegramNotificator(logger.NewNop(), "123:test-token", "-100123", bot.WithServerURL(srv.URL))
	require.NoError(t, err)
	return tel
}

func newEmail(t *testing.T, fake *fakeSendGrid) *EmailNotificator {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	email, err := NewEmailNotificator(logger.NewNop(), "SG.test", "alerts@example.com", "ops@example.com")
	require.NoError(t, err)
	return email.withHost(srv.URL)
}

func testAlert() *models.Alert {
	return &models.Alert{
		Title:       "Mint not recorded",
		Kind:        "mint",
		Subject:     "claim-1",
		MintAddress: "MintAddr111",
		Error:       "db down",
	}
}

func TestTelegramSendNotification(t *testing.T) {
	fake := &fakeTelegram{}
	tel := newTelegram(t, fake)

	require.NoError(t, tel.SendNotification(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, fake.sent())
	assert.Contains(t, fake.chats[0], "-100123")
}

func TestTelegramSendNotificationFailure(t *testing.T) {
	tel := newTelegram(t, &fakeTelegram{fail: true})
	assert.Error(t, tel.SendNotification(context.Background(), "hello"))
}

func TestNewTelegramNotificatorRequiresChat(t *testing.T) {
	_, err := NewTelegramNotificator(logger.NewNop(), "123:test-token", "")
	assert.Error(t, err)
}

func TestEmailSendNotification(t *testing.T) {
	fake := &fakeSendGrid{status: http.StatusAccepted}
	email := newEmail(t, fake)

	require.NoError(t, email.SendNotification(context.Background(), "subject line", "body"))
	assert.Equal(t, "Bearer SG.test", fake.auth)
	assert.Equal(t, []string{"subject line"}, fake.subjects)
}

func TestEmailEscapesHTMLBody(t *testing.T) {
	fake := &fakeSendGrid{status: http.StatusAccepted}
	email := newEmail(t, fake)

	msg := `rpc error: <script>alert("x")</script> & more`
	require.NoError(t, email.SendNotification(context.Background(), "subject line", msg))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.html, 1)
	assert.Equal(t, "<pre>rpc error: &lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt; &amp; more</pre>", fake.html[0])
}

func TestEmailSendNotificationRejected(t *testing.T) {
	email := newEmail(t, &fakeSendGrid{status: http.StatusUnauthorized})

	err := email.SendNotification(context.Background(), "subject", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestNewEmailNotificatorValidation(t *testing.T) {
	_, err := NewEmailNotificator(logger.NewNop(), "", "a@example.com", "b@example.com")
	assert.Error(t, err)
	_, err = NewEmailNotificator(logger.NewNop(), "SG.key", "", "b@example.com")
	assert.Error(t, err)
}

func TestSendAlertFansOut(t *testing.T) {
	tg := &fakeTelegram{}
	sg := &fakeSendGrid{status: http.StatusAccepted}
	n := NewNotificator(logger.NewNop(), newTelegram(t, tg), newEmail(t, sg))

	n.SendAlert(context.Background(), testAlert())

	sent := tg.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Mint not recorded")
	assert.Contains(t, sent[0], "mint: MintAddr111")
	assert.Equal(t, []string{"[vaultminter] Mint not recorded"}, sg.subjects)
}

func TestSendAlertSurvivesChannelFailure(t *testing.T) {
	sg := &fakeSendGrid{status: http.StatusAccepted}
	n := NewNotificator(logger.NewNop(), newTelegram(t, &fakeTelegram{fail: true}), newEmail(t, sg))

	n.SendAlert(context.Background(), testAlert())
	assert.Len(t, sg.subjects, 1)
}

func TestSendAlertWithoutChannels(t *testing.T) {
	n := NewNotificator(logger.NewNop(), nil, nil)
	assert.NotPanics(t, func() {
		n.SendAlert(context.Background(), testAlert())
		n.SendAlert(context.Background(), nil)
	})
}

func TestSafeCallRecovers(t *testing.T) {
	n := NewNotificator(logger.NewNop(), nil, nil)
	assert.NotPanics(t, func() {
		n.safeCall(func() { panic("boom") }, "test")
	})
}
