package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"realestate-platform/internal/config"
	"realestate-platform/internal/metrics"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMail struct {
	to, subject, body string
	err               error
	calls             int
}

func (f *fakeMail) SendEmail(_ context.Context, to, subject, body string) error {
	f.calls++
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

type fakeText struct {
	phone, text string
}

func (f *fakeText) SendText(_ context.Context, phone, text string) error {
	f.phone, f.text = phone, text
	return nil
}

// dispatched reads the e-mail counter for outcome from the registry
func dispatched(t *testing.T, m *metrics.Metrics, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "test_messages_dispatched_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["channel"] == "email" && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCircuitBreakerOpensAndResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", 3, time.Minute)
	cb.now = func() time.Time { return now }

	fail := errors.New("boom")
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return fail }), fail)
	}
	isOpen, failures, total := cb.GetStatus()
	assert.True(t, isOpen)
	assert.Equal(t, 3, failures)
	assert.Equal(t, 3, total)

	called := false
	assert.ErrorIs(t, cb.Execute(func() error { called = true; return nil }), ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	isOpen, _, _ = cb.GetStatus()
	assert.False(t, isOpen)
}

func TestCircuitBreakerFailureRate(t *testing.T) {
	cb := NewCircuitBreaker("test", 100, time.Minute)
	for i := 0; i < 12; i++ {
		cb.RecordSuccess()
	}
	for i := 0; i < 8; i++ {
		cb.RecordFailure()
	}
	isOpen, _, _ := cb.GetStatus()
	assert.True(t, isOpen)
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[0-9]{6}$`, code)
}

func TestParseChannel(t *testing.T) {
	assert.Equal(t, ChannelSMS, ParseChannel(" SMS "))
	assert.Equal(t, ChannelEmail, ParseChannel(""))
	assert.Equal(t, ChannelEmail, ParseChannel("fax"))
}

func TestDispatcherEmail(t *testing.T) {
	m := metrics.New("test")
	mail := &fakeMail{}
	d := NewDispatcher(mail, nil, m)

	err := d.SendOTP(context.Background(), ChannelEmail, Recipient{Name: "Ελένη", Email: "eleni@example.com"}, "123456", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "eleni@example.com", mail.to)
	assert.Contains(t, mail.body, "123456")
	assert.Contains(t, mail.body, "15")
	assert.Equal(t, float64(1), dispatched(t, m, "sent"))

	mail.err = errors.New("relay down")
	err = d.SendOTP(context.Background(), ChannelEmail, Recipient{Email: "eleni@example.com"}, "123456", 15*time.Minute)
	assert.Error(t, err)
	assert.Equal(t, float64(1), dispatched(t, m, "failed"))
}

func TestDispatcherSMS(t *testing.T) {
	sms := &fakeText{}
	d := NewDispatcher(nil, sms, nil)

	err := d.SendOTP(context.Background(), ChannelSMS, Recipient{Email: "x@example.com"}, "123456", 15*time.Minute)
	assert.ErrorIs(t, err, ErrNoAddress)

	err = d.SendOTP(context.Background(), ChannelSMS, Recipient{Phone: "+306900000000"}, "654321", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "+306900000000", sms.phone)
	assert.Contains(t, sms.text, "654321")
}

func TestDispatcherUnconfiguredChannelLogsOnly(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	assert.NoError(t, d.SendOTP(context.Background(), ChannelEmail, Recipient{Email: "a@example.com"}, "111111", time.Minute))
}

func TestSMSGateway(t *testing.T) {
	var got smsRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.To == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid number"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewSMSGateway(config.SMSConfig{GatewayURL: srv.URL, Token: "tok", Sender: "Estates", RequestsPerSecond: 100, TimeoutSeconds: 5})

	require.NoError(t, g.SendText(context.Background(), "+30690", "hello"))
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, smsRequest{To: "+30690", From: "Estates", Message: "hello"}, got)

	err := g.SendText(context.Background(), "bad", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number")
}
