package messaging

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/metrics"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Channel is the delivery channel of a one-time password
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ParseChannel defaults to e-mail for anything but "sms"
func ParseChannel(s string) Channel {
	if strings.EqualFold(strings.TrimSpace(s), string(ChannelSMS)) {
		return ChannelSMS
	}
	return ChannelEmail
}

// Recipient identifies who receives a one-time password
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// ErrNoAddress is returned when the recipient has no address for the channel
var ErrNoAddress = errors.New("recipient has no address for channel")

// OTPSender delivers one-time passwords
type OTPSender interface {
	SendOTP(ctx context.Context, channel Channel, to Recipient, code string, ttl time.Duration) error
}

// Dispatcher routes OTP messages to the e-mail or SMS provider. A nil provider
// means the channel is not configured and the code is only logged.
type Dispatcher struct {
	mail        EmailSender
	sms         TextSender
	mailBreaker *CircuitBreaker
	smsBreaker  *CircuitBreaker
	metrics     *metrics.Metrics
}

func NewDispatcher(mail EmailSender, sms TextSender, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		mail:        mail,
		sms:         sms,
		mailBreaker: NewCircuitBreaker("smtp", 5, 2*time.Minute),
		smsBreaker:  NewCircuitBreaker("sms", 5, 2*time.Minute),
		metrics:     m,
	}
}

// SendOTP sends code over the requested channel
func (d *Dispatcher) SendOTP(ctx context.Context, channel Channel, to Recipient, code string, ttl time.Duration) error {
	log := logger.FromContext(ctx)

	var err error
	switch channel {
	case ChannelSMS:
		if to.Phone == "" {
			return ErrNoAddress
		}
		if d.sms == nil {
			log.Warn("SMS delivery not configured, OTP logged only", zap.String("phone", to.Phone), zap.String("otp", code))
			return nil
		}
		err = d.smsBreaker.Execute(func() error {
			return d.sms.SendText(ctx, to.Phone, otpText(code, ttl))
		})
	default:
		channel = ChannelEmail
		if to.Email == "" {
			return ErrNoAddress
		}
		if d.mail == nil {
			log.Warn("e-mail delivery not configured, OTP logged only", zap.String("email", to.Email), zap.String("otp", code))
			return nil
		}
		err = d.mailBreaker.Execute(func() error {
			return d.mail.SendEmail(ctx, to.Email, otpSubject, otpEmailBody(to.Name, code, ttl))
		})
	}

	d.metrics.MessageDispatched(string(channel), err)
	if err != nil {
		log.Error("OTP delivery failed", zap.String("channel", string(channel)), zap.Error(err))
		return fmt.Errorf("send otp via %s: %w", channel, err)
	}
	log.Info("OTP sent", zap.String("channel", string(channel)))
	return nil
}

const otpSubject = "Κωδικός επιβεβαίωσης σύνδεσης με μεσίτη"

func otpEmailBody(name, code string, ttl time.Duration) string {
	greeting := "Γεια σας"
	if name != "" {
		greeting += " " + name
	}
	return fmt.Sprintf("%s,\n\nΟ κωδικός επιβεβαίωσης είναι: %s\n\nΟ κωδικός λήγει σε %d λεπτά.\n",
		greeting, code, int(ttl.Minutes()))
}

func otpText(code string, ttl time.Duration) string {
	return fmt.Sprintf("Ο κωδικός επιβεβαίωσης είναι: %s (ισχύει για %d λεπτά)", code, int(ttl.Minutes()))
}

// GenerateCode returns a numeric code of the given length from crypto/rand
func GenerateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
