// Package notify delivers out-of-band messages (SMS) and manages expiring one-time codes.
package notify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"campus-tracker-service/internal/cache"
)

type Sender interface {
	Send(ctx context.Context, destination, message string) error
}

// LogSender stands in for an SMS gateway and only records what would be sent.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

type Message struct {
	Destination string
	Body        string
	SentAt      time.Time
}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, destination, message string) error {
	if destination == "" {
		return errors.New("notify: empty destination")
	}
	s.mu.Lock()
	s.sent = append(s.sent, Message{Destination: destination, Body: message, SentAt: time.Now().UTC()})
	s.mu.Unlock()
	slog.Info("sms sent", "to", destination, "body", message)
	return nil
}

// Sent returns the messages delivered so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// GenerateCode returns a random six digit numeric code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// OTPStore issues codes keyed by destination and keeps them in the cache until they expire.
type OTPStore struct {
	kv     cache.Store
	sender Sender
	ttl    time.Duration
}

func NewOTPStore(kv cache.Store, sender Sender, ttl time.Duration) *OTPStore {
	return &OTPStore{kv: kv, sender: sender, ttl: ttl}
}

func otpKey(destination string) string {
	return fmt.Sprintf("otp:%s", destination)
}

// Issue generates a code, stores it for the configured TTL and sends it to destination.
func (o *OTPStore) Issue(ctx context.Context, destination string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := o.kv.Set(ctx, otpKey(destination), code, o.ttl); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	msg := fmt.Sprintf("Your campus transport OTP is %s", code)
	if err := o.sender.Send(ctx, destination, msg); err != nil {
		return "", fmt.Errorf("send otp: %w", err)
	}
	return code, nil
}

// Verify reports whether code matches the live code for destination. A match consumes it.
func (o *OTPStore) Verify(ctx context.Context, destination, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	ok, err := o.kv.DelIfEqual(ctx, otpKey(destination), code)
	if err != nil {
		return false, fmt.Errorf("verify otp: %w", err)
	}
	return ok, nil
}
