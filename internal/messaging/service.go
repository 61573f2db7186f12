// Package messaging provides pluggable outbound message channels for
// reminder delivery outside the conversational runtime.
package messaging

import (
	"context"
	"fmt"
	"regexp"

	"github.com/oumacare/ancare/internal/models"
)

// MinPhoneDigits is the minimum digit count accepted for a recipient.
const MinPhoneDigits = 6

// phoneNumberRegex matches everything that is not a digit, for recipient
// canonicalization.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Returns the canonicalized recipient and an
	// error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error
}

// CanonicalizePhone strips non-digits from a phone number and validates the
// result has at least MinPhoneDigits digits.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("%w: %q has fewer than %d digits", models.ErrRecipientTooShort, canonical, MinPhoneDigits)
	}
	return canonical, nil
}

// SMSHandler adapts a messaging Service to the reminder delivery-handler
// interface, for configurations that send reminders over SMS instead of
// resuming a conversational session.
type SMSHandler struct {
	svc Service
}

// NewSMSHandler creates a reminder handler over the given message channel.
func NewSMSHandler(svc Service) *SMSHandler {
	return &SMSHandler{svc: svc}
}

// Deliver sends the reminder's rendered message to the patient's phone.
func (h *SMSHandler) Deliver(ctx context.Context, rem models.Reminder) error {
	to, err := h.svc.ValidateAndCanonicalizeRecipient(rem.Record.Phone)
	if err != nil {
		return err
	}
	return h.svc.SendMessage(ctx, to, rem.Message)
}
