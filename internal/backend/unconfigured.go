package backend

import (
	"context"
	"time"

	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

// Unconfigured is the backend handle used when no credentials are
// present. Writes fail fast with ErrNotConfigured; queries return
// benign empty results so the caller degrades instead of crashing.
type Unconfigured struct{}

var _ Backend = Unconfigured{}

func (Unconfigured) InsertMessage(context.Context, models.Message) (*models.Message, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) ListConversation(context.Context, string, string) ([]models.Message, error) {
	return nil, nil
}

func (Unconfigured) ListMessagesInvolving(context.Context, string) ([]models.Message, error) {
	return nil, nil
}

func (Unconfigured) MarkMessagesRead(context.Context, []string) error {
	return ErrNotConfigured
}

func (Unconfigured) MarkConversationRead(context.Context, string, string) error {
	return ErrNotConfigured
}

func (Unconfigured) CountUnread(context.Context, string) (int, error) {
	return 0, nil
}

func (Unconfigured) DeleteMessage(context.Context, string) error {
	return ErrNotConfigured
}

func (Unconfigured) UpsertPresence(context.Context, models.PresenceRecord) error {
	return ErrNotConfigured
}

func (Unconfigured) SetPresenceStatus(context.Context, string, string, time.Time) error {
	return ErrNotConfigured
}

func (Unconfigured) ListPresence(context.Context, string) ([]models.PresenceRecord, error) {
	return nil, nil
}

func (Unconfigured) GetPresence(context.Context, string) (*models.PresenceRecord, error) {
	return nil, nil
}

func (Unconfigured) CountPresence(context.Context, string) (int, error) {
	return 0, nil
}

func (Unconfigured) CurrentIdentity(context.Context) (*models.Identity, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SignUp(context.Context, string, string, string) (*models.Identity, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SignIn(context.Context, string, string) (*models.Identity, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SignOut(context.Context) error {
	return nil
}

func (Unconfigured) ExchangeSession(context.Context, string, string) (*models.Identity, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SubscribeChanges(context.Context, string, func(ChangeEvent)) (*Subscription, error) {
	return NoopSubscription(), nil
}

func (Unconfigured) Close() error { return nil }
