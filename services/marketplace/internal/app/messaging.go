package app

import (
	"context"
	"errors"
	"strings"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/events"
	"vendorhub/pkg/queue"
	"vendorhub/pkg/store"
)

type ConversationInput struct {
	HostID     string `json:"hostId"`
	ProviderID string `json:"providerId"`
	VendorID   string `json:"vendorId"`
}

// StartConversation opens a host/provider conversation, or returns the active
// one for the same participants and vendor. The caller fills one side; the
// provider may be implied by the vendor's owner.
func (a *App) StartConversation(ctx context.Context, actor domain.User, in ConversationInput) (domain.Conversation, bool, error) {
	in.HostID = strings.TrimSpace(in.HostID)
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	in.VendorID = strings.TrimSpace(in.VendorID)

	switch actor.Role {
	case domain.RoleHost:
		if in.HostID != "" && in.HostID != actor.ID {
			return domain.Conversation{}, false, ErrForbidden
		}
		in.HostID = actor.ID
	case domain.RoleProvider:
		if in.ProviderID != "" && in.ProviderID != actor.ID {
			return domain.Conversation{}, false, ErrForbidden
		}
		in.ProviderID = actor.ID
	}
	if in.VendorID != "" {
		v, ok, err := a.store.GetVendor(ctx, in.VendorID)
		if err != nil {
			return domain.Conversation{}, false, storeErr("fetch vendor", err)
		}
		if !ok {
			return domain.Conversation{}, false, ErrNotFound
		}
		if in.ProviderID == "" {
			in.ProviderID = v.OwnerID
		}
	}
	if in.HostID == "" {
		return domain.Conversation{}, false, validation.Field("hostId", "required", "hostId is required")
	}
	if in.ProviderID == "" {
		return domain.Conversation{}, false, validation.Field("providerId", "required", "providerId is required")
	}
	if err := a.checkParticipant(ctx, "hostId", in.HostID, domain.RoleHost); err != nil {
		return domain.Conversation{}, false, err
	}
	if err := a.checkParticipant(ctx, "providerId", in.ProviderID, domain.RoleProvider); err != nil {
		return domain.Conversation{}, false, err
	}

	now := a.now()
	c, created, err := a.store.OpenConversation(ctx, domain.Conversation{
		ID:         util.NewID(),
		HostID:     in.HostID,
		ProviderID: in.ProviderID,
		VendorID:   in.VendorID,
		Status:     domain.ConversationActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return domain.Conversation{}, false, storeErr("open conversation", err)
	}
	return c, created, nil
}

func (a *App) checkParticipant(ctx context.Context, field, userID string, role domain.UserRole) error {
	u, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return storeErr("fetch user", err)
	}
	if !ok {
		return ErrNotFound
	}
	if u.Role != role {
		return validation.Field(field, "role", field+" must reference a "+string(role))
	}
	return nil
}

func (a *App) ListConversations(ctx context.Context, actor domain.User) ([]domain.Conversation, error) {
	items, err := a.store.ListConversationsByUser(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	return items, nil
}

type ConversationPatch struct {
	Status string `json:"status" validate:"required,oneof=active archived"`
}

// SetConversationStatus archives or reactivates a conversation. Reactivating
// fails when another active conversation exists for the same participants.
func (a *App) SetConversationStatus(ctx context.Context, actor domain.User, id string, in ConversationPatch) (domain.Conversation, error) {
	if err := validation.Struct(in); err != nil {
		return domain.Conversation{}, err
	}
	if _, err := a.participantConversation(ctx, actor, id); err != nil {
		return domain.Conversation{}, err
	}
	c, err := a.store.SetConversationStatus(ctx, id, domain.ConversationStatus(in.Status))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Conversation{}, ErrConversationConflict
		}
		return domain.Conversation{}, storeErr("set conversation status", err)
	}
	return c, nil
}

type MessageInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// MessageSent is the payload of message.sent.
type MessageSent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
}

// SendMessage appends a message from one of the two participants and queues
// a notification for the other.
func (a *App) SendMessage(ctx context.Context, actor domain.User, conversationID string, in MessageInput) (domain.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return domain.Message{}, err
	}
	c, ok, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.Message{}, storeErr("fetch conversation", err)
	}
	if !ok {
		return domain.Message{}, ErrNotFound
	}
	if !c.HasParticipant(actor.ID) {
		return domain.Message{}, ErrForbidden
	}
	if c.Status == domain.ConversationArchived {
		return domain.Message{}, ErrConversationArchived
	}
	msg := domain.Message{
		ID:             util.NewID(),
		ConversationID: c.ID,
		SenderID:       actor.ID,
		Content:        in.Content,
		CreatedAt:      a.now(),
	}
	if err := a.store.AppendMessage(ctx, msg); err != nil {
		return domain.Message{}, storeErr("append message", err)
	}
	recipient := c.OtherParticipant(actor.ID)
	a.notifyMessage(ctx, actor, recipient, msg)
	a.publish(ctx, events.TypeMessageSent, MessageSent{
		MessageID:      msg.ID,
		ConversationID: c.ID,
		SenderID:       actor.ID,
		RecipientID:    recipient,
	})
	return msg, nil
}

// notifyMessage queues an email to the recipient. Failures are logged; the
// message itself is already stored.
func (a *App) notifyMessage(ctx context.Context, sender domain.User, recipientID string, msg domain.Message) {
	if a.notifications == nil {
		return
	}
	logger := util.LoggerFromContext(ctx)
	u, ok, err := a.store.GetUserByID(ctx, recipientID)
	if err != nil || !ok {
		logger.Warn("message notification skipped", "recipient_id", recipientID, "err", err)
		return
	}
	from := sender.Name
	if from == "" {
		from = sender.Email
	}
	_, err = a.notifications.Enqueue(ctx, queue.Notification{
		Kind:        queue.KindMessage,
		Channel:     domain.ChannelEmail,
		RecipientID: u.ID,
		Address:     u.Email,
		Subject:     "New message from " + from,
		Body:        preview(msg.Content, 200),
	})
	if err != nil {
		logger.Warn("enqueue message notification failed", "message_id", msg.ID, "err", err)
	}
}

func (a *App) ListMessages(ctx context.Context, actor domain.User, conversationID string) ([]domain.Message, error) {
	if _, err := a.participantConversation(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	items, err := a.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	return items, nil
}

// MarkRead flips isRead on messages the other participant sent.
func (a *App) MarkRead(ctx context.Context, actor domain.User, conversationID string) (int64, error) {
	c, err := a.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return 0, err
	}
	if !c.HasParticipant(actor.ID) {
		return 0, ErrForbidden
	}
	n, err := a.store.MarkMessagesRead(ctx, conversationID, actor.ID)
	if err != nil {
		return 0, storeErr("mark read", err)
	}
	return n, nil
}

// participantConversation loads a conversation visible to actor. Admins can
// see every conversation.
func (a *App) participantConversation(ctx context.Context, actor domain.User, id string) (domain.Conversation, error) {
	c, ok, err := a.store.GetConversation(ctx, id)
	if err != nil {
		return domain.Conversation{}, storeErr("fetch conversation", err)
	}
	if !ok {
		return domain.Conversation{}, ErrNotFound
	}
	if !c.HasParticipant(actor.ID) && !isAdmin(actor) {
		return domain.Conversation{}, ErrForbidden
	}
	return c, nil
}

func preview(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
