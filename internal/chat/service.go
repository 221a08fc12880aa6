package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pliu/quickchat/internal/models"
	"github.com/pliu/quickchat/internal/store"
	"github.com/pliu/quickchat/internal/upload"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyMessage rejects a send carrying neither text nor an image.
var ErrEmptyMessage = errors.New("message must contain text or an image")

// Router is the delivery side of the websocket hub.
type Router interface {
	Deliver(msg *models.Message) bool
}

// Service orchestrates conversation operations: store writes, unseen-count
// bookkeeping and best-effort live delivery. Both send paths (REST and the
// live connection) go through here.
type Service struct {
	Store    store.Store
	Router   Router
	Uploader upload.Uploader
}

func New(st store.Store, router Router, uploader upload.Uploader) *Service {
	return &Service{Store: st, Router: router, Uploader: uploader}
}

// ListPartners returns every other user plus a map of unseen-message counts
// keyed by sender id. The per-partner counts run concurrently; the whole
// operation fails if any single count does.
func (s *Service) ListPartners(ctx context.Context, userID int64) ([]models.User, map[int64]int, error) {
	users, err := s.Store.GetUsersExcept(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list users: %w", err)
	}

	unseen := make(map[int64]int)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range users {
		u := u
		g.Go(func() error {
			count, err := s.Store.CountUnseen(gctx, u.ID, userID)
			if err != nil {
				return err
			}
			if count > 0 {
				mu.Lock()
				unseen[u.ID] = count
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to count unseen messages: %w", err)
	}

	return users, unseen, nil
}

// FetchHistory returns the full conversation between the two users, oldest
// first, and marks the unseen incoming messages seen. The returned slice
// reflects the state before the mark; marking only the ids that came back
// means a message sent mid-fetch is never retroactively marked.
func (s *Service) FetchHistory(ctx context.Context, userID, otherID int64) ([]models.Message, error) {
	messages, err := s.Store.GetConversation(ctx, userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	var unseenIDs []int64
	for _, m := range messages {
		if m.SenderID == otherID && m.ReceiverID == userID && !m.Seen {
			unseenIDs = append(unseenIDs, m.ID)
		}
	}
	if len(unseenIDs) > 0 {
		if err := s.Store.MarkManySeen(ctx, unseenIDs); err != nil {
			// The next fetch clears the backlog, so don't fail the read.
			log.Printf("failed to mark %d messages seen: %v", len(unseenIDs), err)
		}
	}

	return messages, nil
}

// SendMessage validates, uploads the image if any, persists, then attempts
// live delivery. The store write is the transaction boundary: once it
// commits the send has succeeded, whatever happens to the push.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID int64, text, image string) (*models.Message, error) {
	if text == "" && image == "" {
		return nil, ErrEmptyMessage
	}

	var imageURL string
	if image != "" {
		url, err := s.Uploader.Upload(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("image upload failed: %w", err)
		}
		imageURL = url
	}

	saved, err := s.Store.SaveMessage(ctx, &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      imageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if s.Router != nil {
		s.Router.Deliver(saved)
	}

	return saved, nil
}

// MarkSeen flips a message to seen. Idempotent; a missing id is treated as
// success since this is cleanup of a notification, not a critical write.
func (s *Service) MarkSeen(ctx context.Context, id int64) error {
	if err := s.Store.MarkSeen(ctx, id); err != nil {
		return fmt.Errorf("failed to mark message seen: %w", err)
	}
	return nil
}
