package store

import (
	"context"

	"github.com/pliu/quickchat/internal/models"
)

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUsersExcept(ctx context.Context, id int64) ([]models.User, error)
	VerifyUser(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, id int64, fullName, bio, profilePic string) error

	// Message operations. SaveMessage assigns the id, the creation time and
	// seen=false; ids increase monotonically so (created_at, id) is a stable
	// display order for a conversation.
	SaveMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetConversation(ctx context.Context, userID, otherID int64) ([]models.Message, error)
	CountUnseen(ctx context.Context, senderID, receiverID int64) (int, error)
	MarkSeen(ctx context.Context, id int64) error
	MarkManySeen(ctx context.Context, ids []int64) error
}
