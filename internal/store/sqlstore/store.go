package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pliu/quickchat/internal/models"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	s.createTables()
	return s, nil
}

func (s *SQLStore) createTables() {
	// Simplified for brevity, ideally use migrations
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL,
		password TEXT NOT NULL,
		bio TEXT,
		profile_pic TEXT,
		is_verified BOOLEAN DEFAULT FALSE,
		verification_token TEXT
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL,
		receiver_id INTEGER NOT NULL,
		text TEXT,
		image TEXT,
		seen BOOLEAN DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (sender_id) REFERENCES users(id),
		FOREIGN KEY (receiver_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id, seen);
	`

	if s.driverName == "postgres" {
		// Adjust for Postgres syntax
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMP")
	}

	_, err := s.db.Exec(query)
	if err != nil {
		panic(err)
	}
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

const userColumns = "id, email, full_name, password, COALESCE(bio, ''), COALESCE(profile_pic, ''), is_verified"

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.Password, &user.Bio, &user.ProfilePic, &user.IsVerified)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	query := s.rebind("INSERT INTO users (email, full_name, password, bio, profile_pic, is_verified, verification_token) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id")
	return s.db.QueryRowContext(ctx, query, user.Email, user.FullName, user.Password, user.Bio, user.ProfilePic, user.IsVerified, user.VerificationToken).Scan(&user.ID)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE email = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) GetUsersExcept(ctx context.Context, id int64) ([]models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id != ? ORDER BY full_name ASC")
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Email, &user.FullName, &user.Password, &user.Bio, &user.ProfilePic, &user.IsVerified); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *SQLStore) VerifyUser(ctx context.Context, token string) error {
	query := s.rebind("UPDATE users SET is_verified = TRUE, verification_token = '' WHERE verification_token = ?")
	result, err := s.db.ExecContext(ctx, query, token)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func (s *SQLStore) UpdateProfile(ctx context.Context, id int64, fullName, bio, profilePic string) error {
	query := s.rebind("UPDATE users SET full_name = ?, bio = ?, profile_pic = ? WHERE id = ?")
	_, err := s.db.ExecContext(ctx, query, fullName, bio, profilePic, id)
	return err
}

func (s *SQLStore) SaveMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	saved := *msg
	saved.Seen = false
	saved.CreatedAt = time.Now().UTC()
	query := s.rebind("INSERT INTO messages (sender_id, receiver_id, text, image, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id")
	err := s.db.QueryRowContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, saved.CreatedAt).Scan(&saved.ID)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *SQLStore) GetConversation(ctx context.Context, userID, otherID int64) ([]models.Message, error) {
	query := s.rebind(`
		SELECT id, sender_id, receiver_id, COALESCE(text, ''), COALESCE(image, ''), seen, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, userID, otherID, otherID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.Seen, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLStore) CountUnseen(ctx context.Context, senderID, receiverID int64) (int, error) {
	var count int
	query := s.rebind("SELECT COUNT(*) FROM messages WHERE sender_id = ? AND receiver_id = ? AND seen = FALSE")
	err := s.db.QueryRowContext(ctx, query, senderID, receiverID).Scan(&count)
	return count, err
}

// MarkSeen is idempotent; a missing id is not an error.
func (s *SQLStore) MarkSeen(ctx context.Context, id int64) error {
	query := s.rebind("UPDATE messages SET seen = TRUE WHERE id = ?")
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

func (s *SQLStore) MarkManySeen(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := s.rebind("UPDATE messages SET seen = TRUE WHERE id IN (" + placeholders + ")")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
