package models

import "time"

type User struct {
	ID                int64  `json:"id" bson:"_id"`
	Email             string `json:"email" bson:"email"`
	FullName          string `json:"fullName" bson:"full_name"`
	Password          string `json:"-" bson:"password"`
	Bio               string `json:"bio,omitempty" bson:"bio,omitempty"`
	ProfilePic        string `json:"profilePic,omitempty" bson:"profile_pic,omitempty"`
	IsVerified        bool   `json:"isVerified" bson:"is_verified"`
	VerificationToken string `json:"-" bson:"verification_token,omitempty"`
}

// Message is append-only once stored; only Seen ever changes, false to true.
type Message struct {
	ID         int64     `json:"id" bson:"_id"`
	SenderID   int64     `json:"senderId" bson:"sender_id"`
	ReceiverID int64     `json:"receiverId" bson:"receiver_id"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	Image      string    `json:"image,omitempty" bson:"image,omitempty"`
	Seen       bool      `json:"seen" bson:"seen"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}
