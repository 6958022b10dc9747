package data

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a keyed lookup matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

// User maps to the users collection. Users are owned by the external entity
// store; this module only reads them.
type User struct {
	ID           int64     `bson:"_id" json:"id"`
	FirstName    string    `bson:"first_name" json:"fName"`
	LastName     string    `bson:"last_name" json:"lName"`
	ProfilePhoto string    `bson:"profile_photo,omitempty" json:"profilePhoto,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// DisplayName is the name shown to other users.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Group maps to the groups collection.
type Group struct {
	ID        int64     `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// GroupMember binds a user to a group.
type GroupMember struct {
	ID        int64     `bson:"_id" json:"id"`
	GroupID   int64     `bson:"group_id" json:"groupId"`
	MemberID  int64     `bson:"member_id" json:"memberId"`
	Approved  bool      `bson:"approved" json:"approved"`
	Role      string    `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// MessageThread is either group scoped (GroupID set) or direct (exactly two
// participants, DirectKey set).
type MessageThread struct {
	ID        int64     `bson:"_id" json:"id"`
	GroupID   *int64    `bson:"group_id,omitempty" json:"groupId,omitempty"`
	DirectKey string    `bson:"direct_key,omitempty" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`

	// Resolved context, never persisted on the thread document.
	Participants []*MessageThreadParticipant `bson:"-" json:"participants,omitempty"`
	Group        *Group                      `bson:"-" json:"group,omitempty"`
}

// IsGroup reports whether the thread belongs to a group.
func (t *MessageThread) IsGroup() bool { return t.GroupID != nil }

// HasParticipant reports whether userID is one of the thread's participants.
func (t *MessageThread) HasParticipant(userID int64) bool {
	for _, p := range t.Participants {
		if p.ParticipantID == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the participant that is not userID, or nil.
func (t *MessageThread) Counterpart(userID int64) *MessageThreadParticipant {
	for _, p := range t.Participants {
		if p.ParticipantID != userID {
			return p
		}
	}
	return nil
}

// DirectKey returns the order-independent key of the direct thread between a and b.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// MessageThreadParticipant binds a user to a thread. For direct threads it
// caches the other side's display data as it was at creation time.
type MessageThreadParticipant struct {
	ID               int64     `bson:"_id" json:"id"`
	ThreadID         int64     `bson:"thread_id" json:"threadId"`
	ParticipantID    int64     `bson:"participant_id" json:"participantId"`
	CounterpartName  string    `bson:"counterpart_name,omitempty" json:"counterpartName,omitempty"`
	CounterpartPhoto string    `bson:"counterpart_photo,omitempty" json:"counterpartPhoto,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"createdAt"`
}

// MessageStatus tracks delivery progress. Only StatusSent is written today.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// MessageType is the declared payload variant of a message.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeAudio MessageType = "audio"
	TypeFile  MessageType = "file"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeAudio, TypeFile:
		return true
	}
	return false
}

// Message maps to the messages collection.
type Message struct {
	ID          int64         `bson:"_id" json:"id"`
	ThreadID    int64         `bson:"thread_id" json:"threadId"`
	SenderID    int64         `bson:"sender_id" json:"senderId"`
	Text        string        `bson:"text,omitempty" json:"text,omitempty"`
	Image       string        `bson:"image,omitempty" json:"image,omitempty"`
	Audio       string        `bson:"audio,omitempty" json:"audio,omitempty"`
	File        string        `bson:"file,omitempty" json:"file,omitempty"`
	FileName    string        `bson:"file_name,omitempty" json:"fileName,omitempty"`
	Status      MessageStatus `bson:"status" json:"status"`
	MessageType MessageType   `bson:"message_type" json:"messageType"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// NotificationToken is a device push token owned by one user.
type NotificationToken struct {
	ID        int64     `bson:"_id" json:"id"`
	UserID    int64     `bson:"user_id" json:"userId"`
	Token     string    `bson:"token" json:"token"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
