package model

// Role represents the author of a chat turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatTurn is one immutable message in a user's conversation.
type ChatTurn struct {
	ID        uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    string `json:"user_id" gorm:"index;not null"`
	Role      Role   `json:"role" gorm:"not null"`
	Content   string `json:"content" gorm:"not null"`
	Timestamp string `json:"timestamp" gorm:"not null"`
}

// TableName pins the table name.
func (ChatTurn) TableName() string {
	return "chat_turns"
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}
