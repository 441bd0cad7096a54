package amqp

import (
	"encoding/json"
	"time"
)

// EvaluationRequestedMessage asks the worker to run one evaluation
// pass for a user. Producers are the components that mutate financial
// data (account writes, transaction imports, app foreground).
type EvaluationRequestedMessage struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AchievementUnlockedMessage announces a NewlyCompleted achievement.
// Published at most once per (user, achievement) pair over its
// lifetime; the notification layer turns it into a one-shot toast.
type AchievementUnlockedMessage struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	Title         string    `json:"title"`
	RewardPoints  int64     `json:"reward_points"`
	Timestamp     time.Time `json:"timestamp"`
}

// RedemptionSettledMessage announces a successful redemption together
// with the monetary value owed to the user.
type RedemptionSettledMessage struct {
	UserID        string    `json:"user_id"`
	Points        int64     `json:"points"`
	MonetaryValue string    `json:"monetary_value"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewEvaluationRequestedMessage creates an evaluation request for a user.
func NewEvaluationRequestedMessage(userID, reason string) *EvaluationRequestedMessage {
	return &EvaluationRequestedMessage{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EvaluationRequestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EvaluationRequestedMessageFromJSON creates a message from JSON bytes
func EvaluationRequestedMessageFromJSON(data []byte) (*EvaluationRequestedMessage, error) {
	var msg EvaluationRequestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToJSON converts the message to JSON bytes
func (m *AchievementUnlockedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToJSON converts the message to JSON bytes
func (m *RedemptionSettledMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
