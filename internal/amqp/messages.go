package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Reasons attached to meal plan change events.
const (
	ReasonSaved  = "saved"
	ReasonMoved  = "moved"
	ReasonCopied = "copied"
)

var ErrMissingPlanID = errors.New("message has no meal plan id")

// MealPlanChangedMessage announces that a meal plan was edited. It carries
// only identifiers; the worker loads the current plan itself.
type MealPlanChangedMessage struct {
	PlanID    string    `json:"planId"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMealPlanChangedMessage(planID, userID, reason string) *MealPlanChangedMessage {
	return &MealPlanChangedMessage{
		PlanID:    planID,
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MealPlanChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MealPlanChangedMessageFromJSON decodes a message and rejects one without a plan id.
func MealPlanChangedMessageFromJSON(data []byte) (*MealPlanChangedMessage, error) {
	var msg MealPlanChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.PlanID == "" {
		return nil, ErrMissingPlanID
	}
	return &msg, nil
}
