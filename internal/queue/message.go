package queue

import (
	"encoding/json"
	"errors"
)

// MessageVersion is the current payload version.
const MessageVersion = 1

// Message asks a worker to run the analysis pipeline for one document.
type Message struct {
	DocumentID string `json:"documentId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.DocumentID == "" {
		return Message{}, errors.New("message missing documentId")
	}
	return msg, nil
}
