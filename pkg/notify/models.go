package notify

// MessageType defines the type of a pushed status message.
type MessageType string

const (
	// MessageTypeDepositStatus is for messages reflecting a deposit state
	// transition.
	MessageTypeDepositStatus MessageType = "depositStatus"
)

// Message represents a generic push message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// DepositStatusPayload is the payload for a depositStatus message.
type DepositStatusPayload struct {
	UserID      string `json:"user_id"`
	DepositID   string `json:"deposit_id"`
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"`
	NewBalance  string `json:"new_balance,omitempty"`
}
