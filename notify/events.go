// Package notify implements the Catenis WebSocket notification channel.
//
// A Channel is bound to a single device and notification event. Once
// opened it delivers decoded events on Events() and reconnects on its own
// after transient failures, with capped exponential backoff.
package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind identifies a Catenis notification event.
type EventKind string

const (
	// NewMessageReceived signals that a message addressed to the device has
	// arrived.
	NewMessageReceived EventKind = "new-msg-received"
	// SentMessageRead signals that a message sent by the device has been
	// read by its target device.
	SentMessageRead EventKind = "sent-msg-read"
	// AssetReceived signals that an asset amount has been received.
	AssetReceived EventKind = "asset-received"
	// AssetConfirmed signals that a received asset amount has been
	// confirmed on the blockchain.
	AssetConfirmed EventKind = "asset-confirmed"
	// FinalMessageProgress signals the final status of an asynchronous
	// message processing operation.
	FinalMessageProgress EventKind = "final-msg-progress"
)

// Event is one notification delivered by the server. Data holds the raw
// event payload; use the Decode helpers (or unmarshal it directly) to get
// a typed value.
type Event struct {
	Name EventKind       `json:"eventName"`
	Data json.RawMessage `json:"data"`
}

// DeviceInfo identifies a virtual device in a notification payload.
type DeviceInfo struct {
	DeviceID     string `json:"deviceId"`
	Name         string `json:"name,omitempty"`
	ProdUniqueID string `json:"prodUniqueId,omitempty"`
}

// ProcessError describes why an asynchronous message operation failed.
type ProcessError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ProcessProgressDone is the final processing status carried by a
// final-msg-progress event. Done is always true.
type ProcessProgressDone struct {
	BytesProcessed int           `json:"bytesProcessed"`
	Done           bool          `json:"done"`
	Success        bool          `json:"success"`
	Error          *ProcessError `json:"error,omitempty"`
	FinishDate     time.Time     `json:"finishDate"`
}

// ProcessSuccess carries the outcome of a successfully finished
// asynchronous message operation.
type ProcessSuccess struct {
	MessageID string `json:"messageId"`
}

// NewMessageReceivedData is the payload of a new-msg-received event.
type NewMessageReceivedData struct {
	MessageID    string     `json:"messageId"`
	From         DeviceInfo `json:"from"`
	ReceivedDate time.Time  `json:"receivedDate"`
}

// SentMessageReadData is the payload of a sent-msg-read event.
type SentMessageReadData struct {
	MessageID string     `json:"messageId"`
	To        DeviceInfo `json:"to"`
	ReadDate  time.Time  `json:"readDate"`
}

// AssetReceivedData is the payload of an asset-received event.
type AssetReceivedData struct {
	AssetID      string     `json:"assetId"`
	Amount       float64    `json:"amount"`
	Issuer       DeviceInfo `json:"issuer"`
	From         DeviceInfo `json:"from"`
	ReceivedDate time.Time  `json:"receivedDate"`
}

// AssetConfirmedData is the payload of an asset-confirmed event.
type AssetConfirmedData struct {
	AssetID       string     `json:"assetId"`
	Amount        float64    `json:"amount"`
	Issuer        DeviceInfo `json:"issuer"`
	From          DeviceInfo `json:"from"`
	ConfirmedDate time.Time  `json:"confirmedDate"`
}

// FinalMessageProgressData is the payload of a final-msg-progress event.
type FinalMessageProgressData struct {
	EphemeralMessageID string              `json:"ephemeralMessageId"`
	Action             string              `json:"action"`
	Progress           ProcessProgressDone `json:"progress"`
	Result             *ProcessSuccess     `json:"result,omitempty"`
}

// DecodeNewMessageReceived decodes the event payload as a new-msg-received
// notification.
func (e Event) DecodeNewMessageReceived() (*NewMessageReceivedData, error) {
	return decodeAs[NewMessageReceivedData](e, NewMessageReceived)
}

// DecodeSentMessageRead decodes the event payload as a sent-msg-read
// notification.
func (e Event) DecodeSentMessageRead() (*SentMessageReadData, error) {
	return decodeAs[SentMessageReadData](e, SentMessageRead)
}

// DecodeAssetReceived decodes the event payload as an asset-received
// notification.
func (e Event) DecodeAssetReceived() (*AssetReceivedData, error) {
	return decodeAs[AssetReceivedData](e, AssetReceived)
}

// DecodeAssetConfirmed decodes the event payload as an asset-confirmed
// notification.
func (e Event) DecodeAssetConfirmed() (*AssetConfirmedData, error) {
	return decodeAs[AssetConfirmedData](e, AssetConfirmed)
}

// DecodeFinalMessageProgress decodes the event payload as a
// final-msg-progress notification.
func (e Event) DecodeFinalMessageProgress() (*FinalMessageProgressData, error) {
	return decodeAs[FinalMessageProgressData](e, FinalMessageProgress)
}

func decodeAs[T any](e Event, want EventKind) (*T, error) {
	if e.Name != want {
		return nil, fmt.Errorf("notify: event is %q, not %q", e.Name, want)
	}
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("notify: decode %s payload: %w", want, err)
	}
	return &data, nil
}
