package catenis

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Encoding identifies the text encoding of a message's contents.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf8"
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

// Storage identifies where a message's contents should be stored.
type Storage string

const (
	// StorageAuto stores the message in the blockchain transaction if it
	// fits, otherwise in the external repository.
	StorageAuto     Storage = "auto"
	StorageEmbedded Storage = "embedded"
	StorageExternal Storage = "external"
)

// MessageAction is the action performed, or to be performed, on a message.
type MessageAction string

const (
	MessageActionLog  MessageAction = "log"
	MessageActionSend MessageAction = "send"
	MessageActionRead MessageAction = "read"
)

// LogMessageOptions are the option settings for LogMessage.
type LogMessageOptions struct {
	Encoding Encoding `json:"encoding,omitempty"`
	Encrypt  *bool    `json:"encrypt,omitempty"`
	OffChain *bool    `json:"offChain,omitempty"`
	Storage  Storage  `json:"storage,omitempty"`
	Async    *bool    `json:"async,omitempty"`
}

// SendMessageOptions are the option settings for SendMessage.
type SendMessageOptions struct {
	Encoding         Encoding `json:"encoding,omitempty"`
	Encrypt          *bool    `json:"encrypt,omitempty"`
	OffChain         *bool    `json:"offChain,omitempty"`
	Storage          Storage  `json:"storage,omitempty"`
	ReadConfirmation *bool    `json:"readConfirmation,omitempty"`
	Async            *bool    `json:"async,omitempty"`
}

// ReadMessageOptions are the option settings for ReadMessage. They are
// carried as query parameters.
type ReadMessageOptions struct {
	Encoding          Encoding
	ContinuationToken string
	DataChunkSize     int
	Async             *bool
}

// LogMessageResult is the data returned by LogMessage.
type LogMessageResult struct {
	ContinuationToken    string `json:"continuationToken,omitempty"`
	MessageID            string `json:"messageId,omitempty"`
	ProvisionalMessageID string `json:"provisionalMessageId,omitempty"`
}

// SendMessageResult is the data returned by SendMessage.
type SendMessageResult struct {
	ContinuationToken    string `json:"continuationToken,omitempty"`
	MessageID            string `json:"messageId,omitempty"`
	ProvisionalMessageID string `json:"provisionalMessageId,omitempty"`
}

// MessageInfo describes a previously recorded message.
type MessageInfo struct {
	Action MessageAction `json:"action"`
	From   *DeviceInfo   `json:"from,omitempty"`
}

// ReadMessageResult is the data returned by ReadMessage.
type ReadMessageResult struct {
	MsgInfo           *MessageInfo `json:"msgInfo,omitempty"`
	MsgData           string       `json:"msgData,omitempty"`
	ContinuationToken string       `json:"continuationToken,omitempty"`
	CachedMessageID   string       `json:"cachedMessageId,omitempty"`
}

// OffChainContainer references the off-chain message envelope on IPFS.
type OffChainContainer struct {
	CID string `json:"cid"`
}

// BlockchainContainer references the blockchain transaction where a message
// was recorded.
type BlockchainContainer struct {
	TxID        string `json:"txid"`
	IsConfirmed bool   `json:"isConfirmed"`
}

// IpfsStorage references a message stored on IPFS.
type IpfsStorage struct {
	Ipfs string `json:"ipfs"`
}

// RetrieveMessageContainerResult is the data returned by
// RetrieveMessageContainer.
type RetrieveMessageContainerResult struct {
	OffChain        *OffChainContainer   `json:"offChain,omitempty"`
	Blockchain      *BlockchainContainer `json:"blockchain,omitempty"`
	ExternalStorage *IpfsStorage         `json:"externalStorage,omitempty"`
}

// BatchDocRef references the batch document used to settle off-chain
// messages on the blockchain.
type BatchDocRef struct {
	CID string `json:"cid"`
}

// BlockchainTransaction describes the transaction used to record a message.
type BlockchainTransaction struct {
	TxID         string            `json:"txid"`
	Type         string            `json:"type"`
	BatchDoc     *BatchDocRef      `json:"batchDoc,omitempty"`
	OriginDevice *OriginDeviceInfo `json:"originDevice,omitempty"`
}

// OffChainMsgEnvelope describes the envelope used to record an off-chain
// message on IPFS.
type OffChainMsgEnvelope struct {
	CID          string                    `json:"cid"`
	Type         string                    `json:"type"`
	OriginDevice *OffChainOriginDeviceInfo `json:"originDevice,omitempty"`
}

// ProofInfo is the data used to prove the origin of a message.
type ProofInfo struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// RetrieveMessageOriginResult is the data returned by RetrieveMessageOrigin.
type RetrieveMessageOriginResult struct {
	Tx                  *BlockchainTransaction `json:"tx,omitempty"`
	OffChainMsgEnvelope *OffChainMsgEnvelope   `json:"offChainMsgEnvelope,omitempty"`
	Proof               *ProofInfo             `json:"proof,omitempty"`
}

// MessageProcessError describes an error that took place while processing a
// message asynchronously.
type MessageProcessError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MessageProcessProgress reports the asynchronous processing status of a
// message.
type MessageProcessProgress struct {
	BytesProcessed int                  `json:"bytesProcessed"`
	Done           bool                 `json:"done"`
	Success        *bool                `json:"success,omitempty"`
	Error          *MessageProcessError `json:"error,omitempty"`
	FinishDate     *time.Time           `json:"finishDate,omitempty"`
}

// MessageProcessSuccess is the successful outcome of asynchronous message
// processing.
type MessageProcessSuccess struct {
	MessageID         string `json:"messageId"`
	ContinuationToken string `json:"continuationToken,omitempty"`
}

// RetrieveMessageProgressResult is the data returned by
// RetrieveMessageProgress.
type RetrieveMessageProgressResult struct {
	Action   MessageAction          `json:"action"`
	Progress MessageProcessProgress `json:"progress"`
	Result   *MessageProcessSuccess `json:"result,omitempty"`
}

// MessageDirection distinguishes inbound from outbound sent messages.
type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "inbound"
	MessageDirectionOutbound MessageDirection = "outbound"
)

// MessageEntry is one message returned by ListMessages.
type MessageEntry struct {
	MessageID               string           `json:"messageId"`
	Action                  MessageAction    `json:"action"`
	Direction               MessageDirection `json:"direction,omitempty"`
	From                    *DeviceInfo      `json:"from,omitempty"`
	To                      *DeviceInfo      `json:"to,omitempty"`
	ReadConfirmationEnabled *bool            `json:"readConfirmationEnabled,omitempty"`
	Read                    *bool            `json:"read,omitempty"`
	Date                    time.Time        `json:"date"`
}

// ListMessagesOptions filter the messages returned by ListMessages. All
// fields are optional; zero values are not sent.
type ListMessagesOptions struct {
	Action      string // "log", "send" or "any"
	Direction   string // "inbound", "outbound" or "any"
	FromDevices []DeviceID
	ToDevices   []DeviceID
	ReadState   string // "read", "unread" or "any"
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int // up to 500
	Skip        int
}

// ListMessagesResult is the data returned by ListMessages.
type ListMessagesResult struct {
	Messages []MessageEntry `json:"messages"`
	MsgCount int            `json:"msgCount"`
	HasMore  bool           `json:"hasMore"`
}

// ChunkedMessage passes a message's contents to the server in chunks. Each
// intermediate chunk carries the continuation token returned for the
// previous one; the final chunk sets IsFinal.
type ChunkedMessage struct {
	Data              string `json:"data,omitempty"`
	IsFinal           *bool  `json:"isFinal,omitempty"`
	ContinuationToken string `json:"continuationToken,omitempty"`
}

type logMessageRequest struct {
	Message string             `json:"message"`
	Options *LogMessageOptions `json:"options,omitempty"`
}

type logChunkedMessageRequest struct {
	Message ChunkedMessage     `json:"message"`
	Options *LogMessageOptions `json:"options,omitempty"`
}

type sendChunkedMessageRequest struct {
	Message      ChunkedMessage      `json:"message"`
	TargetDevice DeviceID            `json:"targetDevice"`
	Options      *SendMessageOptions `json:"options,omitempty"`
}

type sendMessageRequest struct {
	Message      string              `json:"message"`
	TargetDevice DeviceID            `json:"targetDevice"`
	Options      *SendMessageOptions `json:"options,omitempty"`
}

// LogMessage records a message on the blockchain for the device itself.
func (c *Client) LogMessage(ctx context.Context, message string, options *LogMessageOptions) (*LogMessageResult, error) {
	return invoke[LogMessageResult](ctx, c, "POST", "messages/log", nil, nil,
		logMessageRequest{Message: message, Options: options})
}

// LogChunkedMessage records a message for the device itself, passing its
// contents in chunks. Intermediate calls return a continuation token to
// carry into the next chunk.
func (c *Client) LogChunkedMessage(ctx context.Context, message ChunkedMessage, options *LogMessageOptions) (*LogMessageResult, error) {
	return invoke[LogMessageResult](ctx, c, "POST", "messages/log", nil, nil,
		logChunkedMessageRequest{Message: message, Options: options})
}

// SendMessage records a message on the blockchain directing it to another
// virtual device.
func (c *Client) SendMessage(ctx context.Context, message string, targetDevice DeviceID, options *SendMessageOptions) (*SendMessageResult, error) {
	return invoke[SendMessageResult](ctx, c, "POST", "messages/send", nil, nil,
		sendMessageRequest{Message: message, TargetDevice: targetDevice, Options: options})
}

// SendChunkedMessage records a message directed to another virtual device,
// passing its contents in chunks.
func (c *Client) SendChunkedMessage(ctx context.Context, message ChunkedMessage, targetDevice DeviceID, options *SendMessageOptions) (*SendMessageResult, error) {
	return invoke[SendMessageResult](ctx, c, "POST", "messages/send", nil, nil,
		sendChunkedMessageRequest{Message: message, TargetDevice: targetDevice, Options: options})
}

// ReadMessage retrieves the contents of a previously recorded message.
func (c *Client) ReadMessage(ctx context.Context, messageID string, options *ReadMessageOptions) (*ReadMessageResult, error) {
	query := url.Values{}
	if options != nil {
		if options.Encoding != "" {
			query.Set("encoding", string(options.Encoding))
		}
		if options.ContinuationToken != "" {
			query.Set("continuationToken", options.ContinuationToken)
		}
		if options.DataChunkSize != 0 {
			query.Set("dataChunkSize", strconv.Itoa(options.DataChunkSize))
		}
		if options.Async != nil {
			query.Set("async", strconv.FormatBool(*options.Async))
		}
	}
	return invoke[ReadMessageResult](ctx, c, "GET", "messages/:messageId",
		map[string]string{"messageId": messageID}, query, nil)
}

// RetrieveMessageContainer retrieves information about where a message is
// recorded.
func (c *Client) RetrieveMessageContainer(ctx context.Context, messageID string) (*RetrieveMessageContainerResult, error) {
	return invoke[RetrieveMessageContainerResult](ctx, c, "GET", "messages/:messageId/container",
		map[string]string{"messageId": messageID}, nil, nil)
}

// RetrieveMessageOrigin retrieves proof of a message's origin. When
// msgToSign is not empty, the server returns a signature over it generated
// with the origin device's private key.
func (c *Client) RetrieveMessageOrigin(ctx context.Context, messageID, msgToSign string) (*RetrieveMessageOriginResult, error) {
	query := url.Values{}
	if msgToSign != "" {
		query.Set("msgToSign", msgToSign)
	}
	return invoke[RetrieveMessageOriginResult](ctx, c, "GET", "messages/:messageId/origin",
		map[string]string{"messageId": messageID}, query, nil)
}

// RetrieveMessageProgress reports the status of an asynchronous message
// processing operation.
func (c *Client) RetrieveMessageProgress(ctx context.Context, ephemeralMessageID string) (*RetrieveMessageProgressResult, error) {
	return invoke[RetrieveMessageProgressResult](ctx, c, "GET", "messages/:messageId/progress",
		map[string]string{"messageId": ephemeralMessageID}, nil, nil)
}

// ListMessages retrieves a filtered list of the device's messages.
func (c *Client) ListMessages(ctx context.Context, options *ListMessagesOptions) (*ListMessagesResult, error) {
	query := url.Values{}
	if options != nil {
		if options.Action != "" {
			query.Set("action", options.Action)
		}
		if options.Direction != "" {
			query.Set("direction", options.Direction)
		}
		setDeviceListParams(query, "fromDeviceIds", "fromDeviceProdUniqueIds", options.FromDevices)
		setDeviceListParams(query, "toDeviceIds", "toDeviceProdUniqueIds", options.ToDevices)
		if options.ReadState != "" {
			query.Set("readState", options.ReadState)
		}
		if options.StartDate != nil {
			query.Set("startDate", options.StartDate.UTC().Format(time.RFC3339))
		}
		if options.EndDate != nil {
			query.Set("endDate", options.EndDate.UTC().Format(time.RFC3339))
		}
		if options.Limit != 0 {
			query.Set("limit", strconv.Itoa(options.Limit))
		}
		if options.Skip != 0 {
			query.Set("skip", strconv.Itoa(options.Skip))
		}
	}
	return invoke[ListMessagesResult](ctx, c, "GET", "messages", nil, query, nil)
}

// setDeviceListParams splits a device list into the two comma-separated
// query parameters the API expects: Catenis device IDs and product unique
// IDs.
func setDeviceListParams(query url.Values, idsParam, prodUniqueIdsParam string, devices []DeviceID) {
	var ids, prodUniqueIDs []string
	for _, d := range devices {
		if d.IsProdUniqueID {
			prodUniqueIDs = append(prodUniqueIDs, d.ID)
		} else {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) > 0 {
		query.Set(idsParam, strings.Join(ids, ","))
	}
	if len(prodUniqueIDs) > 0 {
		query.Set(prodUniqueIdsParam, strings.Join(prodUniqueIDs, ","))
	}
}
