package catenis

import (
	"context"
	"net/url"
	"strconv"
)

// DeviceID identifies a virtual device in a request, either by its Catenis
// device ID or by its product unique ID.
type DeviceID struct {
	ID             string `json:"id"`
	IsProdUniqueID bool   `json:"isProdUniqueId,omitempty"`
}

// DeviceInfo is the basic identification information of a virtual device as
// returned by the API.
type DeviceInfo struct {
	DeviceID     string `json:"deviceId"`
	Name         string `json:"name,omitempty"`
	ProdUniqueID string `json:"prodUniqueId,omitempty"`
}

// DeviceOwner describes the owner of a virtual device.
type DeviceOwner struct {
	Company string   `json:"company,omitempty"`
	Contact string   `json:"contact,omitempty"`
	Name    string   `json:"name,omitempty"`
	Domains []string `json:"domains,omitempty"`
}

// OriginDeviceInfo identifies the device that recorded a message
// transaction, including its blockchain address.
type OriginDeviceInfo struct {
	Address      string      `json:"address"`
	DeviceID     string      `json:"deviceId"`
	Name         string      `json:"name,omitempty"`
	ProdUniqueID string      `json:"prodUniqueId,omitempty"`
	OwnedBy      DeviceOwner `json:"ownedBy"`
}

// OffChainOriginDeviceInfo identifies the device that recorded an off-chain
// message envelope.
type OffChainOriginDeviceInfo struct {
	PubKeyHash   string      `json:"pubKeyHash"`
	DeviceID     string      `json:"deviceId"`
	Name         string      `json:"name,omitempty"`
	ProdUniqueID string      `json:"prodUniqueId,omitempty"`
	OwnedBy      DeviceOwner `json:"ownedBy"`
}

// CatenisNodeInfo identifies the Catenis node where a device's client is
// defined.
type CatenisNodeInfo struct {
	CtnNodeIndex int    `json:"ctnNodeIndex"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ClientInfo identifies the client a device belongs to.
type ClientInfo struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name,omitempty"`
}

// RetrieveDeviceIdentificationInfoResult is the data returned by
// RetrieveDeviceIdentificationInfo.
type RetrieveDeviceIdentificationInfoResult struct {
	CatenisNode CatenisNodeInfo `json:"catenisNode"`
	Client      ClientInfo      `json:"client"`
	Device      DeviceInfo      `json:"device"`
}

// RetrieveDeviceIdentificationInfo retrieves the identification information
// of a virtual device.
func (c *Client) RetrieveDeviceIdentificationInfo(ctx context.Context, device DeviceID) (*RetrieveDeviceIdentificationInfoResult, error) {
	query := url.Values{}
	if device.IsProdUniqueID {
		query.Set("isProdUniqueId", strconv.FormatBool(true))
	}
	return invoke[RetrieveDeviceIdentificationInfoResult](ctx, c, "GET", "devices/:deviceId",
		map[string]string{"deviceId": device.ID}, query, nil)
}
