package catenis

import (
	"context"
	"net/url"
	"strconv"
)

// PermissionEvent is a Catenis permission event name.
type PermissionEvent string

const (
	PermissionReceiveNotifyNewMsg           PermissionEvent = "receive-notify-new-msg"
	PermissionReceiveNotifyMsgRead          PermissionEvent = "receive-notify-msg-read"
	PermissionReceiveNotifyAssetOf          PermissionEvent = "receive-notify-asset-of"
	PermissionReceiveNotifyAssetFrom        PermissionEvent = "receive-notify-asset-from"
	PermissionReceiveNotifyConfirmAssetOf   PermissionEvent = "receive-notify-confirm-asset-of"
	PermissionReceiveNotifyConfirmAssetFrom PermissionEvent = "receive-notify-confirm-asset-from"
	PermissionSendReadMsgConfirm            PermissionEvent = "send-read-msg-confirm"
	PermissionReceiveMsg                    PermissionEvent = "receive-msg"
	PermissionDiscloseMainProps             PermissionEvent = "disclose-main-props"
	PermissionDiscloseIdentityInfo          PermissionEvent = "disclose-identity-info"
	PermissionReceiveAssetOf                PermissionEvent = "receive-asset-of"
	PermissionReceiveAssetFrom              PermissionEvent = "receive-asset-from"
)

// PermissionRight is a permission setting.
type PermissionRight string

const (
	PermissionRightAllow PermissionRight = "allow"
	PermissionRightDeny  PermissionRight = "deny"
)

// PermissionRightsSetting is the permission rights currently set for a list
// of entities, identified by Catenis node index or client ID.
type PermissionRightsSetting struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// DevicePermissionRightsSetting is the permission rights currently set for
// a list of virtual devices.
type DevicePermissionRightsSetting struct {
	Allow []DeviceInfo `json:"allow,omitempty"`
	Deny  []DeviceInfo `json:"deny,omitempty"`
}

// PermissionRightsUpdate changes permission rights for a list of entities,
// identified by Catenis node index or client ID.
type PermissionRightsUpdate struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
	None  []string `json:"none,omitempty"`
}

// DevicePermissionRightsUpdate changes permission rights for a list of
// virtual devices.
type DevicePermissionRightsUpdate struct {
	Allow []DeviceID `json:"allow,omitempty"`
	Deny  []DeviceID `json:"deny,omitempty"`
	None  []DeviceID `json:"none,omitempty"`
}

// AllPermissionRightsUpdate changes permission rights at every level.
type AllPermissionRightsUpdate struct {
	System      PermissionRight               `json:"system,omitempty"`
	CatenisNode *PermissionRightsUpdate       `json:"catenisNode,omitempty"`
	Client      *PermissionRightsUpdate       `json:"client,omitempty"`
	Device      *DevicePermissionRightsUpdate `json:"device,omitempty"`
}

// RetrievePermissionRightsResult is the data returned by
// RetrievePermissionRights.
type RetrievePermissionRightsResult struct {
	System      PermissionRight                `json:"system"`
	CatenisNode *PermissionRightsSetting       `json:"catenisNode,omitempty"`
	Client      *PermissionRightsSetting       `json:"client,omitempty"`
	Device      *DevicePermissionRightsSetting `json:"device,omitempty"`
}

// SetPermissionRightsResult is the data returned by SetPermissionRights.
type SetPermissionRightsResult struct {
	Success bool `json:"success"`
}

// ListPermissionEventsResult maps each permission event to its description.
type ListPermissionEventsResult map[PermissionEvent]string

// CheckEffectivePermissionRightResult maps the checked device ID to the
// effective permission right.
type CheckEffectivePermissionRightResult map[string]PermissionRight

// ListPermissionEvents lists the permission events supported by the server.
func (c *Client) ListPermissionEvents(ctx context.Context) (ListPermissionEventsResult, error) {
	result, err := invoke[ListPermissionEventsResult](ctx, c, "GET", "permission/events", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// RetrievePermissionRights retrieves the permission rights currently set
// for a permission event.
func (c *Client) RetrievePermissionRights(ctx context.Context, event PermissionEvent) (*RetrievePermissionRightsResult, error) {
	return invoke[RetrievePermissionRightsResult](ctx, c, "GET", "permission/events/:eventName/rights",
		map[string]string{"eventName": string(event)}, nil, nil)
}

// SetPermissionRights changes the permission rights set for a permission
// event.
func (c *Client) SetPermissionRights(ctx context.Context, event PermissionEvent, rights AllPermissionRightsUpdate) (*SetPermissionRightsResult, error) {
	return invoke[SetPermissionRightsResult](ctx, c, "POST", "permission/events/:eventName/rights",
		map[string]string{"eventName": string(event)}, nil, rights)
}

// CheckEffectivePermissionRight reports the effective permission right
// another device has for a permission event towards this device.
func (c *Client) CheckEffectivePermissionRight(ctx context.Context, event PermissionEvent, device DeviceID) (CheckEffectivePermissionRightResult, error) {
	query := url.Values{}
	if device.IsProdUniqueID {
		query.Set("isProdUniqueId", strconv.FormatBool(true))
	}
	result, err := invoke[CheckEffectivePermissionRightResult](ctx, c, "GET",
		"permission/events/:eventName/rights/:deviceId",
		map[string]string{"eventName": string(event), "deviceId": device.ID}, query, nil)
	if err != nil {
		return nil, err
	}
	return *result, nil
}
