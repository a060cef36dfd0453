package catenis

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// NewAssetInfo carries the properties of an asset to be issued.
type NewAssetInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	CanReissue    bool   `json:"canReissue"`
	DecimalPlaces int    `json:"decimalPlaces"`
}

// AssetBalance is the balance of an asset.
type AssetBalance struct {
	Total       float64 `json:"total"`
	Unconfirmed float64 `json:"unconfirmed"`
}

// IssueAssetResult is the data returned by IssueAsset.
type IssueAssetResult struct {
	AssetID string `json:"assetId"`
}

// ReissueAssetResult is the data returned by ReissueAsset.
type ReissueAssetResult struct {
	TotalExistentBalance float64 `json:"totalExistentBalance"`
}

// TransferAssetResult is the data returned by TransferAsset.
type TransferAssetResult struct {
	RemainingBalance float64 `json:"remainingBalance"`
}

// RetrieveAssetInfoResult is the data returned by RetrieveAssetInfo.
type RetrieveAssetInfoResult struct {
	AssetID              string     `json:"assetId"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	CanReissue           bool       `json:"canReissue"`
	DecimalPlaces        int        `json:"decimalPlaces"`
	Issuer               DeviceInfo `json:"issuer"`
	TotalExistentBalance float64    `json:"totalExistentBalance"`
}

// GetAssetBalanceResult is the data returned by GetAssetBalance.
type GetAssetBalanceResult struct {
	Total       float64 `json:"total"`
	Unconfirmed float64 `json:"unconfirmed"`
}

// OwnedAssetEntry is one asset returned by ListOwnedAssets.
type OwnedAssetEntry struct {
	AssetID string       `json:"assetId"`
	Balance AssetBalance `json:"balance"`
}

// ListOwnedAssetsResult is the data returned by ListOwnedAssets.
type ListOwnedAssetsResult struct {
	OwnedAssets []OwnedAssetEntry `json:"ownedAssets"`
	HasMore     bool              `json:"hasMore"`
}

// IssuedAssetEntry is one asset returned by ListIssuedAssets.
type IssuedAssetEntry struct {
	AssetID              string  `json:"assetId"`
	TotalExistentBalance float64 `json:"totalExistentBalance"`
}

// ListIssuedAssetsResult is the data returned by ListIssuedAssets.
type ListIssuedAssetsResult struct {
	IssuedAssets []IssuedAssetEntry `json:"issuedAssets"`
	HasMore      bool               `json:"hasMore"`
}

// AssetIssuanceEventEntry is one issuance event returned by
// RetrieveAssetIssuanceHistory.
type AssetIssuanceEventEntry struct {
	Amount        float64    `json:"amount"`
	HoldingDevice DeviceInfo `json:"holdingDevice"`
	Date          time.Time  `json:"date"`
}

// RetrieveAssetIssuanceHistoryResult is the data returned by
// RetrieveAssetIssuanceHistory.
type RetrieveAssetIssuanceHistoryResult struct {
	IssuanceEvents []AssetIssuanceEventEntry `json:"issuanceEvents"`
	HasMore        bool                      `json:"hasMore"`
}

// AssetHolderEntry is one holder returned by ListAssetHolders.
type AssetHolderEntry struct {
	Holder  DeviceInfo   `json:"holder"`
	Balance AssetBalance `json:"balance"`
}

// ListAssetHoldersResult is the data returned by ListAssetHolders.
type ListAssetHoldersResult struct {
	AssetHolders []AssetHolderEntry `json:"assetHolders"`
	HasMore      bool               `json:"hasMore"`
}

type issueAssetRequest struct {
	AssetInfo     NewAssetInfo `json:"assetInfo"`
	Amount        float64      `json:"amount"`
	HoldingDevice *DeviceID    `json:"holdingDevice,omitempty"`
}

type reissueAssetRequest struct {
	Amount        float64   `json:"amount"`
	HoldingDevice *DeviceID `json:"holdingDevice,omitempty"`
}

type transferAssetRequest struct {
	Amount          float64  `json:"amount"`
	ReceivingDevice DeviceID `json:"receivingDevice"`
}

// IssueAsset issues an amount of a new asset. When holdingDevice is nil the
// issued amount is assigned to the issuing device itself.
func (c *Client) IssueAsset(ctx context.Context, assetInfo NewAssetInfo, amount float64, holdingDevice *DeviceID) (*IssueAssetResult, error) {
	return invoke[IssueAssetResult](ctx, c, "POST", "assets/issue", nil, nil,
		issueAssetRequest{AssetInfo: assetInfo, Amount: amount, HoldingDevice: holdingDevice})
}

// ReissueAsset issues an additional amount of an existing asset.
func (c *Client) ReissueAsset(ctx context.Context, assetID string, amount float64, holdingDevice *DeviceID) (*ReissueAssetResult, error) {
	return invoke[ReissueAssetResult](ctx, c, "POST", "assets/:assetId/issue",
		map[string]string{"assetId": assetID}, nil,
		reissueAssetRequest{Amount: amount, HoldingDevice: holdingDevice})
}

// TransferAsset transfers an amount of an asset to another virtual device.
func (c *Client) TransferAsset(ctx context.Context, assetID string, amount float64, receivingDevice DeviceID) (*TransferAssetResult, error) {
	return invoke[TransferAssetResult](ctx, c, "POST", "assets/:assetId/transfer",
		map[string]string{"assetId": assetID}, nil,
		transferAssetRequest{Amount: amount, ReceivingDevice: receivingDevice})
}

// RetrieveAssetInfo retrieves information about an asset.
func (c *Client) RetrieveAssetInfo(ctx context.Context, assetID string) (*RetrieveAssetInfoResult, error) {
	return invoke[RetrieveAssetInfoResult](ctx, c, "GET", "assets/:assetId",
		map[string]string{"assetId": assetID}, nil, nil)
}

// GetAssetBalance reports the device's current balance of an asset.
func (c *Client) GetAssetBalance(ctx context.Context, assetID string) (*GetAssetBalanceResult, error) {
	return invoke[GetAssetBalanceResult](ctx, c, "GET", "assets/:assetId/balance",
		map[string]string{"assetId": assetID}, nil, nil)
}

// ListOwnedAssets lists assets currently owned by the device.
func (c *Client) ListOwnedAssets(ctx context.Context, limit, skip int) (*ListOwnedAssetsResult, error) {
	return invoke[ListOwnedAssetsResult](ctx, c, "GET", "assets/owned", nil,
		limitSkipQuery(limit, skip), nil)
}

// ListIssuedAssets lists assets issued by the device.
func (c *Client) ListIssuedAssets(ctx context.Context, limit, skip int) (*ListIssuedAssetsResult, error) {
	return invoke[ListIssuedAssetsResult](ctx, c, "GET", "assets/issued", nil,
		limitSkipQuery(limit, skip), nil)
}

// RetrieveAssetIssuanceHistory retrieves the issuance events of an asset,
// optionally restricted to a date interval.
func (c *Client) RetrieveAssetIssuanceHistory(ctx context.Context, assetID string, startDate, endDate *time.Time, limit, skip int) (*RetrieveAssetIssuanceHistoryResult, error) {
	query := limitSkipQuery(limit, skip)
	if startDate != nil {
		query.Set("startDate", startDate.UTC().Format(time.RFC3339))
	}
	if endDate != nil {
		query.Set("endDate", endDate.UTC().Format(time.RFC3339))
	}
	return invoke[RetrieveAssetIssuanceHistoryResult](ctx, c, "GET", "assets/:assetId/issuance",
		map[string]string{"assetId": assetID}, query, nil)
}

// ListAssetHolders lists the devices currently holding an amount of an
// asset.
func (c *Client) ListAssetHolders(ctx context.Context, assetID string, limit, skip int) (*ListAssetHoldersResult, error) {
	return invoke[ListAssetHoldersResult](ctx, c, "GET", "assets/:assetId/holders",
		map[string]string{"assetId": assetID}, limitSkipQuery(limit, skip), nil)
}

func limitSkipQuery(limit, skip int) url.Values {
	query := url.Values{}
	if limit != 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if skip != 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	return query
}
