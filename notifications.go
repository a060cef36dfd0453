package catenis

import "context"

// ListNotificationEventsResult maps each notification event to its
// description.
type ListNotificationEventsResult map[string]string

// ListNotificationEvents lists the notification events supported by the
// server.
func (c *Client) ListNotificationEvents(ctx context.Context) (ListNotificationEventsResult, error) {
	result, err := invoke[ListNotificationEventsResult](ctx, c, "GET", "notification/events", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return *result, nil
}
