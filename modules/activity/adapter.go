package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
)

// ActivityPort defines the interface for reading activity counters.
type ActivityPort interface {
	GetSummary(ctx context.Context) (Summary, error)
	GetRoomActivity(ctx context.Context, roomID string) (RoomActivity, error)
}

// activityAdapter implements ActivityPort using the service container.
type activityAdapter struct {
	container mono.ServiceContainer
}

// NewActivityAdapter creates a new adapter for the activity service.
func NewActivityAdapter(container mono.ServiceContainer) ActivityPort {
	return &activityAdapter{
		container: container,
	}
}

// GetSummary retrieves the activity summary.
func (a *activityAdapter) GetSummary(ctx context.Context) (Summary, error) {
	client, err := a.container.GetRequestReplyService(ServiceGetActivity)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get %s service: %w", ServiceGetActivity, err)
	}

	resp, err := client.Call(ctx, []byte{})
	if err != nil {
		return Summary{}, fmt.Errorf("%s service call failed: %w", ServiceGetActivity, err)
	}

	var summary Summary
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		return Summary{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return summary, nil
}

// GetRoomActivity retrieves the counters of one room, or ErrNoActivity.
func (a *activityAdapter) GetRoomActivity(ctx context.Context, roomID string) (RoomActivity, error) {
	client, err := a.container.GetRequestReplyService(ServiceGetRoomActivity)
	if err != nil {
		return RoomActivity{}, fmt.Errorf("failed to get %s service: %w", ServiceGetRoomActivity, err)
	}

	reqData, err := json.Marshal(RoomActivityRequest{RoomID: roomID})
	if err != nil {
		return RoomActivity{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Call(ctx, reqData)
	if err != nil {
		return RoomActivity{}, fmt.Errorf("%s service call failed: %w", ServiceGetRoomActivity, err)
	}

	var response RoomActivityResponse
	if err := json.Unmarshal(resp.Data, &response); err != nil {
		return RoomActivity{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !response.Found {
		return RoomActivity{}, fmt.Errorf("%w: %s", ErrNoActivity, roomID)
	}
	return response.Room, nil
}
