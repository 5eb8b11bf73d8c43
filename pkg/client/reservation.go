package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"roombook/pkg/model"
	"time"
)

const (
	ActorIDHeader        = "X-Actor-ID"
	OrganizationIDHeader = "X-Organization-ID"
	AuthorityHeader      = "X-Authority"
)

// ReservationClient calls the reservation API on behalf of a single actor.
type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string, actor model.Actor) *ReservationClient {
	httpClient := NewHttpClient(baseURL)
	httpClient.Headers[ActorIDHeader] = actor.ID
	httpClient.Headers[OrganizationIDHeader] = actor.OrganizationID
	httpClient.Headers[AuthorityHeader] = string(actor.Authority)
	return &ReservationClient{httpClient: httpClient}
}

func (c *ReservationClient) Create(ctx context.Context, req model.ReservationRequest) (*model.Reservation, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/reservations", req)
	if err != nil {
		return nil, err
	}
	var reservation model.Reservation
	if err := decodeData(resp, http.StatusCreated, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (c *ReservationClient) CreateRecurring(ctx context.Context, req model.RecurringRequest) (*model.RecurringResult, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/recurring-reservations", req)
	if err != nil {
		return nil, err
	}
	var result model.RecurringResult
	if err := decodeData(resp, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ReservationClient) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/reservations/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var reservation model.Reservation
	if err := decodeData(resp, http.StatusOK, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (c *ReservationClient) ListMine(ctx context.Context, limit int, offset int64) ([]*model.Reservation, *Metadata, error) {
	path := fmt.Sprintf("/api/v1/reservations?limit=%d&offset=%d", limit, offset)
	return c.list(ctx, path)
}

func (c *ReservationClient) ListPendingApprovals(ctx context.Context, limit int, offset int64) ([]*model.Reservation, *Metadata, error) {
	path := fmt.Sprintf("/api/v1/approvals?limit=%d&offset=%d", limit, offset)
	return c.list(ctx, path)
}

func (c *ReservationClient) Approve(ctx context.Context, id string) (*model.Reservation, error) {
	return c.action(ctx, id, "approve", nil)
}

func (c *ReservationClient) Reject(ctx context.Context, id, reason string) (*model.Reservation, error) {
	return c.action(ctx, id, "reject", map[string]string{"reason": reason})
}

func (c *ReservationClient) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return c.action(ctx, id, "cancel", nil)
}

func (c *ReservationClient) AdminCancel(ctx context.Context, id string) (*model.Reservation, error) {
	return c.action(ctx, id, "admin-cancel", nil)
}

func (c *ReservationClient) Availability(ctx context.Context, start, end time.Time) ([]*model.Resource, error) {
	q := url.Values{}
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))

	resp, err := c.httpClient.GET(ctx, "/api/v1/availability?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var resources []*model.Resource
	if err := decodeData(resp, http.StatusOK, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// ReplaceVisibility replaces the gate of orgID on date. An empty orgID targets
// the actor's own organization.
func (c *ReservationClient) ReplaceVisibility(ctx context.Context, orgID, date string, resourceIDs []string) error {
	path := "/api/v1/visibility/" + url.PathEscape(date)
	if orgID != "" {
		path += "?organization_id=" + url.QueryEscape(orgID)
	}
	resp, err := c.httpClient.PUT(ctx, path, model.VisibilityReplaceRequest{ResourceIDs: resourceIDs})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return DecodeError(resp)
	}
	return nil
}

func (c *ReservationClient) action(ctx context.Context, id, verb string, body any) (*model.Reservation, error) {
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/" + verb
	resp, err := c.httpClient.POST(ctx, path, body)
	if err != nil {
		return nil, err
	}
	var reservation model.Reservation
	if err := decodeData(resp, http.StatusOK, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

type Metadata struct {
	TotalCount int64
	Limit      int
	Offset     int64
}

func (c *ReservationClient) list(ctx context.Context, path string) ([]*model.Reservation, *Metadata, error) {
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, DecodeError(resp)
	}

	var wrapper struct {
		Data       json.RawMessage `json:"data"`
		TotalCount int64           `json:"total_count"`
		Limit      int             `json:"limit"`
		Offset     int64           `json:"offset"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp:\n%s\n%w", resp.ToString(), err)
	}

	var reservations []*model.Reservation
	if err := json.Unmarshal(wrapper.Data, &reservations); err != nil {
		return nil, nil, fmt.Errorf("could not decode reservation list:\n%s\n%w", resp.ToString(), err)
	}

	return reservations, &Metadata{
		TotalCount: wrapper.TotalCount,
		Limit:      wrapper.Limit,
		Offset:     wrapper.Offset,
	}, nil
}

func decodeData(resp *Response, wantStatus int, target any) error {
	if resp.StatusCode != wantStatus {
		return DecodeError(resp)
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return fmt.Errorf("could not decode response wrapper:\n%s\n%w", resp.ToString(), err)
	}
	if len(wrapper.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("could not decode response data:\n%s\n%w", resp.ToString(), err)
	}
	return nil
}
