package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/marketplace-engine/internal/fault"
)

// PaymentAPI is the boundary to the external payment gateway
type PaymentAPI interface {
	IssueURL(ctx context.Context, orderID string, amount int) (string, error)
}

type PaymentClient struct{ c *Client }

func NewPaymentClient(c *Client) *PaymentClient { return &PaymentClient{c: c} }

// IssueURL asks the gateway for a redirect URL the buyer completes payment on.
// The gateway later reports the outcome via the callback surface.
func (pc *PaymentClient) IssueURL(ctx context.Context, orderID string, amount int) (string, error) {
	resp, err := pc.c.do(ctx, http.MethodPost, "/payments", map[string]any{
		"order_id": orderID,
		"amount":   amount,
	})
	if err != nil {
		return "", &fault.External{Dependency: "payment gateway", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &fault.External{Dependency: "payment gateway", Err: statusError(resp.StatusCode)}
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &fault.External{Dependency: "payment gateway", Err: err}
	}
	return out.URL, nil
}

func statusError(code int) error {
	return fmt.Errorf("unexpected status %d", code)
}
