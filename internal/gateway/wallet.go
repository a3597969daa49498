package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/example/marketplace-engine/internal/fault"
)

// WalletAPI is the boundary to the external wallet ledger. The engine only
// records refund decisions; the money movement happens behind this interface.
type WalletAPI interface {
	Credit(ctx context.Context, userID string, amount int, reference string) error
	Balance(ctx context.Context, userID string) (int, error)
}

type WalletClient struct{ c *Client }

func NewWalletClient(c *Client) *WalletClient { return &WalletClient{c: c} }

// Credit adds funds to a user's wallet, retrying transient failures with a
// short backoff. The reference ties the credit to the return request so the
// ledger can deduplicate replays.
func (wc *WalletClient) Credit(ctx context.Context, userID string, amount int, reference string) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &fault.External{Dependency: "wallet", Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := wc.c.do(ctx, http.MethodPost, "/credits", map[string]any{
			"user_id":   userID,
			"amount":    amount,
			"reference": reference,
		})
		if err != nil {
			lastErr = err
			log.Printf("[Wallet] credit attempt %d for %s failed: %v", attempt+1, reference, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return nil
		}
		lastErr = statusError(resp.StatusCode)
		log.Printf("[Wallet] credit attempt %d for %s failed: %v", attempt+1, reference, lastErr)
	}

	return &fault.External{Dependency: "wallet", Err: lastErr}
}

// Balance returns the user's loyalty point balance. A missing wallet counts
// as zero points.
func (wc *WalletClient) Balance(ctx context.Context, userID string) (int, error) {
	resp, err := wc.c.do(ctx, http.MethodGet, "/balances/"+userID, nil)
	if err != nil {
		return 0, &fault.External{Dependency: "wallet", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, nil
	default:
		return 0, &fault.External{Dependency: "wallet", Err: statusError(resp.StatusCode)}
	}

	var body struct {
		Points int `json:"points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, &fault.External{Dependency: "wallet", Err: err}
	}
	return body.Points, nil
}
