package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/example/marketplace-engine/internal/fault"
)

// ProductSnapshot is the catalog's view of a product at the moment of the call
type ProductSnapshot struct {
	ProductID    string `json:"product_id"`
	SellerID     string `json:"seller_id"`
	Price        int    `json:"price"`
	Quantity     int    `json:"quantity"`
	QuantitySold int    `json:"quantity_sold"`
}

// CatalogAPI is the boundary to the external catalog service
type CatalogAPI interface {
	Product(ctx context.Context, productID string) (*ProductSnapshot, error)
}

type CatalogClient struct{ c *Client }

func NewCatalogClient(c *Client) *CatalogClient { return &CatalogClient{c: c} }

// Product fetches the current product snapshot. A missing product is a
// NotFound failure; transport problems surface as ExternalDependency.
func (cc *CatalogClient) Product(ctx context.Context, productID string) (*ProductSnapshot, error) {
	resp, err := cc.c.do(ctx, http.MethodGet, "/products/"+productID, nil)
	if err != nil {
		return nil, &fault.External{Dependency: "catalog", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &fault.NotFound{Resource: "product", ID: productID}
	default:
		return nil, &fault.External{Dependency: "catalog", Err: statusError(resp.StatusCode)}
	}

	var snapshot ProductSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, &fault.External{Dependency: "catalog", Err: err}
	}
	snapshot.ProductID = productID
	return &snapshot, nil
}
