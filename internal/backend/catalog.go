package backend

import (
	"context"
	"fmt"
	"net/http"
)

// SearchItemsPath is the backend inventory lookup endpoint.
const SearchItemsPath = "/inventoryManagement/getItemByNameSkuBarcode"

// SearchItems returns the store's catalog items matching q.
func (c *Client) SearchItems(ctx context.Context, token string, q ItemQuery) ([]CatalogItem, error) {
	if err := c.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("item query: %w", err)
	}
	var items []CatalogItem
	if err := c.call(ctx, http.MethodPost, SearchItemsPath, token, map[string]any{"data": q}, &items); err != nil {
		return nil, err
	}
	for i := range items {
		if err := c.validate.Struct(items[i]); err != nil {
			return nil, &Error{Kind: ErrMalformed, Status: http.StatusOK, Err: fmt.Errorf("item %d: %w", i, err)}
		}
	}
	return items, nil
}
