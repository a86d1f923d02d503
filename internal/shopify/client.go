package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orrn/wishprint/internal/config"
	"github.com/orrn/wishprint/internal/core"
	"go.uber.org/zap"
)

const opFetchOrders = "fetch orders"

// ordersQuery selects paid, unfulfilled orders with their line items.
const ordersQuery = `query Orders($first: Int!, $after: String) {
  orders(first: $first, after: $after, query: "fulfillment_status:unfulfilled financial_status:paid") {
    edges {
      cursor
      node {
        id
        name
        createdAt
        lineItems(first: 250) {
          edges {
            node {
              id
              name
              quantity
              product { id title }
              variant { id title }
              customAttributes { key value }
            }
          }
        }
      }
    }
    pageInfo { hasNextPage }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type ordersResponse struct {
	Data *struct {
		Orders *struct {
			Edges []struct {
				Cursor string `json:"cursor"`
				Node   struct {
					Name      string    `json:"name"`
					CreatedAt time.Time `json:"createdAt"`
					LineItems struct {
						Edges []struct {
							Node lineItemNode `json:"node"`
						} `json:"edges"`
					} `json:"lineItems"`
				} `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
		} `json:"orders"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type lineItemNode struct {
	Quantity int `json:"quantity"`
	Product  *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"product"`
	Variant *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"variant"`
	CustomAttributes []core.Attribute `json:"customAttributes"`
}

// Client reads orders from the Shopify Admin GraphQL API.
type Client struct {
	endpoint    string
	accessToken string
	pageSize    int
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewClient(cfg config.ShopifyConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 250
	}
	return &Client{
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", cfg.Store, cfg.APIVersion),
		accessToken: cfg.AccessToken,
		pageSize:    pageSize,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:      logger,
	}
}

// FetchOrders returns one page of line items. Every failure is a
// *core.UpstreamError.
func (c *Client) FetchOrders(ctx context.Context, after string) (*core.OrderPage, error) {
	vars := map[string]any{"first": c.pageSize}
	if after != "" {
		vars["after"] = after
	}
	body, err := json.Marshal(graphQLRequest{Query: ordersQuery, Variables: vars})
	if err != nil {
		return nil, &core.UpstreamError{Op: opFetchOrders, Err: fmt.Errorf("failed to marshal query: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &core.UpstreamError{Op: opFetchOrders, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	c.logger.Debug("fetching orders", zap.String("after", after))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &core.UpstreamError{Op: opFetchOrders, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &core.UpstreamError{
			Op:         opFetchOrders,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", http.StatusText(resp.StatusCode), strings.TrimSpace(string(snippet))),
		}
	}

	var decoded ordersResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &core.UpstreamError{Op: opFetchOrders, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(decoded.Errors) > 0 {
		msgs := make([]string, len(decoded.Errors))
		for i, e := range decoded.Errors {
			msgs[i] = e.Message
		}
		return nil, &core.UpstreamError{Op: opFetchOrders, StatusCode: resp.StatusCode, Err: fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))}
	}

	if decoded.Data == nil || decoded.Data.Orders == nil || decoded.Data.Orders.Edges == nil {
		return nil, &core.UpstreamError{Op: opFetchOrders, StatusCode: resp.StatusCode, Err: errors.New("response has no orders.edges")}
	}

	return toPage(decoded), nil
}

func toPage(resp ordersResponse) *core.OrderPage {
	orders := resp.Data.Orders
	page := &core.OrderPage{HasNextPage: orders.PageInfo.HasNextPage}

	for _, edge := range orders.Edges {
		page.Cursor = edge.Cursor
		for _, li := range edge.Node.LineItems.Edges {
			item := core.LineItem{
				Quantity:       li.Node.Quantity,
				Attributes:     li.Node.CustomAttributes,
				OrderName:      edge.Node.Name,
				OrderCreatedAt: edge.Node.CreatedAt,
			}
			// Custom line items have no product or variant.
			if li.Node.Product != nil {
				item.ProductID = li.Node.Product.ID
				item.ProductTitle = li.Node.Product.Title
			}
			if li.Node.Variant != nil {
				item.VariantID = li.Node.Variant.ID
				item.VariantTitle = li.Node.Variant.Title
			}
			page.LineItems = append(page.LineItems, item)
		}
	}
	return page
}
