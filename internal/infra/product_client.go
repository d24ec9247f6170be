package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
)

// ProductInfo is the catalog's view of a product. Price is in minor units.
type ProductInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"`
}

type ProductClient struct {
	http *resty.Client
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	return &ProductClient{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

// GetProductById returns nil, nil when the catalog does not know the product.
func (c *ProductClient) GetProductById(ctx context.Context, id string) (*ProductInfo, error) {
	var p ProductInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&p).
		Get("/products/{id}")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("product service returned status %d", resp.StatusCode())
	}
	return &p, nil
}

// CachedProductClient fronts a catalog client with a redis read-through cache.
type CachedProductClient struct {
	next   ProductClientInterface
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProductClient(next ProductClientInterface, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedProductClient {
	return &CachedProductClient{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedProductClient) GetProductById(ctx context.Context, id string) (*ProductInfo, error) {
	cacheKey := "product:" + id

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			var p ProductInfo
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				return &p, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("product cache read failed", "product_id", id, "error", err)
		}
	}

	p, err := c.next.GetProductById(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil && p != nil {
		if data, err := json.Marshal(p); err == nil {
			c.rdb.Set(ctx, cacheKey, data, c.ttl)
		}
	}
	return p, nil
}
