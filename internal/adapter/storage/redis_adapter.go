package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

const (
	productKeyPrefix  = "product:"
	customerKeyPrefix = "customer:"
	saleKeyPrefix     = "sale:"
	requestKeyPrefix  = "sale-request:"
)

const (
	applyResultOK       = 0
	applyResultConflict = 1
	applyResultDup      = 2
	applyResultMissing  = 3
	applyResultExists   = 4
)

// applyBatchScript checks every product and the request key before touching
// anything, then applies all decrements and writes the sale document.
//
// KEYS: sale key, request key, product keys...
// ARGV: sale json, has request key, sale id, (amount, minimum) per product
var applyBatchScript = redis.NewScript(`
local saleKey = KEYS[1]
local requestKey = KEYS[2]
local hasRequestKey = ARGV[2] == '1'

if redis.call('EXISTS', saleKey) == 1 then
	return {4}
end
if hasRequestKey and redis.call('EXISTS', requestKey) == 1 then
	return {2}
end

local n = #KEYS - 2
for i = 1, n do
	local stock = redis.call('HGET', KEYS[i + 2], 'stock')
	if not stock then
		return {3, i}
	end
	stock = tonumber(stock)
	local amount = tonumber(ARGV[2 + i * 2])
	local minimum = tonumber(ARGV[3 + i * 2])
	if stock < minimum or stock < amount then
		return {1, i, stock}
	end
end

for i = 1, n do
	redis.call('HINCRBY', KEYS[i + 2], 'stock', -tonumber(ARGV[2 + i * 2]))
end

redis.call('SET', saleKey, ARGV[1])
if hasRequestKey then
	redis.call('SET', requestKey, ARGV[3])
end
return {0}
`)

// RedisAdapter stores products and customers as hashes and each sale, items
// embedded, as one JSON document.
type RedisAdapter struct {
	client *redis.Client
}

var _ port.EntityStore = (*RedisAdapter)(nil)

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	fields, err := r.client.HGetAll(ctx, productKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall product: %w", err)
	}
	return productFromHash(id, fields)
}

// GetProducts reads all hashes inside one MULTI/EXEC so they reflect the same
// point in time.
func (r *RedisAdapter) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, productKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}

	for i, id := range ids {
		p, err := productFromHash(id, cmds[i].Val())
		if errors.Is(err, port.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = *p
	}
	return out, nil
}

func (r *RedisAdapter) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	fields, err := r.client.HGetAll(ctx, customerKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall customer: %w", err)
	}
	if len(fields) == 0 {
		return nil, port.ErrNotFound
	}
	return &domain.Customer{
		ID:      id,
		Name:    fields["name"],
		Email:   fields["email"],
		Phone:   fields["phone"],
		Address: fields["address"],
	}, nil
}

func (r *RedisAdapter) FindSaleByRequestKey(ctx context.Context, key string) (*domain.Sale, error) {
	id, err := r.client.Get(ctx, requestKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request key: %w", err)
	}
	return r.GetSale(ctx, id)
}

func (r *RedisAdapter) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	data, err := r.client.Get(ctx, saleKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}

	var sale domain.Sale
	if err := json.Unmarshal(data, &sale); err != nil {
		return nil, fmt.Errorf("decode sale %s: %w", id, err)
	}
	return &sale, nil
}

func (r *RedisAdapter) AtomicApply(ctx context.Context, batch domain.Batch) error {
	sale, ok := batch.Sale()
	if !ok {
		return errors.New("redis batch must insert a sale")
	}
	doc, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("encode sale: %w", err)
	}

	decrements, order := foldDecrements(batch.Decrements())

	keys := make([]string, 0, 2+len(order))
	keys = append(keys, saleKeyPrefix+sale.ID, requestKeyPrefix+sale.RequestKey)
	hasRequestKey := "0"
	if sale.RequestKey != "" {
		hasRequestKey = "1"
	}
	args := []any{doc, hasRequestKey, sale.ID}
	for _, id := range order {
		d := decrements[id]
		keys = append(keys, productKeyPrefix+id)
		args = append(args, d.Amount, d.ExpectedMinimum)
	}

	res, err := applyBatchScript.Run(ctx, r.client, keys, args...).Int64Slice()
	if err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	if len(res) == 0 {
		return errors.New("apply batch: empty script reply")
	}

	switch res[0] {
	case applyResultOK:
		return nil
	case applyResultDup:
		return port.ErrDuplicateRequest
	case applyResultExists:
		return port.ErrAlreadyExists
	case applyResultMissing, applyResultConflict:
		if len(res) < 2 || res[1] < 1 || int(res[1]) > len(order) {
			return fmt.Errorf("apply batch: malformed reply %v", res)
		}
		d := decrements[order[res[1]-1]]
		conflict := &port.StockConflictError{ProductID: d.ProductID, Requested: d.Amount}
		if res[0] == applyResultMissing {
			conflict.Missing = true
		} else if len(res) > 2 {
			conflict.Available = int(res[2])
		}
		return conflict
	}
	return fmt.Errorf("apply batch: unknown result %d", res[0])
}

// SaveProduct writes the product hash, overwriting stock. Catalog seeding only.
func (r *RedisAdapter) SaveProduct(ctx context.Context, p domain.Product) error {
	return r.client.HSet(ctx, productKeyPrefix+p.ID,
		"name", p.Name,
		"sku", p.SKU,
		"price", p.Price.String(),
		"stock", p.Stock,
		"category", p.Category,
		"description", p.Description,
	).Err()
}

func (r *RedisAdapter) SaveCustomer(ctx context.Context, c domain.Customer) error {
	return r.client.HSet(ctx, customerKeyPrefix+c.ID,
		"name", c.Name,
		"email", c.Email,
		"phone", c.Phone,
		"address", c.Address,
	).Err()
}

func productFromHash(id string, fields map[string]string) (*domain.Product, error) {
	if len(fields) == 0 {
		return nil, port.ErrNotFound
	}
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, fmt.Errorf("product %s price: %w", id, err)
	}
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("product %s stock: %w", id, err)
	}
	return &domain.Product{
		ID:          id,
		Name:        fields["name"],
		SKU:         fields["sku"],
		Price:       price,
		Stock:       stock,
		Category:    fields["category"],
		Description: fields["description"],
	}, nil
}

// foldDecrements merges decrements of the same product, keeping first-seen order.
func foldDecrements(in []domain.DecrementStock) (map[string]domain.DecrementStock, []string) {
	out := make(map[string]domain.DecrementStock, len(in))
	var order []string
	for _, d := range in {
		prev, ok := out[d.ProductID]
		if !ok {
			order = append(order, d.ProductID)
			out[d.ProductID] = d
			continue
		}
		prev.ExpectedMinimum = max(prev.ExpectedMinimum, prev.Amount+d.ExpectedMinimum)
		prev.Amount += d.Amount
		out[d.ProductID] = prev
	}
	return out, order
}
