package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"

	"github.com/hasib2k/online-store/internal/aws"
)

// orderItem is the item stored in the orders DynamoDB table.
type orderItem struct {
	OrderID      string    `dynamodbav:"order_id"` // PK
	CustomerName string    `dynamodbav:"customer_name"`
	Phone        string    `dynamodbav:"phone"`
	Address      string    `dynamodbav:"address"`
	ProductName  string    `dynamodbav:"product_name,omitempty"`
	Price        float64   `dynamodbav:"price"`
	Shipping     float64   `dynamodbav:"shipping"`
	Total        float64   `dynamodbav:"total"`
	Quantity     int       `dynamodbav:"quantity"`
	Area         string    `dynamodbav:"area,omitempty"`
	Status       string    `dynamodbav:"status"`
	GeneratedKey string    `dynamodbav:"generated_key,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
}

func (it orderItem) toOrder() Order {
	created := it.CreatedAt
	o := Order{
		ID:           it.OrderID,
		CustomerName: it.CustomerName,
		Phone:        it.Phone,
		Address:      it.Address,
		ProductName:  it.ProductName,
		Price:        decimal.NewFromFloat(it.Price),
		Shipping:     decimal.NewFromFloat(it.Shipping),
		Total:        decimal.NewFromFloat(it.Total),
		Quantity:     it.Quantity,
		Area:         it.Area,
		Status:       ParseStatus(it.Status),
		GeneratedKey: it.GeneratedKey,
	}
	if !created.IsZero() {
		o.CreatedAtRaw = &created
	}
	return o
}

// DynamoStore is the structured order store backed by a DynamoDB table.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoStore creates a new DynamoDB-backed order store.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

func (s *DynamoStore) Name() string { return "dynamodb" }

// ListAll scans the whole table.
func (s *DynamoStore) ListAll(ctx context.Context) ([]Order, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	var out []Order
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var items []orderItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		for _, it := range items {
			out = append(out, it.toOrder())
		}
	}
	return out, nil
}

// FindByID fetches an order by order_id, falling back to an item whose
// order_id spells the same number.
func (s *DynamoStore) FindByID(ctx context.Context, id string) (*Order, error) {
	o, err := s.findByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if alias, ok := s.alias(ctx, id); ok {
			return s.findByID(ctx, alias)
		}
	}
	return o, err
}

func (s *DynamoStore) findByID(ctx context.Context, id string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var it orderItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o := it.toOrder()
	return &o, nil
}

// UpdateStatus sets the status of an existing order and returns the updated row.
func (s *DynamoStore) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	o, err := s.updateStatus(ctx, id, status)
	if errors.Is(err, ErrNotFound) {
		if alias, ok := s.alias(ctx, id); ok {
			return s.updateStatus(ctx, alias, status)
		}
	}
	return o, err
}

func (s *DynamoStore) updateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	now := s.nowFunc()
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      keyOf(id),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ConditionExpression:      awsString("attribute_exists(order_id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberS{Value: string(status)},
			":ua":  &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var it orderItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o := it.toOrder()
	return &o, nil
}

// Delete removes an existing order.
func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	err := s.delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if alias, ok := s.alias(ctx, id); ok {
			return s.delete(ctx, alias)
		}
	}
	return err
}

func (s *DynamoStore) delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 keyOf(id),
		ConditionExpression: awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// alias scans order ids containing the canonical text of id and returns one
// spelling the same number.
func (s *DynamoStore) alias(ctx context.Context, id string) (string, bool) {
	if !numericID.MatchString(id) {
		return "", false
	}
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName:            &s.tableName,
		ProjectionExpression: awsString("order_id"),
		FilterExpression:     awsString("contains(order_id, :c)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: CanonicalID(id)},
		},
	})
	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return "", false
		}
		for _, item := range page.Items {
			if v, ok := item["order_id"].(*types.AttributeValueMemberS); ok {
				ids = append(ids, v.Value)
			}
		}
	}
	return storedAlias(ids, id)
}

// Create inserts a new order; the id must not exist yet.
func (s *DynamoStore) Create(ctx context.Context, o Order) error {
	now := s.nowFunc()
	created := now
	if o.CreatedAtRaw != nil {
		created = *o.CreatedAtRaw
	}
	item, err := attributevalue.MarshalMap(orderItem{
		OrderID:      o.ID,
		CustomerName: o.CustomerName,
		Phone:        o.Phone,
		Address:      o.Address,
		ProductName:  o.ProductName,
		Price:        o.Price.InexactFloat64(),
		Shipping:     o.Shipping.InexactFloat64(),
		Total:        o.Total.InexactFloat64(),
		Quantity:     o.Quantity,
		Area:         o.Area,
		Status:       string(ParseStatus(string(o.Status))),
		GeneratedKey: o.GeneratedKey,
		CreatedAt:    created,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
