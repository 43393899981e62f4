package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"StagePlanner/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	planKeyPrefix = "PLAN#"
	zoneKeyPrefix = "ZONE#"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoRecorder.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoRecorder keeps the latest plan and zone check per symbol in a single table
// keyed by "pk". History is not retained; each write replaces the previous item.
type DynamoRecorder struct {
	client DynamoAPI
	table  string
}

type planItem struct {
	PK        string `dynamodbav:"pk"`
	Symbol    string `dynamodbav:"symbol"`
	PlanID    string `dynamodbav:"plan_id"`
	Strategy  string `dynamodbav:"strategy"`
	Payload   string `dynamodbav:"payload"` // JSON encoded model.Plan
	CreatedAt int64  `dynamodbav:"created_at"`
}

type zoneItem struct {
	PK             string `dynamodbav:"pk"`
	Symbol         string `dynamodbav:"symbol"`
	Zone           string `dynamodbav:"zone"`
	Strategy       string `dynamodbav:"strategy"`
	ReferenceType  string `dynamodbav:"reference_type"`
	ReferencePrice string `dynamodbav:"reference_price"`
	CurrentPrice   string `dynamodbav:"current_price"`
	ChangePercent  string `dynamodbav:"change_percent"`
	PlanID         string `dynamodbav:"plan_id,omitempty"`
	Executable     bool   `dynamodbav:"executable"`
	CheckedAt      int64  `dynamodbav:"checked_at"`
}

// NewDynamoRecorder loads the default AWS configuration for region and returns a recorder.
func NewDynamoRecorder(ctx context.Context, table, region string) (*DynamoRecorder, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	log.Printf("[INFO] dynamodb recorder using table %s (%s)", table, region)
	return NewDynamoRecorderWithClient(dynamodb.NewFromConfig(cfg), table), nil
}

// NewDynamoRecorderWithClient wraps an existing client.
func NewDynamoRecorderWithClient(client DynamoAPI, table string) *DynamoRecorder {
	return &DynamoRecorder{client: client, table: table}
}

func (r *DynamoRecorder) SavePlan(ctx context.Context, plan *model.Plan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	item, err := attributevalue.MarshalMap(planItem{
		PK:        planKeyPrefix + plan.Symbol,
		Symbol:    plan.Symbol,
		PlanID:    plan.ID,
		Strategy:  string(plan.Strategy),
		Payload:   string(payload),
		CreatedAt: plan.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal plan item: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put plan %s: %w", plan.Symbol, err)
	}
	return nil
}

func (r *DynamoRecorder) get(ctx context.Context, pk string, out interface{}) error {
	resp, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]dynamotypes.AttributeValue{
			"pk": &dynamotypes.AttributeValueMemberS{Value: pk},
		},
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", pk, err)
	}
	if resp.Item == nil {
		return ErrNotFound
	}
	return attributevalue.UnmarshalMap(resp.Item, out)
}

func (r *DynamoRecorder) LatestPlan(ctx context.Context, symbol string) (*model.Plan, error) {
	var item planItem
	if err := r.get(ctx, planKeyPrefix+symbol, &item); err != nil {
		return nil, err
	}
	var plan model.Plan
	if err := json.Unmarshal([]byte(item.Payload), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

func (r *DynamoRecorder) RecordZoneCheck(ctx context.Context, zc *ZoneCheck) error {
	item, err := attributevalue.MarshalMap(zoneItem{
		PK:             zoneKeyPrefix + zc.Symbol,
		Symbol:         zc.Symbol,
		Zone:           zc.Zone.String(),
		Strategy:       string(zc.Strategy),
		ReferenceType:  string(zc.ReferenceType),
		ReferencePrice: zc.ReferencePrice.String(),
		CurrentPrice:   zc.CurrentPrice.String(),
		ChangePercent:  zc.ChangePercent.String(),
		PlanID:         zc.PlanID,
		Executable:     zc.Executable,
		CheckedAt:      zc.CheckedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal zone item: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put zone %s: %w", zc.Symbol, err)
	}
	return nil
}

func (r *DynamoRecorder) LastZone(ctx context.Context, symbol string) (*ZoneCheck, error) {
	var item zoneItem
	if err := r.get(ctx, zoneKeyPrefix+symbol, &item); err != nil {
		return nil, err
	}
	zc := &ZoneCheck{
		Symbol:        item.Symbol,
		Zone:          model.ParseZone(item.Zone),
		Strategy:      model.Strategy(item.Strategy),
		ReferenceType: model.ReferenceType(item.ReferenceType),
		PlanID:        item.PlanID,
		Executable:    item.Executable,
		CheckedAt:     time.Unix(0, item.CheckedAt).UTC(),
	}
	if err := zc.setPrices(item.ReferencePrice, item.CurrentPrice, item.ChangePercent); err != nil {
		return nil, fmt.Errorf("zone check %s: %w", symbol, err)
	}
	return zc, nil
}

func (r *DynamoRecorder) Close() error { return nil }
