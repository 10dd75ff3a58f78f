package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
)

// LogTable stores ActivityLogEntries with partition key user_id and sort key
// timestamp.
type LogTable struct {
	api   API
	table string
}

var _ store.ActivityLog = (*LogTable)(nil)

// NewLogTable returns the activity log for the named table.
func NewLogTable(api API, table string) *LogTable {
	return &LogTable{api: api, table: table}
}

// Append overwrites an existing entry with the same (user_id, timestamp); two
// events in the same microsecond for one user keep only the later write.
func (t *LogTable) Append(ctx context.Context, entry model.ActivityLogEntry) error {
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal activity log entry: %w", err)
	}
	_, err = t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.table),
		Item:      item,
	})
	return apperr.FromAWS("dynamodb.PutItem logs", err)
}

func (t *LogTable) Recent(ctx context.Context, userID string, limit int) ([]model.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = model.MaxLogEntries
	}
	out, err := t.api.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(t.table),
		KeyConditionExpression:    aws.String("#uid = :uid"),
		ExpressionAttributeNames:  map[string]string{"#uid": "user_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": stringAttr(userID)},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, apperr.FromAWS("dynamodb.Query logs", err)
	}
	var entries []model.ActivityLogEntry
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal activity log entries: %w", err)
	}
	if entries == nil {
		entries = []model.ActivityLogEntry{}
	}
	return entries, nil
}

func (t *LogTable) Delete(ctx context.Context, userID, timestamp string) error {
	_, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.table),
		Key: map[string]types.AttributeValue{
			"user_id":   stringAttr(userID),
			"timestamp": stringAttr(timestamp),
		},
	})
	return apperr.FromAWS("dynamodb.DeleteItem logs", err)
}

func (t *LogTable) Describe(ctx context.Context) (TableInfo, error) {
	info, err := describe(ctx, t.api, t.table)
	return info, apperr.FromAWS("dynamodb.DescribeTable logs", err)
}
