package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
)

// FileTable stores FileRecords with partition key user_id and sort key file_id.
type FileTable struct {
	api   API
	table string
}

var _ store.FileRepository = (*FileTable)(nil)

// NewFileTable returns the repository for the named table.
func NewFileTable(api API, table string) *FileTable {
	return &FileTable{api: api, table: table}
}

func (t *FileTable) key(userID, fileID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": stringAttr(userID),
		"file_id": stringAttr(fileID),
	}
}

func (t *FileTable) CreatePending(ctx context.Context, rec model.FileRecord) error {
	rec.Status = model.StatusPending
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal file record: %w", err)
	}
	_, err = t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#fid)"),
		ExpressionAttributeNames: map[string]string{"#fid": "file_id"},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.ErrAlreadyExists
	}
	return apperr.FromAWS("dynamodb.PutItem files", err)
}

func (t *FileTable) MarkUploaded(ctx context.Context, userID, fileID string) error {
	_, err := t.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(t.table),
		Key:                 t.key(userID, fileID),
		UpdateExpression:    aws.String("SET #s = :uploaded"),
		ConditionExpression: aws.String("attribute_exists(#fid)"),
		ExpressionAttributeNames: map[string]string{
			"#s":   "status",
			"#fid": "file_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uploaded": stringAttr(model.StatusUploaded),
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.ErrNotFound
	}
	return apperr.FromAWS("dynamodb.UpdateItem files", err)
}

func (t *FileTable) Get(ctx context.Context, userID, fileID string) (model.FileRecord, error) {
	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.table),
		Key:            t.key(userID, fileID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.FileRecord{}, apperr.FromAWS("dynamodb.GetItem files", err)
	}
	if len(out.Item) == 0 {
		return model.FileRecord{}, store.ErrNotFound
	}
	var rec model.FileRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return model.FileRecord{}, fmt.Errorf("unmarshal file record: %w", err)
	}
	return rec, nil
}

// ListByUser pages through every record in the user's partition.
func (t *FileTable) ListByUser(ctx context.Context, userID string) ([]model.FileRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(t.table),
		KeyConditionExpression:    aws.String("#uid = :uid"),
		ExpressionAttributeNames:  map[string]string{"#uid": "user_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": stringAttr(userID)},
	}
	records := []model.FileRecord{}
	for {
		out, err := t.api.Query(ctx, in)
		if err != nil {
			return nil, apperr.FromAWS("dynamodb.Query files", err)
		}
		var page []model.FileRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal file records: %w", err)
		}
		records = append(records, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return records, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// ListPending scans the whole table for records still marked PENDING.
func (t *FileTable) ListPending(ctx context.Context) ([]model.FileRecord, error) {
	in := &dynamodb.ScanInput{
		TableName:                 aws.String(t.table),
		FilterExpression:          aws.String("#s = :pending"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pending": stringAttr(model.StatusPending)},
	}
	var records []model.FileRecord
	for {
		out, err := t.api.Scan(ctx, in)
		if err != nil {
			return nil, apperr.FromAWS("dynamodb.Scan files", err)
		}
		var page []model.FileRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal file records: %w", err)
		}
		records = append(records, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return records, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (t *FileTable) Delete(ctx context.Context, userID, fileID string) error {
	_, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.table),
		Key:       t.key(userID, fileID),
	})
	return apperr.FromAWS("dynamodb.DeleteItem files", err)
}

func (t *FileTable) Describe(ctx context.Context) (TableInfo, error) {
	info, err := describe(ctx, t.api, t.table)
	return info, apperr.FromAWS("dynamodb.DescribeTable files", err)
}
