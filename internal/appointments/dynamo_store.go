package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
)

var dynamoTracer = otel.Tracer("dental.internal.appointments.dynamodb")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoItem stores every field as text, keyed by the start timestamp.
type dynamoItem struct {
	Start       string `dynamodbav:"start"`
	End         string `dynamodbav:"end"`
	PatientName string `dynamodbav:"patient_name"`
	Contact     string `dynamodbav:"contact"`
	Reason      string `dynamodbav:"reason"`
	CreatedAt   string `dynamodbav:"created_at"`
}

// DynamoStore keeps the schedule in a DynamoDB table with partition key
// "start". Two bookings with the same start are rejected by a conditional put.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) ReadAll(ctx context.Context) ([]Record, error) {
	ctx, span := dynamoTracer.Start(ctx, "appointments.dynamodb.read_all")
	defer span.End()

	var (
		records  []Record
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			span.RecordError(err)
			return nil, &StoreReadError{Backend: "dynamodb", Err: err}
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			span.RecordError(err)
			return nil, &StoreReadError{Backend: "dynamodb", Err: fmt.Errorf("decode items: %w", err)}
		}
		for _, item := range items {
			rec, err := ParseRow(map[string]string{
				ColumnStart:     item.Start,
				ColumnEnd:       item.End,
				ColumnName:      item.PatientName,
				ColumnContact:   item.Contact,
				ColumnReason:    item.Reason,
				ColumnCreatedAt: item.CreatedAt,
			})
			if err != nil {
				span.RecordError(err)
				return nil, &StoreReadError{Backend: "dynamodb", Err: err}
			}
			records = append(records, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	SortByStart(records)
	return records, nil
}

func (s *DynamoStore) Append(ctx context.Context, rec Record) error {
	ctx, span := dynamoTracer.Start(ctx, "appointments.dynamodb.append")
	defer span.End()

	row := rec.Row()
	item, err := attributevalue.MarshalMap(dynamoItem{
		Start:       row[0],
		End:         row[1],
		PatientName: row[2],
		Contact:     row[3],
		Reason:      row[4],
		CreatedAt:   row[5],
	})
	if err != nil {
		return &StoreWriteError{Backend: "dynamodb", Err: fmt.Errorf("marshal item: %w", err)}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#start)"),
		ExpressionAttributeNames: map[string]string{
			"#start": "start",
		},
	})
	if err != nil {
		span.RecordError(err)
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &StoreWriteError{Backend: "dynamodb", Err: ErrConflict}
		}
		return &StoreWriteError{Backend: "dynamodb", Err: err}
	}
	return nil
}
