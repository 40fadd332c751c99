// Package db stores imported score records in DynamoDB.
package db

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"
)

// DynamoDB refuses larger BatchGetItem requests.
const maxBatchKeys = 100

// ScoreRecord is one imported file. Tracks holds the serialized
// MML@ text of each track.
type ScoreRecord struct {
	Key        string   `dynamodbav:"PK"`
	Title      string   `dynamodbav:"Title"`
	Author     string   `dynamodbav:"Author"`
	Generation int      `dynamodbav:"Generation"`
	TotalTicks int      `dynamodbav:"TotalTicks"`
	Tracks     []string `dynamodbav:"Tracks"`
}

type Store struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

func NewStore(endpoint, region, table string) (*Store, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating DynamoDB session")
	}
	return NewStoreWithClient(dynamodb.New(sess), table), nil
}

func NewStoreWithClient(client dynamodbiface.DynamoDBAPI, table string) *Store {
	return &Store{client: client, table: table}
}

func (s *Store) PutScore(ctx context.Context, rec ScoreRecord) error {
	if rec.Key == "" {
		return errors.New("score record without key")
	}
	item, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "marshalling score record")
	}
	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return errors.Wrapf(err, "putting %s", rec.Key)
}

// GetScores fetches records by key. Keys that are not stored are absent
// from the result.
func (s *Store) GetScores(ctx context.Context, keys []string) (map[string]ScoreRecord, error) {
	if len(keys) > maxBatchKeys {
		return nil, errors.Errorf("at most %d keys per batch, got %d", maxBatchKeys, len(keys))
	}

	res := make(map[string]ScoreRecord)
	if len(keys) == 0 {
		return res, nil
	}

	var items []map[string]*dynamodb.AttributeValue
	for _, k := range keys {
		item := make(map[string]*dynamodb.AttributeValue)
		item["PK"] = &dynamodb.AttributeValue{
			S: aws.String(k),
		}
		items = append(items, item)
	}

	input := &dynamodb.BatchGetItemInput{
		RequestItems: map[string]*dynamodb.KeysAndAttributes{
			s.table: {Keys: items},
		},
	}
	for len(input.RequestItems) > 0 {
		out, err := s.client.BatchGetItemWithContext(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "batch get scores")
		}
		for _, v := range out.Responses[s.table] {
			rec := recordFromItem(v)
			res[rec.Key] = rec
		}
		input = &dynamodb.BatchGetItemInput{RequestItems: out.UnprocessedKeys}
	}
	return res, nil
}

func recordFromItem(v map[string]*dynamodb.AttributeValue) ScoreRecord {
	var rec ScoreRecord
	rec.Key = stringAttr(v["PK"])
	rec.Title = stringAttr(v["Title"])
	rec.Author = stringAttr(v["Author"])
	rec.Generation = intAttr(v["Generation"])
	rec.TotalTicks = intAttr(v["TotalTicks"])
	if t := v["Tracks"]; t != nil {
		for _, s := range t.L {
			rec.Tracks = append(rec.Tracks, stringAttr(s))
		}
	}
	return rec
}

func stringAttr(v *dynamodb.AttributeValue) string {
	if v == nil || v.S == nil {
		return ""
	}
	return *v.S
}

func intAttr(v *dynamodb.AttributeValue) int {
	if v == nil || v.N == nil {
		return 0
	}
	n, _ := strconv.Atoi(*v.N)
	return n
}
