package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phone-verification-api/internal/domain"
)

// VerificationSessionRepo is the DynamoDB-backed session store.
// PK: session_id. The pending->verified transition is a conditional write,
// so concurrent verifies on one id cannot both transition; expires_at is
// the table's native TTL attribute, with lazy expiry on the read path
// staying authoritative until the TTL delete catches up.
type VerificationSessionRepo struct {
	client    *dynamodb.Client
	tableName string
	nowF      func() time.Time
}

func NewVerificationSessionRepo(client *dynamodb.Client, tableName string) *VerificationSessionRepo {
	return &VerificationSessionRepo{
		client:    client,
		tableName: tableName,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *VerificationSessionRepo) Put(ctx context.Context, s *domain.VerificationSession) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if isConditionalCheckFailed(err) {
		return fmt.Errorf("session %s already exists: %w", s.SessionID, domain.ErrConflict)
	}
	return err
}

func (r *VerificationSessionRepo) Get(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	s, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r.persistLazyExpiry(ctx, s)
	return s, nil
}

func (r *VerificationSessionRepo) Verify(ctx context.Context, sessionID, submittedCode string) (*domain.VerificationSession, error) {
	s, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r.persistLazyExpiry(ctx, s)

	switch s.Status {
	case domain.StatusExpired:
		return nil, fmt.Errorf("session expired: %w", domain.ErrExpired)
	case domain.StatusVerified:
		return s, nil
	}
	if submittedCode != s.Code {
		return nil, fmt.Errorf("wrong code for session %s: %w", sessionID, domain.ErrCodeMismatch)
	}

	now := r.nowF()
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey(fieldSessionID, sessionID),
		UpdateExpression: aws.String("SET #s = :verified, #v = :now"),
		// Compare-and-set: only the first verify of a live pending session
		// performs the transition.
		ConditionExpression: aws.String("#s = :pending AND #c = :code AND #e >= :nowsec"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldStatus,
			"#v": fieldVerifiedAt,
			"#c": fieldCode,
			"#e": fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":verified": &types.AttributeValueMemberS{Value: domain.StatusVerified},
			":pending":  &types.AttributeValueMemberS{Value: domain.StatusPending},
			":code":     &types.AttributeValueMemberS{Value: submittedCode},
			":now":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":nowsec":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionalCheckFailed(err) {
		// Lost the race; re-read to report what actually happened.
		return r.resolveLostVerify(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	var updated domain.VerificationSession
	if uerr := attributevalue.UnmarshalMap(out.Attributes, &updated); uerr != nil {
		return nil, uerr
	}
	return &updated, nil
}

func (r *VerificationSessionRepo) Update(ctx context.Context, sessionID string, updates map[string]interface{}) (*domain.VerificationSession, error) {
	// Metadata merges rather than replaces, so fold attached fields into the
	// current map first. Attach traffic is low enough that the read-merge-write
	// window is acceptable here; transitions never go through this path.
	if fields, ok := updates[fieldMetadata].(map[string]string); ok {
		current, err := r.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]string, len(current.Metadata)+len(fields))
		for k, v := range current.Metadata {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		updates[fieldMetadata] = merged
	}

	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if mutableFields[k] {
			filtered[k] = v
		}
	}
	ue, err := buildUpdateExpr(filtered)
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldSessionID, sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(session_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionalCheckFailed(err) {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var updated domain.VerificationSession
	if uerr := attributevalue.UnmarshalMap(out.Attributes, &updated); uerr != nil {
		return nil, uerr
	}
	return &updated, nil
}

func (r *VerificationSessionRepo) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(r.tableName),
			FilterExpression:         aws.String("#e < :now"),
			ProjectionExpression:     aws.String(fieldSessionID),
			ExpressionAttributeNames: map[string]string{"#e": fieldExpiresAt},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return removed, err
		}
		for _, item := range out.Items {
			idAttr, ok := item[fieldSessionID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       strKey(fieldSessionID, idAttr.Value),
			}); err != nil {
				slog.Warn("failed to delete expired session", "session_id", idAttr.Value, "err", err)
				continue
			}
			removed++
		}
		if out.LastEvaluatedKey == nil {
			return removed, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *VerificationSessionRepo) load(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldSessionID, sessionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.VerificationSession
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// persistLazyExpiry flips a past-deadline pending session to expired, in the
// returned struct always and in the table best-effort. The conditional
// expression keeps the write from clobbering a concurrent verify.
func (r *VerificationSessionRepo) persistLazyExpiry(ctx context.Context, s *domain.VerificationSession) {
	if s.EffectiveStatus(r.nowF()) != domain.StatusExpired || s.Status != domain.StatusPending {
		return
	}
	s.Status = domain.StatusExpired
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldSessionID, s.SessionID),
		UpdateExpression:    aws.String("SET #s = :expired"),
		ConditionExpression: aws.String("#s = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expired": &types.AttributeValueMemberS{Value: domain.StatusExpired},
			":pending": &types.AttributeValueMemberS{Value: domain.StatusPending},
		},
	})
	if err != nil && !isConditionalCheckFailed(err) {
		slog.Warn("failed to persist expired status", "session_id", s.SessionID, "err", err)
	}
}

// resolveLostVerify re-reads a session after a failed conditional verify to
// report the terminal outcome another writer produced.
func (r *VerificationSessionRepo) resolveLostVerify(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	s, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch s.EffectiveStatus(r.nowF()) {
	case domain.StatusVerified:
		return s, nil
	case domain.StatusExpired:
		return nil, fmt.Errorf("session expired: %w", domain.ErrExpired)
	default:
		return nil, fmt.Errorf("wrong code for session %s: %w", sessionID, domain.ErrCodeMismatch)
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccfe *types.ConditionalCheckFailedException
	return errors.As(err, &ccfe)
}
