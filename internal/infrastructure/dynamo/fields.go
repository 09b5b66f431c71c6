package dynamo

// DynamoDB attribute names used in expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldSessionID  = "session_id"
	fieldCode       = "code"
	fieldStatus     = "status"
	fieldVerifiedAt = "verified_at"
	fieldMetadata   = "metadata"
	fieldExpiresAt  = "expires_at"
)

// mutableFields is the only attribute set Update may touch; everything else
// on a session is immutable after creation.
var mutableFields = map[string]bool{
	fieldStatus:     true,
	fieldVerifiedAt: true,
	fieldMetadata:   true,
}
