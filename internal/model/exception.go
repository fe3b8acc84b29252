package model

import "time"

// ErrorKind classifies a failed processing attempt. It is a closed enum:
// business failures are caused by message content and only a corrected
// resubmission recovers them, technical failures are structural or
// unexpected faults.
type ErrorKind string

const (
	ErrorKindBusiness  ErrorKind = "BUSINESS"
	ErrorKindTechnical ErrorKind = "TECHNICAL"
)

// FailureReasonMaxLen bounds the stored failure reason.
const FailureReasonMaxLen = 1000

// TruncateReason caps a failure reason at FailureReasonMaxLen, ending the
// truncated form with an explicit ellipsis marker.
func TruncateReason(reason string) string {
	if len(reason) <= FailureReasonMaxLen {
		return reason
	}
	return reason[:FailureReasonMaxLen-3] + "..."
}

// TradeException records one failed processing attempt. The client
// reference number is empty for payloads that never parsed.
type TradeException struct {
	ID                    int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ClientReferenceNumber string    `gorm:"column:client_reference_number" json:"client_reference_number"`
	ErrorKind             ErrorKind `gorm:"column:error_kind;not null" json:"error_kind"`
	FailedPayload         string    `gorm:"column:failed_payload;not null" json:"failed_payload"`
	FailureReason         string    `gorm:"column:failure_reason;size:1000" json:"failure_reason"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (TradeException) TableName() string {
	return "trade_exceptions"
}
