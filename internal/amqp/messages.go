package amqp

import (
	"encoding/json"
	"time"

	"esgdash/internal/core"
)

// ScorecardComputedMessage announces a processed batch. Consumers fetch the
// full report from the backend by ReportID.
type ScorecardComputedMessage struct {
	ReportID         string    `json:"report_id"`
	Source           string    `json:"source"`
	TotalKgCO2e      float64   `json:"total_kg_co2e"`
	TotalTonnesCO2e  float64   `json:"total_tonnes_co2e"`
	TransactionCount int       `json:"transaction_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewScorecardComputedMessage summarizes sc for the report stored as reportID.
func NewScorecardComputedMessage(reportID, source string, sc core.Scorecard) *ScorecardComputedMessage {
	return &ScorecardComputedMessage{
		ReportID:         reportID,
		Source:           source,
		TotalKgCO2e:      sc.TotalKgCO2e,
		TotalTonnesCO2e:  sc.TotalTonnesCO2e,
		TransactionCount: sc.TransactionCount,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ScorecardComputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ScorecardComputedMessageFromJSON decodes a message body.
func ScorecardComputedMessageFromJSON(data []byte) (*ScorecardComputedMessage, error) {
	var msg ScorecardComputedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
