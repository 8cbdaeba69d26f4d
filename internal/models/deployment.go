package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Deployment detail statuses.
const (
	DetailsInProgress = "in_progress"
	DetailsSuccess    = "success"
	DetailsError      = "error"
)

// DeploymentDetails is the provider-tagged payload persisted on a record.
// Fields present depend on Status.
type DeploymentDetails struct {
	Status     string         `json:"status"`
	Provider   string         `json:"provider,omitempty"`
	Log        string         `json:"log,omitempty"`
	Sequence   int64          `json:"sequence,omitempty"`
	StartTime  *time.Time     `json:"startTime,omitempty"`
	LastUpdate *time.Time     `json:"lastUpdate,omitempty"`
	EndTime    *time.Time     `json:"endTime,omitempty"`
	Result     *DeployResult  `json:"result,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
}

// DeployResult is the engine's summary of a finished update.
type DeployResult struct {
	Summary  string         `json:"summary,omitempty"`
	Changes  map[string]int `json:"changes,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Stdout   string         `json:"stdout,omitempty"`
}

// JSON encodes the details for storage.
func (d DeploymentDetails) JSON() datatypes.JSON {
	b, err := json.Marshal(d)
	if err != nil {
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(b)
}

// InProgressDetails builds a progress snapshot.
func InProgressDetails(provider, line string, seq int64, start, now time.Time) DeploymentDetails {
	return DeploymentDetails{
		Status:     DetailsInProgress,
		Provider:   provider,
		Log:        line,
		Sequence:   seq,
		StartTime:  &start,
		LastUpdate: &now,
	}
}

// SuccessDetails builds the terminal success payload.
func SuccessDetails(provider string, result *DeployResult, outputs map[string]any, start, end time.Time) DeploymentDetails {
	return DeploymentDetails{
		Status:    DetailsSuccess,
		Provider:  provider,
		Result:    result,
		Outputs:   outputs,
		StartTime: &start,
		EndTime:   &end,
	}
}

// ErrorDetails builds the terminal failure payload.
func ErrorDetails(provider, msg string, at time.Time) DeploymentDetails {
	return DeploymentDetails{
		Status:    DetailsError,
		Provider:  provider,
		Error:     msg,
		Timestamp: &at,
	}
}
