package reconciliation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Topic is the work queue topic carrying reconciliation jobs.
const Topic = "reconciliation.jobs"

// Job is the queue payload. It only names the transaction; every attempt
// re-reads the current state from the store.
type Job struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

func encodeJob(id uuid.UUID) ([]byte, error) {
	return json.Marshal(Job{TransactionID: id})
}

func decodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("decoding job: %w", err)
	}

	if job.TransactionID == uuid.Nil {
		return Job{}, errors.New("job has no transaction id")
	}

	return job, nil
}
