package analysis

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the terminal state of one batch job.
type JobStatus string

const (
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// JobRecord is one job's entry in a batch manifest. Output holds a
// caller-chosen locator for the job's result (a cache fingerprint, a
// file path); Error holds the failure message when Status is JobFailed.
type JobRecord struct {
	JobID      string    `json:"job_id"`
	ScenarioID int       `json:"scenario_id"`
	Time       string    `json:"time,omitempty"`
	Status     JobStatus `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Manifest records one batch run: counts plus one record per job.
// Callers that persist batch outputs own the storage schema; the
// manifest is the in-memory record they serialize alongside it.
type Manifest struct {
	CreatedAt    time.Time   `json:"created_at"`
	JobCount     int         `json:"job_count"`
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	JobRecords   []JobRecord `json:"job_records"`
}

// NewManifest starts an empty manifest stamped with the current time.
func NewManifest() *Manifest {
	return &Manifest{CreatedAt: time.Now().UTC()}
}

// Record appends one job outcome, assigning it a fresh job id. The
// returned record echoes what was stored, including the generated id.
func (m *Manifest) Record(scenarioID int, timeKey string, output string, err error) JobRecord {
	rec := JobRecord{
		JobID:      uuid.NewString(),
		ScenarioID: scenarioID,
		Time:       timeKey,
		Output:     output,
		Status:     JobSuccess,
	}
	if err != nil {
		rec.Status = JobFailed
		rec.Error = err.Error()
		rec.Output = ""
	}
	m.JobRecords = append(m.JobRecords, rec)
	m.JobCount++
	if err != nil {
		m.FailureCount++
	} else {
		m.SuccessCount++
	}
	return rec
}
