package models

const ActionIngestLegalDoc = "ingest_legal_doc"

// IngestJob asks the ingest function to index one legal corpus document.
type IngestJob struct {
	Action string `json:"action"`
	S3Key  string `json:"s3_key"`
}
