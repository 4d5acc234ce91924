package models

import "errors"

// Error taxonomy of the pipeline. Callers discriminate with errors.Is;
// lower layers wrap these with fmt.Errorf("%w: ...").
var (
	ErrExtraction        = errors.New("document could not be parsed")
	ErrSplit             = errors.New("page could not be split")
	ErrEmbedding         = errors.New("embedding request failed")
	ErrIndexProvisioning = errors.New("index provisioning failed")
	ErrUpsert            = errors.New("index upsert failed")
	ErrAnswer            = errors.New("answer generation failed")
)
