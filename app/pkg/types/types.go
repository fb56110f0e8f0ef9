package types

import "fmt"

// TaskRequest is the inbound webhook payload. One request describes one
// round of one task; (Email, Task, Round, Nonce) identify the submission.
type TaskRequest struct {
	Email         string       `json:"email"`
	Secret        string       `json:"secret"`
	Task          string       `json:"task"`
	Round         int          `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	EvaluationURL string       `json:"evaluation_url"`
	Checks        []string     `json:"checks,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

// DedupKey identifies one logical submission. Identical retransmissions
// map to the same key; a new round maps to a new key.
func (r TaskRequest) DedupKey() string {
	return fmt.Sprintf("%s::%s::round%d::%s", r.Email, r.Task, r.Round, r.Nonce)
}

// Attachment is an inbound attachment reference. URL is a data URI
// carrying the base64-encoded payload.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DecodedAttachment is an attachment materialized to local disk.
// Immutable once decoded; lives for one processing run.
type DecodedAttachment struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	MIME    string `json:"mime"`
	Size    int    `json:"size"`
	Preview string `json:"preview"`
}

// ArtifactSet is the pair of documents split from one generation response.
type ArtifactSet struct {
	Markup string
	Readme string
}

// PublishedResult is the durable record of one successful publish. Once
// stored under a dedup key it is never mutated; replays read it verbatim.
type PublishedResult struct {
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// NotifyPayload is what the evaluator receives on completion.
type NotifyPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// NotifyPayloadFor merges a stored result with the identity fields of the
// request that produced (or replayed) it.
func NotifyPayloadFor(r TaskRequest, res PublishedResult) NotifyPayload {
	return NotifyPayload{
		Email:     r.Email,
		Task:      r.Task,
		Round:     r.Round,
		Nonce:     r.Nonce,
		RepoURL:   res.RepoURL,
		CommitSHA: res.CommitSHA,
		PagesURL:  res.PagesURL,
	}
}
