// Package model holds the shared entity types for jobs, documents,
// snippets, and their relationships.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes the two job variants that own documents.
type JobKind string

const (
	JobKindCrawl  JobKind = "crawl"
	JobKindUpload JobKind = "upload"
)

// JobStatus is the lifecycle status of a Job. Completion, whether by
// success, cancellation, or fatal error, always lands on Completed;
// the distinguishing detail lives in ErrorMessage/Cancelled.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
)

// JobPhase narrows what a running crawl job is currently doing.
type JobPhase string

const (
	JobPhaseCrawling   JobPhase = "crawling"
	JobPhaseFinalizing JobPhase = "finalizing"
	JobPhaseNone       JobPhase = ""
)

// Job is a unit of ingestion work, either a crawl or an upload.
// (name, version) is unique across jobs of a single Kind.
type Job struct {
	ID        uuid.UUID
	Kind      JobKind
	Name      string
	Version   string // optional; empty string means "no version"
	Status    JobStatus
	Phase     JobPhase
	Cancelled bool

	PagesProcessed    int64
	SnippetsExtracted int64

	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastHeartbeat *time.Time

	RetryCount int
	MaxRetries int

	ErrorMessage *string
	Config       json.RawMessage
}

// SourceKey returns the job's source key: its name, or "name@version"
// when a version is set.
func (j Job) SourceKey() string {
	if j.Version == "" {
		return j.Name
	}
	return j.Name + "@" + j.Version
}

// ContentType of a Document's stored body.
type ContentType string

const (
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeHTML     ContentType = "html"
)

// Document is one page or file belonging to exactly one Job.
type Document struct {
	ID      uuid.UUID
	URL     string
	JobID   uuid.UUID
	JobKind JobKind

	Title          string
	ContentType    ContentType
	ContentHash    string
	MarkdownContent string

	CrawlDepth int
	ParentURL  string

	Unchanged bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnippetType classifies the role a code block plays in its document.
type SnippetType string

const (
	SnippetTypeFunction SnippetType = "function"
	SnippetTypeClass    SnippetType = "class"
	SnippetTypeExample  SnippetType = "example"
	SnippetTypeConfig   SnippetType = "config"
	SnippetTypeCode     SnippetType = "code"
)

// CodeSnippet is one extracted code block, owned by exactly one Document.
// (DocumentID, CodeHash) is unique.
type CodeSnippet struct {
	ID         uuid.UUID
	DocumentID uuid.UUID

	Title       string
	Description string
	Language    string

	CodeContent string
	CodeHash    string

	LineStart *int
	LineEnd   *int

	ContextBefore string
	ContextAfter  string

	SectionTitle   string
	SectionContent string

	Functions []string
	Imports   []string
	Keywords  []string

	SnippetType SnippetType
	SourceURL   string
	Enriched    bool

	Meta json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FailedPage records the last error for a (job, url) pair.
type FailedPage struct {
	JobID     uuid.UUID
	URL       string
	Error     string
	CreatedAt time.Time
}

// RelationshipType is the label on a directed edge between two snippets.
type RelationshipType string

const (
	RelationImports        RelationshipType = "imports"
	RelationExtends        RelationshipType = "extends"
	RelationImplements     RelationshipType = "implements"
	RelationUses           RelationshipType = "uses"
	RelationExampleOf      RelationshipType = "example_of"
	RelationConfigurationF RelationshipType = "configuration_for"
	RelationRelated        RelationshipType = "related"
)

// inverseNames maps each relationship type to the symmetric name used
// when reporting the edge from the target's point of view.
var inverseNames = map[RelationshipType]string{
	RelationImports:        "imported_by",
	RelationExtends:        "extended_by",
	RelationImplements:     "implemented_by",
	RelationUses:           "used_by",
	RelationExampleOf:      "has_example",
	RelationConfigurationF: "configured_by",
	RelationRelated:        "related",
}

// InverseName returns the symmetric label used for the backward edge.
func InverseName(t RelationshipType) string {
	if name, ok := inverseNames[t]; ok {
		return name
	}
	return string(t)
}

// SnippetRelationship is a directed edge between two CodeSnippets.
// (Source, Target, Type) is unique.
type SnippetRelationship struct {
	ID          uuid.UUID
	Source      uuid.UUID
	Target      uuid.UUID
	Type        RelationshipType
	Description string
	CreatedAt   time.Time
}

// Source is the logical, derived view over a job: a named, optionally
// versioned documentation corpus.
type Source struct {
	JobID          uuid.UUID
	JobKind        JobKind
	Name           string
	Version        string
	DocumentCount  int64
	SnippetCount   int64
	LastUpdated    time.Time
	Status         JobStatus
}

// SearchMode controls whether content search always runs the
// markdown-fallback stage.
type SearchMode string

const (
	SearchModeCode     SearchMode = "code"
	SearchModeEnhanced SearchMode = "enhanced"
)
