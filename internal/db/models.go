package db

import (
	"encoding/json"
	"time"
)

// Event maps convene.events.
type Event struct {
	EventID              int64           `gorm:"column:event_id;primaryKey;autoIncrement"`
	EventUUID            string          `gorm:"column:event_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SourceURL            string          `gorm:"column:source_url;type:text;not null"`
	RawDocument          string          `gorm:"column:raw_document;type:text;not null"`
	Fingerprint          []byte          `gorm:"column:fingerprint;type:bytea"`
	Language             string          `gorm:"column:language;type:text;not null;default:und"`
	ScrapedAt            time.Time       `gorm:"column:scraped_at;type:timestamptz;not null;default:now()"`
	ExtractedPayload     json.RawMessage `gorm:"column:extracted_payload;type:jsonb"`
	ExtractionConfidence *float64        `gorm:"column:extraction_confidence;type:double precision"`
	QualityScore         *int            `gorm:"column:quality_score;type:integer"`
	ProcessedAt          *time.Time      `gorm:"column:processed_at;type:timestamptz"`
	CreatedAt            time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Event) TableName() string { return "convene.events" }

// Speaker maps convene.speakers.
type Speaker struct {
	SpeakerID      int64      `gorm:"column:speaker_id;primaryKey;autoIncrement"`
	SpeakerUUID    string     `gorm:"column:speaker_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	DisplayName    string     `gorm:"column:display_name;type:text;not null"`
	NormalizedName string     `gorm:"column:normalized_name;type:text;not null"`
	Title          *string    `gorm:"column:title;type:text"`
	Affiliation    *string    `gorm:"column:affiliation;type:text"`
	Confidence     float64    `gorm:"column:confidence;type:double precision;not null;default:0"`
	SupersededByID *int64     `gorm:"column:superseded_by_id;type:bigint"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
	DeletedAt      *time.Time `gorm:"column:deleted_at;type:timestamptz"`
}

func (Speaker) TableName() string { return "convene.speakers" }

// Company maps convene.companies.
type Company struct {
	CompanyID      int64      `gorm:"column:company_id;primaryKey;autoIncrement"`
	CompanyUUID    string     `gorm:"column:company_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	DisplayName    string     `gorm:"column:display_name;type:text;not null"`
	NormalizedName string     `gorm:"column:normalized_name;type:text;not null"`
	Domain         *string    `gorm:"column:domain;type:text"`
	Industry       *string    `gorm:"column:industry;type:text"`
	Confidence     float64    `gorm:"column:confidence;type:double precision;not null;default:0"`
	SupersededByID *int64     `gorm:"column:superseded_by_id;type:bigint"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
	DeletedAt      *time.Time `gorm:"column:deleted_at;type:timestamptz"`
}

func (Company) TableName() string { return "convene.companies" }

// Topic maps convene.topics.
type Topic struct {
	TopicID        int64      `gorm:"column:topic_id;primaryKey;autoIncrement"`
	TopicUUID      string     `gorm:"column:topic_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	DisplayName    string     `gorm:"column:display_name;type:text;not null"`
	NormalizedName string     `gorm:"column:normalized_name;type:text;not null"`
	Category       *string    `gorm:"column:category;type:text"`
	Confidence     float64    `gorm:"column:confidence;type:double precision;not null;default:0"`
	SupersededByID *int64     `gorm:"column:superseded_by_id;type:bigint"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
	DeletedAt      *time.Time `gorm:"column:deleted_at;type:timestamptz"`
}

func (Topic) TableName() string { return "convene.topics" }

// EventSpeaker maps convene.event_speakers.
type EventSpeaker struct {
	EventID    int64     `gorm:"column:event_id;type:bigint;primaryKey"`
	SpeakerID  int64     `gorm:"column:speaker_id;type:bigint;primaryKey"`
	Role       string    `gorm:"column:role;type:text;primaryKey;default:speaker"`
	Confidence float64   `gorm:"column:confidence;type:double precision;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (EventSpeaker) TableName() string { return "convene.event_speakers" }

// EventCompany maps convene.event_companies.
type EventCompany struct {
	EventID    int64     `gorm:"column:event_id;type:bigint;primaryKey"`
	CompanyID  int64     `gorm:"column:company_id;type:bigint;primaryKey"`
	Role       string    `gorm:"column:role;type:text;primaryKey;default:sponsor"`
	Confidence float64   `gorm:"column:confidence;type:double precision;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (EventCompany) TableName() string { return "convene.event_companies" }

// EventTopic maps convene.event_topics.
type EventTopic struct {
	EventID   int64     `gorm:"column:event_id;type:bigint;primaryKey"`
	TopicID   int64     `gorm:"column:topic_id;type:bigint;primaryKey"`
	Relevance float64   `gorm:"column:relevance;type:double precision;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (EventTopic) TableName() string { return "convene.event_topics" }

// ProcessingJob maps convene.processing_jobs.
type ProcessingJob struct {
	JobID        int64      `gorm:"column:job_id;primaryKey;autoIncrement"`
	JobUUID      string     `gorm:"column:job_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	EventID      int64      `gorm:"column:event_id;type:bigint;not null"`
	State        string     `gorm:"column:state;type:convene.job_state;not null;default:queued"`
	AttemptCount int        `gorm:"column:attempt_count;type:integer;not null;default:0"`
	ErrorClass   *string    `gorm:"column:error_class;type:text"`
	LastError    *string    `gorm:"column:last_error;type:text"`
	QueuedAt     time.Time  `gorm:"column:queued_at;type:timestamptz;not null;default:now()"`
	StartedAt    *time.Time `gorm:"column:started_at;type:timestamptz"`
	FinishedAt   *time.Time `gorm:"column:finished_at;type:timestamptz"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ProcessingJob) TableName() string { return "convene.processing_jobs" }

// ReviewItem maps convene.review_items.
type ReviewItem struct {
	ReviewItemID   int64      `gorm:"column:review_item_id;primaryKey;autoIncrement"`
	ReviewItemUUID string     `gorm:"column:review_item_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	EntityKind     string     `gorm:"column:entity_kind;type:text;not null"`
	LeftEntityID   int64      `gorm:"column:left_entity_id;type:bigint;not null"`
	RightEntityID  int64      `gorm:"column:right_entity_id;type:bigint;not null"`
	Similarity     float64    `gorm:"column:similarity;type:double precision;not null"`
	State          string     `gorm:"column:state;type:convene.review_state;not null;default:pending"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at;type:timestamptz"`
}

func (ReviewItem) TableName() string { return "convene.review_items" }

// ResolutionEvent maps convene.resolution_events, the per-cluster decision ledger.
type ResolutionEvent struct {
	ResolutionEventID   int64     `gorm:"column:resolution_event_id;primaryKey;autoIncrement"`
	ResolutionEventUUID string    `gorm:"column:resolution_event_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	EntityKind          string    `gorm:"column:entity_kind;type:text;not null"`
	Disposition         string    `gorm:"column:disposition;type:convene.disposition;not null"`
	ClusterSize         int       `gorm:"column:cluster_size;type:integer;not null"`
	Confidence          float64   `gorm:"column:confidence;type:double precision;not null"`
	CanonicalEntityID   *int64    `gorm:"column:canonical_entity_id;type:bigint"`
	CreatedAt           time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ResolutionEvent) TableName() string { return "convene.resolution_events" }

func autoMigrateModels() []any {
	return []any{
		&Event{},
		&Speaker{},
		&Company{},
		&Topic{},
		&EventSpeaker{},
		&EventCompany{},
		&EventTopic{},
		&ProcessingJob{},
		&ReviewItem{},
		&ResolutionEvent{},
	}
}
