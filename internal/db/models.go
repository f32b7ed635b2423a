package db

import (
	"time"
)

// TranslationFile maps trans.files. OriginalContent keeps the imported
// bytes verbatim so export can inject translations into the source markup.
type TranslationFile struct {
	FileID          int64      `gorm:"column:file_id;primaryKey;autoIncrement"`
	FileUUID        string     `gorm:"column:file_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Project         string     `gorm:"column:project;type:text;not null;default:''"`
	Name            string     `gorm:"column:name;type:text;not null"`
	Format          string     `gorm:"column:format;type:text;not null;default:xliff"`
	Dialect         string     `gorm:"column:dialect;type:text;not null;default:standard"`
	SourceLang      string     `gorm:"column:source_lang;type:text;not null;default:und"`
	TargetLang      string     `gorm:"column:target_lang;type:text;not null;default:und"`
	Status          FileStatus `gorm:"column:status;type:text;not null;default:pending"`
	SegmentCount    int        `gorm:"column:segment_count;type:integer;not null;default:0"`
	OriginalContent []byte     `gorm:"column:original_content;type:bytea;not null"`
	ErrorMessage    *string    `gorm:"column:error_message;type:text"`
	DeletedAt       *time.Time `gorm:"column:deleted_at;type:timestamptz"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (TranslationFile) TableName() string { return "trans.files" }

// Segment maps trans.segments. SegmentIndex is the stable ordinal position
// within the file; UnitID is the opaque identifier of the originating
// trans-unit in the source markup.
type Segment struct {
	SegmentID        int64         `gorm:"column:segment_id;primaryKey;autoIncrement"`
	SegmentUUID      string        `gorm:"column:segment_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	FileID           int64         `gorm:"column:file_id;type:bigint;not null;index:idx_segments_file"`
	SegmentIndex     int           `gorm:"column:segment_index;type:integer;not null;uniqueIndex:uq_segments_file_index,priority:2"`
	UnitID           string        `gorm:"column:unit_id;type:text;not null;default:''"`
	UnitState        *string       `gorm:"column:unit_state;type:text"`
	SourceText       string        `gorm:"column:source_text;type:text;not null"`
	Translation      *string       `gorm:"column:translation;type:text"`
	FinalTranslation *string       `gorm:"column:final_translation;type:text"`
	Status           SegmentStatus `gorm:"column:status;type:text;not null;default:pending"`
	ErrorMessage     *string       `gorm:"column:error_message;type:text"`
	ModelName        *string       `gorm:"column:model_name;type:text"`
	PromptTokens     int           `gorm:"column:prompt_tokens;type:integer;not null;default:0"`
	CompletionTokens int           `gorm:"column:completion_tokens;type:integer;not null;default:0"`
	ReviewScore      *float64      `gorm:"column:review_score;type:double precision"`
	ModificationDeg  *float64      `gorm:"column:modification_degree;type:double precision"`
	CreatedAt        time.Time     `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time     `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Segment) TableName() string { return "trans.segments" }

// SegmentIssue maps trans.segment_issues. Ordinal preserves review output
// order; issues are appended, resolved in place, never reordered.
type SegmentIssue struct {
	IssueID     int64     `gorm:"column:issue_id;primaryKey;autoIncrement"`
	IssueUUID   string    `gorm:"column:issue_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SegmentID   int64     `gorm:"column:segment_id;type:bigint;not null;index:idx_issues_segment"`
	Ordinal     int       `gorm:"column:ordinal;type:integer;not null"`
	IssueType   string    `gorm:"column:issue_type;type:text;not null"`
	Severity    string    `gorm:"column:severity;type:text;not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	StartOffset *int      `gorm:"column:start_offset;type:integer"`
	EndOffset   *int      `gorm:"column:end_offset;type:integer"`
	Suggestion  *string   `gorm:"column:suggestion;type:text"`
	Resolved    bool      `gorm:"column:resolved;type:boolean;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (SegmentIssue) TableName() string { return "trans.segment_issues" }

func autoMigrateModels() []any {
	return []any{
		&TranslationFile{},
		&Segment{},
		&SegmentIssue{},
	}
}
