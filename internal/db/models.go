package db

import (
	"fmt"
	"time"
)

// Member source values.
const (
	MemberSourceAPI      = "api"
	MemberSourceHistoric = "historic"
)

// HistoricIDFloor is the lowest id ever assigned to a synthesized member.
// Roster ids stay well below it, so the two ranges never collide.
const HistoricIDFloor = 1_000_000

// Member maps the members table. Ids come from the external roster, or are
// synthesized above HistoricIDFloor for speakers the roster does not know.
type Member struct {
	ID             int64     `gorm:"column:id;primaryKey"`
	Label          string    `gorm:"column:label;type:text;not null"`
	GivenName      string    `gorm:"column:given_name;type:text;not null;default:''"`
	FamilyName     string    `gorm:"column:family_name;type:text;not null;default:''"`
	Country        string    `gorm:"column:country;type:text;not null;default:'';index"`
	PoliticalGroup string    `gorm:"column:political_group;type:text;not null;default:'';index"`
	IsCurrent      bool      `gorm:"column:is_current;not null;default:false;index"`
	Source         string    `gorm:"column:source;type:text;not null;default:'api'"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (Member) TableName() string { return "members" }

// Sitting maps the sittings table: one row per plenary day, holding the full
// transcript HTML.
type Sitting struct {
	ID            string    `gorm:"column:id;type:text;primaryKey"`
	ActivityDate  string    `gorm:"column:activity_date;type:text;not null;index"`
	Content       string    `gorm:"column:content;type:text;not null"`
	DocIdentifier string    `gorm:"column:doc_identifier;type:text;not null;default:''"`
	NotationID    string    `gorm:"column:notation_id;type:text;not null;default:''"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (Sitting) TableName() string { return "sittings" }

// SittingID formats the canonical sitting id for an ISO date.
func SittingID(isoDate string) string { return fmt.Sprintf("sitting-%s", isoDate) }

// MinSittingContentBytes is the threshold below which stored sitting content
// is treated as unusable and the date is re-fetched.
const MinSittingContentBytes = 100

// Speech maps the speeches table.
type Speech struct {
	ID                 int64      `gorm:"column:id;primaryKey;autoIncrement"`
	SittingID          string     `gorm:"column:sitting_id;type:text;not null;index"`
	SpeechOrder        int        `gorm:"column:speech_order;not null"`
	SpeakerName        string     `gorm:"column:speaker_name;type:text;not null;default:''"`
	PoliticalGroup     string     `gorm:"column:political_group;type:text;not null;default:''"`
	PoliticalGroupStd  string     `gorm:"column:political_group_std;type:text;not null;default:''"`
	PoliticalGroupKind string     `gorm:"column:political_group_kind;type:text;not null;default:'unknown'"`
	PoliticalGroupRaw  string     `gorm:"column:political_group_raw;type:text;not null;default:''"`
	Title              string     `gorm:"column:title;type:text;not null;default:''"`
	SpeechContent      string     `gorm:"column:speech_content;type:text;not null"`
	Language           *string    `gorm:"column:language;type:text;index"`
	Topic              string     `gorm:"column:topic;type:text;not null;default:''"`
	MacroTopic         string     `gorm:"column:macro_topic;type:text;not null;default:'';index"`
	MacroSpecificFocus string     `gorm:"column:macro_specific_focus;type:text;not null;default:''"`
	MacroConfidence    float64    `gorm:"column:macro_confidence;not null;default:0"`
	MEPID              *int64     `gorm:"column:mep_id;index"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt          *time.Time `gorm:"column:updated_at"`
}

func (Speech) TableName() string { return "speeches" }

// PoliticalGroupKind values for speeches.political_group_kind.
const (
	KindGroup       = "group"
	KindRole        = "role"
	KindInstitution = "institution"
	KindUnknown     = "unknown"
)

// PipelineRun maps the pipeline_runs ledger: one row per refresh or bulk
// invocation, for auditing.
type PipelineRun struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Mode        string     `gorm:"column:mode;type:text;not null"`
	StartDate   string     `gorm:"column:start_date;type:text;not null;default:''"`
	EndDate     string     `gorm:"column:end_date;type:text;not null;default:''"`
	Processed   int        `gorm:"column:processed;not null;default:0"`
	Failed      int        `gorm:"column:failed;not null;default:0"`
	FetchSkipped int       `gorm:"column:fetch_skipped;not null;default:0"`
	AIFailed    int        `gorm:"column:ai_failed;not null;default:0"`
	Pending     int        `gorm:"column:pending;not null;default:0"`
	StartedAt   time.Time  `gorm:"column:started_at;not null"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

func autoMigrateModels() []any {
	return []any{
		&Member{},
		&Sitting{},
		&Speech{},
		&PipelineRun{},
	}
}
