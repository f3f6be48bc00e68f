// Package analytics builds the pre-aggregated read-side store from the
// primary store.
package analytics

import "time"

// Topic is one canonical topic plus the JSON list of raw variants that were
// collapsed into it.
type Topic struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Topic        string `gorm:"column:topic;type:text;not null;uniqueIndex"`
	VariantsJSON string `gorm:"column:variants_json;type:text;not null;default:'[]'"`
	SpeechCount  int    `gorm:"column:speech_count;not null;default:0"`
}

func (Topic) TableName() string { return "topics" }

// Period is one known reporting period per interval kind.
type Period struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Period   string `gorm:"column:period;type:text;not null;uniqueIndex:idx_period_interval"`
	Interval string `gorm:"column:interval;type:text;not null;uniqueIndex:idx_period_interval"`
}

func (Period) TableName() string { return "periods" }

// Interval kinds for Period rows.
const (
	IntervalMonth   = "month"
	IntervalQuarter = "quarter"
	IntervalYear    = "year"
)

type SpeechesByMonth struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Period string `gorm:"column:period;type:text;not null;uniqueIndex:idx_month_topic"`
	Topic  string `gorm:"column:topic;type:text;not null;uniqueIndex:idx_month_topic"`
	Count  int    `gorm:"column:count;not null"`
}

func (SpeechesByMonth) TableName() string { return "speeches_by_month" }

type SpeechesByQuarter struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Period string `gorm:"column:period;type:text;not null;uniqueIndex:idx_quarter_topic"`
	Topic  string `gorm:"column:topic;type:text;not null;uniqueIndex:idx_quarter_topic"`
	Count  int    `gorm:"column:count;not null"`
}

func (SpeechesByQuarter) TableName() string { return "speeches_by_quarter" }

type SpeechesByYear struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Period string `gorm:"column:period;type:text;not null;uniqueIndex:idx_year_topic"`
	Topic  string `gorm:"column:topic;type:text;not null;uniqueIndex:idx_year_topic"`
	Count  int    `gorm:"column:count;not null"`
}

func (SpeechesByYear) TableName() string { return "speeches_by_year" }

type SpeechesByGroup struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Topic string `gorm:"column:topic;type:text;not null;uniqueIndex:idx_group_topic"`
	Group string `gorm:"column:political_group;type:text;not null;uniqueIndex:idx_group_topic"`
	Count int    `gorm:"column:count;not null"`
}

func (SpeechesByGroup) TableName() string { return "speeches_by_group" }

type SpeechesByLanguage struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Topic    string `gorm:"column:topic;type:text;not null;uniqueIndex:idx_language_topic"`
	Language string `gorm:"column:language;type:text;not null;uniqueIndex:idx_language_topic"`
	Count    int    `gorm:"column:count;not null"`
}

func (SpeechesByLanguage) TableName() string { return "speeches_by_language" }

type Language struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Language string `gorm:"column:language;type:text;not null;uniqueIndex"`
	Count    int    `gorm:"column:count;not null"`
}

func (Language) TableName() string { return "languages" }

// Overview holds one key-value pair of run-level statistics.
type Overview struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Key   string `gorm:"column:key;type:text;not null;uniqueIndex"`
	Value string `gorm:"column:value;type:text;not null"`
}

func (Overview) TableName() string { return "overview" }

type TopTopic struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Rank  int    `gorm:"column:rank;not null;uniqueIndex"`
	Topic string `gorm:"column:topic;type:text;not null"`
	Count int    `gorm:"column:count;not null"`
}

func (TopTopic) TableName() string { return "top_topics" }

type TopFocus struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Rank  int    `gorm:"column:rank;not null;uniqueIndex"`
	Focus string `gorm:"column:focus;type:text;not null"`
	Count int    `gorm:"column:count;not null"`
}

func (TopFocus) TableName() string { return "top_focuses" }

// BuildInfo captures when a rebuild ran and what it saw.
type BuildInfo struct {
	GeneratedAt  time.Time
	SpeechRows   int
	TopicCount   int
	LanguageRows int
}

func analyticsModels() []any {
	return []any{
		&Topic{},
		&Period{},
		&SpeechesByMonth{},
		&SpeechesByQuarter{},
		&SpeechesByYear{},
		&SpeechesByGroup{},
		&SpeechesByLanguage{},
		&Language{},
		&Overview{},
		&TopTopic{},
		&TopFocus{},
	}
}
