package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hemicycle.dev/plenary/internal/db"
)

const topListSize = 20

// Builder regenerates the analytics store from the primary store. Each run
// is a full rebuild.
type Builder struct {
	primary *db.Pool
	path    string
	logger  zerolog.Logger
}

func NewBuilder(primary *db.Pool, path string, logger zerolog.Logger) *Builder {
	return &Builder{
		primary: primary,
		path:    path,
		logger:  logger.With().Str("component", "analytics").Logger(),
	}
}

// speechRow is the slice of a classified speech the rebuild reads.
type speechRow struct {
	macroTopic    string
	specificFocus string
	groupStd      string
	language      string
	activityDate  string
}

// Build reads every classified speech, collapses topic label variants, and
// writes the aggregate tables.
func (b *Builder) Build(ctx context.Context) (*BuildInfo, error) {
	gdb, err := b.openAnalyticsDB(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if sqlDB, dbErr := gdb.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	rows, err := b.readClassifiedSpeeches(ctx)
	if err != nil {
		return nil, err
	}
	totalSpeeches, err := b.countSpeeches(ctx)
	if err != nil {
		return nil, err
	}

	agg := aggregate(rows)

	if err := b.writeTables(ctx, gdb, agg, totalSpeeches); err != nil {
		return nil, err
	}

	info := &BuildInfo{
		GeneratedAt:  time.Now().UTC(),
		SpeechRows:   len(rows),
		TopicCount:   len(agg.topicCounts),
		LanguageRows: len(agg.languages),
	}
	b.logger.Info().
		Int("speeches", info.SpeechRows).
		Int("topics", info.TopicCount).
		Msg("analytics store rebuilt")
	return info, nil
}

// Ping verifies the analytics store at path can be opened and queried.
func Ping(ctx context.Context, path string) error {
	gdb, err := gorm.Open(sqlite.Open(db.SQLiteDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open analytics database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get analytics sql db: %w", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping analytics database: %w", err)
	}
	return nil
}

func (b *Builder) openAnalyticsDB(ctx context.Context) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(db.SQLiteDSN(b.path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open analytics database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get analytics sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping analytics database: %w", err)
	}
	if err := gdb.WithContext(ctx).AutoMigrate(analyticsModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate analytics schema: %w", err)
	}
	return gdb, nil
}

func (b *Builder) readClassifiedSpeeches(ctx context.Context) ([]speechRow, error) {
	const q = `
SELECT sp.macro_topic, sp.macro_specific_focus, sp.political_group_std,
       COALESCE(sp.language, ''), s.activity_date
FROM speeches sp
JOIN sittings s ON s.id = sp.sitting_id
WHERE sp.macro_topic != ''
`
	dbRows, err := b.primary.Reader().WithContext(ctx).Raw(q).Rows()
	if err != nil {
		return nil, fmt.Errorf("query classified speeches: %w", err)
	}
	defer dbRows.Close()

	rows := make([]speechRow, 0, 4096)
	for dbRows.Next() {
		var r speechRow
		if err := dbRows.Scan(&r.macroTopic, &r.specificFocus, &r.groupStd, &r.language, &r.activityDate); err != nil {
			return nil, fmt.Errorf("scan speech row: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, dbRows.Err()
}

func (b *Builder) countSpeeches(ctx context.Context) (int, error) {
	var total int
	if err := b.primary.Reader().WithContext(ctx).
		Raw("SELECT COUNT(*) FROM speeches").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("count speeches: %w", err)
	}
	return total, nil
}

type periodKey struct {
	period string
	topic  string
}

type pairKey struct {
	topic string
	key   string
}

type aggregates struct {
	canon       *canonicalizer
	topicCounts map[string]int
	byMonth     map[periodKey]int
	byQuarter   map[periodKey]int
	byYear      map[periodKey]int
	byGroup     map[pairKey]int
	byLanguage  map[pairKey]int
	languages   map[string]int
	focuses     map[string]int
}

// aggregate folds speech rows into count maps, summing rows whose topic
// labels collapse to the same canonical.
func aggregate(rows []speechRow) *aggregates {
	agg := &aggregates{
		canon:       newCanonicalizer(),
		topicCounts: make(map[string]int),
		byMonth:     make(map[periodKey]int),
		byQuarter:   make(map[periodKey]int),
		byYear:      make(map[periodKey]int),
		byGroup:     make(map[pairKey]int),
		byLanguage:  make(map[pairKey]int),
		languages:   make(map[string]int),
		focuses:     make(map[string]int),
	}

	for _, r := range rows {
		topic := agg.canon.Canon(r.macroTopic)
		agg.topicCounts[topic]++

		if month, quarter, year, ok := periodsForDate(r.activityDate); ok {
			agg.byMonth[periodKey{month, topic}]++
			agg.byQuarter[periodKey{quarter, topic}]++
			agg.byYear[periodKey{year, topic}]++
		}
		if r.groupStd != "" {
			agg.byGroup[pairKey{topic, r.groupStd}]++
		}
		if r.language != "" {
			agg.byLanguage[pairKey{topic, r.language}]++
			agg.languages[r.language]++
		}
		if r.specificFocus != "" {
			agg.focuses[cleanLabel(r.specificFocus)]++
		}
	}
	return agg
}

// periodsForDate derives month, quarter, and year keys from an ISO date.
func periodsForDate(isoDate string) (month, quarter, year string, ok bool) {
	if len(isoDate) < 7 {
		return "", "", "", false
	}
	month = isoDate[:7]
	year = isoDate[:4]
	m, err := strconv.Atoi(isoDate[5:7])
	if err != nil || m < 1 || m > 12 {
		return "", "", "", false
	}
	quarter = fmt.Sprintf("%s-Q%d", year, (m-1)/3+1)
	return month, quarter, year, true
}

func (b *Builder) writeTables(ctx context.Context, gdb *gorm.DB, agg *aggregates, totalSpeeches int) error {
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range analyticsModels() {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear analytics table: %w", err)
			}
		}

		if err := insertTopics(tx, agg); err != nil {
			return err
		}
		if err := insertPeriods(tx, agg); err != nil {
			return err
		}
		if err := insertTimeSeries(tx, agg); err != nil {
			return err
		}
		if err := insertPairs(tx, agg); err != nil {
			return err
		}
		if err := insertTopLists(tx, agg); err != nil {
			return err
		}
		return insertOverview(tx, agg, totalSpeeches)
	})
}

func insertTopics(tx *gorm.DB, agg *aggregates) error {
	topics := make([]Topic, 0, len(agg.topicCounts))
	for topic, count := range agg.topicCounts {
		variants := agg.canon.Variants(topic)
		sort.Strings(variants)
		data, err := json.Marshal(variants)
		if err != nil {
			return fmt.Errorf("encode topic variants: %w", err)
		}
		topics = append(topics, Topic{Topic: topic, VariantsJSON: string(data), SpeechCount: count})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Topic < topics[j].Topic })
	if len(topics) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(topics, 200).Error; err != nil {
		return fmt.Errorf("insert topics: %w", err)
	}
	return nil
}

func insertPeriods(tx *gorm.DB, agg *aggregates) error {
	seen := make(map[Period]bool)
	add := func(m map[periodKey]int, interval string) {
		for k := range m {
			seen[Period{Period: k.period, Interval: interval}] = true
		}
	}
	add(agg.byMonth, IntervalMonth)
	add(agg.byQuarter, IntervalQuarter)
	add(agg.byYear, IntervalYear)

	periods := make([]Period, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Interval != periods[j].Interval {
			return periods[i].Interval < periods[j].Interval
		}
		return periods[i].Period < periods[j].Period
	})
	if len(periods) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(periods, 200).Error; err != nil {
		return fmt.Errorf("insert periods: %w", err)
	}
	return nil
}

func insertTimeSeries(tx *gorm.DB, agg *aggregates) error {
	months := make([]SpeechesByMonth, 0, len(agg.byMonth))
	for k, n := range agg.byMonth {
		months = append(months, SpeechesByMonth{Period: k.period, Topic: k.topic, Count: n})
	}
	quarters := make([]SpeechesByQuarter, 0, len(agg.byQuarter))
	for k, n := range agg.byQuarter {
		quarters = append(quarters, SpeechesByQuarter{Period: k.period, Topic: k.topic, Count: n})
	}
	years := make([]SpeechesByYear, 0, len(agg.byYear))
	for k, n := range agg.byYear {
		years = append(years, SpeechesByYear{Period: k.period, Topic: k.topic, Count: n})
	}

	if len(months) > 0 {
		if err := tx.CreateInBatches(months, 200).Error; err != nil {
			return fmt.Errorf("insert monthly series: %w", err)
		}
	}
	if len(quarters) > 0 {
		if err := tx.CreateInBatches(quarters, 200).Error; err != nil {
			return fmt.Errorf("insert quarterly series: %w", err)
		}
	}
	if len(years) > 0 {
		if err := tx.CreateInBatches(years, 200).Error; err != nil {
			return fmt.Errorf("insert yearly series: %w", err)
		}
	}
	return nil
}

func insertPairs(tx *gorm.DB, agg *aggregates) error {
	groups := make([]SpeechesByGroup, 0, len(agg.byGroup))
	for k, n := range agg.byGroup {
		groups = append(groups, SpeechesByGroup{Topic: k.topic, Group: k.key, Count: n})
	}
	langs := make([]SpeechesByLanguage, 0, len(agg.byLanguage))
	for k, n := range agg.byLanguage {
		langs = append(langs, SpeechesByLanguage{Topic: k.topic, Language: k.key, Count: n})
	}
	overall := make([]Language, 0, len(agg.languages))
	for lang, n := range agg.languages {
		overall = append(overall, Language{Language: lang, Count: n})
	}

	if len(groups) > 0 {
		if err := tx.CreateInBatches(groups, 200).Error; err != nil {
			return fmt.Errorf("insert group counts: %w", err)
		}
	}
	if len(langs) > 0 {
		if err := tx.CreateInBatches(langs, 200).Error; err != nil {
			return fmt.Errorf("insert language counts: %w", err)
		}
	}
	if len(overall) > 0 {
		if err := tx.CreateInBatches(overall, 200).Error; err != nil {
			return fmt.Errorf("insert overall languages: %w", err)
		}
	}
	return nil
}

func insertTopLists(tx *gorm.DB, agg *aggregates) error {
	type entry struct {
		label string
		count int
	}
	top := func(m map[string]int) []entry {
		entries := make([]entry, 0, len(m))
		for label, n := range m {
			entries = append(entries, entry{label, n})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].count != entries[j].count {
				return entries[i].count > entries[j].count
			}
			return entries[i].label < entries[j].label
		})
		if len(entries) > topListSize {
			entries = entries[:topListSize]
		}
		return entries
	}

	topics := top(agg.topicCounts)
	topTopics := make([]TopTopic, len(topics))
	for i, e := range topics {
		topTopics[i] = TopTopic{Rank: i + 1, Topic: e.label, Count: e.count}
	}
	if len(topTopics) > 0 {
		if err := tx.Create(&topTopics).Error; err != nil {
			return fmt.Errorf("insert top topics: %w", err)
		}
	}

	focuses := top(agg.focuses)
	topFocuses := make([]TopFocus, len(focuses))
	for i, e := range focuses {
		topFocuses[i] = TopFocus{Rank: i + 1, Focus: e.label, Count: e.count}
	}
	if len(topFocuses) > 0 {
		if err := tx.Create(&topFocuses).Error; err != nil {
			return fmt.Errorf("insert top focuses: %w", err)
		}
	}
	return nil
}

func insertOverview(tx *gorm.DB, agg *aggregates, totalSpeeches int) error {
	classified := 0
	for _, n := range agg.topicCounts {
		classified += n
	}
	coverage := 0.0
	if totalSpeeches > 0 {
		coverage = float64(classified) / float64(totalSpeeches)
	}

	entries := []Overview{
		{Key: "total_speeches", Value: strconv.Itoa(totalSpeeches)},
		{Key: "classified_speeches", Value: strconv.Itoa(classified)},
		{Key: "coverage", Value: strconv.FormatFloat(coverage, 'f', 4, 64)},
		{Key: "topic_count", Value: strconv.Itoa(len(agg.topicCounts))},
		{Key: "generated_at", Value: time.Now().UTC().Format(time.RFC3339)},
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("insert overview: %w", err)
	}
	return nil
}
