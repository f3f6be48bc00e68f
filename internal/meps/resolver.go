package meps

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hemicycle.dev/plenary/internal/db"
)

const linkBatchSize = 50

// Resolver matches speech speaker names to member rows.
type Resolver struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewResolver(pool *db.Pool, logger zerolog.Logger) *Resolver {
	return &Resolver{
		pool:   pool,
		logger: logger.With().Str("component", "meps").Logger(),
	}
}

// lookup maps lower-cased member name forms to member ids. Exact forms are
// tried first; the ordered slice backs the substring scan.
type lookup struct {
	exact   map[string]int64
	members []db.MemberName
}

func (r *Resolver) buildLookup(ctx context.Context) (*lookup, error) {
	members, err := r.pool.AllMemberNames(ctx)
	if err != nil {
		return nil, err
	}

	exact := make(map[string]int64, len(members)*2)
	for _, m := range members {
		name := nameKey(m.Label)
		if name == "" {
			continue
		}
		if _, taken := exact[name]; !taken {
			exact[name] = m.ID
		}
		reversed := nameKey(reverseWords(m.Label))
		if _, taken := exact[reversed]; !taken {
			exact[reversed] = m.ID
		}
	}
	return &lookup{exact: exact, members: members}, nil
}

// resolve tries the exact forms, then falls back to a substring scan over
// every member label.
func (l *lookup) resolve(speakerName string) (int64, bool) {
	key := nameKey(speakerName)
	if key == "" {
		return 0, false
	}
	if id, ok := l.exact[key]; ok {
		return id, true
	}
	if id, ok := l.exact[nameKey(reverseWords(speakerName))]; ok {
		return id, true
	}
	for _, m := range l.members {
		label := nameKey(m.Label)
		if label == "" {
			continue
		}
		if strings.Contains(key, label) || strings.Contains(label, key) {
			return m.ID, true
		}
	}
	return 0, false
}

// LinkOnly resolves unresolved speaker names against the existing member set
// and links their speeches. Returns resolved speaker count and linked rows.
func (r *Resolver) LinkOnly(ctx context.Context) (int, int64, error) {
	table, err := r.buildLookup(ctx)
	if err != nil {
		return 0, 0, err
	}
	speakers, err := r.pool.UnresolvedSpeakers(ctx)
	if err != nil {
		return 0, 0, err
	}

	type hit struct {
		name     string
		memberID int64
	}
	var hits []hit
	for _, sp := range speakers {
		if id, ok := table.resolve(sp.SpeakerName); ok {
			hits = append(hits, hit{name: sp.SpeakerName, memberID: id})
		}
	}

	var linked atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(linkBatchSize)
	for _, h := range hits {
		g.Go(func() error {
			n, err := r.pool.LinkSpeakerSpeeches(gctx, h.name, h.memberID)
			if err != nil {
				return err
			}
			linked.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	r.logger.Info().
		Int("speakers", len(hits)).
		Int64("speeches", linked.Load()).
		Msg("speakers linked")
	return len(hits), linked.Load(), nil
}

// SynthesizeHistoric creates one historic member per remaining unresolved
// speaker and links their speeches. Run after LinkOnly.
func (r *Resolver) SynthesizeHistoric(ctx context.Context) (int, int64, error) {
	speakers, err := r.pool.UnresolvedSpeakers(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(speakers) == 0 {
		return 0, 0, nil
	}

	nextID, err := r.pool.MaxMemberID(ctx)
	if err != nil {
		return 0, 0, err
	}
	if nextID < db.HistoricIDFloor {
		nextID = db.HistoricIDFloor
	}

	created := 0
	var linked int64
	for _, sp := range speakers {
		name := strings.TrimSpace(sp.SpeakerName)
		if name == "" {
			continue
		}
		nextID++
		member := db.Member{
			ID:             nextID,
			Label:          name,
			PoliticalGroup: sp.TopAffiliation,
		}
		if err := r.pool.CreateHistoricMember(ctx, member); err != nil {
			return created, linked, err
		}
		n, err := r.pool.LinkSpeakerSpeeches(ctx, sp.SpeakerName, nextID)
		if err != nil {
			return created, linked, err
		}
		created++
		linked += n
	}

	r.logger.Info().
		Int("members", created).
		Int64("speeches", linked).
		Msg("historic members synthesized")
	return created, linked, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func reverseWords(name string) string {
	words := strings.Fields(name)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, " ")
}
