/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"gorm.io/gorm"

	"github.com/friendsincode/belfry/internal/config"
	"github.com/friendsincode/belfry/internal/events"
	"github.com/friendsincode/belfry/internal/models"
	"github.com/friendsincode/belfry/internal/telemetry"
)

// Keeper fetches the timetable from the schedule source, persists the
// last good copy, and serves the current lesson list. Branch pages are
// numbered o1.html, o2.html, ... and the walk stops after a run of
// consecutive unusable pages. The branch with the most lesson rows wins,
// on the assumption that the fullest timetable covers every bell the
// building needs.
type Keeper struct {
	cfg    *config.Config
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client

	mu        sync.RWMutex
	lessons   []models.LessonRange
	branch    int
	sourceURL string
	fetchedAt time.Time
}

// NewKeeper creates a schedule keeper. The keeper starts empty; call
// Refresh (or Restore) before asking for boundaries.
func NewKeeper(cfg *config.Config, database *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Keeper {
	return &Keeper{
		cfg:    cfg,
		db:     database,
		bus:    bus,
		logger: logger.With().Str("component", "schedule_keeper").Logger(),
		client: &http.Client{Timeout: cfg.ScheduleRequestTimeout},
	}
}

// Refresh walks the branch pages, adopts the richest timetable found, and
// stores it as a snapshot. When no branch is reachable the newest stored
// snapshot takes over so the bells keep ringing through source outages.
func (k *Keeper) Refresh(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "belfry/schedule", "keeper.refresh")
	defer span.End()

	bestLessons, bestBranch, bestURL := k.walkBranches(ctx)

	if bestLessons != nil {
		snapshot := models.ScheduleSnapshot{
			ID:        uuid.NewString(),
			Branch:    bestBranch,
			SourceURL: bestURL,
			FetchedAt: time.Now(),
			Lessons:   bestLessons,
		}
		if k.db != nil {
			if err := k.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
				k.logger.Error().Err(err).Msg("failed to store schedule snapshot")
			}
		}
		k.adopt(snapshot)
		telemetry.ScheduleSyncsTotal.WithLabelValues("ok").Inc()
		telemetry.AddSpanAttributes(span, map[string]any{
			"branch":  bestBranch,
			"lessons": len(bestLessons),
		})
		k.logger.Info().
			Int("branch", bestBranch).
			Int("lessons", len(bestLessons)).
			Msg("schedule refreshed")
		k.publishUpdated("source")
		return nil
	}

	// Fall back to the newest stored snapshot.
	if restored, err := k.Restore(ctx); err == nil && restored {
		telemetry.ScheduleSyncsTotal.WithLabelValues("fallback").Inc()
		k.logger.Warn().Msg("schedule source unreachable, using stored snapshot")
		k.publishUpdated("snapshot")
		return nil
	}

	telemetry.ScheduleSyncsTotal.WithLabelValues("error").Inc()
	err := fmt.Errorf("schedule refresh: no branch reachable and no snapshot stored")
	telemetry.RecordError(span, err)
	return err
}

// Restore loads the newest stored snapshot without touching the source.
// It reports whether a snapshot was found.
func (k *Keeper) Restore(ctx context.Context) (bool, error) {
	if k.db == nil {
		return false, nil
	}
	var snapshot models.ScheduleSnapshot
	err := k.db.WithContext(ctx).Order("fetched_at DESC").First(&snapshot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	k.adopt(snapshot)
	return true, nil
}

func (k *Keeper) walkBranches(ctx context.Context) ([]models.LessonRange, int, string) {
	var (
		bestLessons []models.LessonRange
		bestBranch  int
		bestURL     string
		consecutive int
	)
	for branch := 1; consecutive < k.cfg.ScheduleMaxBadBranches; branch++ {
		if ctx.Err() != nil {
			break
		}
		url := k.cfg.BranchURL(branch)
		lessons, err := k.fetchBranch(ctx, url)
		if err != nil || len(lessons) < k.cfg.ScheduleMinRows {
			consecutive++
			if err != nil {
				k.logger.Debug().Err(err).Int("branch", branch).Msg("branch page unusable")
			}
			continue
		}
		consecutive = 0
		if len(lessons) > len(bestLessons) {
			bestLessons = lessons
			bestBranch = branch
			bestURL = url
		}
	}
	return bestLessons, bestBranch, bestURL
}

func (k *Keeper) fetchBranch(ctx context.Context, url string) ([]models.LessonRange, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return k.extractLessons(doc), nil
}

// extractLessons pulls "HH:MM-HH:MM" hour cells out of the timetable
// table. Rows without an hour cell (header rows) are skipped.
func (k *Keeper) extractLessons(doc *html.Node) []models.LessonRange {
	table := findByClass(doc, "table", k.cfg.ScheduleTableClass)
	if table == nil {
		return nil
	}

	var lessons []models.LessonRange
	for row := range descendants(table, "tr") {
		cell := findByClass(row, "td", k.cfg.ScheduleHourClass)
		if cell == nil {
			continue
		}
		start, end, ok := splitHourRange(textContent(cell))
		if !ok {
			continue
		}
		lessons = append(lessons, models.LessonRange{Start: start, End: end})
	}
	return lessons
}

// splitHourRange splits "7:05-7:50" style cells, tolerating whitespace
// around the dash.
func splitHourRange(raw string) (start, end string, ok bool) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	start = padClock(strings.TrimSpace(parts[0]))
	end = padClock(strings.TrimSpace(parts[1]))
	if start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}

// padClock normalizes "7:05" to "07:05" so downstream parsing sees one
// shape.
func padClock(raw string) string {
	if raw == "" {
		return ""
	}
	if idx := strings.Index(raw, ":"); idx == 1 {
		return "0" + raw
	}
	return raw
}

func (k *Keeper) adopt(snapshot models.ScheduleSnapshot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.lessons = snapshot.Lessons
	k.branch = snapshot.Branch
	k.sourceURL = snapshot.SourceURL
	k.fetchedAt = snapshot.FetchedAt
}

func (k *Keeper) publishUpdated(origin string) {
	if k.bus == nil {
		return
	}
	k.mu.RLock()
	payload := events.Payload{
		"origin":     origin,
		"branch":     k.branch,
		"lessons":    len(k.lessons),
		"fetched_at": k.fetchedAt,
	}
	k.mu.RUnlock()
	k.bus.Publish(events.EventScheduleUpdated, payload)
}

// Lessons returns a copy of the current lesson list.
func (k *Keeper) Lessons() []models.LessonRange {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]models.LessonRange(nil), k.lessons...)
}

// Snapshot describes the currently adopted timetable.
type SnapshotInfo struct {
	Branch    int       `json:"branch"`
	SourceURL string    `json:"source_url"`
	FetchedAt time.Time `json:"fetched_at"`
	Lessons   int       `json:"lessons"`
}

// Info reports where the current timetable came from.
func (k *Keeper) Info() SnapshotInfo {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return SnapshotInfo{
		Branch:    k.branch,
		SourceURL: k.sourceURL,
		FetchedAt: k.fetchedAt,
		Lessons:   len(k.lessons),
	}
}

// HourRanges normalizes the current lesson list into hour ranges.
// Malformed cells are counted and dropped, never fatal.
func (k *Keeper) HourRanges() []HourRange {
	lessons := k.Lessons()
	ranges := make([]HourRange, 0, len(lessons))
	for _, lesson := range lessons {
		start, errStart := ParseTimeOfDay(lesson.Start)
		end, errEnd := ParseTimeOfDay(lesson.End)
		if errStart != nil || errEnd != nil {
			telemetry.InvalidTimestampsTotal.Inc()
			k.logger.Warn().
				Str("start", lesson.Start).
				Str("end", lesson.End).
				Msg("dropping malformed lesson range")
			continue
		}
		ranges = append(ranges, HourRange{Start: start, End: end})
	}
	return ranges
}

// Boundaries derives the day's bell boundary events from the current
// timetable.
func (k *Keeper) Boundaries() []BoundaryEvent {
	return BoundariesFromRanges(k.HourRanges())
}

// descendants iterates over descendant elements with the given tag.
func descendants(n *html.Node, tag string) func(func(*html.Node) bool) {
	return func(yield func(*html.Node) bool) {
		var walk func(*html.Node) bool
		walk = func(node *html.Node) bool {
			if node.Type == html.ElementNode && node.Data == tag {
				if !yield(node) {
					return false
				}
			}
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(n)
	}
}

// findByClass returns the first descendant element with the tag carrying
// the given class.
func findByClass(n *html.Node, tag, class string) *html.Node {
	for node := range descendants(n, tag) {
		if hasClass(node, class) {
			return node
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
