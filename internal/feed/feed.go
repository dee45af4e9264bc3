// Package feed assembles the published event feed: it resolves the schedule
// of every active series and merges each schedule entry with the series
// metadata.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	appLog "eventfeed/internal/log"
	"eventfeed/internal/metrics"
	"eventfeed/internal/model"
	"eventfeed/internal/recurrence"
	"eventfeed/internal/store"
)

const (
	bundleTextBody       = "text_body"
	bundleTicketCategory = "event_ticket_category"
)

// Repository is the read side of the series store.
type Repository interface {
	ActiveSeriesIDs(ctx context.Context, from time.Time, branchID int64) ([]int64, error)
	Series(ctx context.Context, id int64) (model.Series, error)
	Instances(ctx context.Context, seriesID int64) ([]model.Instance, error)
}

// Options controls item rendering.
type Options struct {
	// BaseURL makes series and image paths absolute.
	BaseURL string
	// Currency is attached to every ticket category.
	Currency string
}

// Builder builds feed items from a Repository.
type Builder struct {
	repo   Repository
	engine *recurrence.Engine
	opts   Options
}

// NewBuilder returns a Builder rendering through engine.
func NewBuilder(repo Repository, engine *recurrence.Engine, opts Options) *Builder {
	return &Builder{repo: repo, engine: engine, opts: opts}
}

// Location returns the civil timezone items are rendered in.
func (b *Builder) Location() *time.Location {
	return b.engine.Location()
}

// Build returns the items of all series with a published instance starting
// at or after now. A non-zero branchID limits the feed to one branch.
//
// Series that cannot be resolved or no longer exist are logged and left out;
// other repository errors fail the whole build.
func (b *Builder) Build(ctx context.Context, now time.Time, branchID int64) ([]model.Item, error) {
	started := time.Now()
	items, err := b.build(ctx, now, branchID)
	metrics.RecordBuild(err, time.Since(started), len(items))
	if err != nil {
		return nil, err
	}
	appLog.Info("feed built",
		"items", len(items),
		"branch", branchID,
		"took_ms", time.Since(started).Milliseconds(),
	)
	return items, nil
}

func (b *Builder) build(ctx context.Context, now time.Time, branchID int64) ([]model.Item, error) {
	ids, err := b.repo.ActiveSeriesIDs(ctx, now, branchID)
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr, err := b.repo.Series(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted since the id query.
			appLog.Debug("series vanished during build", "series_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		instances, err := b.repo.Instances(ctx, id)
		if err != nil {
			return nil, err
		}

		seriesItems, outcome, err := b.SeriesItems(sr, instances)
		metrics.RecordSeries(outcome)
		if err != nil {
			appLog.Error("series skipped", err, "series", sr.UUID, "outcome", outcome)
			continue
		}
		if outcome != metrics.SeriesOK {
			appLog.Debug("series skipped", "series", sr.UUID, "outcome", outcome)
			continue
		}
		items = append(items, seriesItems...)
	}
	return items, nil
}

// SeriesItems renders one series. The returned outcome is one of the
// metrics.Series* values; items are only returned for metrics.SeriesOK.
func (b *Builder) SeriesItems(sr model.Series, instances []model.Instance) ([]model.Item, string, error) {
	if sr.District == "" || len(sr.TargetGroups) == 0 || len(sr.Categories) == 0 {
		return nil, metrics.SeriesIncomplete, nil
	}

	def, err := store.Definition(sr.Recurrence)
	if err != nil {
		return nil, outcomeFor(err), fmt.Errorf("map recurrence: %w", err)
	}
	if def.Kind() == recurrence.KindUnsupported {
		return nil, metrics.SeriesUnsupported, nil
	}

	occurrences := make([]recurrence.Instance, 0, len(instances))
	for _, inst := range instances {
		occurrences = append(occurrences, recurrence.Instance{Start: inst.Start, End: inst.End})
	}

	entries, err := b.engine.Resolve(def, occurrences)
	if err != nil {
		return nil, outcomeFor(err), err
	}
	if len(entries) == 0 {
		return nil, metrics.SeriesIncomplete, nil
	}

	loc := b.engine.Location()
	items := make([]model.Item, 0, len(entries))
	for _, e := range entries {
		id := sr.UUID + e.IDSuffix
		items = append(items, model.Item{
			UUID:         id,
			ID:           id,
			Title:        sr.Title,
			LastUpdate:   recurrence.FormatCivil(sr.Changed, loc),
			URL:          b.absolute(sr.Path),
			Image:        b.image(sr),
			Teaser:       sr.Teaser,
			Body:         body(sr),
			StartDate:    recurrence.FormatCivil(e.Start, loc),
			EndDate:      recurrence.FormatCivil(e.End, loc),
			ScheduleType: string(e.Type),
			Schedule: model.Schedule{
				RRule:  e.RRule,
				RDate:  e.RDate,
				ExDate: e.ExDate,
			},
			Contact:          contact(sr),
			TicketURL:        sr.TicketURL,
			TicketCategories: b.ticketPrices(sr),
			District:         sr.District,
			TargetGroups:     sr.TargetGroups,
			Categories:       sr.Categories,
			Tags:             nonNil(sr.Tags),
		})
	}
	return items, metrics.SeriesOK, nil
}

func outcomeFor(err error) string {
	var perr *recurrence.ParseError
	if errors.As(err, &perr) {
		return metrics.SeriesParseError
	}
	return metrics.SeriesIncomplete
}

func (b *Builder) absolute(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if b.opts.BaseURL == "" {
		return path
	}
	return b.opts.BaseURL + "/" + strings.TrimLeft(path, "/")
}

// image returns the absolute image URL, or an empty string.
func (b *Builder) image(sr model.Series) string {
	if sr.ImagePath == "" {
		return ""
	}
	return b.absolute(sr.ImagePath)
}

// body concatenates the text_body paragraphs of a series.
func body(sr model.Series) string {
	var sb strings.Builder
	for _, p := range sr.Paragraphs {
		if p.Bundle == bundleTextBody {
			sb.WriteString(p.Body)
		}
	}
	return sb.String()
}

// contact resolves the contact block. The branch supplies name, phone and
// address with the event place as location; a series address overrides the
// branch address. Without any address there is no contact.
func contact(sr model.Series) *model.Contact {
	var (
		addr                  *model.Address
		name, location, phone string
	)
	if sr.Branch != nil {
		name = sr.Branch.Name
		location = sr.Place
		addr = sr.Branch.Address
		phone = sr.Branch.Phone
	} else if sr.Place != "" {
		name = sr.Place
	}
	if !sr.Address.IsEmpty() {
		addr = sr.Address
	}
	if addr.IsEmpty() {
		return nil
	}
	return &model.Contact{
		Name:         name,
		Location:     location,
		Phone:        phone,
		StreetAndNum: addr.Line1,
		Zip:          addr.PostalCode,
		City:         addr.Locality,
	}
}

// ticketPrices returns the priced ticket categories, amounts in minor units.
func (b *Builder) ticketPrices(sr model.Series) []model.TicketPrice {
	out := make([]model.TicketPrice, 0, len(sr.TicketCategories))
	for _, tc := range sr.TicketCategories {
		if tc.Bundle != bundleTicketCategory {
			continue
		}
		out = append(out, model.TicketPrice{
			Amount:   math.Round(tc.Price * 100),
			Currency: b.opts.Currency,
			Title:    tc.Name,
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
