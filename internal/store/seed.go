package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	appLog "eventfeed/internal/log"
	"eventfeed/internal/model"
	"eventfeed/internal/recurrence"
)

// Seed is the YAML import format for branches, series and instances.
type Seed struct {
	Branches []SeedBranch `yaml:"branches"`
	Series   []SeedSeries `yaml:"series"`
}

type SeedBranch struct {
	ID      int64        `yaml:"id"`
	Name    string       `yaml:"name"`
	Phone   string       `yaml:"phone"`
	Address *SeedAddress `yaml:"address"`
}

type SeedAddress struct {
	Line1      string `yaml:"line1"`
	PostalCode string `yaml:"postal_code"`
	Locality   string `yaml:"locality"`
}

type SeedSeries struct {
	UUID      string       `yaml:"uuid"`
	Title     string       `yaml:"title"`
	Teaser    string       `yaml:"teaser"`
	Changed   time.Time    `yaml:"changed"`
	Path      string       `yaml:"path"`
	Image     string       `yaml:"image"`
	TicketURL string       `yaml:"ticket_url"`
	Place     string       `yaml:"place"`
	Address   *SeedAddress `yaml:"address"`
	BranchID  int64        `yaml:"branch_id"`

	District     string   `yaml:"district"`
	TargetGroups []string `yaml:"target_groups"`
	Categories   []string `yaml:"categories"`
	Tags         []string `yaml:"tags"`

	Paragraphs []struct {
		Bundle string `yaml:"bundle"`
		Body   string `yaml:"body"`
	} `yaml:"paragraphs"`

	TicketCategories []struct {
		Bundle string  `yaml:"bundle"`
		Name   string  `yaml:"name"`
		Price  float64 `yaml:"price"`
	} `yaml:"ticket_categories"`

	Recurrence SeedRecurrence `yaml:"recurrence"`
	Instances  []SeedInstance `yaml:"instances"`
}

type SeedRecurrence struct {
	Type              string      `yaml:"type"`
	Start             string      `yaml:"start"`
	End               string      `yaml:"end"`
	Time              string      `yaml:"time"`
	DurationOrEndTime string      `yaml:"duration_or_end_time"`
	Duration          int         `yaml:"duration"`
	EndTime           string      `yaml:"end_time"`
	Days              string      `yaml:"days"`
	MonthlyType       string      `yaml:"monthly_type"`
	DayOccurrence     string      `yaml:"day_occurrence"`
	DayOfMonth        int         `yaml:"day_of_month"`
	CustomDates       []SeedRange `yaml:"custom_dates"`
}

type SeedRange struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

type SeedInstance struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
	// Status defaults to published.
	Status *bool `yaml:"status"`
}

// ImportFile imports a YAML seed file.
func (s *Store) ImportFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Import(ctx, f)
}

// Import decodes a YAML seed from r and saves its content. Series are
// replaced by UUID, so importing the same seed twice is idempotent. A series
// without a UUID gets a name-based one derived from its path, or its title
// when it has no path.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for _, b := range seed.Branches {
		if err := s.SaveBranch(ctx, model.Branch{
			ID:      b.ID,
			Name:    b.Name,
			Phone:   b.Phone,
			Address: b.Address.model(),
		}); err != nil {
			return err
		}
	}

	instances := 0
	for _, ss := range seed.Series {
		sr := ss.model()
		id, err := s.SaveSeries(ctx, sr)
		if err != nil {
			return err
		}
		for _, si := range ss.Instances {
			status := true
			if si.Status != nil {
				status = *si.Status
			}
			if _, err := s.SaveInstance(ctx, model.Instance{
				SeriesID: id,
				Start:    si.Start,
				End:      si.End,
				Status:   status,
			}); err != nil {
				return err
			}
			instances++
		}
	}

	appLog.Info("seed imported",
		"branches", len(seed.Branches),
		"series", len(seed.Series),
		"instances", instances,
	)
	return nil
}

func (a *SeedAddress) model() *model.Address {
	if a == nil {
		return nil
	}
	return &model.Address{Line1: a.Line1, PostalCode: a.PostalCode, Locality: a.Locality}
}

// seriesUUID returns the series UUID, deriving a stable one when it is unset.
func (ss SeedSeries) seriesUUID() string {
	if ss.UUID != "" {
		return ss.UUID
	}
	name := ss.Path
	if name == "" {
		name = ss.Title
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (ss SeedSeries) model() model.Series {
	sr := model.Series{
		UUID:         ss.seriesUUID(),
		Title:        ss.Title,
		Teaser:       ss.Teaser,
		Changed:      ss.Changed,
		Path:         ss.Path,
		ImagePath:    ss.Image,
		TicketURL:    ss.TicketURL,
		Place:        ss.Place,
		Address:      ss.Address.model(),
		District:     ss.District,
		TargetGroups: ss.TargetGroups,
		Categories:   ss.Categories,
		Tags:         ss.Tags,
		Recurrence: model.RecurrenceFields{
			Type:              ss.Recurrence.Type,
			StartValue:        ss.Recurrence.Start,
			EndValue:          ss.Recurrence.End,
			Time:              ss.Recurrence.Time,
			DurationOrEndTime: ss.Recurrence.DurationOrEndTime,
			Duration:          ss.Recurrence.Duration,
			EndTime:           ss.Recurrence.EndTime,
			Days:              ss.Recurrence.Days,
			MonthlyType:       ss.Recurrence.MonthlyType,
			DayOccurrence:     ss.Recurrence.DayOccurrence,
			DayOfMonth:        ss.Recurrence.DayOfMonth,
		},
	}
	if ss.BranchID != 0 {
		sr.Branch = &model.Branch{ID: ss.BranchID}
	}
	for _, p := range ss.Paragraphs {
		sr.Paragraphs = append(sr.Paragraphs, model.Paragraph{Bundle: p.Bundle, Body: p.Body})
	}
	for _, tc := range ss.TicketCategories {
		sr.TicketCategories = append(sr.TicketCategories, model.TicketCategory{Bundle: tc.Bundle, Name: tc.Name, Price: tc.Price})
	}
	for _, r := range ss.Recurrence.CustomDates {
		sr.Recurrence.CustomDates = append(sr.Recurrence.CustomDates, recurrence.Range{Start: r.Start, End: r.End})
	}
	return sr
}
