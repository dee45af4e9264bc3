package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventfeed/internal/model"
	"eventfeed/internal/recurrence"
)

const (
	vocabTargetGroup = "target_group"
	vocabCategory    = "category"
	vocabTag         = "tag"
)

// ActiveSeriesIDs returns the ids of series with at least one published
// instance starting at or after from, ordered by id. A non-zero branchID
// restricts the result to series of that branch.
func (s *Store) ActiveSeriesIDs(ctx context.Context, from time.Time, branchID int64) ([]int64, error) {
	q := `SELECT DISTINCT i.series_id
		FROM instances i
		JOIN series s ON s.id = i.series_id
		WHERE i.status = 1 AND i.start_at >= ?`
	args := []any{from.Unix()}
	if branchID != 0 {
		q += ` AND s.branch_id = ?`
		args = append(args, branchID)
	}
	q += ` ORDER BY i.series_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query active series: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active series: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Series loads one series with its branch, taxonomy labels, paragraphs,
// ticket categories and stored custom dates.
func (s *Store) Series(ctx context.Context, id int64) (model.Series, error) {
	var (
		sr                         model.Series
		changed                    int64
		addr                       model.Address
		branchID                   sql.NullInt64
		bName, bPhone              sql.NullString
		bLine1, bPostal, bLocality sql.NullString
		rf                         model.RecurrenceFields
	)

	err := s.db.QueryRowContext(ctx, `SELECT
			s.id, s.uuid, s.title, s.teaser, s.changed, s.path, s.image_path,
			s.ticket_url, s.place, s.address_line1, s.postal_code, s.locality,
			s.district, s.branch_id, b.name, b.phone, b.address_line1, b.postal_code, b.locality,
			s.recur_type, s.start_value, s.end_value, s.time, s.duration_or_end_time,
			s.duration, s.end_time, s.days, s.monthly_type, s.day_occurrence, s.day_of_month
		FROM series s
		LEFT JOIN branches b ON b.id = s.branch_id
		WHERE s.id = ?`, id).Scan(
		&sr.ID, &sr.UUID, &sr.Title, &sr.Teaser, &changed, &sr.Path, &sr.ImagePath,
		&sr.TicketURL, &sr.Place, &addr.Line1, &addr.PostalCode, &addr.Locality,
		&sr.District, &branchID, &bName, &bPhone, &bLine1, &bPostal, &bLocality,
		&rf.Type, &rf.StartValue, &rf.EndValue, &rf.Time, &rf.DurationOrEndTime,
		&rf.Duration, &rf.EndTime, &rf.Days, &rf.MonthlyType, &rf.DayOccurrence, &rf.DayOfMonth,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Series{}, fmt.Errorf("series %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Series{}, fmt.Errorf("query series %d: %w", id, err)
	}

	sr.Changed = unixTime(changed)
	if !addr.IsEmpty() {
		sr.Address = &addr
	}
	if branchID.Valid && bName.Valid {
		sr.Branch = &model.Branch{
			ID:    branchID.Int64,
			Name:  bName.String,
			Phone: bPhone.String,
			Address: &model.Address{
				Line1:      bLine1.String,
				PostalCode: bPostal.String,
				Locality:   bLocality.String,
			},
		}
	}

	if err := s.loadTerms(ctx, &sr); err != nil {
		return model.Series{}, err
	}
	if sr.Paragraphs, err = s.paragraphs(ctx, id); err != nil {
		return model.Series{}, err
	}
	if sr.TicketCategories, err = s.ticketCategories(ctx, id); err != nil {
		return model.Series{}, err
	}
	if rf.CustomDates, err = s.customDates(ctx, id); err != nil {
		return model.Series{}, err
	}
	sr.Recurrence = rf

	return sr, nil
}

// Instances returns the published instances of a series ordered by start.
func (s *Store) Instances(ctx context.Context, seriesID int64) ([]model.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, series_id, start_at, end_at, status
		FROM instances
		WHERE series_id = ? AND status = 1
		ORDER BY start_at, id`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var out []model.Instance
	for rows.Next() {
		var (
			inst       model.Instance
			start, end int64
		)
		if err := rows.Scan(&inst.ID, &inst.SeriesID, &start, &end, &inst.Status); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst.Start = unixTime(start)
		inst.End = unixTime(end)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *Store) loadTerms(ctx context.Context, sr *model.Series) error {
	rows, err := s.db.QueryContext(ctx, `SELECT vocabulary, label
		FROM series_terms
		WHERE series_id = ?
		ORDER BY weight, rowid`, sr.ID)
	if err != nil {
		return fmt.Errorf("query terms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vocab, label string
		if err := rows.Scan(&vocab, &label); err != nil {
			return fmt.Errorf("scan term: %w", err)
		}
		switch vocab {
		case vocabTargetGroup:
			sr.TargetGroups = append(sr.TargetGroups, label)
		case vocabCategory:
			sr.Categories = append(sr.Categories, label)
		case vocabTag:
			sr.Tags = append(sr.Tags, label)
		}
	}
	return rows.Err()
}

func (s *Store) paragraphs(ctx context.Context, seriesID int64) ([]model.Paragraph, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bundle, body
		FROM series_paragraphs
		WHERE series_id = ?
		ORDER BY weight, rowid`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query paragraphs: %w", err)
	}
	defer rows.Close()

	var out []model.Paragraph
	for rows.Next() {
		var p model.Paragraph
		if err := rows.Scan(&p.Bundle, &p.Body); err != nil {
			return nil, fmt.Errorf("scan paragraph: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ticketCategories(ctx context.Context, seriesID int64) ([]model.TicketCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bundle, name, price
		FROM ticket_categories
		WHERE series_id = ?
		ORDER BY weight, rowid`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query ticket categories: %w", err)
	}
	defer rows.Close()

	var out []model.TicketCategory
	for rows.Next() {
		var tc model.TicketCategory
		if err := rows.Scan(&tc.Bundle, &tc.Name, &tc.Price); err != nil {
			return nil, fmt.Errorf("scan ticket category: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *Store) customDates(ctx context.Context, seriesID int64) ([]recurrence.Range, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT start_at, end_at
		FROM custom_dates
		WHERE series_id = ?
		ORDER BY start_at`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query custom dates: %w", err)
	}
	defer rows.Close()

	var out []recurrence.Range
	for rows.Next() {
		var start, end int64
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("scan custom date: %w", err)
		}
		out = append(out, recurrence.Range{Start: unixTime(start), End: unixTime(end)})
	}
	return out, rows.Err()
}

// SaveBranch inserts a branch or updates the existing one with the same id.
func (s *Store) SaveBranch(ctx context.Context, b model.Branch) error {
	addr := b.Address
	if addr == nil {
		addr = &model.Address{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO branches
		(id, name, phone, address_line1, postal_code, locality)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address_line1 = excluded.address_line1,
			postal_code = excluded.postal_code,
			locality = excluded.locality`,
		b.ID, b.Name, b.Phone, addr.Line1, addr.PostalCode, addr.Locality)
	if err != nil {
		return fmt.Errorf("save branch %d: %w", b.ID, err)
	}
	return nil
}

// SaveSeries inserts a series with its labels, paragraphs, ticket categories
// and custom dates, replacing any series with the same UUID. Instances of a
// replaced series are removed. It returns the new series id.
func (s *Store) SaveSeries(ctx context.Context, sr model.Series) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM series WHERE uuid = ?`, sr.UUID); err != nil {
		return 0, fmt.Errorf("replace series %s: %w", sr.UUID, err)
	}

	addr := sr.Address
	if addr == nil {
		addr = &model.Address{}
	}
	var branchID sql.NullInt64
	if sr.Branch != nil {
		branchID = sql.NullInt64{Int64: sr.Branch.ID, Valid: true}
	}
	rf := sr.Recurrence
	durationMode := rf.DurationOrEndTime
	if durationMode == "" {
		durationMode = "duration"
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO series (
			uuid, title, teaser, changed, path, image_path, ticket_url, place,
			address_line1, postal_code, locality, branch_id, district,
			recur_type, start_value, end_value, time, duration_or_end_time,
			duration, end_time, days, monthly_type, day_occurrence, day_of_month
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.UUID, sr.Title, sr.Teaser, sr.Changed.Unix(), sr.Path, sr.ImagePath, sr.TicketURL, sr.Place,
		addr.Line1, addr.PostalCode, addr.Locality, branchID, sr.District,
		rf.Type, rf.StartValue, rf.EndValue, rf.Time, durationMode,
		rf.Duration, rf.EndTime, rf.Days, rf.MonthlyType, rf.DayOccurrence, rf.DayOfMonth,
	)
	if err != nil {
		return 0, fmt.Errorf("insert series %s: %w", sr.UUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("series id: %w", err)
	}

	terms := []struct {
		vocab  string
		labels []string
	}{
		{vocabTargetGroup, sr.TargetGroups},
		{vocabCategory, sr.Categories},
		{vocabTag, sr.Tags},
	}
	for _, t := range terms {
		for i, label := range t.labels {
			if _, err := tx.ExecContext(ctx, `INSERT INTO series_terms (series_id, vocabulary, label, weight) VALUES (?, ?, ?, ?)`,
				id, t.vocab, label, i); err != nil {
				return 0, fmt.Errorf("insert term: %w", err)
			}
		}
	}
	for i, p := range sr.Paragraphs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO series_paragraphs (series_id, bundle, body, weight) VALUES (?, ?, ?, ?)`,
			id, p.Bundle, p.Body, i); err != nil {
			return 0, fmt.Errorf("insert paragraph: %w", err)
		}
	}
	for i, tc := range sr.TicketCategories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ticket_categories (series_id, bundle, name, price, weight) VALUES (?, ?, ?, ?, ?)`,
			id, tc.Bundle, tc.Name, tc.Price, i); err != nil {
			return 0, fmt.Errorf("insert ticket category: %w", err)
		}
	}
	for _, r := range rf.CustomDates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO custom_dates (series_id, start_at, end_at) VALUES (?, ?, ?)`,
			id, r.Start.Unix(), r.End.Unix()); err != nil {
			return 0, fmt.Errorf("insert custom date: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit series %s: %w", sr.UUID, err)
	}
	return id, nil
}

// SaveInstance inserts an instance and returns its id.
func (s *Store) SaveInstance(ctx context.Context, inst model.Instance) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO instances (series_id, start_at, end_at, status) VALUES (?, ?, ?, ?)`,
		inst.SeriesID, inst.Start.Unix(), inst.End.Unix(), inst.Status)
	if err != nil {
		return 0, fmt.Errorf("save instance: %w", err)
	}
	return res.LastInsertId()
}

// splitList splits a stored comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
