package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const listingColumns = "id, source_id, url, title, description, price, location, image_urls, specs, posted_at, status, raw, created_at, updated_at"

func scanListing(scanner rowScanner) (*Listing, error) {
	var (
		l           Listing
		url         sql.NullString
		title       sql.NullString
		description sql.NullString
		price       sql.NullString
		location    sql.NullString
		images      sql.NullString
		specs       sql.NullString
		postedRaw   sql.NullString
		status      string
		raw         sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&l.ID,
		&l.SourceID,
		&url,
		&title,
		&description,
		&price,
		&location,
		&images,
		&specs,
		&postedRaw,
		&status,
		&raw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	l.URL = url.String
	l.Title = title.String
	l.Description = description.String
	if price.Valid && price.String != "" {
		if parsed, err := decimal.NewFromString(price.String); err == nil {
			l.Price = parsed
		}
	}
	l.Location = location.String
	l.ImageURLs = decodeList(images)
	l.Specs = decodeList(specs)
	l.PostedAt = timeValue(postedRaw)
	l.Status = ListingStatus(status)
	l.Raw = decodeMap(raw)
	l.CreatedAt = timeValue(createdRaw)
	l.UpdatedAt = timeValue(updatedRaw)
	return &l, nil
}

func priceValue(price decimal.Decimal) any {
	if price.IsZero() {
		return nil
	}
	return price.String()
}

// UpsertListing inserts a listing or updates the row with the same source
// identifier, reporting whether the image set or status changed.
func (s *Store) UpsertListing(ctx context.Context, listing *Listing) (ListingChange, error) {
	if listing == nil {
		return ListingChange{}, errors.New("upsert listing: nil listing")
	}
	listing.SourceID = strings.TrimSpace(listing.SourceID)
	if listing.SourceID == "" {
		return ListingChange{}, errors.New("upsert listing: source id is required")
	}
	if listing.Status == "" {
		listing.Status = ListingActive
	}
	if !listing.Status.Valid() {
		return ListingChange{}, fmt.Errorf("upsert listing: unknown status %q", listing.Status)
	}

	var change ListingChange
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		change = ListingChange{}
		now := s.timestamp()
		row := tx.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE source_id = ?", listing.SourceID)
		existing, err := scanListing(row)
		if errors.Is(err, sql.ErrNoRows) {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO listings (source_id, url, title, description, price, location, image_urls, specs, posted_at, status, raw, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				listing.SourceID,
				nullableString(listing.URL),
				nullableString(listing.Title),
				nullableString(listing.Description),
				priceValue(listing.Price),
				nullableString(listing.Location),
				encodeList(listing.ImageURLs),
				encodeList(listing.Specs),
				postedValue(listing),
				string(listing.Status),
				encodeMap(listing.Raw),
				formatTime(now),
				formatTime(now),
			)
			if err != nil {
				return fmt.Errorf("insert listing: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("listing id: %w", err)
			}
			listing.ID = id
			listing.CreatedAt = now
			listing.UpdatedAt = now
			change.Created = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("load listing: %w", err)
		}

		change.ImagesChanged = !sameList(existing.ImageURLs, listing.ImageURLs)
		change.StatusChanged = existing.Status != listing.Status
		if _, err := tx.ExecContext(ctx,
			`UPDATE listings SET url = ?, title = ?, description = ?, price = ?, location = ?, image_urls = ?, specs = ?,
			 posted_at = ?, status = ?, raw = ?, updated_at = ? WHERE id = ?`,
			nullableString(listing.URL),
			nullableString(listing.Title),
			nullableString(listing.Description),
			priceValue(listing.Price),
			nullableString(listing.Location),
			encodeList(listing.ImageURLs),
			encodeList(listing.Specs),
			postedValue(listing),
			string(listing.Status),
			encodeMap(listing.Raw),
			formatTime(now),
			existing.ID,
		); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		listing.ID = existing.ID
		listing.CreatedAt = existing.CreatedAt
		listing.UpdatedAt = now
		return nil
	})
	if err != nil {
		return ListingChange{}, err
	}
	return change, nil
}

func postedValue(listing *Listing) any {
	if listing.PostedAt.IsZero() {
		return nil
	}
	return formatTime(listing.PostedAt)
}

// GetListing fetches a listing by ID. Missing rows return (nil, nil).
func (s *Store) GetListing(ctx context.Context, id int64) (*Listing, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+listingColumns+" FROM listings WHERE id = ?", id)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// ListingBySourceID fetches a listing by its source identifier.
func (s *Store) ListingBySourceID(ctx context.Context, sourceID string) (*Listing, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+listingColumns+" FROM listings WHERE source_id = ?", strings.TrimSpace(sourceID))
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing by source id: %w", err)
	}
	return listing, nil
}

// ListListings returns all listings ordered by ID.
func (s *Store) ListListings(ctx context.Context) ([]*Listing, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT "+listingColumns+" FROM listings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []*Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}
