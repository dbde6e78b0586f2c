package mongo

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Directory serves venues and their courts from the venues collection.
type Directory struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewDirectory(db *mongo.Database, logger observability.Logger) *Directory {
	return &Directory{
		coll:   db.Collection("venues"),
		logger: logger,
	}
}

type VenueDoc struct {
	ID        int64      `bson:"_id"`
	Name      string     `bson:"name"`
	Address   string     `bson:"address,omitempty"`
	Phone     string     `bson:"phone,omitempty"`
	Email     string     `bson:"email,omitempty"`
	Timezone  string     `bson:"timezone,omitempty"`
	Hours     *HoursDoc  `bson:"hours,omitempty"`
	Courts    []CourtDoc `bson:"courts"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

type HoursDoc struct {
	Open        string `bson:"open"`
	Close       string `bson:"close"`
	SlotMinutes int    `bson:"slot_minutes"`
	StepMinutes int    `bson:"step_minutes"`
}

type CourtDoc struct {
	ID   int64  `bson:"id"`
	Name string `bson:"name"`
}

// EnsureIndexes makes court lookups by id unique across venues.
func (d *Directory) EnsureIndexes(ctx context.Context) error {
	_, err := d.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "courts.id", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	return wrap(err, "ensure venue indexes")
}

func (d *Directory) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	cur, err := d.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, wrap(err, "find venues")
	}
	var docs []VenueDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap(err, "decode venues")
	}
	venues := make([]domain.Venue, 0, len(docs))
	for _, doc := range docs {
		v, err := doc.toDomain()
		if err != nil {
			d.logger.WithError(err).WithField("venue_id", doc.ID).Warn("skipping venue with invalid hours")
			continue
		}
		venues = append(venues, v)
	}
	return venues, nil
}

func (d *Directory) GetVenue(ctx context.Context, id int64) (*domain.Venue, error) {
	doc, err := d.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, errors.Wrapf(err, "venue %d", id)
	}
	v, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListCourts returns the venue's courts ordered by name.
func (d *Directory) ListCourts(ctx context.Context, venueID int64) ([]domain.Court, error) {
	v, err := d.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	courts := v.Courts
	sort.Slice(courts, func(i, j int) bool { return courts[i].Name < courts[j].Name })
	return courts, nil
}

func (d *Directory) GetCourt(ctx context.Context, courtID int64) (*domain.Court, *domain.Venue, error) {
	doc, err := d.findOne(ctx, bson.M{"courts.id": courtID})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "court %d", courtID)
	}
	v, err := doc.toDomain()
	if err != nil {
		return nil, nil, err
	}
	for _, c := range v.Courts {
		if c.ID == courtID {
			return &c, &v, nil
		}
	}
	return nil, nil, errors.Wrapf(domain.ErrNotFound, "court %d", courtID)
}

// UpsertVenue replaces the venue document, keeping its creation time.
func (d *Directory) UpsertVenue(ctx context.Context, doc VenueDoc) error {
	now := time.Now().UTC()
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if _, err := doc.toDomain(); err != nil {
		return err
	}
	_, err := d.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		d.logger.WithError(err).WithField("venue_id", doc.ID).Error("failed to upsert venue")
		return wrap(err, "upsert venue")
	}
	return nil
}

func (d *Directory) findOne(ctx context.Context, filter bson.M) (*VenueDoc, error) {
	var doc VenueDoc
	err := d.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrap(err, "find venue")
	}
	return &doc, nil
}

func (doc VenueDoc) toDomain() (domain.Venue, error) {
	v := domain.Venue{
		ID:       doc.ID,
		Name:     doc.Name,
		Address:  doc.Address,
		Phone:    doc.Phone,
		Email:    doc.Email,
		Timezone: doc.Timezone,
		Courts:   make([]domain.Court, 0, len(doc.Courts)),
	}
	for _, c := range doc.Courts {
		v.Courts = append(v.Courts, domain.Court{ID: c.ID, VenueID: doc.ID, Name: c.Name})
	}
	if doc.Hours != nil {
		sc, err := doc.Hours.toDomain()
		if err != nil {
			return domain.Venue{}, errors.Wrapf(err, "venue %d hours", doc.ID)
		}
		v.Slots = &sc
	}
	return v, nil
}

func (h HoursDoc) toDomain() (domain.SlotConfig, error) {
	open, err := domain.ParseTimeOfDay(h.Open)
	if err != nil {
		return domain.SlotConfig{}, err
	}
	closing, err := domain.ParseTimeOfDay(h.Close)
	if err != nil {
		return domain.SlotConfig{}, err
	}
	sc := domain.SlotConfig{Open: open, Close: closing, SlotMinutes: h.SlotMinutes, StepMinutes: h.StepMinutes}
	return sc, sc.Validate()
}

func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		return errors.Wrap(err, op)
	}
	return errors.Mark(errors.Wrap(err, op), domain.ErrUpstream)
}
