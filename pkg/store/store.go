// Package store persists pyramid levels to MongoDB and queries them by zoom
// level and extent.
//
// A [Store] wraps one collection. [Store.Replace] swaps the collection
// contents for a new import; [Store.FindByZoom] returns the boundaries a map
// shows at a zoom level, optionally limited to a bounding box through the
// 2dsphere index created by [Store.EnsureIndexes].
//
//	s, err := store.Connect(ctx, store.Config{URI: uri})
//	if err != nil {
//	    return err
//	}
//	defer s.Close(ctx)
//
//	sum, err := s.Replace(ctx, levels)
package store

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/geolod/pkg/cache"
	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/lod"
	"github.com/matzehuels/geolod/pkg/observability"
)

// Defaults for Config.
const (
	DefaultDatabase   = "geolod"
	DefaultCollection = "boundary_polygons"
	DefaultSource     = "BNPB"
)

// insertBatch bounds the documents sent in one InsertMany call.
const insertBatch = 500

// Config selects the MongoDB collection.
type Config struct {
	URI        string
	Database   string
	Collection string
	Source     string
	Logger     *log.Logger
}

// Store reads and writes boundaries in one collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	source string
	logger *log.Logger
	now    func() time.Time
}

// Connect opens a client, pings the server and returns a store on the
// configured collection.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "store URI is required (set [store] uri or MONGODB_URI)")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "connect to MongoDB")
	}
	err = cache.RetryWithBackoff(ctx, func() error {
		return classify(client.Ping(ctx, nil))
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeStore, err, "ping MongoDB")
	}

	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	s := New(client.Database(cfg.Database).Collection(cfg.Collection), cfg.Source, cfg.Logger)
	s.client = client
	return s, nil
}

// New returns a store on an existing collection. The caller owns the client.
func New(coll *mongo.Collection, source string, logger *log.Logger) *Store {
	if source == "" {
		source = DefaultSource
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Store{coll: coll, source: source, logger: logger, now: time.Now}
}

// Collection returns the collection name.
func (s *Store) Collection() string { return s.coll.Name() }

// Close disconnects the client opened by Connect.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the geometry and lookup indexes and returns their
// names. Existing indexes are left alone.
func (s *Store) EnsureIndexes(ctx context.Context) ([]string, error) {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "geometry", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "admin_level", Value: 1}, {Key: "zoom_min", Value: 1}, {Key: "zoom_max", Value: 1}}},
		{Keys: bson.D{{Key: "admin_level", Value: 1}, {Key: "kode_provinsi", Value: 1}}},
		{Keys: bson.D{{Key: "admin_level", Value: 1}, {Key: "kode_kabupaten", Value: 1}}},
	}
	names, err := s.coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "create indexes on %s", s.Collection())
	}
	return names, nil
}

// Level is one pyramid level to store with the tolerance it was simplified
// with.
type Level struct {
	Layer     *lod.Layer
	Tolerance float64
}

// LevelSummary counts the outcome of storing one level.
type LevelSummary struct {
	Level    lod.AdminLevel
	Inserted int
	Failures []lod.Failure
}

// ImportSummary describes one Replace call.
type ImportSummary struct {
	ImportID uuid.UUID
	Levels   []LevelSummary
	Deleted  int64
	Duration time.Duration
}

// Inserted returns the number of documents written across all levels.
func (s *ImportSummary) Inserted() int {
	n := 0
	for _, l := range s.Levels {
		n += l.Inserted
	}
	return n
}

// Failed returns the number of rejected documents across all levels.
func (s *ImportSummary) Failed() int {
	n := 0
	for _, l := range s.Levels {
		n += len(l.Failures)
	}
	return n
}

// Replace writes levels under a new import ID and then removes every
// document of earlier imports. Documents the server rejects (typically
// geometry the 2dsphere index refuses) are reported per level and do not
// stop the import. Any other error removes the partial import and leaves
// the previous contents in place.
func (s *Store) Replace(ctx context.Context, levels []Level) (*ImportSummary, error) {
	start := s.now()
	sum := &ImportSummary{ImportID: uuid.New()}
	hooks := observability.Store()

	for _, lv := range levels {
		if lv.Layer == nil {
			continue
		}
		ls, err := s.insertLevel(ctx, lv, sum.ImportID)
		if err != nil {
			s.rollback(sum.ImportID)
			hooks.OnStoreWrite(ctx, s.Collection(), sum.Inserted(), time.Since(start), err)
			return nil, err
		}
		sum.Levels = append(sum.Levels, ls)
		s.logger.Debug("stored level", "level", ls.Level, "inserted", ls.Inserted, "failed", len(ls.Failures))
	}

	res, err := s.coll.DeleteMany(ctx, bson.M{"import_id": bson.M{"$ne": sum.ImportID.String()}})
	if err != nil {
		s.rollback(sum.ImportID)
		err = errors.Wrap(errors.ErrCodeStore, err, "remove previous import")
		hooks.OnStoreWrite(ctx, s.Collection(), sum.Inserted(), time.Since(start), err)
		return nil, err
	}
	sum.Deleted = res.DeletedCount
	sum.Duration = time.Since(start)
	hooks.OnStoreWrite(ctx, s.Collection(), sum.Inserted(), sum.Duration, nil)
	return sum, nil
}

func (s *Store) insertLevel(ctx context.Context, lv Level, importID uuid.UUID) (LevelSummary, error) {
	ls := LevelSummary{Level: lv.Layer.Level}
	now := s.now().UTC()

	for lo := 0; lo < len(lv.Layer.Features); lo += insertBatch {
		hi := min(lo+insertBatch, len(lv.Layer.Features))
		batch := lv.Layer.Features[lo:hi]
		docs := make([]any, len(batch))
		for i, f := range batch {
			docs[i] = NewBoundary(f, lv.Tolerance, s.source, importID, now)
		}

		// Inserts are not retried: an unordered batch may have partly landed.
		res, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))

		var bwe mongo.BulkWriteException
		switch {
		case err == nil:
			ls.Inserted += len(res.InsertedIDs)
		case stderrors.As(err, &bwe) && bwe.WriteConcernError == nil && len(bwe.WriteErrors) > 0:
			ls.Inserted += len(batch) - len(bwe.WriteErrors)
			for _, we := range bwe.WriteErrors {
				ls.Failures = append(ls.Failures, lod.Failure{
					Level:   ls.Level,
					Subject: batch[we.Index].ID,
					Err:     errors.Wrap(errors.ErrCodeStore, we, "insert rejected"),
				})
			}
		default:
			if ctx.Err() != nil {
				return ls, ctx.Err()
			}
			return ls, errors.Wrap(errors.ErrCodeStore, err, "insert %s", ls.Level)
		}
	}
	return ls, nil
}

// rollback removes the documents of a failed import. It runs on a fresh
// context so a cancelled import is still cleaned up.
func (s *Store) rollback(importID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.coll.DeleteMany(ctx, bson.M{"import_id": importID.String()}); err != nil {
		s.logger.Warn("rollback of partial import failed", "import_id", importID, "err", err)
	}
}

// Filter narrows a zoom query.
type Filter struct {
	ProvinceCode string
	DistrictCode string

	// Bound, when set, keeps only boundaries intersecting it.
	Bound *orb.Bound
}

// FindByZoom returns the boundaries displayed at zoom, ordered by level and
// province.
func (s *Store) FindByZoom(ctx context.Context, zoom int, f Filter) ([]*Boundary, error) {
	start := s.now()
	query := zoomQuery(zoom, f)
	opts := options.Find().SetSort(bson.D{
		{Key: "admin_level", Value: 1},
		{Key: "kode_provinsi", Value: 1},
		{Key: "kode_kabupaten", Value: 1},
		{Key: "kode_kecamatan", Value: 1},
	})

	var out []*Boundary
	err := cache.RetryWithBackoff(ctx, func() error {
		cur, err := s.coll.Find(ctx, query, opts)
		if err != nil {
			return classify(err)
		}
		out = nil
		return classify(cur.All(ctx, &out))
	})
	observability.Store().OnStoreQuery(ctx, s.Collection(), len(out), time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "find boundaries at zoom %d", zoom)
	}
	return out, nil
}

// CountByZoom returns how many boundaries FindByZoom would return.
func (s *Store) CountByZoom(ctx context.Context, zoom int, f Filter) (int64, error) {
	start := s.now()
	var n int64
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		n, err = s.coll.CountDocuments(ctx, zoomQuery(zoom, f))
		return classify(err)
	})
	observability.Store().OnStoreQuery(ctx, s.Collection(), int(n), time.Since(start), err)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStore, err, "count boundaries at zoom %d", zoom)
	}
	return n, nil
}

// FindOne returns the boundary stored for a feature ID at level.
func (s *Store) FindOne(ctx context.Context, level lod.AdminLevel, featureID string) (*Boundary, error) {
	var b Boundary
	err := s.coll.FindOne(ctx, bson.M{"admin_level": level, "feature_id": featureID}).Decode(&b)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeNotFound, "no %s boundary %q", level, featureID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "find %s boundary %q", level, featureID)
	}
	return &b, nil
}

func zoomQuery(zoom int, f Filter) bson.M {
	q := bson.M{
		"zoom_min": bson.M{"$lte": zoom},
		"zoom_max": bson.M{"$gte": zoom},
	}
	if f.ProvinceCode != "" {
		q["kode_provinsi"] = f.ProvinceCode
	}
	if f.DistrictCode != "" {
		q["kode_kabupaten"] = f.DistrictCode
	}
	if f.Bound != nil {
		q["geometry"] = bson.M{
			"$geoIntersects": bson.M{"$geometry": geojson.NewGeometry(f.Bound.ToPolygon())},
		}
	}
	return q
}

// LevelCount is the number of stored boundaries of one level.
type LevelCount struct {
	Level lod.AdminLevel `bson:"_id"`
	Count int            `bson:"count"`
}

// Stats counts the stored boundaries per level, finest first.
func (s *Store) Stats(ctx context.Context) ([]LevelCount, error) {
	start := s.now()
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$admin_level"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}

	var counts []LevelCount
	err := func() error {
		cur, err := s.coll.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		return cur.All(ctx, &counts)
	}()
	observability.Store().OnStoreQuery(ctx, s.Collection(), len(counts), time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "count boundaries")
	}
	sortCounts(counts)
	return counts, nil
}

func sortCounts(counts []LevelCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Level.Rank() > counts[j].Level.Rank()
	})
}

// classify marks transient driver errors as retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || stderrors.As(err, &ne) {
		return cache.Retryable(err)
	}
	return err
}
