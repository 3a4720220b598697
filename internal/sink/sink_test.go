package sink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		RunID:   "run-1",
		Tick:    2,
		SimTime: time.Date(2020, 3, 1, 0, 0, 2, 0, time.UTC),
		Satellites: []model.SatelliteDefinition{
			{ID: "sat-1", Index: 1, Position: model.GeoPosition{Latitude: 30, Longitude: -120, Altitude: 2000}, Direction: model.Northbound},
			{ID: "sat-2", Index: 2, Position: model.GeoPosition{Latitude: -30, Longitude: -120, Altitude: 2000}, Direction: model.Southbound},
		},
		Links: []model.InterSatelliteLink{
			{ID: "isl-1-2", A: 1, B: 2, Kind: model.LinkKindIntraPlane, DistanceKm: 8774.1, LatencyMs: 29.3, IsUp: false},
		},
	}
}

// ---- NATS ----

type fakeJetStream struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return &nats.PubAck{Stream: StreamName}, nil
}

func TestNATSSinkPublishesJSONSnapshot(t *testing.T) {
	js := &fakeJetStream{}
	s := newNATSSinkWithPublisher(js)

	if err := s.Publish(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(js.subjects) != 1 || js.subjects[0] != SubjectSnapshot {
		t.Fatalf("subjects = %v, want [%s]", js.subjects, SubjectSnapshot)
	}
	var got model.Snapshot
	if err := json.Unmarshal(js.payloads[0], &got); err != nil {
		t.Fatalf("payload is not a snapshot: %v", err)
	}
	if got.RunID != "run-1" || len(got.Satellites) != 2 || got.Satellites[1].Direction != model.Southbound {
		t.Fatalf("decoded snapshot = %+v", got)
	}
}

func TestNATSSinkWrapsPublishError(t *testing.T) {
	s := newNATSSinkWithPublisher(&fakeJetStream{err: errors.New("no responders")})
	err := s.Publish(context.Background(), testSnapshot())
	if err == nil || !strings.Contains(err.Error(), "no responders") {
		t.Fatalf("Publish error = %v, want wrapped publish failure", err)
	}
}

func TestNATSSinkHonoursCancelledContext(t *testing.T) {
	js := &fakeJetStream{}
	s := newNATSSinkWithPublisher(js)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Publish(ctx, testSnapshot()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish error = %v, want context.Canceled", err)
	}
	if len(js.payloads) != 0 {
		t.Fatalf("published despite cancelled context")
	}
}

func TestNATSSinkCloseNilConnection(t *testing.T) {
	s := &NATSSink{}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewNATSSinkInvalidURL(t *testing.T) {
	s, err := NewNATSSink("invalid://url:12345")
	if err == nil {
		_ = s.Close()
		t.Fatalf("expected error for invalid URL")
	}
}

// ---- Redis ----

type fakeRedis struct {
	values    map[string]string
	ttls      map[string]time.Duration
	setErr    error
	closed    bool
	pipelines int
}

// fakePipeline queues nothing: Set applies straight to the fake store.
type fakePipeline struct {
	redis.Pipeliner
	client *fakeRedis
}

func (p *fakePipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return p.client.Set(ctx, key, value, expiration)
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	f.pipelines++
	if err := fn(&fakePipeline{client: f}); err != nil {
		return nil, err
	}
	return nil, f.setErr
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisSinkStoresLatestState(t *testing.T) {
	client := newFakeRedis()
	s := NewRedisSinkWithClient(client)

	if err := s.Publish(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	raw, ok := client.values[SatelliteKey("sat-2")]
	if !ok {
		t.Fatalf("missing key %s, have %v", SatelliteKey("sat-2"), client.values)
	}
	var sat model.SatelliteDefinition
	if err := json.Unmarshal([]byte(raw), &sat); err != nil {
		t.Fatalf("unmarshal satellite: %v", err)
	}
	if sat.Position.Latitude != -30 || sat.Direction != model.Southbound {
		t.Fatalf("stored satellite = %+v", sat)
	}
	if client.ttls[SatelliteKey("sat-2")] != DefaultRedisTTL {
		t.Fatalf("ttl = %v, want %v", client.ttls[SatelliteKey("sat-2")], DefaultRedisTTL)
	}

	var links []model.InterSatelliteLink
	if err := json.Unmarshal([]byte(client.values[LinksKey]), &links); err != nil {
		t.Fatalf("unmarshal links: %v", err)
	}
	if len(links) != 1 || links[0].ID != "isl-1-2" {
		t.Fatalf("stored links = %+v", links)
	}
	if client.pipelines != 1 {
		t.Fatalf("Publish used %d pipelines, want a single round trip", client.pipelines)
	}

	if err := s.Close(); err != nil || !client.closed {
		t.Fatalf("Close: err=%v closed=%v", err, client.closed)
	}
}

func TestRedisSinkPropagatesSetError(t *testing.T) {
	client := newFakeRedis()
	client.setErr = errors.New("READONLY")
	s := NewRedisSinkWithClient(client)

	err := s.Publish(context.Background(), testSnapshot())
	if err == nil || !strings.Contains(err.Error(), "sat-1") {
		t.Fatalf("Publish error = %v, want failure naming sat-1", err)
	}
}

// ---- PostgreSQL ----

func TestPostgresSinkEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS satellite_positions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewPostgresSinkWithDB(db)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestPostgresSinkPublishWritesOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	snap := testSnapshot()
	mock.ExpectBegin()
	for _, sat := range snap.Satellites {
		mock.ExpectExec("INSERT INTO satellite_positions").
			WithArgs(snap.RunID, snap.Tick, snap.SimTime, sat.Index,
				sat.Position.Latitude, sat.Position.Longitude, sat.Position.Altitude, bool(sat.Direction)).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	l := snap.Links[0]
	mock.ExpectExec("INSERT INTO isl_links").
		WithArgs(snap.RunID, snap.Tick, l.ID, string(l.Kind), l.DistanceKm, l.LatencyMs, l.IsUp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := NewPostgresSinkWithDB(db)
	if err := s.Publish(context.Background(), snap); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestPostgresSinkRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO satellite_positions").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	s := NewPostgresSinkWithDB(db)
	err = s.Publish(context.Background(), testSnapshot())
	if err == nil || !strings.Contains(err.Error(), "duplicate key") {
		t.Fatalf("Publish error = %v, want duplicate key", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCloseAllReturnsFirstError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	mock.ExpectClose().WillReturnError(errors.New("close failed"))

	redisClient := newFakeRedis()
	sinks := []Sink{NewPostgresSinkWithDB(db), NewRedisSinkWithClient(redisClient)}
	if err := CloseAll(sinks); err == nil || !strings.Contains(err.Error(), "close failed") {
		t.Fatalf("CloseAll error = %v, want close failed", err)
	}
	if !redisClient.closed {
		t.Fatalf("CloseAll stopped after the first failure")
	}
	if got := len(AsSnapshotSinks(sinks)); got != 2 {
		t.Fatalf("AsSnapshotSinks len = %d, want 2", got)
	}
}
