package store

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/pikawatch/pika-sonar/detector"
	"github.com/pikawatch/pika-sonar/logging"
	"github.com/pikawatch/pika-sonar/transcode"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// Store persists the observer -> collection -> observation -> recording ->
// call hierarchy in SQLite.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (and if needed creates) the database at path. A nil logger
// uses the global logger.
func Open(path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	dsn := path
	dbPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		dbPath = path[:idx]
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	params := []string{"_busy_timeout=5000", "_foreign_keys=on"}
	for _, p := range params {
		key := p[:strings.Index(p, "=")]
		if strings.Contains(dsn, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p
		} else {
			dsn += "?" + p
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}
	// one writer at a time; CallSink holds a transaction for a whole pass
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.WithFields(logging.Fields{"component": "store"}),
	}, nil
}

func createTables(db *sql.DB) error {
	schema := []struct {
		name string
		ddl  string
	}{
		{"observers", `
    CREATE TABLE IF NOT EXISTS observers (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        institution TEXT NOT NULL DEFAULT ''
    );`},
		{"collections", `
    CREATE TABLE IF NOT EXISTS collections (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        observer_id INTEGER NOT NULL REFERENCES observers(id),
        folder TEXT NOT NULL,
        start_date DATETIME,
        end_date DATETIME,
        description TEXT NOT NULL DEFAULT '',
        notes TEXT NOT NULL DEFAULT '',
        processed INTEGER NOT NULL DEFAULT 0
    );`},
		{"observations", `
    CREATE TABLE IF NOT EXISTS observations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        collection_id INTEGER NOT NULL REFERENCES collections(id),
        description TEXT NOT NULL DEFAULT '',
        latitude REAL,
        longitude REAL,
        datum TEXT NOT NULL DEFAULT '',
        count_estimate INTEGER NOT NULL DEFAULT 0,
        notes TEXT NOT NULL DEFAULT ''
    );`},
		{"recordings", `
    CREATE TABLE IF NOT EXISTS recordings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        observation_id INTEGER NOT NULL REFERENCES observations(id),
        filename TEXT NOT NULL UNIQUE,
        start_time DATETIME,
        duration REAL NOT NULL DEFAULT 0,
        bitrate INTEGER NOT NULL DEFAULT 0,
        device TEXT NOT NULL DEFAULT '',
        notes TEXT NOT NULL DEFAULT '',
        processed INTEGER NOT NULL DEFAULT 0
    );`},
		{"calls", `
    CREATE TABLE IF NOT EXISTS calls (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        recording_id INTEGER NOT NULL REFERENCES recordings(id) DEFERRABLE INITIALLY DEFERRED,
        verified INTEGER,
        offset_seconds REAL NOT NULL,
        duration REAL NOT NULL,
        filename TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_calls_recording ON calls(recording_id);`},
	}

	for _, table := range schema {
		if _, err := db.Exec(table.ddl); err != nil {
			return fmt.Errorf("error creating %s table: %w", table.name, err)
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func insertID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// AddObserver inserts o and sets its ID
func (s *Store) AddObserver(o *Observer) error {
	return insertObserver(s.db, o)
}

func insertObserver(db execer, o *Observer) error {
	id, err := insertID(db.Exec(
		"INSERT INTO observers (name, institution) VALUES (?, ?)",
		o.Name, o.Institution))
	if err != nil {
		return fmt.Errorf("error inserting observer: %w", err)
	}
	o.ID = id
	return nil
}

// AddCollection inserts c and sets its ID
func (s *Store) AddCollection(c *Collection) error {
	return insertCollection(s.db, c)
}

func insertCollection(db execer, c *Collection) error {
	id, err := insertID(db.Exec(
		`INSERT INTO collections (observer_id, folder, start_date, end_date, description, notes, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ObserverID, c.Folder, c.StartDate, c.EndDate, c.Description, c.Notes, c.Processed))
	if err != nil {
		return fmt.Errorf("error inserting collection: %w", err)
	}
	c.ID = id
	return nil
}

// AddObservation inserts o and sets its ID
func (s *Store) AddObservation(o *Observation) error {
	return insertObservation(s.db, o)
}

func insertObservation(db execer, o *Observation) error {
	id, err := insertID(db.Exec(
		`INSERT INTO observations (collection_id, description, latitude, longitude, datum, count_estimate, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.CollectionID, o.Description, o.Latitude, o.Longitude, o.Datum, o.CountEstimate, o.Notes))
	if err != nil {
		return fmt.Errorf("error inserting observation: %w", err)
	}
	o.ID = id
	return nil
}

// AddRecording inserts r and sets its ID. r.ObservationID must name an
// existing observation.
func (s *Store) AddRecording(r *Recording) error {
	return insertRecording(s.db, r)
}

func insertRecording(db execer, r *Recording) error {
	id, err := insertID(db.Exec(
		`INSERT INTO recordings (observation_id, filename, start_time, duration, bitrate, device, notes, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ObservationID, r.Filename, r.StartTime, r.Duration, r.Bitrate, r.Device, r.Notes, r.Processed))
	if err != nil {
		return fmt.Errorf("error inserting recording %s: %w", r.Filename, err)
	}
	r.ID = id
	return nil
}

// AddRecordingTree inserts a recording together with a new observer,
// collection and observation in one transaction, linking their IDs. Nothing
// is stored when any insert fails.
func (s *Store) AddRecordingTree(observer *Observer, collection *Collection, observation *Observation, recording *Recording) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := insertObserver(tx, observer); err != nil {
		tx.Rollback()
		return err
	}
	collection.ObserverID = observer.ID
	if err := insertCollection(tx, collection); err != nil {
		tx.Rollback()
		return err
	}
	observation.CollectionID = collection.ID
	if err := insertObservation(tx, observation); err != nil {
		tx.Rollback()
		return err
	}
	recording.ObservationID = observation.ID
	if err := insertRecording(tx, recording); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing recording %s: %w", recording.Filename, err)
	}
	return nil
}

const recordingColumns = "id, observation_id, filename, start_time, duration, bitrate, device, notes, processed"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (*Recording, error) {
	var r Recording
	var start sql.NullTime
	if err := row.Scan(&r.ID, &r.ObservationID, &r.Filename, &start, &r.Duration,
		&r.Bitrate, &r.Device, &r.Notes, &r.Processed); err != nil {
		return nil, err
	}
	r.StartTime = start.Time
	return &r, nil
}

// Recording returns the recording with the given ID
func (s *Store) Recording(id int64) (*Recording, error) {
	r, err := scanRecording(s.db.QueryRow("SELECT "+recordingColumns+" FROM recordings WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading recording %d: %w", id, err)
	}
	return r, nil
}

// Observation returns the observation with the given ID
func (s *Store) Observation(id int64) (*Observation, error) {
	var o Observation
	err := s.db.QueryRow(
		`SELECT id, collection_id, description, latitude, longitude, datum, count_estimate, notes
		 FROM observations WHERE id = ?`, id).
		Scan(&o.ID, &o.CollectionID, &o.Description, &o.Latitude, &o.Longitude, &o.Datum, &o.CountEstimate, &o.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading observation %d: %w", id, err)
	}
	return &o, nil
}

// Recordings lists recordings in ID order, optionally only those not yet
// processed.
func (s *Store) Recordings(unprocessedOnly bool) ([]*Recording, error) {
	query := "SELECT " + recordingColumns + " FROM recordings"
	if unprocessedOnly {
		query += " WHERE processed = 0"
	}
	rows, err := s.db.Query(query + " ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error listing recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning recording: %w", err)
		}
		recordings = append(recordings, r)
	}
	return recordings, rows.Err()
}

// MarkProcessed flags a recording as analysed
func (s *Store) MarkProcessed(recordingID int64) error {
	res, err := s.db.Exec("UPDATE recordings SET processed = 1 WHERE id = ?", recordingID)
	if err != nil {
		return fmt.Errorf("error marking recording %d processed: %w", recordingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %d: %w", recordingID, ErrNotFound)
	}
	return nil
}

// deleteCalls removes the calls of a recording whose clips are listed
func (s *Store) deleteCalls(recordingID int64, clips []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	stmt, err := tx.Prepare("DELETE FROM calls WHERE recording_id = ? AND filename = ?")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, clip := range clips {
		if _, err := stmt.Exec(recordingID, clip); err != nil {
			tx.Rollback()
			return fmt.Errorf("error deleting call %s: %w", clip, err)
		}
	}
	return tx.Commit()
}

func (s *Store) queryCalls(where string, args ...any) ([]*Call, error) {
	rows, err := s.db.Query(
		"SELECT id, recording_id, verified, offset_seconds, duration, filename FROM calls WHERE "+where+" ORDER BY offset_seconds",
		args...)
	if err != nil {
		return nil, fmt.Errorf("error querying calls: %w", err)
	}
	defer rows.Close()

	var calls []*Call
	for rows.Next() {
		var c Call
		var verified sql.NullBool
		if err := rows.Scan(&c.ID, &c.RecordingID, &verified, &c.Offset, &c.Duration, &c.Filename); err != nil {
			return nil, fmt.Errorf("error scanning call: %w", err)
		}
		if verified.Valid {
			v := verified.Bool
			c.Verified = &v
		}
		calls = append(calls, &c)
	}
	return calls, rows.Err()
}

// RecordingCalls returns every call of a recording in offset order
func (s *Store) RecordingCalls(recordingID int64) ([]*Call, error) {
	return s.queryCalls("recording_id = ?", recordingID)
}

// UnverifiedCalls returns the calls of a recording nobody has reviewed yet
func (s *Store) UnverifiedCalls(recordingID int64) ([]*Call, error) {
	return s.queryCalls("recording_id = ? AND verified IS NULL", recordingID)
}

// SetVerified records a review verdict. Each verdict is committed on its
// own so an aborted session keeps what was already reviewed.
func (s *Store) SetVerified(callID int64, verified bool) error {
	res, err := s.db.Exec("UPDATE calls SET verified = ? WHERE id = ?", verified, callID)
	if err != nil {
		return fmt.Errorf("error updating call %d: %w", callID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("call %d: %w", callID, ErrNotFound)
	}
	return nil
}

// PendingCalls yields the unverified calls of a recording with their clips
// loaded, ready for review.
func (s *Store) PendingCalls(recordingID int64) iter.Seq2[detector.PendingCall, error] {
	return func(yield func(detector.PendingCall, error) bool) {
		calls, err := s.UnverifiedCalls(recordingID)
		if err != nil {
			yield(detector.PendingCall{}, err)
			return
		}
		for _, c := range calls {
			clip, err := transcode.LoadWAV(c.Filename)
			if err != nil {
				yield(detector.PendingCall{}, fmt.Errorf("failed to load clip for call %d: %w", c.ID, err))
				return
			}
			if !yield(detector.PendingCall{ID: c.ID, Offset: c.Offset, Samples: clip.PCM}, nil) {
				return
			}
		}
	}
}
