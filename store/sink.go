package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pikawatch/pika-sonar/detector"
	"github.com/pikawatch/pika-sonar/detector/config"
	"github.com/pikawatch/pika-sonar/logging"
	"github.com/pikawatch/pika-sonar/transcode"
)

// ClipDir returns the folder clips of a recording are written to: a
// "recording<ID>" directory next to the audio file.
func ClipDir(r *Recording) string {
	return filepath.Join(filepath.Dir(r.Filename), fmt.Sprintf("recording%d", r.ID))
}

// CallSink stores detected calls of one recording. Each call becomes a WAV
// clip plus a row in calls, and the rows of a pass are committed together.
// A recording is read in one or more passes; Finish closes the whole run.
type CallSink struct {
	store     *Store
	recording *Recording
	logger    logging.Logger

	tx        *sql.Tx
	insert    *sql.Stmt
	written   []string // clips of the open pass
	committed []string // clips of earlier passes
	count     int
}

// NewCallSink creates a sink for calls found in recording
func (s *Store) NewCallSink(recording *Recording) *CallSink {
	return &CallSink{
		store:     s,
		recording: recording,
		logger: s.logger.WithFields(logging.Fields{
			"recording_id": recording.ID,
		}),
	}
}

var _ detector.Sink = (*CallSink)(nil)

// Enter starts the transaction for a pass
func (cs *CallSink) Enter() error {
	if cs.tx != nil {
		return errors.New("call sink already entered")
	}
	tx, err := cs.store.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO calls (recording_id, offset_seconds, duration, filename) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	cs.tx = tx
	cs.insert = stmt
	cs.written = nil
	return nil
}

// HandleCall writes the clip and queues its row
func (cs *CallSink) HandleCall(call detector.DetectedCall) error {
	if cs.tx == nil {
		return errors.New("call sink not entered")
	}

	path := filepath.Join(ClipDir(cs.recording), fmt.Sprintf("call_%s.wav", uuid.NewString()))
	if err := transcode.WriteWAV(path, call.Samples, config.RequiredSampleRate); err != nil {
		return err
	}
	cs.written = append(cs.written, path)

	if _, err := cs.insert.Exec(cs.recording.ID, call.Offset, call.Duration, path); err != nil {
		return fmt.Errorf("error inserting call: %w", err)
	}

	cs.logger.Debug("Call stored", logging.Fields{
		"offset":   call.Offset,
		"duration": call.Duration,
		"clip":     path,
	})
	return nil
}

// Exit commits the pass when err is nil. Otherwise, or when the commit
// fails, the rows are rolled back and the clips of the pass are removed.
func (cs *CallSink) Exit(err error) error {
	if cs.tx == nil {
		return nil
	}
	tx := cs.tx
	cs.tx = nil
	cs.insert.Close()

	if err != nil {
		cs.removeClips(cs.written)
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back: %w", rbErr)
		}
		return nil
	}

	if err := tx.Commit(); err != nil {
		cs.removeClips(cs.written)
		return fmt.Errorf("error committing calls: %w", err)
	}
	cs.committed = append(cs.committed, cs.written...)
	cs.count += len(cs.written)

	cs.logger.Info("Calls committed", logging.Fields{"calls": len(cs.written), "total": cs.count})
	return nil
}

// Finish ends a run over the recording. With a nil err the recording is
// marked processed. Otherwise the calls committed by earlier passes are
// deleted along with their clips, leaving the recording as it was before
// the run.
func (cs *CallSink) Finish(err error) error {
	if cs.tx != nil {
		return errors.New("call sink finished inside a pass")
	}

	if err == nil {
		if err := cs.store.MarkProcessed(cs.recording.ID); err != nil {
			return err
		}
		cs.recording.Processed = true
		return nil
	}

	if len(cs.committed) == 0 {
		return nil
	}
	if err := cs.store.deleteCalls(cs.recording.ID, cs.committed); err != nil {
		return err
	}
	cs.logger.Warn("Run failed, stored calls discarded", logging.Fields{
		"calls": len(cs.committed),
		"error": err.Error(),
	})
	cs.removeClips(cs.committed)
	cs.committed = nil
	cs.count = 0
	return nil
}

func (cs *CallSink) removeClips(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			cs.logger.Warn("Failed to remove clip", logging.Fields{"clip": path, "error": err.Error()})
		}
	}
}

// Count returns the number of calls committed so far
func (cs *CallSink) Count() int {
	return cs.count
}
