package datasource

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/mverbeek/sensetrack/pkg/model"
)

// openReadOnly opens a tracker database for reading with pragmas tuned
// for bulk scans.
func openReadOnly(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		_, _ = db.Exec(pragma)
	}
	return db, nil
}

// loadSQLite reads every observation table from a tracker export.
// Emotion and sensory rows carrying a session_id fold into their session;
// the rest stay top-level.
func loadSQLite(path string, opts LoadOptions) (model.AnalyticsRequest, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return model.AnalyticsRequest{}, err
	}
	defer db.Close()

	var req model.AnalyticsRequest

	sessions := make(map[string]*model.TrackingEntry)
	sessionOrder := []string{}

	rows, err := db.Query(`
		SELECT id, student_id, timestamp, noise, light, temperature, crowd, activity, note
		FROM tracking_entries`)
	if err != nil {
		return model.AnalyticsRequest{}, fmt.Errorf("query tracking_entries: %w", err)
	}
	for rows.Next() {
		var (
			id        string
			studentID sql.NullString
			ts        any
			noise     sql.NullFloat64
			light     sql.NullFloat64
			temp      sql.NullFloat64
			crowd     sql.NullFloat64
			activity  sql.NullString
			note      sql.NullString
		)
		if err := rows.Scan(&id, &studentID, &ts, &noise, &light, &temp, &crowd, &activity, &note); err != nil {
			opts.WarningHandler(fmt.Sprintf("%s: bad tracking row: %v", path, err))
			continue
		}
		t := &model.TrackingEntry{
			ID:        id,
			StudentID: studentID.String,
			Timestamp: model.Coerce(ts),
			Note:      note.String,
		}
		ensureID(&t.ID)
		if noise.Valid || light.Valid || temp.Valid || crowd.Valid || activity.Valid {
			t.Environment = &model.EnvironmentSnapshot{
				Noise:       noise.Float64,
				Light:       light.Float64,
				Temperature: temp.Float64,
				Crowd:       crowd.Float64,
				Activity:    activity.String,
			}
		}
		sessions[t.ID] = t
		sessionOrder = append(sessionOrder, t.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return model.AnalyticsRequest{}, fmt.Errorf("scan tracking_entries: %w", err)
	}
	rows.Close()

	rows, err = db.Query(`
		SELECT id, student_id, session_id, emotion, intensity, timestamp, triggers, note
		FROM emotion_entries`)
	if err != nil {
		return model.AnalyticsRequest{}, fmt.Errorf("query emotion_entries: %w", err)
	}
	for rows.Next() {
		var (
			id        string
			studentID sql.NullString
			sessionID sql.NullString
			emotion   string
			intensity int
			ts        any
			triggers  sql.NullString
			note      sql.NullString
		)
		if err := rows.Scan(&id, &studentID, &sessionID, &emotion, &intensity, &ts, &triggers, &note); err != nil {
			opts.WarningHandler(fmt.Sprintf("%s: bad emotion row: %v", path, err))
			continue
		}
		e := model.EmotionEntry{
			ID:        id,
			StudentID: studentID.String,
			Emotion:   model.Emotion(emotion),
			Intensity: intensity,
			Timestamp: model.Coerce(ts),
			Note:      note.String,
		}
		ensureID(&e.ID)
		if triggers.Valid && triggers.String != "" {
			if err := json.Unmarshal([]byte(triggers.String), &e.Triggers); err != nil {
				opts.WarningHandler(fmt.Sprintf("%s: emotion %s: bad triggers json: %v", path, e.ID, err))
			}
		}
		if err := e.Validate(); err != nil {
			opts.WarningHandler(fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if s, ok := sessions[sessionID.String]; ok {
			s.Emotions = append(s.Emotions, e)
		} else {
			req.Emotions = append(req.Emotions, e)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return model.AnalyticsRequest{}, fmt.Errorf("scan emotion_entries: %w", err)
	}
	rows.Close()

	rows, err = db.Query(`
		SELECT id, student_id, session_id, channel, response, intensity, timestamp, environment, note
		FROM sensory_entries`)
	if err != nil {
		return model.AnalyticsRequest{}, fmt.Errorf("query sensory_entries: %w", err)
	}
	for rows.Next() {
		var (
			id        string
			studentID sql.NullString
			sessionID sql.NullString
			channel   string
			response  sql.NullString
			intensity int
			ts        any
			env       sql.NullString
			note      sql.NullString
		)
		if err := rows.Scan(&id, &studentID, &sessionID, &channel, &response, &intensity, &ts, &env, &note); err != nil {
			opts.WarningHandler(fmt.Sprintf("%s: bad sensory row: %v", path, err))
			continue
		}
		s := model.SensoryEntry{
			ID:          id,
			StudentID:   studentID.String,
			Channel:     model.SensoryChannel(channel),
			Response:    model.SensoryResponse(response.String),
			Intensity:   intensity,
			Timestamp:   model.Coerce(ts),
			Environment: env.String,
			Note:        note.String,
		}
		ensureID(&s.ID)
		if err := s.Validate(); err != nil {
			opts.WarningHandler(fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if sess, ok := sessions[sessionID.String]; ok {
			sess.Sensory = append(sess.Sensory, s)
		} else {
			req.SensoryInputs = append(req.SensoryInputs, s)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return model.AnalyticsRequest{}, fmt.Errorf("scan sensory_entries: %w", err)
	}
	rows.Close()

	for _, id := range sessionOrder {
		req.Entries = append(req.Entries, *sessions[id])
	}
	return req, nil
}

// countSQLiteEntries sums the row counts of the three observation tables.
func countSQLiteEntries(path string) (int, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	total := 0
	for _, table := range []string{"tracking_entries", "emotion_entries", "sensory_entries"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}
