package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions (start_time);`

	insertSessionSQL = `
INSERT INTO sessions (run_id,
                      start_time,
                      video_path,
                      fps,
                      stride,
                      frame_start,
                      frame_end,
                      telemetry_start,
                      telemetry_end,
                      mode,
                      frame_time,
                      config)
VALUES (?, CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSessionColumnsSQL = `
SELECT id,
       run_id,
       start_time,
       video_path,
       fps,
       stride,
       frame_start,
       frame_end,
       telemetry_start,
       telemetry_end,
       mode,
       frame_time,
       num_frames,
       config
FROM sessions`

	selectSessionSQL = selectSessionColumnsSQL + `
WHERE id = ?`

	selectSessionsSQL = selectSessionColumnsSQL + `
ORDER BY start_time, id`

	updateSessionFramesSQL = `
UPDATE sessions
SET num_frames = (SELECT COUNT(*) FROM frames WHERE session_id = ?)
WHERE id = ?`

	insertFramesSQL = `
INSERT INTO frames (session_id,
                    idx,
                    frame_time,
                    elapsed,
                    altitude,
                    roll,
                    pitch,
                    yaw)
VALUES `

	countFramesSQL = `
SELECT COUNT(*)
FROM frames
WHERE session_id = ?
  AND idx >= ?
  AND idx < ?`

	selectFramesSQL = `
SELECT idx,
       frame_time,
       elapsed,
       altitude,
       roll,
       pitch,
       yaw
FROM frames
WHERE session_id = ?
  AND idx >= ?
  AND idx < ?
ORDER BY idx
LIMIT ?`
)
