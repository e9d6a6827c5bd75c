package catalog

import (
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/asalt/diskwatcher/internal/diskerrors"
)

// MountMetadata is the subset of mount-identity attributes AppendEvent may
// be given to persist on the Volume row. Only non-empty fields are written
// — spec.md §4.1 "Mount identity persistence": never clobber a known value
// with null.
type MountMetadata struct {
	Device   string
	Point    string
	UUID     string
	Label    string
	LsblkRaw string // serialized full block-device JSON blob
	Lsblk    map[string]string
}

func (m *MountMetadata) isComplete() bool {
	if m == nil {
		return false
	}
	for _, k := range []string{"UUID", "PTUUID", "PARTUUID", "SERIAL", "WWN"} {
		if m.Lsblk[k] != "" {
			return true
		}
	}
	return m.UUID != ""
}

// CapacitySnapshot is an optional total/used/free bytes reading supplied by
// the caller when a capacity refresh is due; AppendEvent decides whether to
// apply it per the refresh rule below.
type CapacitySnapshot struct {
	TotalBytes int64
	UsedBytes  int64
	FreeBytes  int64
}

// AppendEvent inserts an Event row and, in the same transaction, upserts
// the Volume and File derived state. Implements spec.md §4.1 exactly:
// capacity refresh policy, sticky identity persistence, and the File
// derivation/tombstone rule. A denied basename (spec.md §9 open question 1)
// is suppressed entirely — no events row, no volume counter bump, no File
// row — for both the initial scan and live watching, since both funnel
// through this one function.
func (db *DB) AppendEvent(kind, path, directory, volumeID, processID string, ts time.Time, mount *MountMetadata, capacity func() (*CapacitySnapshot, error)) error {
	if IsDenied(filepath.Base(path)) {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	tsStr := FormatTime(ts)

	db.Lock()
	defer db.Unlock()

	return withRetry(func() error {
		tx, err := db.rw.Begin()
		if err != nil {
			return &diskerrors.CatalogWriteError{Op: "append_event.begin", Err: err}
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback()
			}
		}()

		if _, err := tx.Exec(
			`INSERT INTO events (timestamp, event_type, path, directory, volume_id, process_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tsStr, kind, path, directory, volumeID, processID,
		); err != nil {
			return &diskerrors.CatalogWriteError{Op: "append_event.insert_event", Err: err}
		}

		if err := upsertVolume(tx, volumeID, directory, kind, tsStr, mount, capacity); err != nil {
			return err
		}

		if err := upsertFile(tx, volumeID, path, directory, kind, tsStr); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return &diskerrors.CatalogWriteError{Op: "append_event.commit", Err: err}
		}
		committed = true
		return nil
	})
}

func upsertVolume(tx *sql.Tx, volumeID, directory, kind, tsStr string, mount *MountMetadata, capacity func() (*CapacitySnapshot, error)) error {
	var exists bool
	var eventsSinceRefresh int64
	var usageRefreshedAt sql.NullString
	row := tx.QueryRow(`SELECT events_since_refresh, usage_refreshed_at FROM volumes WHERE volume_id=?`, volumeID)
	switch err := row.Scan(&eventsSinceRefresh, &usageRefreshedAt); err {
	case nil:
		exists = true
	case sql.ErrNoRows:
		exists = false
	default:
		return &diskerrors.CatalogWriteError{Op: "append_event.select_volume", Err: err}
	}

	kindCol := ""
	switch kind {
	case EventCreated:
		kindCol = "created_count"
	case EventModified:
		kindCol = "modified_count"
	case EventDeleted:
		kindCol = "deleted_count"
	}

	if !exists {
		q := `INSERT INTO volumes (volume_id, directory, event_count, created_count, modified_count, deleted_count,
		                            last_event_timestamp, events_since_refresh)
		      VALUES (?, ?, 1, ?, ?, ?, ?, 1)`
		created, modified, deleted := 0, 0, 0
		switch kind {
		case EventCreated:
			created = 1
		case EventModified:
			modified = 1
		case EventDeleted:
			deleted = 1
		}
		if _, err := tx.Exec(q, volumeID, directory, created, modified, deleted, tsStr); err != nil {
			return &diskerrors.CatalogWriteError{Op: "append_event.insert_volume", Err: err}
		}
		eventsSinceRefresh = 1
	} else {
		set := "event_count = event_count + 1, last_event_timestamp = ?, events_since_refresh = events_since_refresh + 1"
		args := []interface{}{tsStr}
		if kindCol != "" {
			set += ", " + kindCol + " = " + kindCol + " + 1"
		}
		args = append(args, volumeID)
		if _, err := tx.Exec("UPDATE volumes SET "+set+" WHERE volume_id = ?", args...); err != nil {
			return &diskerrors.CatalogWriteError{Op: "append_event.update_volume", Err: err}
		}
		eventsSinceRefresh++
	}

	needsRefresh := !usageRefreshedAt.Valid || eventsSinceRefresh >= 100
	if !needsRefresh && usageRefreshedAt.Valid {
		prev, err := ParseTime(usageRefreshedAt.String)
		if err == nil {
			cur, _ := ParseTime(tsStr)
			if cur.Sub(prev) >= 300*time.Second {
				needsRefresh = true
			}
		}
	}
	if needsRefresh && capacity != nil {
		if snap, err := capacity(); err == nil && snap != nil {
			if _, err := tx.Exec(
				`UPDATE volumes SET usage_total_bytes=?, usage_used_bytes=?, usage_free_bytes=?,
				                     usage_refreshed_at=?, events_since_refresh=0 WHERE volume_id=?`,
				snap.TotalBytes, snap.UsedBytes, snap.FreeBytes, tsStr, volumeID,
			); err != nil {
				return &diskerrors.CatalogWriteError{Op: "append_event.update_capacity", Err: err}
			}
		}
		// capacity read failure is non-fatal; previous values are left intact.
	}

	if mount != nil {
		if err := persistMountIdentity(tx, volumeID, tsStr, mount); err != nil {
			return err
		}
	}
	return nil
}

// persistMountIdentity writes only the columns present and truthy in mount,
// never overwriting a known value with null, per spec.md §4.1.
func persistMountIdentity(tx *sql.Tx, volumeID, tsStr string, mount *MountMetadata) error {
	set := []string{}
	args := []interface{}{}
	add := func(col, val string) {
		if val == "" {
			return
		}
		set = append(set, col+" = ?")
		args = append(args, val)
	}
	add("mount_device", mount.Device)
	add("mount_point", mount.Point)
	add("mount_uuid", mount.UUID)
	add("mount_label", mount.Label)
	add("lsblk_json", mount.LsblkRaw)
	for k, v := range mount.Lsblk {
		col, ok := lsblkColumn(k)
		if ok {
			add(col, v)
		}
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "identity_refreshed_at = ?")
	args = append(args, tsStr)
	args = append(args, volumeID)
	q := "UPDATE volumes SET " + strings.Join(set, ", ") + " WHERE volume_id = ?"
	if _, err := tx.Exec(q, args...); err != nil {
		return &diskerrors.CatalogWriteError{Op: "append_event.update_identity", Err: err}
	}
	return nil
}

func lsblkColumn(key string) (string, bool) {
	m := map[string]string{
		"NAME": "lsblk_name", "PATH": "lsblk_path", "MODEL": "lsblk_model",
		"SERIAL": "lsblk_serial", "VENDOR": "lsblk_vendor", "SIZE": "lsblk_size",
		"FSVER": "lsblk_fsver", "PTTYPE": "lsblk_pttype", "PTUUID": "lsblk_ptuuid",
		"PARTTYPE": "lsblk_parttype", "PARTUUID": "lsblk_partuuid",
		"PARTTYPENAME": "lsblk_parttypename", "WWN": "lsblk_wwn", "MAJ:MIN": "lsblk_maj_min",
	}
	col, ok := m[key]
	return col, ok
}

func upsertFile(tx *sql.Tx, volumeID, path, directory, kind, tsStr string) error {
	if kind == EventDeleted {
		_, err := tx.Exec(
			`INSERT INTO files (volume_id, path, directory, size_bytes, modified_time, created_time,
			                     last_event_timestamp, last_event_type, is_deleted)
			 VALUES (?, ?, ?, NULL, NULL, NULL, ?, ?, 1)
			 ON CONFLICT(volume_id, path) DO UPDATE SET
			   size_bytes=NULL, modified_time=NULL, last_event_timestamp=excluded.last_event_timestamp,
			   last_event_type=excluded.last_event_type, is_deleted=1`,
			volumeID, path, directory, tsStr, kind,
		)
		if err != nil {
			return &diskerrors.CatalogWriteError{Op: "append_event.tombstone_file", Err: err}
		}
		return nil
	}

	info, err := statPath(path)
	if err != nil || info == nil {
		// absent or stat failure: skip silently, per spec.md §4.1.
		return nil
	}
	if !info.isRegular {
		return nil
	}

	_, err = tx.Exec(
		`INSERT INTO files (volume_id, path, directory, size_bytes, modified_time, created_time,
		                     last_event_timestamp, last_event_type, is_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT(volume_id, path) DO UPDATE SET
		   size_bytes=excluded.size_bytes, modified_time=excluded.modified_time,
		   last_event_timestamp=excluded.last_event_timestamp, last_event_type=excluded.last_event_type,
		   is_deleted=0`,
		volumeID, path, directory, info.size, info.modTime, info.createdTime, tsStr, kind,
	)
	if err != nil {
		return &diskerrors.CatalogWriteError{Op: "append_event.upsert_file", Err: err}
	}
	return nil
}

// --- read-only projections ---

// SummarizeByVolume returns every Volume row.
func (db *DB) SummarizeByVolume() ([]*Volume, error) {
	rows, err := db.ro.Query(`SELECT volume_id, directory, event_count, created_count, modified_count,
	       deleted_count, last_event_timestamp, usage_total_bytes, usage_used_bytes, usage_free_bytes,
	       usage_refreshed_at, events_since_refresh, mount_device, mount_point, mount_uuid, mount_label,
	       mount_volume_id, lsblk_name, lsblk_path, lsblk_model, lsblk_serial, lsblk_vendor, lsblk_size,
	       lsblk_fsver, lsblk_pttype, lsblk_ptuuid, lsblk_parttype, lsblk_partuuid, lsblk_parttypename,
	       lsblk_wwn, lsblk_maj_min, lsblk_json, identity_refreshed_at, label_index
	       FROM volumes ORDER BY volume_id`)
	if err != nil {
		return nil, &diskerrors.CatalogReadError{Op: "summarize_by_volume", Err: err}
	}
	defer rows.Close()

	var out []*Volume
	for rows.Next() {
		var v Volume
		if err := rows.Scan(&v.VolumeID, &v.Directory, &v.EventCount, &v.CreatedCount, &v.ModifiedCount,
			&v.DeletedCount, &v.LastEventTime, &v.UsageTotalBytes, &v.UsageUsedBytes, &v.UsageFreeBytes,
			&v.UsageRefreshedAt, &v.EventsSinceRefresh, &v.MountDevice, &v.MountPoint, &v.MountUUID,
			&v.MountLabel, &v.MountVolumeID, &v.LsblkName, &v.LsblkPath, &v.LsblkModel, &v.LsblkSerial,
			&v.LsblkVendor, &v.LsblkSize, &v.LsblkFSVer, &v.LsblkPTType, &v.LsblkPTUUID, &v.LsblkPartType,
			&v.LsblkPartUUID, &v.LsblkPartTypeName, &v.LsblkWWN, &v.LsblkMajMin, &v.LsblkJSON,
			&v.IdentityRefreshedAt, &v.LabelIndex); err != nil {
			return nil, &diskerrors.CatalogReadError{Op: "summarize_by_volume.scan", Err: err}
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// FetchVolumeMetadata is an alias projection of SummarizeByVolume used by
// read-side consumers that only want identity columns; kept distinct per
// spec.md §4.1's naming so callers' intent stays clear even though the
// underlying query is the same table.
func (db *DB) FetchVolumeMetadata() ([]*Volume, error) { return db.SummarizeByVolume() }

// SummarizeFiles returns up to limit File rows ordered by most recent event.
func (db *DB) SummarizeFiles(limit int) ([]*File, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.ro.Query(
		`SELECT volume_id, path, directory, size_bytes, modified_time, created_time,
		        last_event_timestamp, last_event_type, is_deleted
		 FROM files ORDER BY last_event_timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &diskerrors.CatalogReadError{Op: "summarize_files", Err: err}
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		var f File
		var isDeleted int
		if err := rows.Scan(&f.VolumeID, &f.Path, &f.Directory, &f.SizeBytes, &f.ModifiedTime,
			&f.CreatedTime, &f.LastEventTime, &f.LastEventType, &isDeleted); err != nil {
			return nil, &diskerrors.CatalogReadError{Op: "summarize_files.scan", Err: err}
		}
		f.IsDeleted = isDeleted != 0
		out = append(out, &f)
	}
	return out, rows.Err()
}

// QueryEvents returns up to limit most recent events.
func (db *DB) QueryEvents(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.ro.Query(
		`SELECT id, timestamp, event_type, path, directory, volume_id, process_id
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &diskerrors.CatalogReadError{Op: "query_events", Err: err}
	}
	return scanEvents(rows)
}

// QueryEventsSince returns up to limit events with id > rowOrdinal, in
// ascending order — the monotonic total order spec.md §5 calls out.
func (db *DB) QueryEventsSince(rowOrdinal int64, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.ro.Query(
		`SELECT id, timestamp, event_type, path, directory, volume_id, process_id
		 FROM events WHERE id > ? ORDER BY id ASC LIMIT ?`, rowOrdinal, limit)
	if err != nil {
		return nil, &diskerrors.CatalogReadError{Op: "query_events_since", Err: err}
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	defer rows.Close()
	var out []*Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Path, &e.Directory, &e.VolumeID, &e.ProcessID); err != nil {
			return nil, &diskerrors.CatalogReadError{Op: "scan_events", Err: err}
		}
		if parsed, err := ParseTime(ts); err == nil {
			e.Timestamp = parsed
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// FetchJobs is a thin pass-through to the jobs repository's List, kept at
// the Store level per spec.md §4.1's operation list.
func (db *DB) FetchJobs(includeFinished bool, limit int) ([]*Job, error) {
	jobs, err := db.Jobs().List(ListFilter{IncludeFinished: includeFinished, Limit: limit})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

type statInfo struct {
	size        int64
	modTime     string
	createdTime string
	isRegular   bool
}

func statPath(path string) (*statInfo, error) {
	return statPathImpl(path)
}
