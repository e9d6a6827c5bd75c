package catalog

import "time"

// Event kinds recognized by the core (spec.md GLOSSARY).
const (
	EventCreated  = "created"
	EventModified = "modified"
	EventDeleted  = "deleted"
	EventExisting = "existing"
)

// Event is an immutable append-only record of one filesystem observation.
type Event struct {
	ID        int64     `db:"id"`
	Timestamp time.Time `db:"timestamp"`
	Kind      string    `db:"event_type"`
	Path      string    `db:"path"`
	Directory string    `db:"directory"`
	VolumeID  string    `db:"volume_id"`
	ProcessID string    `db:"process_id"`
}

// Volume is one row per distinct volume identifier ever observed.
type Volume struct {
	VolumeID      string  `db:"volume_id"`
	Directory     string  `db:"directory"`
	EventCount    int64   `db:"event_count"`
	CreatedCount  int64   `db:"created_count"`
	ModifiedCount int64   `db:"modified_count"`
	DeletedCount  int64   `db:"deleted_count"`
	LastEventTime *string `db:"last_event_timestamp"`

	UsageTotalBytes    *int64  `db:"usage_total_bytes"`
	UsageUsedBytes     *int64  `db:"usage_used_bytes"`
	UsageFreeBytes     *int64  `db:"usage_free_bytes"`
	UsageRefreshedAt   *string `db:"usage_refreshed_at"`
	EventsSinceRefresh int64   `db:"events_since_refresh"`

	MountDevice   *string `db:"mount_device"`
	MountPoint    *string `db:"mount_point"`
	MountUUID     *string `db:"mount_uuid"`
	MountLabel    *string `db:"mount_label"`
	MountVolumeID *string `db:"mount_volume_id"`

	LsblkName         *string `db:"lsblk_name"`
	LsblkPath         *string `db:"lsblk_path"`
	LsblkModel        *string `db:"lsblk_model"`
	LsblkSerial       *string `db:"lsblk_serial"`
	LsblkVendor       *string `db:"lsblk_vendor"`
	LsblkSize         *string `db:"lsblk_size"`
	LsblkFSVer        *string `db:"lsblk_fsver"`
	LsblkPTType       *string `db:"lsblk_pttype"`
	LsblkPTUUID       *string `db:"lsblk_ptuuid"`
	LsblkPartType     *string `db:"lsblk_parttype"`
	LsblkPartUUID     *string `db:"lsblk_partuuid"`
	LsblkPartTypeName *string `db:"lsblk_parttypename"`
	LsblkWWN          *string `db:"lsblk_wwn"`
	LsblkMajMin       *string `db:"lsblk_maj_min"`
	LsblkJSON         *string `db:"lsblk_json"`

	IdentityRefreshedAt *string `db:"identity_refreshed_at"`
	LabelIndex          *int64  `db:"label_index"`
}

// File is the current cataloged state of a path on a volume.
type File struct {
	VolumeID      string  `db:"volume_id"`
	Path          string  `db:"path"`
	Directory     string  `db:"directory"`
	SizeBytes     *int64  `db:"size_bytes"`
	ModifiedTime  *string `db:"modified_time"`
	CreatedTime   *string `db:"created_time"`
	LastEventTime *string `db:"last_event_timestamp"`
	LastEventType *string `db:"last_event_type"`
	IsDeleted     bool    `db:"is_deleted"`
}

// Job statuses recognized by the core (spec.md §3/§4.3).
const (
	JobQueued      = "queued"
	JobRunning     = "running"
	JobComplete    = "complete"
	JobFailed      = "failed"
	JobInterrupted = "interrupted"
	JobCancelled   = "cancelled"
	JobStopped     = "stopped"
	JobRemoved     = "removed"
	JobStale       = "stale"
	JobStopping    = "stopping" // intermediate; non-terminal per §9 open question 3
)

// terminalJobStatuses is the "final" set used when aggregating (§4.3).
// stopping is deliberately excluded, per DESIGN.md's open-question decision.
var terminalJobStatuses = map[string]bool{
	JobComplete:    true,
	JobFailed:      true,
	JobInterrupted: true,
	JobCancelled:   true,
	JobRemoved:     true,
	JobStopped:     true,
	JobStale:       true,
}

// IsTerminalJobStatus reports whether status is one of the terminal kinds.
func IsTerminalJobStatus(status string) bool {
	return terminalJobStatuses[status]
}

// Job kinds.
const (
	JobKindInitialScan = "initial_scan"
	JobKindWatcher     = "watcher"
)

// Job is a tracked long-running activity.
type Job struct {
	JobID        string  `db:"job_id"`
	JobType      string  `db:"job_type"`
	Path         *string `db:"path"`
	VolumeID     *string `db:"volume_id"`
	Status       string  `db:"status"`
	ProgressJSON *string `db:"progress_json"`
	OwnerPID     *string `db:"owner_pid"`
	OwnerHost    *string `db:"owner_host"`
	ErrorMessage *string `db:"error_message"`
	StartedAt    string  `db:"started_at"`
	UpdatedAt    string  `db:"updated_at"`
	CompletedAt  *string `db:"completed_at"`
}

// deny-set of basenames/suffixes ignored by File derivation and (per
// DESIGN.md open-question decision 1) by existing-event suppression during
// the initial scan. Grounded on spec.md §4.1's "File derivation rule".
var denyBasenames = map[string]bool{
	".DS_Store": true,
	"Thumbs.db": true,
}

var denySuffixes = []string{".lock", ".tmp", ".swp", ".swx", "~"}

// IsDenied reports whether basename should be ignored entirely.
func IsDenied(basename string) bool {
	if denyBasenames[basename] {
		return true
	}
	for _, suf := range denySuffixes {
		if len(basename) >= len(suf) && basename[len(basename)-len(suf):] == suf {
			return true
		}
	}
	return false
}

const timeLayout = time.RFC3339Nano

// FormatTime renders t in the ISO-8601-with-timezone form the schema
// stores timestamps in.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a stored timestamp string.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
