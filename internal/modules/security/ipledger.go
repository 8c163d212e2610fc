package security

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"github.com/samber/oops"
)

const (
	actionWindow    = time.Hour
	actionThreshold = 100
	warningLimit    = 3
	blockDuration   = 24 * time.Hour
)

// BlockEntry is a time-boxed refusal for an abusive actor.
type BlockEntry struct {
	Reason  string  `json:"reason"`
	Expires float64 `json:"expires"`
}

type actionEntry struct {
	time   time.Time
	action string
}

type actorRecord struct {
	actions  []actionEntry
	warnings int
}

// IPLedger tracks suspicious actors and escalates repeated bursts into
// time-boxed blocks. The block table is persisted to the secure directory;
// the rolling action logs are in-memory only.
type IPLedger struct {
	blockedPath string
	suspicious  map[string]*actorRecord
	blocked     map[string]BlockEntry
	now         func() time.Time
}

func NewIPLedger(secureDir string) *IPLedger {
	l := &IPLedger{
		blockedPath: filepath.Join(secureDir, "blocked_ips.json"),
		suspicious:  make(map[string]*actorRecord),
		blocked:     make(map[string]BlockEntry),
		now:         time.Now,
	}
	l.loadBlocked()
	return l
}

// Check records the actor's action and reports whether it is allowed.
// A refused actor gets the remaining block duration as the wait. Once the
// rolling one-hour log exceeds the threshold, every further check adds a
// warning, so repeated bursts escalate quickly; three warnings convert
// the actor into a 24-hour block.
func (l *IPLedger) Check(actor, action string) (bool, time.Duration) {
	now := l.now()

	if entry, found := l.blocked[actor]; found {
		expires := time.Unix(0, int64(entry.Expires*float64(time.Second)))
		if expires.After(now) {
			return false, expires.Sub(now)
		}
		delete(l.blocked, actor)
		l.saveBlocked()
	}

	record, found := l.suspicious[actor]
	if !found {
		record = &actorRecord{}
		l.suspicious[actor] = record
	}

	record.actions = append(record.actions, actionEntry{time: now, action: action})
	record.actions = lo.Filter(record.actions, func(entry actionEntry, _ int) bool {
		return now.Sub(entry.time) < actionWindow
	})

	if len(record.actions) > actionThreshold {
		record.warnings++
	}

	if record.warnings >= warningLimit {
		l.blocked[actor] = BlockEntry{
			Reason:  "suspicious activity",
			Expires: float64(now.Add(blockDuration).UnixNano()) / float64(time.Second),
		}
		l.saveBlocked()
		return false, blockDuration
	}

	return true, 0
}

func (l *IPLedger) loadBlocked() {
	data, err := os.ReadFile(l.blockedPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to load blocked actors", "path", l.blockedPath, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &l.blocked); err != nil {
		slog.Error("Failed to parse blocked actors", "path", l.blockedPath, "error", err)
	}
}

func (l *IPLedger) saveBlocked() {
	data, err := json.Marshal(l.blocked)
	if err != nil {
		slog.Error("Failed to marshal blocked actors", "error", oops.Wrap(err))
		return
	}
	if err := os.WriteFile(l.blockedPath, data, 0600); err != nil {
		slog.Error("Failed to save blocked actors", "path", l.blockedPath, "error", err)
	}
}
