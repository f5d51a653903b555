package domain

import "time"

type LevelState string

const (
	StateUnknown             LevelState = "unknown"
	StateAssetsPresentInGame LevelState = "assets_present"
	StateNeedsDownload       LevelState = "needs_download"
	StateDownloaded          LevelState = "downloaded"
	StateExtracted           LevelState = "extracted"
	// StateLinked: the game path is a link into another level's install dir
	StateLinked              LevelState = "linked"
	StateInstalled           LevelState = "installed"
	StateBroken              LevelState = "broken"
)

// Playable reports whether the runner may be started for this state
func (s LevelState) Playable() bool {
	return s == StateInstalled || s == StateAssetsPresentInGame
}

// Settled reports whether no further install action applies
func (s LevelState) Settled() bool {
	return s.Playable() || s == StateBroken
}

// Record is the last computed view of one level. The filesystem stays the
// source of truth; a Record is recomputed on every status query.
type Record struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	State       LevelState `json:"state"`
	LastError   string     `json:"lastError,omitempty"`
	Downloading bool       `json:"downloading"`
	RequestID   string     `json:"requestId,omitempty"`
	CheckedAt   time.Time  `json:"checkedAt"`
}
