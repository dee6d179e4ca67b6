package models

import "time"

// ProviderKind enumerates the live-TV backends the resolver supports.
type ProviderKind string

const (
	ProviderStalker ProviderKind = "stalker"
	ProviderXStream ProviderKind = "xstream"
	ProviderM3U     ProviderKind = "m3u"
	ProviderIPTVOrg ProviderKind = "iptvorg"
)

// StreamKind tags what ResolvedStreamUrl.URL actually serves.
type StreamKind string

const (
	StreamHLS     StreamKind = "hls"
	StreamDirect  StreamKind = "direct"
	StreamUnknown StreamKind = "unknown"
)

// LineupBackup is an ordered failover source for a LineupItem. Priority must
// be greater than zero; lower sorts first.
type LineupBackup struct {
	Priority     int
	AccountID    string
	ProviderType ProviderKind
	ChannelRef   string
}

// LineupItem is read-only to the core; its lifetime is owned by an external
// persistence collaborator.
type LineupItem struct {
	ID           string
	AccountID    string
	ProviderType ProviderKind
	ChannelRef   string
	Backups      []LineupBackup
}

// ResolvedStreamUrl is cached by (AccountID, ChannelRef).
type ResolvedStreamUrl struct {
	URL             string
	Kind            StreamKind
	ExpiresAt       time.Time
	ProviderHeaders map[string]string
}

// EpgProgram is the optional fetchEpg collaborator's per-program output.
type EpgProgram struct {
	ChannelRef  string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}

// LiveAccount is the minimal account shape the resolver needs to
// authenticate against a portal; full account records are owned by an
// external persistence collaborator.
type LiveAccount struct {
	ID           string
	ProviderType ProviderKind
	PortalURL    string
	MAC          string
	Username     string
	Password     string
}
