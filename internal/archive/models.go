package archive

import "time"

// Entity is the canonical, deduplicated record for one real person within a
// partner scope.
type Entity struct {
	ID                   int64
	PartnerID            int64
	SchoolID             int64
	CanonicalName        string
	TitlePrefix          string
	Position             string
	PrimaryExternalID    string
	NameKey              string
	Notes                string
	IsActive             bool
	MergedInto           int64
	ActivePhotoVersionID int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PersonRecord is one raw source record for a partner, optionally linked to
// the entity it resolved to. Records arriving from sync paths that perform no
// resolution stay unlinked until a reconciliation run claims them.
type PersonRecord struct {
	ID         int64
	PartnerID  int64
	ExternalID string
	Name       string
	SchoolID   int64
	Position   string
	PhotoURL   string
	EntityID   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Linked reports whether the record has been resolved to an entity.
func (r *PersonRecord) Linked() bool { return r != nil && r.EntityID != 0 }

// Alias is a recorded alternate spelling of an entity's name. Aliases only
// widen future key matching; they never become the canonical name.
type Alias struct {
	ID        int64
	EntityID  int64
	AliasName string
	AliasKey  string
	CreatedAt time.Time
}

// PhotoVersion is one dated photo attached to an entity. At most one version
// per entity is active at any time; superseded versions are retained.
type PhotoVersion struct {
	ID        int64
	EntityID  int64
	MediaRef  string
	Year      int
	IsActive  bool
	CreatedAt time.Time
}

// ChangeType enumerates the structural mutations recorded in the change log.
type ChangeType string

const (
	ChangeCreated            ChangeType = "created"
	ChangeNameChanged        ChangeType = "name_changed"
	ChangeSchoolChanged      ChangeType = "school_changed"
	ChangeTitleChanged       ChangeType = "title_changed"
	ChangePhotoUploaded      ChangeType = "photo_uploaded"
	ChangeActivePhotoChanged ChangeType = "active_photo_changed"
	ChangeMerged             ChangeType = "merged"
)

// ChangeEntry is one append-only audit record. Entries are immutable and are
// the sole mechanism for reconstructing entity history.
type ChangeEntry struct {
	ID        int64
	EntityID  int64
	Type      ChangeType
	OldValue  string
	NewValue  string
	Metadata  string
	CreatedAt time.Time
}

// SuggestionStatus tracks the lifecycle of a persisted match suggestion.
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionConfirmed SuggestionStatus = "confirmed"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

// Suggestion is a lower-confidence candidate group persisted for human
// confirmation instead of being applied automatically.
type Suggestion struct {
	ID         string
	PartnerID  int64
	MemberIDs  []int64
	Confidence string
	Reason     string
	Status     SuggestionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
