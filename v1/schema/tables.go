package schema

// Table names of the photo booking store.
const (
	TableUsers         = "users"
	TableBookingTypes  = "booking_types"
	TableAllowedCities = "allowed_cities"
	TableBlackoutDates = "blackout_dates"
	TableBookings      = "bookings"
	TableAlbums        = "albums"
	TablePhotos        = "photos"
	TableTags          = "tags"
	TablePhotoLikes    = "photo_likes"
	TablePhotoViews    = "photo_views"
	TableWallPins      = "wall_pins"
	TableFeedback      = "feedback"
	TableAuditLog      = "audit_log"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// ActiveBookingStatuses hold a date and may still be cancelled by the owner.
var ActiveBookingStatuses = []string{StatusPending, StatusConfirmed}

// DefaultTables returns the table metadata of the photo booking store.
func DefaultTables() []Table {
	return []Table{
		{
			Name:       TableUsers,
			Columns:    []string{"id", "email", "phone", "display_name", "avatar_url", "role", "created_at", "updated_at"},
			PrimaryKey: "id",
			KeyKind:    KeyGeneratedUUID,
		},
		{
			Name:       TableBookingTypes,
			Columns:    []string{"id", "name", "description", "price", "duration_minutes", "is_active", "sort_order", "created_at", "updated_at"},
			PrimaryKey: "id",
			KeyKind:    KeyAutoIncrement,
		},
		{
			Name:       TableAllowedCities,
			Columns:    []string{"id", "city_name", "is_active", "created_at"},
			PrimaryKey: "id",
			KeyKind:    KeyAutoIncrement,
		},
		{
			Name:       TableBlackoutDates,
			Columns:    []string{"date", "reason", "created_at"},
			PrimaryKey: "date",
			KeyKind:    KeyNaturalString,
		},
		{
			Name: TableBookings,
			Columns: []string{"id", "user_id", "type_id", "booking_date", "contact_name", "phone", "email",
				"city", "location", "notes", "status", "created_at", "updated_at"},
			PrimaryKey: "id",
			KeyKind:    KeyGeneratedUUID,
		},
		{
			Name: TableAlbums,
			Columns: []string{"id", "user_id", "title", "description", "cover_url", "access_key", "is_public",
				"view_count", "expires_at", "created_at", "updated_at"},
			PrimaryKey: "id",
			KeyKind:    KeyGeneratedUUID,
		},
		{
			Name: TablePhotos,
			Columns: []string{"id", "album_id", "url", "thumbnail_url", "title", "tags", "is_public",
				"like_count", "view_count", "pin_count", "created_at", "updated_at"},
			PrimaryKey:  "id",
			KeyKind:     KeyGeneratedUUID,
			JSONColumns: []string{"tags"},
		},
		{
			Name:       TableTags,
			Columns:    []string{"id", "name", "usage_count", "created_at", "updated_at"},
			PrimaryKey: "id",
			KeyKind:    KeyAutoIncrement,
		},
		{
			Name:       TablePhotoLikes,
			Columns:    []string{"id", "photo_id", "user_id", "created_at"},
			PrimaryKey: "id",
			KeyKind:    KeyAutoIncrement,
		},
		{
			Name:       TablePhotoViews,
			Columns:    []string{"id", "photo_id", "user_id", "session_id", "created_at"},
			PrimaryKey: "id",
			KeyKind:    KeyAutoIncrement,
		},
		{
			Name:       TableWallPins,
			Columns:    []string{"id", "photo_id", "user_id", "created_at"},
			PrimaryKey: "id",
			KeyKind:    KeyAutoIncrement,
		},
		{
			Name:       TableFeedback,
			Columns:    []string{"id", "user_id", "booking_id", "rating", "content", "created_at"},
			PrimaryKey: "id",
			KeyKind:    KeyAutoIncrement,
		},
		{
			Name:        TableAuditLog,
			Columns:     []string{"event", "actor_id", "subject", "detail", "created_at"},
			KeyKind:     KeyNone,
			JSONColumns: []string{"detail"},
		},
	}
}

// TagUsage is the per-tag usage counter derived from photos.tags.
var TagUsage = DerivedCounter{
	CounterTable:  TableTags,
	KeyColumn:     "name",
	CounterColumn: "usage_count",
	SourceTable:   TablePhotos,
	SourceKey:     "id",
	SourceColumn:  "tags",
}

// NewDefaultRegistry builds the registry of the photo booking store.
func NewDefaultRegistry() (*Registry, error) {
	return NewRegistry(DefaultTables(), []DerivedCounter{TagUsage})
}

// MustDefaultRegistry is NewDefaultRegistry for package-level wiring and tests.
func MustDefaultRegistry() *Registry {
	r, err := NewDefaultRegistry()
	if err != nil {
		panic(err)
	}
	return r
}
