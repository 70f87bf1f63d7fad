package rpc

const (
	DefaultBookingHorizonDays = 90
	DefaultMaxBatchSize       = 20
	DefaultFeedPageSize       = 20
	DefaultFeedMaxPageSize    = 50
)

// Config tunes the business rules of the procedure catalog.
type Config struct {
	// BookingHorizonDays is how far ahead a booking date may be.
	BookingHorizonDays int `yaml:"booking_horizon_days" mapstructure:"booking_horizon_days" envconfig:"RPC_BOOKING_HORIZON_DAYS"`

	// MaxBatchSize caps the rows of one create_bookings call.
	MaxBatchSize int `yaml:"max_batch_size" mapstructure:"max_batch_size" envconfig:"RPC_MAX_BATCH_SIZE"`

	// FeedPageSize is the page size of get_public_feed when none is given.
	FeedPageSize int `yaml:"feed_page_size" mapstructure:"feed_page_size" envconfig:"RPC_FEED_PAGE_SIZE"`

	// FeedMaxPageSize caps the page size of get_public_feed.
	FeedMaxPageSize int `yaml:"feed_max_page_size" mapstructure:"feed_max_page_size" envconfig:"RPC_FEED_MAX_PAGE_SIZE"`
}

func (c Config) withDefaults() Config {
	if c.BookingHorizonDays <= 0 {
		c.BookingHorizonDays = DefaultBookingHorizonDays
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.FeedMaxPageSize <= 0 {
		c.FeedMaxPageSize = DefaultFeedMaxPageSize
	}
	if c.FeedPageSize <= 0 {
		c.FeedPageSize = DefaultFeedPageSize
	}
	if c.FeedPageSize > c.FeedMaxPageSize {
		c.FeedPageSize = c.FeedMaxPageSize
	}
	return c
}
