package types

// Source represents one subscribed feed account, owned by the upstream
// database and read-only to this service.
type Source struct {
	ID     string `json:"id"`
	Name   string `json:"mp_name"`
	Intro  string `json:"mp_intro"`
	Active bool   `json:"-"`
}

// Record is a single timestamped article belonging to a Source.
// PublishTime is a Unix timestamp in seconds.
type Record struct {
	ID          string `json:"id"`
	SourceID    string `json:"mp_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
	PublishTime int64  `json:"publish_time"`
}

// MergedRow is the flattened join of one Record with its owning Source's
// display fields. Rows exist only for the duration of one aggregation pass;
// they are never stored outside the snapshot file.
type MergedRow struct {
	ID          string `json:"id"`
	SourceID    string `json:"mp_id"`
	SourceName  string `json:"mp_name"`
	SourceIntro string `json:"mp_intro"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
	PublishTime int64  `json:"publish_time"`
}
