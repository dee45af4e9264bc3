package model

// Item is one feed record: a schedule entry merged with its series metadata.
type Item struct {
	// Deprecated: use ID.
	UUID string `json:"uuid"`
	ID   string `json:"id"`

	Title      string `json:"title"`
	LastUpdate string `json:"last_update"`
	URL        string `json:"url"`
	Image      string `json:"image"`
	Teaser     string `json:"teaser"`
	Body       string `json:"body"`

	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	ScheduleType string   `json:"schedule_type"`
	Schedule     Schedule `json:"schedule"`

	Contact          *Contact      `json:"contact"`
	TicketURL        string        `json:"ticket_url"`
	TicketCategories []TicketPrice `json:"ticket_categories"`

	District     string   `json:"district"`
	TargetGroups []string `json:"target_groups"`
	Categories   []string `json:"categories"`
	Tags         []string `json:"tags"`
}

// Schedule carries the RFC 5545 recurrence strings of an item.
type Schedule struct {
	RRule  string `json:"rrule"`
	RDate  string `json:"rdate"`
	ExDate string `json:"exdate"`
}

// Contact is the contact block of an item.
type Contact struct {
	Name         string `json:"name"`
	Location     string `json:"location"`
	Phone        string `json:"phone"`
	StreetAndNum string `json:"street_and_num"`
	Zip          string `json:"zip"`
	City         string `json:"city"`
}

// TicketPrice is one ticket category of an item. Amount is in minor units.
type TicketPrice struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Title    string  `json:"title"`
}
