package models

// Dialect values chosen during onboarding
const (
	DialectFusha   = "fusha"
	DialectDarija  = "darija"
	DialectAmazigh = "amazigh"
)

// Learner represents the child using the app
type Learner struct {
	ID      string `json:"id" db:"id"` // Stable learner key, e.g. a Telegram chat ID
	Name    string `json:"name" db:"name"`
	Age     int    `json:"age" db:"age"`
	Dialect string `json:"dialect" db:"dialect"`
}
