package config

type Config struct {
	Enabled     bool
	AlertDays   int
	AlertHour   int
	AlertMinute int
}
