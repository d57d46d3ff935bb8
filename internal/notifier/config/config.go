package config

type Config struct {
	MailAPIURL   string
	MailAPIKey   string
	MailFrom     string
	MailFromName string
}
