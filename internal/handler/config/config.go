package config

type Config struct {
	ServerAddr  string
	CORSOrigins []string
}
