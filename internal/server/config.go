package server

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 7345
)

type HttpConfig struct {
	Host string `conf:"host"`
	Port int    `conf:"port"`
	H2c  bool   `conf:"h2c"`
}
