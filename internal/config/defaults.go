package config

const (
	defaultDataDir         = "~/.local/share/khome"
	defaultLogDir          = "~/.local/share/khome/logs"
	defaultBrokerHost      = "localhost"
	defaultBrokerPort      = 1883
	defaultBrokerClientID  = "khome-manager"
	defaultBrokerKeepAlive = 60
	defaultConnectTimeout  = 10
	defaultSessionTimeout  = 3
	defaultStopPollRetries = 20
	defaultStopPollDelayMS = 100
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Broker: Broker{
			Host:           defaultBrokerHost,
			Port:           defaultBrokerPort,
			ClientID:       defaultBrokerClientID,
			KeepAlive:      defaultBrokerKeepAlive,
			ConnectTimeout: defaultConnectTimeout,
		},
		Manager: Manager{
			SessionTimeout:  defaultSessionTimeout,
			StopPollRetries: defaultStopPollRetries,
			StopPollDelayMS: defaultStopPollDelayMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
