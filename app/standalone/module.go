package standalone

import (
	"go.uber.org/fx"

	"github.com/AnushSomasundaram/Calendarllm/handler"
	"github.com/AnushSomasundaram/Calendarllm/internal/server"
	"github.com/AnushSomasundaram/Calendarllm/util/logging"
)

// Module serves the local API.
func Module(config Config) fx.Option {
	return fx.Module(
		"serve",
		// rename logger for module
		logging.DecorateLogger("serve"),
		// provide handlers
		handler.Module(),
		// provide server
		server.Module(config.HttpConfig),
	)
}
