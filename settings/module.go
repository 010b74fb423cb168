package settings

import "go.uber.org/fx"

func Module(config Config) fx.Option {
	return fx.Module(
		"settings",
		fx.Supply(config),
		fx.Provide(NewLifecycleStore),
	)
}
