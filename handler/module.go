package handler

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("handler",
		fx.Provide(NewChatHandler),
		fx.Provide(NewAPIKeyHandler),
		fx.Provide(NewHealthHandler),
		fx.Provide(NewChatRoute),
		fx.Provide(NewAPIKeyRoute),
		fx.Provide(NewHealthRoute),
		fx.Provide(NewAuth),
	)
}
