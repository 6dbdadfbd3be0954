package collector

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("collector",
	fx.Provide(New),
	fx.Invoke(Start),
)

// Start launches the poll loop once the fx app is up and cancels it on
// shutdown.
func Start(lc fx.Lifecycle, c *Collector) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go c.RunForever(runCtx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
