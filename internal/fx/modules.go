package fx

import (
	"badminton-scoreboard/internal/broadcast"
	"badminton-scoreboard/internal/config"
	"badminton-scoreboard/internal/database"
	"badminton-scoreboard/internal/logger"
	"badminton-scoreboard/internal/repository"
	"badminton-scoreboard/internal/server"
	"badminton-scoreboard/internal/service"

	"go.uber.org/fx"
)

// ProvideLiveNotifier lets the match service push live scores to viewers.
func ProvideLiveNotifier(hub *broadcast.Hub) service.LiveNotifier {
	return hub
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewMatchRepository),
	// viewers
	fx.Provide(broadcast.NewHub),
	fx.Provide(ProvideLiveNotifier),
	// svc
	fx.Provide(service.NewMatchService),
	// server
	fx.Provide(server.NewScoreboardServer),
)
