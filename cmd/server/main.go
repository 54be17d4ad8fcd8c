package main

import (
	"github.com/rs/zerolog/log"

	"github.com/streampanel/creditgate/cmd/httpserver"
	"github.com/streampanel/creditgate/internal/middleware"
	"github.com/streampanel/creditgate/pkg/configpkg"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.GetLogger(config)

	server, err := httpserver.New(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	if err := server.Engine.Run(config.ServerAddress); err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}
