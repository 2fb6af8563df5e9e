package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/esc4n0rx/streamhive/auth"
	"github.com/esc4n0rx/streamhive/chat"
	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/filter"
	"github.com/esc4n0rx/streamhive/globals"
	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/playback"
	"github.com/esc4n0rx/streamhive/ws"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "ws service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert for websocket (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key for websocket (optional)")
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Fatal("interrupted!")
	}()

	log.SetFlags(0)

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	moderator, err := filter.NewModerator(globalConfig.ModerationConfig)
	if err != nil {
		panic(err)
	}
	gatekeeper, err := auth.NewGatekeeper(globalConfig, persister)
	if err != nil {
		panic(err)
	}
	chatService := chat.NewService(globalConfig, persister, moderator)
	playbackService := playback.NewService(persister)
	server := ws.NewServer(globalConfig, persister, gatekeeper, chatService, playbackService)

	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = cronRunner.AddFunc("@every 1m", func() {
		globals.AppLogger.Info("stats", "rooms", server.Registry().Size(), "connections", server.Registry().Connections())
	})
	if err != nil {
		panic(err)
	}
	_, err = cronRunner.AddFunc("@hourly", func() {
		n, err := persister.DeactivateExpiredInvites(time.Now())
		if err != nil {
			globals.AppLogger.Error("could not sweep invites", "error", err)
			return
		}
		if n > 0 {
			globals.AppLogger.Info("deactivated expired invites", "count", n)
		}
	})
	if err != nil {
		panic(err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/ws", server.HandleWebsocket)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	globals.AppLogger.Info("starting server", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		log.Fatal(http.ListenAndServeTLS(*addr, *sslCert, *sslKey, router))
	} else {
		log.Fatal(http.ListenAndServe(*addr, router))
	}
}
