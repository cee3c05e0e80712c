package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/bistro-tech/bistro/core/access"
	"github.com/bistro-tech/bistro/core/backend"
	"github.com/bistro-tech/bistro/core/csql"
	"github.com/bistro-tech/bistro/core/logger"
	"github.com/bistro-tech/bistro/core/store"
)

// Service holds the configuration for this service
//
// use DB_USER=postgres DB_PASS=docker for a local docker postgres
type Service struct {
	Port              string `env:"PORT,default=8000" description:"the port the server listens on"`
	DBUser            string `env:"DB_USER,required" description:"the user for the postgres DB"`
	DBPass            string `env:"DB_PASS,required" description:"the password for the postgres DB"`
	DBHost            string `env:"DB_HOST,default=localhost" description:"the host of the postgres DB"`
	DBName            string `env:"DB_NAME,default=bistro" description:"the name of the postgres DB"`
	AccessTokenSecret string `env:"ACCESS_TOKEN_SECRET,required" description:"the signing secret for session tokens"`
}

func main() {
	logger.InitLogger(logrus.InfoLevel)
	rlog := logger.Default()

	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	dataSource := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
		service.DBHost, service.DBUser, service.DBPass, service.DBName)
	db := csql.OpenWithSchema(dataSource, "bistro")
	defer db.Close()

	router := mux.NewRouter()
	logger.AddRequestID(router)
	backend.New(&backend.Builder{
		Store:  store.MustNew(db),
		Tokens: access.NewTokenService(service.AccessTokenSecret, access.DefaultTokenLifetime),
		Router: router,
	})

	srv := &http.Server{Addr: ":" + service.Port, Handler: router}
	go func() {
		rlog.Infoln("listen on port :" + service.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rlog.WithError(err).Fatalln("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	rlog.Infoln("server stopped")
}
