package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/oklog/oklog/pkg/group"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"

	"github.com/gorilla/mux"
	"github.com/taskdeck/taskdeck/authsvc/inmem"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authendpoint"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authservice"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authtransport"
	"github.com/taskdeck/taskdeck/tasksvc"
	taskdb "github.com/taskdeck/taskdeck/tasksvc/db/gorm"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/taskendpoint"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/taskservice"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/tasktransport"
	"github.com/taskdeck/taskdeck/usersvc"
	userdb "github.com/taskdeck/taskdeck/usersvc/db/gorm"
)

func main() {
	fs := flag.NewFlagSet("taskdeckd", flag.ExitOnError)
	var (
		httpAddr = fs.String(
			"http.addr",
			getEnv("HTTP_ADDR", ":5000"),
			"HTTP (JSON) listen address",
		)
		databaseURL = fs.String(
			"database.url",
			getEnv("DATABASE_URL", ""),
			"Postgres URL; empty means embedded sqlite",
		)
		databaseFile = fs.String(
			"database.file",
			getEnv("DATABASE_FILE", "taskdeck.db"),
			"sqlite file used when no database URL is set",
		)
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")
	fs.Parse(os.Args[1:])

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	var db *libgorm.DB
	var err error
	{
		if *databaseURL != "" {
			db, err = libgorm.Open(postgres.Open(*databaseURL), &libgorm.Config{})
		} else {
			db, err = libgorm.Open(sqlite.Open(*databaseFile), &libgorm.Config{})
		}
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
	}

	db.AutoMigrate(&usersvc.User{}, &tasksvc.Task{})

	var (
		userRepository = userdb.NewUserRepository(db)
		taskRepository = taskdb.NewTaskRepository(db)
		tokenStore     = inmem.NewClient()
	)

	var authService authservice.Service
	{
		authService = authservice.New(
			userRepository,
			authservice.NewTokenizer(),
			tokenStore,
			log.With(logger, "component", "authservice"),
		)
	}

	var taskService taskservice.Service
	{
		requestCount := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "taskdeck",
			Subsystem: "taskservice",
			Name:      "request_count",
			Help:      "Number of requests received.",
		}, []string{"method"})
		requestLatency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "taskdeck",
			Subsystem: "taskservice",
			Name:      "request_latency_seconds",
			Help:      "Total duration of requests in seconds.",
		}, []string{"method"})

		taskService = taskservice.New(taskRepository, log.With(logger, "component", "taskservice"))
		taskService = taskservice.ResolveMiddleware(userRepository, tokenStore)(taskService)
		taskService = taskservice.InstrumentingMiddleware(requestCount, requestLatency)(taskService)
	}

	var (
		authEndpoints = authendpoint.New(authService, logger)
		taskEndpoints = taskendpoint.New(taskService, logger)
	)

	r := mux.NewRouter()
	{
		authHTTPHandler := authtransport.NewHTTPHandler(authEndpoints, tokenStore, logger)
		r.PathPrefix("/api/auth").Handler(http.StripPrefix("/api/auth", authHTTPHandler))
	}
	{
		taskHTTPHandler := tasktransport.NewHTTPHandler(taskEndpoints, logger)
		r.PathPrefix("/api").Handler(http.StripPrefix("/api", taskHTTPHandler))
	}
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	var g group.Group
	{
		httpListener, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			logger.Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", *httpAddr)
			return http.Serve(httpListener, r)
		}, func(error) {
			httpListener.Close()
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	logger.Log("exit", g.Run())
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

