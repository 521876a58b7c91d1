// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/handlers"
	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/release-engineering/waiverdb"
	"github.com/release-engineering/waiverdb/config"
	"github.com/release-engineering/waiverdb/internal/auth"
	"github.com/release-engineering/waiverdb/internal/events"
	"github.com/release-engineering/waiverdb/internal/ldapgroups"
	"github.com/release-engineering/waiverdb/internal/resultsdb"
	_ "github.com/release-engineering/waiverdb/store/memstore"
	_ "github.com/release-engineering/waiverdb/store/sqlstore"
)

var logger = loggo.GetLogger("waiverdb")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <config path>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		exit(2)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}
	confPath := flag.Arg(0)
	conf, err := config.Read(confPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "STOP cannot read configuration: %v\n", err)
		exit(2)
	}
	if err := loggo.ConfigureLoggers(conf.LoggingConfig); err != nil {
		fmt.Fprintf(os.Stderr, "STOP cannot configure loggers: %v", err)
		exit(2)
	}
	if err := serve(conf); err != nil {
		fmt.Fprintf(os.Stderr, "STOP %v\n", err)
		exit(1)
	}
	fmt.Fprintln(os.Stderr, "STOP no error, weirdly")
	exit(0)
}

// exit calls os.Exit, first sleeping for a bit to work
// around a systemd bug which causes final output lines
// to be lost if we exit immediately.
// See https://github.com/systemd/systemd/issues/2913
//
// Note: exit status 2 implies we won't restart the service.
func exit(code int) {
	time.Sleep(200 * time.Millisecond)
	os.Exit(code)
}

// serve starts the waiver service.
func serve(conf *config.Config) error {
	ctx := context.Background()

	logger.Infof("connecting to storage")
	backend, err := conf.Storage.NewBackend()
	if err != nil {
		return errgo.Notef(err, "cannot create storage backend")
	}
	defer backend.Close()

	authenticator, err := newAuthenticator(ctx, conf)
	if err != nil {
		return errgo.Mask(err)
	}
	rules, err := conf.Rules()
	if err != nil {
		return errgo.Mask(err)
	}

	publisher, err := events.NewPublisher(conf.Messaging)
	if err != nil {
		return errgo.Notef(err, "cannot create message publisher")
	}
	dispatcher := events.NewDispatcher(events.DispatcherParams{
		Publisher:   publisher,
		TopicPrefix: conf.Messaging.TopicPrefix,
	})
	defer func() {
		// Closing the dispatcher also closes the publisher.
		if err := dispatcher.Close(); err != nil {
			logger.Errorf("cannot close message dispatcher: %s", err)
		}
	}()

	params := waiverdb.ServerParams{
		Store:             backend.Store(),
		Authenticator:     authenticator,
		Permissions:       rules,
		PermissionMapping: conf.PermissionMapping,
		Superusers:        conf.Superusers,
		Events:            dispatcher,
		CORSOrigins:       conf.CORSOrigins,
		DefaultPageSize:   conf.DefaultPageSize,
		MaxPageSize:       conf.MaxPageSize,
	}
	if p, ok := conf.DirectoryParams(); ok {
		params.Directory = ldapgroups.New(p)
	} else if conf.LDAPHost != "" {
		logger.Warningf("ldap-host %q ignored: no ldap searches configured", conf.LDAPHost)
	}
	if conf.ResultsDBAPIURL != "" {
		params.ResultsDB = resultsdb.New(conf.ResultsDBAPIURL, http.DefaultClient)
	}

	logger.Infof("setting up the waiverdb server")
	srv, err := waiverdb.NewServer(params, waiverdb.V1, waiverdb.Debug)
	if err != nil {
		return errgo.Notef(err, "cannot create new server at %q", conf.APIAddr)
	}
	defer srv.Close()

	// Cast the Server to an http.Handler so that it can be
	// optionally wrapped by the logging handler below.
	var server http.Handler = srv

	if conf.AccessLog != "" {
		accesslog := &lumberjack.Logger{
			Filename:   conf.AccessLog,
			MaxSize:    500, // megabytes
			MaxBackups: 3,
			MaxAge:     28, //days
		}
		server = handlers.CombinedLoggingHandler(accesslog, server)
	}
	logger.Infof("starting the waiverdb server")

	httpServer := &http.Server{
		Addr:    conf.APIAddr,
		Handler: server,
	}
	fmt.Println("START")
	if conf.TLSCert != "" {
		return httpServer.ListenAndServeTLS(conf.TLSCert, conf.TLSKey)
	}
	return httpServer.ListenAndServe()
}

func newAuthenticator(ctx context.Context, conf *config.Config) (*auth.Authenticator, error) {
	methods := make([]auth.Method, 0, len(conf.AuthMethods))
	for _, name := range conf.AuthMethods {
		switch name {
		case auth.MethodOIDC:
			m, err := auth.NewOIDC(ctx, auth.OIDCParams{
				Issuer:        conf.OIDCIssuer,
				ClientID:      conf.OIDCClientID,
				UsernameField: conf.OIDCUsernameField,
			})
			if err != nil {
				return nil, errgo.Mask(err)
			}
			methods = append(methods, m)
		case auth.MethodSSL:
			methods = append(methods, auth.SSL{
				TrustProxyHeaders: conf.SSLTrustProxyHeaders,
			})
		case auth.MethodDummy:
			logger.Warningf("dummy authentication enabled: any username is accepted")
			methods = append(methods, auth.Dummy{})
		default:
			return nil, errgo.Newf("unknown authentication method %q", name)
		}
	}
	return auth.New(methods...), nil
}
