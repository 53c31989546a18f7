/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	mongodbstore "github.com/hyperledger/aries-framework-go-ext/component/storage/mongodb"
	ariesmemstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	ariesstorage "github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/piprate/json-gold/ld"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/dataplane"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/orchestrator"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/peerclient"
	dspresthandler "github.com/trustbloc/dataspace-connector/pkg/dsp/resthandler"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/statemachine"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/validator"
	"github.com/trustbloc/dataspace-connector/pkg/grant/consumer"
	grantresthandler "github.com/trustbloc/dataspace-connector/pkg/grant/resthandler"
	grantstatemachine "github.com/trustbloc/dataspace-connector/pkg/grant/statemachine"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver/auth"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver/maintenance"
	"github.com/trustbloc/dataspace-connector/pkg/notifier"
	notifierresthandler "github.com/trustbloc/dataspace-connector/pkg/notifier/resthandler"
	"github.com/trustbloc/dataspace-connector/pkg/observability/loglevels"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics/noop"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics/prometheus"
	"github.com/trustbloc/dataspace-connector/pkg/observability/tracing"
	"github.com/trustbloc/dataspace-connector/pkg/observability/tracing/otelamqp"
	amqppubsub "github.com/trustbloc/dataspace-connector/pkg/pubsub/amqp"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub/mempubsub"
	"github.com/trustbloc/dataspace-connector/pkg/store/cache"
	"github.com/trustbloc/dataspace-connector/pkg/store/expiry"
	"github.com/trustbloc/dataspace-connector/pkg/store/grantrecord"
	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/notification"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
	"github.com/trustbloc/dataspace-connector/pkg/store/subscription"
	"github.com/trustbloc/dataspace-connector/pkg/taskmgr"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("consumer-server")

const (
	serviceName = "consumer-server"

	databaseTypeMem     = "mem"
	databaseTypeMongoDB = "mongodb"

	coordinationStoreName = "coordination"
)

// GetStartCmd returns the Cobra start command.
func GetStartCmd() *cobra.Command {
	startCmd := createStartCmd()

	createFlags(startCmd)

	return startCmd
}

func createStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start consumer-server",
		Long:  "Start the consumer-side dataspace connector",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := getParameters(cmd)
			if err != nil {
				return err
			}

			return startServer(params)
		},
	}
}

type pubSub interface {
	notifier.PubSub

	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Publish(topic string, messages ...*message.Message) error
	IsConnected() bool
	Close() error
}

//nolint:funlen,gocyclo
func startServer(params *serverParameters) error {
	tracerProvider, err := tracing.Initialize(params.tracingProvider, serviceName, params.tracingURL)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}

	tracerProvider.Start()
	defer tracerProvider.Stop()

	metricsProvider, m, err := createMetricsProvider(params)
	if err != nil {
		return err
	}

	if metricsProvider != nil {
		if err := metricsProvider.Create(); err != nil {
			return err
		}

		defer func() {
			if err := metricsProvider.Destroy(); err != nil {
				logger.Warn("Error stopping metrics provider", log.WithError(err))
			}
		}()
	}

	storageProvider, err := createStorageProvider(params)
	if err != nil {
		return err
	}

	procStore, err := procstore.New(storageProvider,
		procstore.WithTerminalStates(procstore.KindContractNegotiation, statemachine.CNTerminalStates...),
		procstore.WithTerminalStates(procstore.KindTransferProcess, statemachine.TPTerminalStates...),
		procstore.WithTerminalStates(procstore.KindGrant, grantstatemachine.TerminalStates...),
	)
	if err != nil {
		return fmt.Errorf("open process store: %w", err)
	}

	mateStore, err := mate.New(storageProvider)
	if err != nil {
		return fmt.Errorf("open mate store: %w", err)
	}

	grantRecords, err := grantrecord.New(storageProvider)
	if err != nil {
		return fmt.Errorf("open grant record store: %w", err)
	}

	subscriptions, err := subscription.New(storageProvider)
	if err != nil {
		return fmt.Errorf("open subscription store: %w", err)
	}

	backlog, err := notification.New(storageProvider)
	if err != nil {
		return fmt.Errorf("open notification store: %w", err)
	}

	coordinationStore, err := storageProvider.OpenStore(coordinationStoreName)
	if err != nil {
		return fmt.Errorf("open coordination store: %w", err)
	}

	taskMgr := taskmgr.New(coordinationStore, params.taskCheckInterval)

	expiryService := expiry.NewService(taskMgr, params.expiryInterval)
	subscriptions.RegisterExpiry(expiryService)
	backlog.RegisterExpiry(expiryService)

	bus := createPubSub(params)
	tracedBus := otelamqp.New(bus)

	httpClient := &http.Client{}

	peerOpts := []peerclient.Option{peerclient.WithTimeout(params.connector.PeerCallTimeout)}

	if len(params.connector.PeerHostRewrite) > 0 {
		peerOpts = append(peerOpts, peerclient.WithHostRewrite(params.connector.PeerHostRewrite))
	}

	if params.httpSignatures {
		peerOpts = append(peerOpts, peerclient.WithHTTPSignature(params.connector.ParticipantID))
	}

	peerClient := peerclient.New(httpClient, peerOpts...)

	notifierService := notifier.New(tracedBus, subscriptions, backlog, peerClient, m,
		notifier.WithSweepInterval(params.sweepInterval))

	var dataPlane dataplane.Controller = dataplane.NoopController{}

	if params.dataPlaneURL != "" {
		dataPlane = dataplane.NewHTTPController(httpClient, strings.TrimRight(params.dataPlaneURL, "/"))
	}

	processCache := cache.New(procStore, params.cacheSize, 0)

	orch := orchestrator.New(procstore.RoleConsumer, procStore, procStore, mateStore, peerClient,
		dataPlane, notifierService, params.connector.ExternalEndpoint,
		orchestrator.WithProcessCache(processCache), orchestrator.WithMetrics(m))

	// Failed (or crash-orphaned) outbound peer messages are redelivered by a
	// periodic sweep over the persisted message log.
	taskMgr.RegisterTask("outbound-redelivery", params.sweepInterval, 3*params.sweepInterval,
		orch.RedeliverOutbound)

	grantEngine := consumer.New(procStore, grantRecords, mateStore, peerClient, consumer.WithMetrics(m))

	documentLoader := ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(httpClient))

	v := validator.New(documentLoader)

	handlers := []httpserver.HTTPHandler{
		// Peer-facing DSP endpoints (this side's callback surface).
		dspresthandler.NewContractOfferInitial(v, orch),
		dspresthandler.NewContractOfferCounter(v, orch),
		dspresthandler.NewContractAgreement(v, orch),
		dspresthandler.NewContractEvent(v, orch),
		dspresthandler.NewContractTermination(v, orch, procstore.RoleProvider),
		dspresthandler.NewContractGet(orch),
		dspresthandler.NewTransferStart(v, orch, procstore.RoleProvider),
		dspresthandler.NewTransferSuspension(v, orch, procstore.RoleProvider),
		dspresthandler.NewTransferCompletion(v, orch, procstore.RoleProvider),
		dspresthandler.NewTransferTermination(v, orch, procstore.RoleProvider),
		dspresthandler.NewTransferGet(orch),
		// Local control plane.
		dspresthandler.NewConsumerRequestHandler(orch),
		dspresthandler.NewSendAcceptedEventHandler(orch),
		dspresthandler.NewSendVerificationHandler(orch),
		dspresthandler.NewSendNegotiationTerminationHandler(orch, procstore.RoleConsumer),
		dspresthandler.NewConsumerRequestTransferHandler(orch),
		dspresthandler.NewSendStartHandler(orch, procstore.RoleConsumer),
		dspresthandler.NewSendSuspensionHandler(orch, procstore.RoleConsumer),
		dspresthandler.NewSendCompletionHandler(orch, procstore.RoleConsumer),
		dspresthandler.NewSendTransferTerminationHandler(orch, procstore.RoleConsumer),
		// Grant client (onboarding).
		grantresthandler.NewOnboardRequestHandler(grantEngine),
		grantresthandler.NewOnboardCallbackHandler(grantEngine),
		// Event notifier subscriptions.
		notifierresthandler.NewCreateSubscription(subscriptions),
		notifierresthandler.NewDeactivateSubscription(subscriptions),
		// Runtime log level control.
		loglevels.NewWriteHandler(),
		loglevels.NewReadHandler(),
	}

	wrappers := make([]*maintenance.HandlerWrapper, len(handlers))
	wrapped := make([]httpserver.HTTPHandler, len(handlers))

	for i, handler := range handlers {
		wrappers[i] = maintenance.NewMaintenanceWrapper(handler)
		wrapped[i] = wrappers[i]
	}

	authorizer := createAuthorizer(params, mateStore)

	srv := httpserver.New(params.hostURL, wrapped,
		httpserver.WithTLS(params.tlsCertFile, params.tlsKeyFile),
		httpserver.WithAuthorizer(authorizer),
		httpserver.WithMiddleware(otelmux.Middleware(serviceName)),
	)

	notifierService.Start()
	taskMgr.Start()

	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("consumer server started", log.WithServiceEndpoint(params.hostURL),
		log.WithParticipant(params.connector.ParticipantID))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	logger.Info("shutting down consumer server")

	// Stop accepting new protocol work while in-flight transitions drain.
	for _, w := range wrappers {
		w.SetEnabled(true)
	}

	notifierService.Notify("system", "shutdown", "", nil, "shutdown")

	if err := srv.Stop(context.Background()); err != nil {
		logger.Warn("Error stopping HTTP server", log.WithError(err))
	}

	taskMgr.Stop()
	notifierService.Stop()

	if err := bus.Close(); err != nil {
		logger.Warn("Error closing event bus", log.WithError(err))
	}

	return nil
}

func createMetricsProvider(params *serverParameters) (metrics.Provider, metrics.Metrics, error) {
	switch params.metricsProvider {
	case "":
		return nil, noop.NewProvider().Metrics(), nil
	case "prometheus":
		metricsURL := params.metricsURL
		if metricsURL == "" {
			return nil, nil, fmt.Errorf("%s is required with the prometheus metrics provider", metricsURLFlagName)
		}

		metricsServer := httpserver.New(metricsURL,
			[]httpserver.HTTPHandler{prometheus.NewMetricsHandler()})

		provider := prometheus.NewPrometheusProvider(metricsServer)

		return provider, provider.Metrics(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported metrics provider [%s]", params.metricsProvider)
	}
}

func createStorageProvider(params *serverParameters) (ariesstorage.Provider, error) {
	switch {
	case strings.EqualFold(params.db.Type, databaseTypeMem):
		return ariesmemstorage.NewProvider(), nil
	case strings.EqualFold(params.db.Type, databaseTypeMongoDB):
		if err := pingMongoDB(params); err != nil {
			return nil, err
		}

		return mongodbstore.NewProvider(params.db.URL,
			mongodbstore.WithDBPrefix(params.db.Prefix),
			mongodbstore.WithTimeout(params.db.Timeout),
		)
	default:
		return nil, fmt.Errorf("%s must be either mem or mongodb", databaseTypeFlagName)
	}
}

// pingMongoDB validates connectivity at startup so that a misconfigured
// connection string fails fast rather than on the first request.
func pingMongoDB(params *serverParameters) error {
	ctx, cancel := context.WithTimeout(context.Background(), params.db.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(params.db.URL))
	if err != nil {
		return fmt.Errorf("connect to mongodb at %s: %w", params.db.URL, err)
	}

	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("Error disconnecting mongodb ping client", log.WithError(err))
		}
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongodb at %s: %w", params.db.URL, err)
	}

	return nil
}

func createPubSub(params *serverParameters) pubSub {
	if params.broker.URL == "" {
		return mempubsub.New(mempubsub.DefaultConfig())
	}

	return amqppubsub.New(amqppubsub.Config{
		URI:                      params.broker.URL,
		ServiceName:              serviceName,
		PublisherChannelPoolSize: params.broker.PublisherLimit,
	})
}

func createAuthorizer(params *serverParameters, mateStore *mate.Store) httpserver.Authorizer {
	verifiers := []interface{ Verify(req *http.Request) bool }{
		auth.NewBearerVerifier(mateStore),
	}

	if params.adminToken != "" {
		verifiers = append(verifiers, auth.NewAdminTokenVerifier(params.adminToken))
	}

	if params.httpSignatures {
		verifiers = append(verifiers, auth.NewSignatureVerifier(mateStore))
	}

	// The push-finish callback arrives from the AS before any mate token
	// exists on this side; its authentication is the interaction hash.
	return auth.PublicPaths(auth.Any(verifiers...), "/api/v1/onboard/callback/")
}
