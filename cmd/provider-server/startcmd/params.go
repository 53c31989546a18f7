/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustbloc/dataspace-connector/internal/pkg/cmdutil"
	"github.com/trustbloc/dataspace-connector/pkg/config"
)

const (
	hostURLFlagName  = "host-url"
	hostURLEnvKey    = "DSC_HOST_URL"
	hostURLFlagUsage = "Host:port the server listens on. Alternatively, this can be set with the following " +
		"environment variable: " + hostURLEnvKey

	externalEndpointFlagName  = "external-endpoint"
	externalEndpointEnvKey    = "DSC_EXTERNAL_ENDPOINT"
	externalEndpointFlagUsage = "Base URL peers use to reach this service, e.g. https://provider.example.com. " +
		commonEnvSuffix + externalEndpointEnvKey

	participantIDFlagName  = "participant-id"
	participantIDEnvKey    = "DSC_PARTICIPANT_ID"
	participantIDFlagUsage = "This service's own participant identity (URN form). " + commonEnvSuffix + participantIDEnvKey

	slugFlagName  = "slug"
	slugEnvKey    = "DSC_SLUG"
	slugFlagUsage = "Short human-readable name advertised to counterparties. " + commonEnvSuffix + slugEnvKey

	databaseTypeFlagName  = "database-type"
	databaseTypeEnvKey    = "DSC_DATABASE_TYPE"
	databaseTypeFlagUsage = "Database type: mem or mongodb. Defaults to mem. " + commonEnvSuffix + databaseTypeEnvKey

	databaseURLFlagName  = "database-url"
	databaseURLEnvKey    = "DSC_DATABASE_URL"
	databaseURLFlagUsage = "Database connection string (required for mongodb). " + commonEnvSuffix + databaseURLEnvKey

	databasePrefixFlagName  = "database-prefix"
	databasePrefixEnvKey    = "DSC_DATABASE_PREFIX"
	databasePrefixFlagUsage = "Prefix prepended to every database name. " + commonEnvSuffix + databasePrefixEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutEnvKey    = "DSC_DATABASE_TIMEOUT"
	databaseTimeoutFlagUsage = "Upper bound for individual database operations, e.g. 10s. " +
		commonEnvSuffix + databaseTimeoutEnvKey

	mqURLFlagName  = "mq-url"
	mqURLEnvKey    = "DSC_MQ_URL"
	mqURLFlagUsage = "AMQP broker connection string. Empty selects the in-memory event bus. " +
		commonEnvSuffix + mqURLEnvKey

	mqChannelPoolFlagName  = "mq-publisher-channel-pool-size"
	mqChannelPoolEnvKey    = "DSC_MQ_PUBLISHER_CHANNEL_POOL_SIZE"
	mqChannelPoolFlagUsage = "Number of channels the AMQP publisher keeps open. " + commonEnvSuffix + mqChannelPoolEnvKey

	peerTimeoutFlagName  = "peer-call-timeout"
	peerTimeoutEnvKey    = "DSC_PEER_CALL_TIMEOUT"
	peerTimeoutFlagUsage = "Upper bound for outbound HTTP calls to peers, e.g. 10s. " + commonEnvSuffix + peerTimeoutEnvKey

	peerHostRewriteFlagName  = "peer-host-rewrite"
	peerHostRewriteEnvKey    = "DSC_PEER_HOST_REWRITE"
	peerHostRewriteFlagUsage = "Development-only host substitutions applied to outbound peer URLs, " +
		"as advertised=dial pairs, e.g. consumer.example.com=localhost:9090. " + commonEnvSuffix + peerHostRewriteEnvKey

	adminTokenFlagName  = "admin-token"
	adminTokenEnvKey    = "DSC_ADMIN_TOKEN" //nolint:gosec
	adminTokenFlagUsage = "Static bearer token accepted on the local control-plane endpoints. " +
		commonEnvSuffix + adminTokenEnvKey

	httpSignaturesFlagName  = "enable-http-signatures"
	httpSignaturesEnvKey    = "DSC_HTTP_SIGNATURES_ENABLED"
	httpSignaturesFlagUsage = "Set to true to sign outbound peer calls and accept HTTP-signature auth inbound. " +
		commonEnvSuffix + httpSignaturesEnvKey

	cacheSizeFlagName  = "process-cache-size"
	cacheSizeEnvKey    = "DSC_PROCESS_CACHE_SIZE"
	cacheSizeFlagUsage = "Maximum number of process records held in the read-through cache. " +
		commonEnvSuffix + cacheSizeEnvKey

	sweepIntervalFlagName  = "notification-sweep-interval"
	sweepIntervalEnvKey    = "DSC_NOTIFICATION_SWEEP_INTERVAL"
	sweepIntervalFlagUsage = "Period of the pending-notification redelivery sweep, e.g. 30s. " +
		commonEnvSuffix + sweepIntervalEnvKey

	taskCheckIntervalFlagName  = "task-check-interval"
	taskCheckIntervalEnvKey    = "DSC_TASK_CHECK_INTERVAL"
	taskCheckIntervalFlagUsage = "Period at which the task manager polls for due tasks, e.g. 10s. " +
		commonEnvSuffix + taskCheckIntervalEnvKey

	expiryIntervalFlagName  = "data-expiry-interval"
	expiryIntervalEnvKey    = "DSC_DATA_EXPIRY_INTERVAL"
	expiryIntervalFlagUsage = "Period of the expired-data cleanup task, e.g. 1m. " + commonEnvSuffix + expiryIntervalEnvKey

	metricsProviderFlagName  = "metrics-provider-name"
	metricsProviderEnvKey    = "DSC_METRICS_PROVIDER_NAME"
	metricsProviderFlagUsage = "Metrics provider: prometheus, or empty to disable. " +
		commonEnvSuffix + metricsProviderEnvKey

	metricsURLFlagName  = "metrics-url"
	metricsURLEnvKey    = "DSC_METRICS_URL"
	metricsURLFlagUsage = "Host:port of the internal metrics listener. " + commonEnvSuffix + metricsURLEnvKey

	tracingProviderFlagName  = "tracing-provider"
	tracingProviderEnvKey    = "DSC_TRACING_PROVIDER"
	tracingProviderFlagUsage = "Tracing provider: JAEGER, or empty to disable. " + commonEnvSuffix + tracingProviderEnvKey

	tracingURLFlagName  = "tracing-collector-url"
	tracingURLEnvKey    = "DSC_TRACING_COLLECTOR_URL"
	tracingURLFlagUsage = "Tracing collector endpoint URL. " + commonEnvSuffix + tracingURLEnvKey

	tlsCertFileFlagName  = "tls-cert-file"
	tlsCertFileEnvKey    = "DSC_TLS_CERT_FILE"
	tlsCertFileFlagUsage = "TLS certificate file for the listener. " + commonEnvSuffix + tlsCertFileEnvKey

	tlsKeyFileFlagName  = "tls-key-file"
	tlsKeyFileEnvKey    = "DSC_TLS_KEY_FILE"
	tlsKeyFileFlagUsage = "TLS key file for the listener. " + commonEnvSuffix + tlsKeyFileEnvKey

	dataPlaneURLFlagName  = "data-plane-url"
	dataPlaneURLEnvKey    = "DSC_DATA_PLANE_URL"
	dataPlaneURLFlagUsage = "Base URL of the data plane's control API. Empty disables data plane control calls. " +
		commonEnvSuffix + dataPlaneURLEnvKey

	pdFilePathFlagName  = "presentation-definition-file"
	pdFilePathEnvKey    = "DSC_PRESENTATION_DEFINITION_FILE"
	pdFilePathFlagUsage = "Path to the OIDC4VP presentation definition document served to holder wallets. " +
		commonEnvSuffix + pdFilePathEnvKey

	commonEnvSuffix = "Alternatively, this can be set with the following environment variable: "

	defaultDatabaseType      = "mem"
	defaultDatabaseTimeout   = 10 * time.Second
	defaultPeerCallTimeout   = 10 * time.Second
	defaultMQChannelPoolSize = 25
	defaultCacheSize         = 1000
	defaultSweepInterval     = 30 * time.Second
	defaultTaskCheckInterval = 10 * time.Second
	defaultExpiryInterval    = time.Minute
)

type serverParameters struct {
	hostURL           string
	connector         config.Connector
	db                config.DB
	broker            config.MessageBroker
	adminToken        string
	httpSignatures    bool
	cacheSize         int
	sweepInterval     time.Duration
	taskCheckInterval time.Duration
	expiryInterval    time.Duration
	metricsProvider   string
	metricsURL        string
	tracingProvider   string
	tracingURL        string
	tlsCertFile       string
	tlsKeyFile        string
	dataPlaneURL      string
	pdFilePath        string
}

func getParameters(cmd *cobra.Command) (*serverParameters, error) {
	hostURL, err := cmdutil.GetString(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	externalEndpoint, err := cmdutil.GetString(cmd, externalEndpointFlagName, externalEndpointEnvKey, false)
	if err != nil {
		return nil, err
	}

	participantID, err := cmdutil.GetString(cmd, participantIDFlagName, participantIDEnvKey, false)
	if err != nil {
		return nil, err
	}

	databaseType := cmdutil.GetOptionalString(cmd, databaseTypeFlagName, databaseTypeEnvKey)
	if databaseType == "" {
		databaseType = defaultDatabaseType
	}

	databaseTimeout, err := cmdutil.GetDuration(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, defaultDatabaseTimeout)
	if err != nil {
		return nil, err
	}

	peerTimeout, err := cmdutil.GetDuration(cmd, peerTimeoutFlagName, peerTimeoutEnvKey, defaultPeerCallTimeout)
	if err != nil {
		return nil, err
	}

	mqChannelPool, err := cmdutil.GetInt(cmd, mqChannelPoolFlagName, mqChannelPoolEnvKey, defaultMQChannelPoolSize)
	if err != nil {
		return nil, err
	}

	httpSignatures, err := cmdutil.GetBool(cmd, httpSignaturesFlagName, httpSignaturesEnvKey, false)
	if err != nil {
		return nil, err
	}

	cacheSize, err := cmdutil.GetInt(cmd, cacheSizeFlagName, cacheSizeEnvKey, defaultCacheSize)
	if err != nil {
		return nil, err
	}

	sweepInterval, err := cmdutil.GetDuration(cmd, sweepIntervalFlagName, sweepIntervalEnvKey, defaultSweepInterval)
	if err != nil {
		return nil, err
	}

	taskCheckInterval, err := cmdutil.GetDuration(cmd, taskCheckIntervalFlagName, taskCheckIntervalEnvKey,
		defaultTaskCheckInterval)
	if err != nil {
		return nil, err
	}

	expiryInterval, err := cmdutil.GetDuration(cmd, expiryIntervalFlagName, expiryIntervalEnvKey, defaultExpiryInterval)
	if err != nil {
		return nil, err
	}

	return &serverParameters{
		hostURL: hostURL,
		connector: config.Connector{
			ParticipantID:    participantID,
			Slug:             cmdutil.GetOptionalString(cmd, slugFlagName, slugEnvKey),
			ExternalEndpoint: strings.TrimRight(externalEndpoint, "/"),
			PeerCallTimeout:  peerTimeout,
			PeerHostRewrite:  parseHostRewrite(cmdutil.GetOptionalStringArray(cmd, peerHostRewriteFlagName, peerHostRewriteEnvKey)),
		},
		db: config.DB{
			Type:    databaseType,
			URL:     cmdutil.GetOptionalString(cmd, databaseURLFlagName, databaseURLEnvKey),
			Prefix:  cmdutil.GetOptionalString(cmd, databasePrefixFlagName, databasePrefixEnvKey),
			Timeout: databaseTimeout,
		},
		broker: config.MessageBroker{
			URL:            cmdutil.GetOptionalString(cmd, mqURLFlagName, mqURLEnvKey),
			PublisherLimit: mqChannelPool,
		},
		adminToken:        cmdutil.GetOptionalString(cmd, adminTokenFlagName, adminTokenEnvKey),
		httpSignatures:    httpSignatures,
		cacheSize:         cacheSize,
		sweepInterval:     sweepInterval,
		taskCheckInterval: taskCheckInterval,
		expiryInterval:    expiryInterval,
		metricsProvider:   cmdutil.GetOptionalString(cmd, metricsProviderFlagName, metricsProviderEnvKey),
		metricsURL:        cmdutil.GetOptionalString(cmd, metricsURLFlagName, metricsURLEnvKey),
		tracingProvider:   cmdutil.GetOptionalString(cmd, tracingProviderFlagName, tracingProviderEnvKey),
		tracingURL:        cmdutil.GetOptionalString(cmd, tracingURLFlagName, tracingURLEnvKey),
		tlsCertFile:       cmdutil.GetOptionalString(cmd, tlsCertFileFlagName, tlsCertFileEnvKey),
		tlsKeyFile:        cmdutil.GetOptionalString(cmd, tlsKeyFileFlagName, tlsKeyFileEnvKey),
		dataPlaneURL:      cmdutil.GetOptionalString(cmd, dataPlaneURLFlagName, dataPlaneURLEnvKey),
		pdFilePath:        cmdutil.GetOptionalString(cmd, pdFilePathFlagName, pdFilePathEnvKey),
	}, nil
}

// parseHostRewrite parses advertised=dial pairs.
func parseHostRewrite(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}

	rewrite := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			rewrite[parts[0]] = parts[1]
		}
	}

	return rewrite
}

func createFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(hostURLFlagName, "u", "", hostURLFlagUsage)
	cmd.Flags().String(externalEndpointFlagName, "", externalEndpointFlagUsage)
	cmd.Flags().String(participantIDFlagName, "", participantIDFlagUsage)
	cmd.Flags().String(slugFlagName, "", slugFlagUsage)
	cmd.Flags().String(databaseTypeFlagName, "", databaseTypeFlagUsage)
	cmd.Flags().String(databaseURLFlagName, "", databaseURLFlagUsage)
	cmd.Flags().String(databasePrefixFlagName, "", databasePrefixFlagUsage)
	cmd.Flags().String(databaseTimeoutFlagName, "", databaseTimeoutFlagUsage)
	cmd.Flags().String(mqURLFlagName, "", mqURLFlagUsage)
	cmd.Flags().String(mqChannelPoolFlagName, "", mqChannelPoolFlagUsage)
	cmd.Flags().String(peerTimeoutFlagName, "", peerTimeoutFlagUsage)
	cmd.Flags().StringArray(peerHostRewriteFlagName, nil, peerHostRewriteFlagUsage)
	cmd.Flags().String(adminTokenFlagName, "", adminTokenFlagUsage)
	cmd.Flags().String(httpSignaturesFlagName, "", httpSignaturesFlagUsage)
	cmd.Flags().String(cacheSizeFlagName, "", cacheSizeFlagUsage)
	cmd.Flags().String(sweepIntervalFlagName, "", sweepIntervalFlagUsage)
	cmd.Flags().String(taskCheckIntervalFlagName, "", taskCheckIntervalFlagUsage)
	cmd.Flags().String(expiryIntervalFlagName, "", expiryIntervalFlagUsage)
	cmd.Flags().String(metricsProviderFlagName, "", metricsProviderFlagUsage)
	cmd.Flags().String(metricsURLFlagName, "", metricsURLFlagUsage)
	cmd.Flags().String(tracingProviderFlagName, "", tracingProviderFlagUsage)
	cmd.Flags().String(tracingURLFlagName, "", tracingURLFlagUsage)
	cmd.Flags().String(tlsCertFileFlagName, "", tlsCertFileFlagUsage)
	cmd.Flags().String(tlsKeyFileFlagName, "", tlsKeyFileFlagUsage)
	cmd.Flags().String(dataPlaneURLFlagName, "", dataPlaneURLFlagUsage)
	cmd.Flags().String(pdFilePathFlagName, "", pdFilePathFlagUsage)
}
