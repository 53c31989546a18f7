/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/config"
)

func dbParams(typ string) config.DB {
	return config.DB{Type: typ, Timeout: time.Second}
}

func TestGetStartCmd(t *testing.T) {
	startCmd := GetStartCmd()

	require.Equal(t, "start", startCmd.Use)
	require.NotEmpty(t, startCmd.Short)
	require.NotNil(t, startCmd.Flags().Lookup(hostURLFlagName))
	require.NotNil(t, startCmd.Flags().Lookup(externalEndpointFlagName))
	require.NotNil(t, startCmd.Flags().Lookup(participantIDFlagName))
}

func TestStartCmd_MissingHostURL(t *testing.T) {
	startCmd := GetStartCmd()

	startCmd.SetArgs([]string{})

	err := startCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), hostURLFlagName)
}

func TestStartCmd_MissingExternalEndpoint(t *testing.T) {
	startCmd := GetStartCmd()

	startCmd.SetArgs([]string{"--" + hostURLFlagName, "localhost:8080"})

	err := startCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), externalEndpointFlagName)
}

func TestGetParameters(t *testing.T) {
	startCmd := createStartCmd()
	createFlags(startCmd)

	require.NoError(t, startCmd.Flags().Set(hostURLFlagName, "localhost:8080"))
	require.NoError(t, startCmd.Flags().Set(externalEndpointFlagName, "https://provider.example.com/"))
	require.NoError(t, startCmd.Flags().Set(participantIDFlagName, "urn:participant:provider"))
	require.NoError(t, startCmd.Flags().Set(peerHostRewriteFlagName, "consumer.example.com=localhost:9090"))

	params, err := getParameters(startCmd)
	require.NoError(t, err)

	require.Equal(t, "localhost:8080", params.hostURL)
	require.Equal(t, "https://provider.example.com", params.connector.ExternalEndpoint)
	require.Equal(t, "urn:participant:provider", params.connector.ParticipantID)
	require.Equal(t, defaultDatabaseType, params.db.Type)
	require.Equal(t, defaultPeerCallTimeout, params.connector.PeerCallTimeout)
	require.Equal(t, map[string]string{"consumer.example.com": "localhost:9090"}, params.connector.PeerHostRewrite)
}

func TestCreateStorageProvider(t *testing.T) {
	t.Run("mem", func(t *testing.T) {
		provider, err := createStorageProvider(&serverParameters{})
		require.Error(t, err)
		require.Nil(t, provider)

		provider, err = createStorageProvider(&serverParameters{db: dbParams("mem")})
		require.NoError(t, err)
		require.NotNil(t, provider)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := createStorageProvider(&serverParameters{db: dbParams("couchdb")})
		require.Error(t, err)
		require.Contains(t, err.Error(), "mem or mongodb")
	})
}

func TestCreateMetricsProvider(t *testing.T) {
	provider, m, err := createMetricsProvider(&serverParameters{})
	require.NoError(t, err)
	require.Nil(t, provider)
	require.NotNil(t, m)

	_, _, err = createMetricsProvider(&serverParameters{metricsProvider: "prometheus"})
	require.Error(t, err)
	require.Contains(t, err.Error(), metricsURLFlagName)

	_, _, err = createMetricsProvider(&serverParameters{metricsProvider: "statsd"})
	require.Error(t, err)
}

func TestCreatePDProvider(t *testing.T) {
	pd, err := createPDProvider("")
	require.NoError(t, err)

	doc, err := pd.PresentationDefinition(nil) //nolint:staticcheck
	require.NoError(t, err)
	require.Contains(t, string(doc), "input_descriptors")

	_, err = createPDProvider("no-such-file.json")
	require.Error(t, err)
}
