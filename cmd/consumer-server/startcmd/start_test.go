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

func TestGetParameters(t *testing.T) {
	startCmd := createStartCmd()
	createFlags(startCmd)

	require.NoError(t, startCmd.Flags().Set(hostURLFlagName, "localhost:9090"))
	require.NoError(t, startCmd.Flags().Set(externalEndpointFlagName, "https://consumer.example.com"))
	require.NoError(t, startCmd.Flags().Set(participantIDFlagName, "urn:participant:consumer"))
	require.NoError(t, startCmd.Flags().Set(databaseTimeoutFlagName, "5s"))

	params, err := getParameters(startCmd)
	require.NoError(t, err)

	require.Equal(t, "localhost:9090", params.hostURL)
	require.Equal(t, "urn:participant:consumer", params.connector.ParticipantID)
	require.Equal(t, 5*time.Second, params.db.Timeout)
	require.Equal(t, defaultCacheSize, params.cacheSize)
}

func TestCreateStorageProvider(t *testing.T) {
	provider, err := createStorageProvider(&serverParameters{db: config.DB{Type: "mem"}})
	require.NoError(t, err)
	require.NotNil(t, provider)

	_, err = createStorageProvider(&serverParameters{db: config.DB{Type: "mysql"}})
	require.Error(t, err)
}
