/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
)

func TestValidateEnvelope(t *testing.T) {
	v := New(nil)

	t.Run("valid contract request with permission", func(t *testing.T) {
		body := []byte(`{
			"@context": "` + model.DSPContext + `",
			"@type": "dspace:ContractRequestMessage",
			"consumerPid": "urn:uuid:c1",
			"offer": {"target": "urn:uuid:d1", "permission": [{"action": "use"}]}
		}`)

		env, protoErr, err := v.ValidateEnvelope(body)
		require.NoError(t, err)
		require.Nil(t, protoErr)
		require.Equal(t, model.TypeContractRequestMessage, env.Type)
	})

	t.Run("rejects offer with both permission and prohibition", func(t *testing.T) {
		body := []byte(`{
			"@context": "` + model.DSPContext + `",
			"@type": "dspace:ContractRequestMessage",
			"consumerPid": "urn:uuid:c1",
			"offer": {
				"target": "urn:uuid:d1",
				"permission": [{"action": "use"}],
				"prohibition": [{"action": "modify"}]
			}
		}`)

		_, protoErr, err := v.ValidateEnvelope(body)
		require.NoError(t, err)
		require.NotNil(t, protoErr)
		require.Equal(t, "invalid-offer", protoErr.Code)
	})

	t.Run("rejects offer with neither permission nor prohibition", func(t *testing.T) {
		body := []byte(`{
			"@context": "` + model.DSPContext + `",
			"@type": "dspace:ContractRequestMessage",
			"consumerPid": "urn:uuid:c1",
			"offer": {"target": "urn:uuid:d1"}
		}`)

		_, protoErr, err := v.ValidateEnvelope(body)
		require.NoError(t, err)
		require.NotNil(t, protoErr)
		require.Equal(t, "invalid-offer", protoErr.Code)
	})

	t.Run("missing context", func(t *testing.T) {
		_, protoErr, err := v.ValidateEnvelope([]byte(`{"@type": "dspace:ContractRequestMessage"}`))
		require.NoError(t, err)
		require.Equal(t, "missing-context", protoErr.Code)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		body := []byte(`{
			"@context": "` + model.DSPContext + `",
			"@type": "dspace:ContractRequestMessage",
			"consumerPid": "urn:uuid:c1",
			"offer": {"target": "urn:uuid:d1", "permission": [{"action": "use"}]},
			"surprise": true
		}`)

		_, protoErr, err := v.ValidateEnvelope(body)
		require.NoError(t, err)
		require.NotNil(t, protoErr)
		require.Equal(t, "malformed-message", protoErr.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		body := []byte(`{"@context": "` + model.DSPContext + `", "@type": "dspace:Nonsense"}`)

		_, protoErr, err := v.ValidateEnvelope(body)
		require.NoError(t, err)
		require.Equal(t, "unknown-type", protoErr.Code)
	})

	t.Run("push transfer without data address is rejected", func(t *testing.T) {
		body := []byte(`{
			"@context": "` + model.DSPContext + `",
			"@type": "dspace:TransferRequestMessage",
			"consumerPid": "urn:uuid:c1",
			"agreementId": "urn:uuid:a1",
			"format": {"protocol": "http", "action": "push"}
		}`)

		_, protoErr, err := v.ValidateEnvelope(body)
		require.NoError(t, err)
		require.Equal(t, "missing-data-address", protoErr.Code)
	})

	t.Run("pull transfer with data address hint is accepted", func(t *testing.T) {
		body := []byte(`{
			"@context": "` + model.DSPContext + `",
			"@type": "dspace:TransferRequestMessage",
			"consumerPid": "urn:uuid:c1",
			"agreementId": "urn:uuid:a1",
			"format": {"protocol": "http", "action": "pull"},
			"dataAddress": {"endpointType": "http", "endpoint": "https://example.com/data"}
		}`)

		_, protoErr, err := v.ValidateEnvelope(body)
		require.NoError(t, err)
		require.Nil(t, protoErr)
	})
}

func TestSemanticCheckPIDs(t *testing.T) {
	t.Run("matches path", func(t *testing.T) {
		protoErr := SemanticCheckPIDs("", "urn:uuid:c1", "urn:uuid:c1", "urn:uuid:p1", "urn:uuid:c1")
		require.Nil(t, protoErr)
	})

	t.Run("mismatch", func(t *testing.T) {
		protoErr := SemanticCheckPIDs("", "urn:uuid:other", "urn:uuid:c1", "urn:uuid:p1", "urn:uuid:c1")
		require.NotNil(t, protoErr)
		require.Equal(t, "pid-mismatch", protoErr.Code)
	})
}
