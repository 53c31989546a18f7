/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package noop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	p := NewProvider()
	require.NoError(t, p.Create())
	require.NoError(t, p.Destroy())

	m := p.Metrics()
	require.NotPanics(t, func() {
		m.TransitionTime("cn", time.Millisecond)
		m.TransitionRejected("tp")
		m.OutboundCallTime("dspace:ContractAgreementMessage", time.Millisecond)
		m.OutboundCallFailure("dspace:ContractAgreementMessage")
		m.DataPlaneProvisionTime(time.Millisecond)
		m.DataPlaneTeardownTime(time.Millisecond)
		m.GrantRequestTime(time.Millisecond)
		m.GrantHashMismatch()
		m.GrantContinueTime(time.Millisecond)
		m.NotificationDeliveryTime(time.Millisecond)
		m.NotificationBacklogSize(3)
		m.NotificationRetry()
	})
}
